package render

import (
	"context"
	"fmt"

	"onepager/internal/config"
	"onepager/internal/domain"
	"onepager/internal/infra/chrome"
	"onepager/internal/infra/rodengine"
)

// Engine drives a headless browser through one page load and PDF capture.
type Engine interface {
	Name() string
	RenderPDF(ctx context.Context, spec domain.CaptureSpec) ([]byte, error)
}

// Compile-time interface checks
var (
	_ Engine = (*chrome.Engine)(nil)
	_ Engine = (*rodengine.Engine)(nil)
)

// NewEngine returns the browser engine named by cfg.Render.Engine.
func NewEngine(cfg config.RenderConfig) (Engine, error) {
	switch cfg.Engine {
	case "", "chromedp":
		return chrome.New(chrome.Options{
			ChromePath:  cfg.ChromePath,
			NoSandbox:   cfg.ChromeNoSandbox,
			UserDataDir: cfg.UserDataDir,
		}), nil
	case "rod":
		return rodengine.New(rodengine.Options{
			BrowserBin:  cfg.ChromePath,
			NoSandbox:   cfg.ChromeNoSandbox,
			UserDataDir: cfg.UserDataDir,
		}), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedEngine, cfg.Engine)
}
