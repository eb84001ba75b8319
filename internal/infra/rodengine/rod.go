// Package rodengine renders pages to PDF with go-rod. It is the alternative
// to the chromedp engine and honors the same capture contract.
package rodengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"onepager/internal/domain"
	"onepager/internal/infra/logging"
)

// Options configures how the browser is launched.
type Options struct {
	BrowserBin  string
	NoSandbox   bool
	UserDataDir string
}

// Engine launches one browser per render.
type Engine struct {
	opts Options
}

// New returns an Engine. Without BrowserBin, rod looks up an installed
// browser and downloads Chromium as a last resort.
func New(opts Options) *Engine {
	if opts.BrowserBin == "" {
		if p, ok := launcher.LookPath(); ok {
			opts.BrowserBin = p
		}
	}
	return &Engine{opts: opts}
}

func (e *Engine) Name() string { return "rod" }

func (e *Engine) launcher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().Context(ctx).Headless(true)
	if e.opts.BrowserBin != "" {
		l = l.Bin(e.opts.BrowserBin)
	}
	// NoSandbox required for CI and containerized environments
	if e.opts.NoSandbox || os.Getenv("CI") == "true" {
		l = l.NoSandbox(true)
	}
	if e.opts.UserDataDir != "" {
		l = l.UserDataDir(e.opts.UserDataDir)
	}
	return l
}

// RenderPDF loads spec.URL, waits for request idle and the readiness
// selector, and prints the page.
func (e *Engine) RenderPDF(ctx context.Context, spec domain.CaptureSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderCancelled, err)
	}

	l := e.launcher(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserLaunch, err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserLaunch, err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logging.Debug("Browser close failed", "error", err)
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, classify(ctx, domain.ErrBrowserLaunch, err)
	}

	stopConsole := forwardConsole(page, spec.RequestID)
	defer stopConsole()

	if spec.RequestID != "" {
		if _, err := page.SetExtraHeaders([]string{"X-Request-ID", spec.RequestID}); err != nil {
			return nil, classify(ctx, domain.ErrNavigation, err)
		}
	}

	navPage := page
	if spec.NavigationTimeout > 0 {
		navPage = page.Timeout(spec.NavigationTimeout)
	}
	waitIdle := navPage.WaitRequestIdle(spec.NetworkIdle, nil, nil, nil)
	if err := navPage.Navigate(spec.URL); err != nil {
		return nil, classify(ctx, domain.ErrNavigation, err)
	}
	if err := navPage.WaitLoad(); err != nil {
		return nil, classify(ctx, domain.ErrNavigation, err)
	}
	waitIdle()
	if err := navPage.GetContext().Err(); err != nil {
		return nil, classify(ctx, domain.ErrNavigation, fmt.Errorf("network never went idle: %w", err))
	}

	if _, err := page.Timeout(spec.ReadyTimeout).Element(spec.ReadySelector); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q after %s", domain.ErrReadyTimeout, spec.ReadySelector, spec.ReadyTimeout)
		}
		return nil, classify(ctx, domain.ErrReadyTimeout, err)
	}

	reader, err := page.PDF(buildPDFOptions(spec))
	if err != nil {
		return nil, classify(ctx, domain.ErrPDFCapture, err)
	}
	pdfBuf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", domain.ErrPDFCapture, err)
	}
	if len(pdfBuf) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrPDFCapture)
	}
	return pdfBuf, nil
}

// buildPDFOptions maps the capture spec onto Page.printToPDF. Margins are
// always set explicitly; nil would mean Chrome's default margin.
func buildPDFOptions(spec domain.CaptureSpec) *proto.PagePrintToPDF {
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(spec.PaperWidth),
		PaperHeight:     floatPtr(spec.PaperHeight),
		MarginTop:       floatPtr(spec.Margin),
		MarginBottom:    floatPtr(spec.Margin),
		MarginLeft:      floatPtr(spec.Margin),
		MarginRight:     floatPtr(spec.Margin),
		PrintBackground: spec.PrintBackground,
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

// forwardConsole logs page console calls until the returned stop func runs.
func forwardConsole(page *rod.Page, requestID string) func() {
	ctx, cancel := context.WithCancel(page.GetContext())
	wait := page.Context(ctx).EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		parts := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			if v := arg.Value.String(); v != "" && v != "null" {
				parts = append(parts, strings.Trim(v, `"`))
			} else if arg.Description != "" {
				parts = append(parts, arg.Description)
			}
		}
		logging.Info("Page log", "source", "page", "type", string(e.Type), "text", strings.Join(parts, " "), "request_id", requestID)
	})
	go wait()
	return cancel
}

func classify(parent context.Context, stage, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %v", domain.ErrRenderCancelled, err)
	}
	return fmt.Errorf("%w: %v", stage, err)
}
