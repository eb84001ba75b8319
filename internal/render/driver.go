// Package render turns one language of the source page into a PDF on disk:
// it serves the page, drives the browser, captures and writes the result.
package render

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/rs/xid"

	"onepager/internal/config"
	"onepager/internal/domain"
	"onepager/internal/http/server"
	"onepager/internal/infra/logging"
	"onepager/internal/verify"
)

// Driver renders one language per Generate call.
type Driver struct {
	cfg      config.Config
	engine   Engine
	verifier *verify.Verifier
	layout   domain.Layout
}

// NewDriver wires a Driver. A nil verifier skips page-count verification.
func NewDriver(cfg config.Config, engine Engine, verifier *verify.Verifier) *Driver {
	return &Driver{
		cfg:      cfg,
		engine:   engine,
		verifier: verifier,
		layout: domain.Layout{
			SourceHTML:      cfg.Source.HTML,
			OutputDir:       cfg.Output.Dir,
			BaseName:        cfg.Output.BaseName,
			DefaultLanguage: cfg.DefaultLanguage,
			LabelsDefault:   cfg.Labels.Default,
			LabelsPattern:   cfg.Labels.Pattern,
		},
	}
}

// Generate renders lang and reports the outcome. It never panics; any
// failure, including a recovered panic, comes back as a failed result.
func (d *Driver) Generate(ctx context.Context, lang string) (res domain.RenderResult) {
	requestID := xid.New().String()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Render panicked", "lang", lang, "request_id", requestID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			res.OK = false
			res.Err = fmt.Errorf("%w: %v", domain.ErrRenderPanicked, r)
		}
	}()

	req, err := d.layout.Resolve(lang)
	res.Request = req
	if err != nil {
		return d.fail(res, requestID, err)
	}

	logging.Info("Starting PDF generation", "lang", req.Language, "request_id", requestID, "engine", d.engine.Name())

	size, err := d.generate(ctx, req, requestID)
	if err != nil {
		return d.fail(res, requestID, err)
	}
	res.Bytes = size
	logging.Info("PDF generated",
		"lang", req.Language,
		"path", req.OutputPDF,
		"size_kb", fmt.Sprintf("%.1f", res.SizeKB()),
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)

	if d.verifier != nil {
		pages, err := d.verifier.Check(ctx, req.OutputPDF, d.cfg.Verify.ExpectedPages)
		res.Pages = pages
		if err != nil {
			return d.fail(res, requestID, err)
		}
		res.Verified = true
		logging.Info("Verification successful", "lang", req.Language, "pages", pages, "request_id", requestID)
	}

	res.OK = true
	return res
}

func (d *Driver) generate(ctx context.Context, req domain.RenderRequest, requestID string) (int64, error) {
	root := d.cfg.Source.Root
	if root == "" {
		root = "."
	}
	source := filepath.Join(root, req.SourceHTML)
	if info, err := os.Stat(source); err != nil || info.IsDir() {
		return 0, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, source)
	}
	// The page fetches its labels itself; a missing file is the page's problem.
	if _, err := os.Stat(filepath.Join(root, req.LabelsFile)); err != nil {
		logging.Warn("Labels file not found", "lang", req.Language, "labels", req.LabelsFile, "request_id", requestID)
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPDF), 0o755); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrWriteOutput, err)
	}

	srv, err := server.Start(ctx, server.Options{
		Root:         root,
		Host:         d.cfg.Server.Host,
		ReadyTimeout: d.cfg.Server.StartTimeout,
	})
	if err != nil {
		return 0, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Debug("Static server shutdown failed", "error", err)
		}
	}()

	pageURL := srv.URL(d.cfg.Server.URLHost, filepath.ToSlash(req.SourceHTML), url.Values{"lang": {req.Language}})
	logging.Info("Loading HTML file", "url", pageURL, "request_id", requestID)

	paper := d.cfg.Paper()
	pdf, err := d.engine.RenderPDF(ctx, domain.CaptureSpec{
		URL:               pageURL,
		RequestID:         requestID,
		ReadySelector:     d.cfg.Render.ReadySelector,
		ReadyTimeout:      d.cfg.Render.ReadyTimeout,
		NavigationTimeout: d.cfg.Render.NavigationTimeout,
		NetworkIdle:       d.cfg.Render.NetworkIdle,
		PaperWidth:        paper.Width,
		PaperHeight:       paper.Height,
		Margin:            d.cfg.Render.Margin,
		PrintBackground:   d.cfg.Render.PrintBackground,
	})
	if err != nil {
		return 0, err
	}

	logging.Debug("Writing PDF", "path", req.OutputPDF, "bytes", len(pdf), "request_id", requestID)
	return writeAtomic(req.OutputPDF, pdf)
}

func (d *Driver) fail(res domain.RenderResult, requestID string, err error) domain.RenderResult {
	res.OK = false
	res.Err = err
	// Bytes is only set once the PDF is on disk.
	kind := "generation"
	if res.Bytes > 0 {
		kind = "verification"
	}
	logging.Error("Render failed",
		"lang", res.Request.Language,
		"kind", kind,
		"request_id", requestID,
		"error", err,
	)
	return res
}
