package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"

	"onepager/internal/domain"
	"onepager/internal/infra/logging"
)

// Options configures how Chrome is launched.
type Options struct {
	ChromePath  string
	NoSandbox   bool
	UserDataDir string
}

// Engine renders pages to PDF with a fresh headless Chrome per call.
type Engine struct {
	opts Options
}

// New returns an Engine. An empty ChromePath is resolved with LookPath.
func New(opts Options) *Engine {
	if opts.ChromePath == "" {
		if p, ok := LookPath(); ok {
			opts.ChromePath = p
		}
	}
	return &Engine{opts: opts}
}

func (e *Engine) Name() string { return "chromedp" }

// LookPath finds an installed Chrome or Chromium binary.
func LookPath() (string, bool) {
	if v := os.Getenv("CHROME_BIN"); v != "" {
		if _, err := os.Stat(v); err == nil {
			return v, true
		}
	}
	return launcher.LookPath()
}

func createProfileDir(base string) (string, error) {
	dir, err := os.MkdirTemp(base, "chromedata-*")
	if err != nil {
		return "", fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	return dir, nil
}

func (e *Engine) allocatorOptions(profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if e.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(e.opts.ChromePath))
	}
	if e.opts.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// RenderPDF launches Chrome, loads spec.URL, waits for network idle and the
// readiness selector, and prints the page. The browser is closed on return.
func (e *Engine) RenderPDF(ctx context.Context, spec domain.CaptureSpec) ([]byte, error) {
	profileDir, err := createProfileDir(e.opts.UserDataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserLaunch, err)
	}
	defer os.RemoveAll(profileDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, e.allocatorOptions(profileDir)...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// An empty Run starts the browser and opens the first tab.
	if err := chromedp.Run(chromeCtx); err != nil {
		return nil, classify(ctx, domain.ErrBrowserLaunch, err)
	}
	defer func() {
		if err := chromedp.Cancel(chromeCtx); err != nil {
			logging.Debug("Chrome close failed", "error", err)
		}
	}()

	forwardConsole(chromeCtx, spec.RequestID)

	if err := chromedp.Run(chromeCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"X-Request-ID": spec.RequestID}),
		withTimeout(spec.NavigationTimeout, navigateAndWaitIdle(spec.URL)),
	); err != nil {
		return nil, classify(ctx, domain.ErrNavigation, err)
	}

	if err := chromedp.Run(chromeCtx,
		withTimeout(spec.ReadyTimeout, chromedp.WaitReady(spec.ReadySelector, chromedp.ByQuery)),
	); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q after %s", domain.ErrReadyTimeout, spec.ReadySelector, spec.ReadyTimeout)
		}
		return nil, classify(ctx, domain.ErrReadyTimeout, err)
	}

	var pdfBuf []byte
	if err := chromedp.Run(chromeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdfBuf, _, err = page.PrintToPDF().
			WithPrintBackground(spec.PrintBackground).
			WithPaperWidth(spec.PaperWidth).
			WithPaperHeight(spec.PaperHeight).
			WithMarginTop(spec.Margin).
			WithMarginBottom(spec.Margin).
			WithMarginLeft(spec.Margin).
			WithMarginRight(spec.Margin).
			Do(ctx)
		return err
	})); err != nil {
		return nil, classify(ctx, domain.ErrPDFCapture, err)
	}
	if len(pdfBuf) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrPDFCapture)
	}
	return pdfBuf, nil
}

// withTimeout bounds a single action.
func withTimeout(d time.Duration, a chromedp.Action) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if d <= 0 {
			return a.Do(ctx)
		}
		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return a.Do(tctx)
	}
}

// navigateAndWaitIdle navigates the main frame and returns once Chrome
// reports the networkIdle lifecycle event for that navigation.
func navigateAndWaitIdle(urlstr string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		if c == nil || c.Target == nil {
			return errors.New("no browser target")
		}
		mainFrame := cdp.FrameID(c.Target.TargetID)

		idle := make(chan struct{})
		var (
			once   sync.Once
			mu     sync.Mutex
			loader cdp.LoaderID
		)
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev any) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok || e.FrameID != mainFrame {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch e.Name {
			case "init":
				loader = e.LoaderID
			case "networkIdle":
				// Events of the initial about:blank document carry another loader.
				if loader != "" && e.LoaderID == loader {
					once.Do(func() { close(idle) })
				}
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}
		if err := chromedp.Navigate(urlstr).Do(ctx); err != nil {
			return err
		}
		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// forwardConsole copies page console output and uncaught exceptions to the log.
func forwardConsole(ctx context.Context, requestID string) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			parts := make([]string, 0, len(e.Args))
			for _, arg := range e.Args {
				if len(arg.Value) > 0 {
					parts = append(parts, strings.Trim(string(arg.Value), `"`))
				} else if arg.Description != "" {
					parts = append(parts, arg.Description)
				}
			}
			logging.Info("Page log", "source", "page", "type", e.Type.String(), "text", strings.Join(parts, " "), "request_id", requestID)
		case *runtime.EventExceptionThrown:
			if e.ExceptionDetails == nil {
				return
			}
			text := e.ExceptionDetails.Text
			if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
				text = e.ExceptionDetails.Exception.Description
			}
			logging.Warn("Page exception", "source", "page", "text", text, "request_id", requestID)
		}
	})
}

// IsSessionInterrupted reports errors caused by the browser session going
// away rather than by the page.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "target closed") ||
		strings.Contains(msg, "session closed") ||
		strings.Contains(msg, "websocket: close")
}

// classify wraps err with the stage sentinel, or with ErrRenderCancelled
// when the caller's context ended.
func classify(parent context.Context, stage, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %v", domain.ErrRenderCancelled, err)
	}
	if IsSessionInterrupted(err) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: browser session interrupted: %v", stage, err)
	}
	return fmt.Errorf("%w: %v", stage, err)
}
