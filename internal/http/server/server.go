// Package server runs the transient static file server the browser loads
// the source page from. It binds an OS-assigned port and is meant to live
// for exactly one render.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"onepager/internal/domain"
	"onepager/internal/http/middleware"
	"onepager/internal/infra/logging"
)

// Options configures a static server.
type Options struct {
	// Root is the directory served at "/".
	Root string
	// Host to bind; empty binds all interfaces.
	Host string
	// ReadyTimeout bounds the wait for the first successful probe.
	ReadyTimeout time.Duration
}

// Server is a running static file server.
type Server struct {
	app   *fiber.App
	ln    net.Listener
	port  int
	ready chan struct{}
	done  chan error
}

// New builds the Fiber app serving root. It does not listen.
func New(root string) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logging.Warn("Static request failed", "path", c.Path(), "status", code, "error", err)
			return c.SendStatus(code)
		},
	})

	middleware.Register(app)

	app.Static("/", root, fiber.Static{
		Browse:        false,
		CacheDuration: -1,
	})

	app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
	return app
}

// Start binds a free port, serves opts.Root in the background and returns
// once the server has answered a readiness probe.
func Start(ctx context.Context, opts Options) (*Server, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if fi, err := os.Stat(opts.Root); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: root %q is not a directory", domain.ErrServerStart, opts.Root)
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}

	// Binding port 0 and keeping the listener makes the port free at bind
	// time; nothing else can grab it between lookup and listen.
	ln, err := net.Listen("tcp", net.JoinHostPort(opts.Host, "0"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServerStart, err)
	}

	s := &Server{
		app:   New(opts.Root),
		ln:    ln,
		port:  ln.Addr().(*net.TCPAddr).Port,
		ready: make(chan struct{}),
		done:  make(chan error, 1),
	}

	listening := make(chan struct{})
	s.app.Hooks().OnListen(func(fiber.ListenData) error {
		close(listening)
		return nil
	})

	go func() {
		s.done <- s.app.Listener(ln)
	}()

	if err := s.waitReady(ctx, listening, opts.ReadyTimeout); err != nil {
		_ = s.app.Shutdown()
		return nil, err
	}
	close(s.ready)
	logging.Debug("Static server ready", "port", s.port, "root", opts.Root)
	return s, nil
}

// waitReady blocks until the listen hook fired and a health probe
// succeeded, so the first browser request never races the server start.
func (s *Server) waitReady(ctx context.Context, listening <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-listening:
	case err := <-s.done:
		return fmt.Errorf("%w: %v", domain.ErrServerStart, err)
	case <-timer.C:
		return fmt.Errorf("%w: listener not up after %s", domain.ErrServerStart, timeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrServerStart, ctx.Err())
	}

	probe := "http://" + net.JoinHostPort(probeHost(s.ln.Addr()), strconv.Itoa(s.port)) + "/readyz"
	for {
		code, _, errs := fiber.Get(probe).Timeout(time.Second).Bytes()
		if len(errs) == 0 && code == fiber.StatusOK {
			return nil
		}
		select {
		case <-timer.C:
			return fmt.Errorf("%w: probe %s failed: %v", domain.ErrServerStart, probe, errors.Join(errs...))
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrServerStart, ctx.Err())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// probeHost is the address a local client reaches the listener on: the
// bound IP, or the loopback of the same family for wildcard binds.
func probeHost(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || tcp.IP == nil {
		return "127.0.0.1"
	}
	if tcp.IP.IsUnspecified() {
		if tcp.IP.To4() == nil {
			return "::1"
		}
		return "127.0.0.1"
	}
	return tcp.IP.String()
}

// Port is the OS-assigned TCP port.
func (s *Server) Port() int { return s.port }

// Ready is closed once the server has accepted its readiness probe.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// URL returns the address of file on this server as seen from host
// (usually "localhost"), with query attached.
func (s *Server) URL(host, file string, query url.Values) string {
	if host == "" {
		host = "localhost"
	}
	u := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(host, strconv.Itoa(s.port)),
		Path:     "/" + file,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Shutdown stops the server. Callers may skip it; the listener goes away
// with the process.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}
