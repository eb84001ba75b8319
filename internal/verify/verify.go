// Package verify checks the page count of generated PDFs. It is optional
// tooling: the default flow does not call it.
package verify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"onepager/internal/config"
	"onepager/internal/domain"
	"onepager/internal/infra/logging"
)

// Counter reports the number of pages in a PDF file.
type Counter interface {
	Name() string
	CountPages(ctx context.Context, path string) (int, error)
}

// Compile-time interface checks
var (
	_ Counter = (*Pdfinfo)(nil)
	_ Counter = (*Pdfcpu)(nil)
	_ Counter = (*Ledongthuc)(nil)
)

// Pdfinfo shells out to poppler's pdfinfo and reads its "Pages:" line.
type Pdfinfo struct {
	// Path is the executable name or path; empty means "pdfinfo".
	Path string
}

func (p *Pdfinfo) Name() string { return "pdfinfo" }

func (p *Pdfinfo) CountPages(ctx context.Context, path string) (int, error) {
	bin := p.Path
	if bin == "" {
		bin = "pdfinfo"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, path)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("%w: %s exited with %d: %s", domain.ErrPageCountUnparsable,
				bin, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return 0, fmt.Errorf("%w: %s: %v (install poppler-utils and make sure it is on PATH)",
			domain.ErrVerifierUnavailable, bin, err)
	}
	return ParsePdfinfo(out)
}

// ParsePdfinfo extracts the page count from pdfinfo output.
func ParsePdfinfo(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", domain.ErrPageCountUnparsable, line)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: no Pages line in pdfinfo output", domain.ErrPageCountUnparsable)
}

var disableConfigDir sync.Once

// Pdfcpu counts pages in-process with pdfcpu.
type Pdfcpu struct{}

func (Pdfcpu) Name() string { return "pdfcpu" }

func (Pdfcpu) CountPages(_ context.Context, path string) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPageCountUnparsable, err)
	}
	return ctx.PageCount, nil
}

// Ledongthuc counts pages in-process with github.com/ledongthuc/pdf.
type Ledongthuc struct{}

func (Ledongthuc) Name() string { return "ledongthuc" }

func (Ledongthuc) CountPages(_ context.Context, path string) (n int, err error) {
	// The reader panics on some malformed trailers.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrPageCountUnparsable, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPageCountUnparsable, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// NewCounter returns the counter for a configured backend.
func NewCounter(cfg config.VerifyConfig) (Counter, error) {
	switch cfg.Backend {
	case "", "pdfinfo":
		return &Pdfinfo{Path: cfg.PdfinfoPath}, nil
	case "pdfcpu":
		return Pdfcpu{}, nil
	case "ledongthuc":
		return Ledongthuc{}, nil
	}
	return nil, fmt.Errorf("unknown verify backend %q", cfg.Backend)
}

// Verifier compares a PDF's page count with an expectation.
type Verifier struct {
	counter Counter
}

// New returns a Verifier backed by counter.
func New(counter Counter) *Verifier {
	return &Verifier{counter: counter}
}

// Check returns the page count and a typed error on any failure.
func (v *Verifier) Check(ctx context.Context, path string, expected int) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("PDF file not found at %s: %w", path, fs.ErrNotExist)
	}
	n, err := v.counter.CountPages(ctx, path)
	if err != nil {
		return 0, err
	}
	if n != expected {
		return n, fmt.Errorf("%w: expected %d page(s), found %d", domain.ErrPageCountMismatch, expected, n)
	}
	return n, nil
}

// Verify reports whether path has exactly expected pages. Every failure is
// logged and returned as false.
func (v *Verifier) Verify(ctx context.Context, path string, expected int) bool {
	logging.Info("Verifying PDF page count", "path", path, "backend", v.counter.Name())
	n, err := v.Check(ctx, path, expected)
	if err != nil {
		logging.Error("Verification failed", "path", path, "expected", expected, "found", n, "error", err)
		return false
	}
	logging.Info("Verification successful", "path", path, "pages", n)
	return true
}
