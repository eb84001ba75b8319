//go:build !windows

package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"onepager/internal/domain"
)

// fakePdfinfo writes an executable script standing in for pdfinfo.
func fakePdfinfo(t *testing.T, script string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pdfinfo")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake pdfinfo: %v", err)
	}
	return p
}

func TestPdfinfo_ReportsPages(t *testing.T) {
	bin := fakePdfinfo(t, `printf 'Title:          one-pager\nPages:          1\nPage size:      595 x 842 pts (A4)\n'`)
	v := New(&Pdfinfo{Path: bin})
	pdf := writeTestPDF(t, 1)

	assert.True(t, v.Verify(context.Background(), pdf, 1))
	assert.False(t, v.Verify(context.Background(), pdf, 2))
}

func TestPdfinfo_FoundOnPath(t *testing.T) {
	bin := fakePdfinfo(t, `echo "Pages: 4"`)
	t.Setenv("PATH", filepath.Dir(bin))

	n, err := (&Pdfinfo{}).CountPages(context.Background(), "ignored.pdf")
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPdfinfo_ToolMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	v := New(&Pdfinfo{})
	pdf := writeTestPDF(t, 1)

	assert.False(t, v.Verify(context.Background(), pdf, 1))
	_, err := v.Check(context.Background(), pdf, 1)
	assert.ErrorIs(t, err, domain.ErrVerifierUnavailable)
}

func TestPdfinfo_ToolFails(t *testing.T) {
	bin := fakePdfinfo(t, `echo "Syntax Error: Couldn't find trailer dictionary" >&2; exit 1`)
	_, err := (&Pdfinfo{Path: bin}).CountPages(context.Background(), "broken.pdf")
	assert.ErrorIs(t, err, domain.ErrPageCountUnparsable)
}

func TestPdfinfo_UnparsableOutput(t *testing.T) {
	bin := fakePdfinfo(t, `echo "nothing useful"`)
	v := New(&Pdfinfo{Path: bin})
	assert.False(t, v.Verify(context.Background(), writeTestPDF(t, 1), 1))
}
