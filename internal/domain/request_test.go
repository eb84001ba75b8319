package domain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() Layout {
	return Layout{
		SourceHTML:      "polisense-A4.html",
		OutputDir:       "one-pager",
		BaseName:        "polisense-one-pager.pdf",
		DefaultLanguage: "en",
		LabelsDefault:   "labels.json",
		LabelsPattern:   "labels_%s.json",
	}
}

func TestResolve_DefaultAndOtherLanguages(t *testing.T) {
	tests := []struct {
		code   string
		lang   string
		output string
		labels string
	}{
		{code: "en", lang: "en", output: filepath.Join("one-pager", "polisense-one-pager.pdf"), labels: "labels.json"},
		{code: "EN", lang: "EN", output: filepath.Join("one-pager", "polisense-one-pager.pdf"), labels: "labels.json"},
		{code: "es", lang: "es", output: filepath.Join("one-pager", "ES-polisense-one-pager.pdf"), labels: "labels_es.json"},
		{code: " es ", lang: "es", output: filepath.Join("one-pager", "ES-polisense-one-pager.pdf"), labels: "labels_es.json"},
		{code: "pt-BR", lang: "pt-BR", output: filepath.Join("one-pager", "PT-BR-polisense-one-pager.pdf"), labels: "labels_pt-BR.json"},
		{code: "pt_BR", lang: "pt_BR", output: filepath.Join("one-pager", "PT_BR-polisense-one-pager.pdf"), labels: "labels_pt_BR.json"},
		{code: "tl", lang: "tl", output: filepath.Join("one-pager", "TL-polisense-one-pager.pdf"), labels: "labels_tl.json"},
		{code: "iw", lang: "iw", output: filepath.Join("one-pager", "IW-polisense-one-pager.pdf"), labels: "labels_iw.json"},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			req, err := testLayout().Resolve(tc.code)
			require.NoError(t, err)
			assert.Equal(t, tc.lang, req.Language)
			assert.Equal(t, tc.output, req.OutputPDF)
			assert.Equal(t, tc.labels, req.LabelsFile)
			assert.Equal(t, "polisense-A4.html", req.SourceHTML)
		})
	}
}

func TestResolve_InvalidLanguage(t *testing.T) {
	for _, code := range []string{"", "  ", "not a tag!"} {
		_, err := testLayout().Resolve(code)
		if !errors.Is(err, ErrInvalidLanguage) {
			t.Fatalf("Resolve(%q) = %v, want ErrInvalidLanguage", code, err)
		}
	}
}

func TestLanguageKey(t *testing.T) {
	assert.Equal(t, LanguageKey("en"), LanguageKey("EN"))
	assert.Equal(t, LanguageKey("pt-BR"), LanguageKey("pt_br"))
	assert.NotEqual(t, LanguageKey("en"), LanguageKey("es"))
	assert.Equal(t, "not a tag!", LanguageKey(" not a tag! "))
}

func TestResolve_OutputNamesAreOrderIndependent(t *testing.T) {
	l := testLayout()
	names := func(order []string) map[string]bool {
		out := map[string]bool{}
		for _, code := range order {
			req, err := l.Resolve(code)
			require.NoError(t, err)
			out[req.OutputPDF] = true
		}
		return out
	}
	assert.Equal(t, names([]string{"en", "es"}), names([]string{"es", "en"}))
}

func TestErrors_AreDistinctAndClassified(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrPageCountMismatch)
	assert.True(t, IsVerificationError(wrapped))
	assert.True(t, IsVerificationError(ErrVerifierUnavailable))
	assert.False(t, IsVerificationError(ErrReadyTimeout))
	assert.NotEqual(t, ErrSourceNotFound, ErrReadyTimeout)
}

func TestRenderResult_SizeKB(t *testing.T) {
	r := RenderResult{Bytes: 2048}
	assert.Equal(t, 2.0, r.SizeKB())
}
