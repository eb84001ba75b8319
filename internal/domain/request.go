package domain

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

// RenderRequest is one language rendering of the source page, resolved
// to concrete paths at invocation time.
type RenderRequest struct {
	Language   string
	SourceHTML string
	OutputPDF  string
	LabelsFile string
}

// Layout describes where inputs live and where outputs go.
type Layout struct {
	SourceHTML      string
	OutputDir       string
	BaseName        string
	DefaultLanguage string
	LabelsDefault   string
	LabelsPattern   string
}

// ParseLanguage validates code as a BCP 47 tag ("_" is accepted as a
// subtag separator). It returns the trimmed code exactly as given, which
// is what the page and the labels file expect, together with its tag.
func ParseLanguage(code string) (string, language.Tag, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", language.Und, fmt.Errorf("%w: empty", ErrInvalidLanguage)
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return "", language.Und, fmt.Errorf("%w: %q: %v", ErrInvalidLanguage, code, err)
	}
	return code, tag, nil
}

// LanguageKey identifies the language code names. Codes with the same key
// ("en", "EN") resolve to the same output file. Invalid codes key on
// their trimmed text.
func LanguageKey(code string) string {
	_, tag, err := ParseLanguage(code)
	if err != nil {
		return strings.TrimSpace(code)
	}
	return tag.String()
}

// Resolve builds the request for code. The default language writes the
// plain base name and reads the default labels file; any other language
// gets an upper-case prefix ("ES-polisense-one-pager.pdf") and its own
// labels file ("labels_es.json"). The code reaches the page unchanged.
func (l Layout) Resolve(code string) (RenderRequest, error) {
	lang, tag, err := ParseLanguage(code)
	if err != nil {
		return RenderRequest{}, err
	}
	_, def, err := ParseLanguage(l.DefaultLanguage)
	if err != nil {
		return RenderRequest{}, err
	}

	req := RenderRequest{
		Language:   lang,
		SourceHTML: l.SourceHTML,
	}
	if tag == def {
		req.OutputPDF = filepath.Join(l.OutputDir, l.BaseName)
		req.LabelsFile = l.LabelsDefault
	} else {
		req.OutputPDF = filepath.Join(l.OutputDir, strings.ToUpper(lang)+"-"+l.BaseName)
		req.LabelsFile = fmt.Sprintf(l.LabelsPattern, lang)
	}
	return req, nil
}

// RenderResult is the outcome of one RenderRequest.
type RenderResult struct {
	Request  RenderRequest
	OK       bool
	Bytes    int64
	Pages    int
	Verified bool
	Err      error
}

// SizeKB is the written size in kilobytes.
func (r RenderResult) SizeKB() float64 {
	return float64(r.Bytes) / 1024
}
