package app

import (
	"context"
	"fmt"

	"onepager/internal/config"
	"onepager/internal/domain"
	"onepager/internal/infra/logging"
	"onepager/internal/render"
	"onepager/internal/verify"
)

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Generator renders a single language.
type Generator interface {
	Generate(ctx context.Context, lang string) domain.RenderResult
}

// Setup builds the render driver described by cfg.
func Setup(cfg config.Config) (*render.Driver, error) {
	engine, err := render.NewEngine(cfg.Render)
	if err != nil {
		return nil, err
	}

	var verifier *verify.Verifier
	if cfg.Verify.Enabled {
		counter, err := verify.NewCounter(cfg.Verify)
		if err != nil {
			return nil, err
		}
		verifier = verify.New(counter)
	}
	return render.NewDriver(cfg, engine, verifier), nil
}

// Run renders langs one after another. A failed language does not stop
// the next one; a cancelled context does. Codes naming the same language
// ("en", "EN") are rendered once.
func Run(ctx context.Context, langs []string, gen Generator) ([]domain.RenderResult, int) {
	langs = uniqueLanguages(langs)
	results := make([]domain.RenderResult, 0, len(langs))
	code := ExitSuccess

	for _, lang := range langs {
		if err := ctx.Err(); err != nil {
			results = append(results, domain.RenderResult{
				Request: domain.RenderRequest{Language: lang},
				Err:     fmt.Errorf("%w: %v", domain.ErrRenderCancelled, err),
			})
			code = ExitFailure
			logging.Warn("Skipping language", "lang", lang, "reason", err)
			continue
		}

		res := gen.Generate(ctx, lang)
		if !res.OK {
			code = ExitFailure
		}
		results = append(results, res)
	}

	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	if code == ExitSuccess {
		logging.Info("All PDFs generated", "count", ok)
	} else {
		logging.Error("PDF generation incomplete", "succeeded", ok, "failed", len(results)-ok)
	}
	return results, code
}

// uniqueLanguages keeps the first occurrence of each language.
func uniqueLanguages(langs []string) []string {
	seen := make(map[string]bool, len(langs))
	out := make([]string, 0, len(langs))
	for _, lang := range langs {
		key := domain.LanguageKey(lang)
		if seen[key] {
			logging.Warn("Duplicate language ignored", "lang", lang)
			continue
		}
		seen[key] = true
		out = append(out, lang)
	}
	return out
}
