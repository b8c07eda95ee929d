package llm

import (
	"context"
	"log/slog"

	"github.com/pavelanni/mockinterview/internal/metrics"
	"github.com/pavelanni/mockinterview/internal/model"
)

// Fallback tries a primary generator and switches to a secondary one when the
// primary fails or returns nothing. A fallback result counts as success.
type Fallback struct {
	primary   Generator
	secondary Generator
}

// WithFallback wraps primary so that its failures are served by secondary.
func WithFallback(primary, secondary Generator) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Generate(ctx context.Context, req model.GenerateRequest) ([]model.GeneratedQuestion, error) {
	items, err := f.primary.Generate(ctx, req)
	if err == nil && len(items) > 0 {
		return items, nil
	}
	if err != nil {
		slog.Warn("question generation failed, using fallback generator", "error", err)
	} else {
		slog.Warn("question generation returned no items, using fallback generator")
	}
	metrics.GenerationFallbacks.Inc()
	return f.secondary.Generate(ctx, req)
}
