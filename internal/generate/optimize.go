package generate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackzampolin/quire/internal/invoke"
	"github.com/jackzampolin/quire/internal/planner"
	"github.com/jackzampolin/quire/internal/prompts"
	"github.com/jackzampolin/quire/internal/prompts/novel"
)

// OptimizeSystem asks for a system instruction tuned to the story constraints
// and puts it in front of the shared outline rules. When the request produces
// nothing the shared system instruction is returned unchanged.
func OptimizeSystem(ctx context.Context, inv Invoker, r *prompts.Resolver, c planner.Constraints, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = novel.NewResolver(nil, logger)
	}
	base := planner.SystemInstruction(r)

	genre := strings.TrimSpace(c.Genre)
	if genre == "" {
		genre = "unspecified"
	}
	prompt, err := r.Render(novel.OptimizeKey, novel.OptimizeData{
		Genre:   genre,
		Theme:   strings.TrimSpace(c.Theme),
		Channel: strings.TrimSpace(c.Channel),
	})
	if err != nil {
		logger.Error("failed to build optimize prompt", "error", err)
		return base
	}

	text := Sanitize(inv.Invoke(ctx, invoke.Request{
		Label:       "optimize instruction",
		Prompt:      prompt,
		Temperature: FreeTextTemperature,
		MaxTokens:   4000,
	}))
	if text == "" {
		if ctx.Err() == nil {
			logger.Warn("instruction optimization produced nothing, using the base instruction")
		}
		return base
	}
	logger.Info("optimized system instruction", "chars", len([]rune(text)))
	return text + "\n\n" + base
}
