package usecase

import (
	"context"
	"errors"
	"strings"

	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/labels"
)

// HarvestOptions filter logged interactions before they become examples.
type HarvestOptions struct {
	Limit         int
	MinConfidence float64
	// Registry, when set, drops interactions whose action it does not know.
	Registry *labels.Registry
}

// Harvest turns confident logged predictions into training examples, oldest
// first. Unknown-action placeholders, interactions without a confidence
// (when MinConfidence > 0) and repeated queries are dropped.
func Harvest(ctx context.Context, log InteractionLog, opts HarvestOptions) ([]dataset.TrainingExample, error) {
	if log == nil {
		return nil, errors.New("usecase: interaction log must not be nil")
	}
	recent, err := log.Recent(ctx, opts.Limit)
	if err != nil {
		return nil, newError(ErrorInternal, "interaction_log_error", err)
	}

	seen := make(map[string]bool, len(recent))
	out := make([]dataset.TrainingExample, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		in := recent[i]
		if in.Index < 0 || strings.HasPrefix(in.Action, "Unknown action") {
			continue
		}
		if opts.MinConfidence > 0 && (in.Confidence == nil || *in.Confidence < opts.MinConfidence) {
			continue
		}
		if opts.Registry != nil && !opts.Registry.Has(in.Action) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(in.Query))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, dataset.TrainingExample{Query: strings.TrimSpace(in.Query), Action: in.Action})
	}
	return out, nil
}
