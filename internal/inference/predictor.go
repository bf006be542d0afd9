// Package inference answers "what does this query want?" from a loaded
// checkpoint. Predictors are built once at start-up, never mutated, and are
// safe to share between concurrent requests.
package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"momo-intent-backend/internal/checkpoint"
	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/model"
)

// ErrTimeout is returned when a prediction does not finish within its
// deadline.
var ErrTimeout = errors.New("inference: prediction timed out")

const (
	VariantClassifier = "classifier"
	VariantGenerative = "generative"
)

// Prediction is the answer for one query. Index is -1 when the action did
// not come from a registry lookup. Confidence is nil when the variant cannot
// provide one.
type Prediction struct {
	Action     string
	Index      int
	Confidence *float64
	Parameters dataset.Parameters
}

type Predictor interface {
	Predict(ctx context.Context, query string) (Prediction, error)
	Variant() string
}

// UnknownAction is the placeholder served when the model picks an index the
// registry does not know.
func UnknownAction(index int) string {
	return fmt.Sprintf("Unknown action (index: %d)", index)
}

// FromCheckpoint builds the predictor matching the checkpoint kind. client
// is only used by generative checkpoints and may be nil otherwise.
func FromCheckpoint(ckpt *checkpoint.Checkpoint, client ChatCompleter) (Predictor, error) {
	if ckpt == nil {
		return nil, errors.New("inference: checkpoint must not be nil")
	}
	switch ckpt.Kind {
	case model.KindSoftmax:
		m, err := model.DecodeSoftmax(ckpt.Model)
		if err != nil {
			return nil, err
		}
		if m.NumLabels() != ckpt.Registry.Len() {
			logger.Warnw("model and registry disagree on label count",
				"model_labels", m.NumLabels(), "registry_actions", ckpt.Registry.Len())
		}
		return NewClassifier(m, ckpt.Registry)
	case checkpoint.KindGenerator:
		spec, err := model.DecodeGeneratorSpec(ckpt.Model)
		if err != nil {
			return nil, err
		}
		return NewGenerator(client, spec, ckpt.Registry)
	default:
		return nil, fmt.Errorf("inference: unsupported checkpoint kind %q", ckpt.Kind)
	}
}

type timeoutPredictor struct {
	next    Predictor
	timeout time.Duration
}

// WithTimeout bounds every call to p by d. Calls that overrun fail with
// ErrTimeout. d <= 0 returns p unchanged.
func WithTimeout(p Predictor, d time.Duration) Predictor {
	if d <= 0 {
		return p
	}
	return &timeoutPredictor{next: p, timeout: d}
}

func (t *timeoutPredictor) Variant() string { return t.next.Variant() }

func (t *timeoutPredictor) Predict(ctx context.Context, query string) (Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		p   Prediction
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("inference: predictor panicked: %v", r)}
			}
		}()
		p, err := t.next.Predict(ctx, query)
		ch <- result{p, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return Prediction{}, ErrTimeout
		}
		return r.p, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Prediction{}, ErrTimeout
		}
		return Prediction{}, ctx.Err()
	}
}
