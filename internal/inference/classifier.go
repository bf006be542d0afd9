package inference

import (
	"context"
	"errors"

	"momo-intent-backend/internal/labels"
)

// Scorer returns a probability distribution over label indices.
type Scorer interface {
	Probabilities(text string) []float64
}

// Classifier is the classification variant: the arg-max label's
// probability is the confidence.
type Classifier struct {
	scorer Scorer
	reg    *labels.Registry
}

func NewClassifier(s Scorer, reg *labels.Registry) (*Classifier, error) {
	if s == nil {
		return nil, errors.New("inference: scorer must not be nil")
	}
	if reg == nil {
		return nil, errors.New("inference: registry must not be nil")
	}
	return &Classifier{scorer: s, reg: reg}, nil
}

func (c *Classifier) Variant() string { return VariantClassifier }

func (c *Classifier) Predict(ctx context.Context, query string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	probs := c.scorer.Probabilities(query)
	if len(probs) == 0 {
		return Prediction{}, errors.New("inference: model returned no scores")
	}
	best := 0
	for k := 1; k < len(probs); k++ {
		if probs[k] > probs[best] {
			best = k
		}
	}
	conf := clamp01(probs[best])

	action, err := c.reg.Action(best)
	if err != nil {
		// model/registry skew: degrade instead of failing the request
		action = UnknownAction(best)
	}
	return Prediction{Action: action, Index: best, Confidence: &conf}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
