package model

import (
	"context"
	"encoding/json"
	"fmt"
)

// Hyperparameters tunes a training run. They affect convergence only; the
// label mapping is fixed by the registry.
type Hyperparameters struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
	MaxSeqLen    int     `json:"max_seq_length"`
	WeightDecay  float64 `json:"weight_decay"`
	// EvalFraction of the shuffled corpus is held out for evaluation.
	EvalFraction float64 `json:"eval_fraction"`
	Seed         int64   `json:"seed"`
}

// DefaultHyperparameters returns defaults that converge on the synthetic
// corpus in well under a second.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Epochs:       30,
		LearningRate: 0.5,
		BatchSize:    16,
		MaxSeqLen:    64,
		WeightDecay:  1e-4,
		EvalFraction: 0.2,
		Seed:         42,
	}
}

// Validate rejects settings no learner can run with.
func (h Hyperparameters) Validate() error {
	switch {
	case h.Epochs <= 0:
		return fmt.Errorf("model: epochs must be positive, got %d", h.Epochs)
	case h.LearningRate <= 0:
		return fmt.Errorf("model: learning rate must be positive, got %g", h.LearningRate)
	case h.BatchSize <= 0:
		return fmt.Errorf("model: batch size must be positive, got %d", h.BatchSize)
	case h.MaxSeqLen <= 0:
		return fmt.Errorf("model: max sequence length must be positive, got %d", h.MaxSeqLen)
	case h.WeightDecay < 0:
		return fmt.Errorf("model: weight decay must not be negative, got %g", h.WeightDecay)
	case h.EvalFraction < 0 || h.EvalFraction >= 1:
		return fmt.Errorf("model: eval fraction must be in [0,1), got %g", h.EvalFraction)
	}
	return nil
}

// LabeledText is a query already translated to its label index.
type LabeledText struct {
	Text  string
	Label int
}

// Trained is the result of a fit. Its JSON form is stored in the checkpoint.
type Trained interface {
	json.Marshaler
}

// Classifier is implemented by trained models that can label text locally.
type Classifier interface {
	Predict(text string) (label int, confidence float64)
}

// Learner fits a model over labels [0, numLabels).
type Learner interface {
	Kind() string
	Fit(ctx context.Context, examples []LabeledText, numLabels int, hp Hyperparameters) (Trained, error)
}
