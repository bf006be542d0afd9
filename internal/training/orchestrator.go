// Package training turns labelled examples into a checkpoint. Every example
// is translated through the registry that is bundled into the checkpoint,
// so the mapping a model learns is exactly the mapping it is served with.
package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"momo-intent-backend/internal/checkpoint"
	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/labels"
	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/model"
)

// UnregisteredActionError aborts training when an example's action has no
// index in the registry.
type UnregisteredActionError struct {
	Example int
	Action  string
}

func (e *UnregisteredActionError) Error() string {
	return fmt.Sprintf("training: example %d has unregistered action %q", e.Example, e.Action)
}

type Orchestrator struct {
	learner model.Learner
	hp      model.Hyperparameters
}

func NewOrchestrator(learner model.Learner, hp model.Hyperparameters) (*Orchestrator, error) {
	if learner == nil {
		return nil, errors.New("training: learner must not be nil")
	}
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{learner: learner, hp: hp}, nil
}

// Train fits the learner and returns a checkpoint bound to reg. It fails
// before any learning happens if an action is not registered.
func (o *Orchestrator) Train(ctx context.Context, examples []dataset.TrainingExample, reg *labels.Registry) (*checkpoint.Checkpoint, error) {
	if reg == nil {
		return nil, errors.New("training: registry must not be nil")
	}
	if len(examples) == 0 {
		return nil, labels.ErrEmptyDataset
	}

	labeled, counts, err := Translate(examples, reg)
	if err != nil {
		return nil, err
	}

	train, eval := Split(labeled, o.hp.EvalFraction, o.hp.Seed)
	logger.Infof("[train] learner=%s actions=%d train=%d eval=%d epochs=%d",
		o.learner.Kind(), reg.Len(), len(train), len(eval), o.hp.Epochs)

	trained, err := o.learner.Fit(ctx, train, reg.Len(), o.hp)
	if err != nil {
		return nil, fmt.Errorf("training: fit: %w", err)
	}
	payload, err := trained.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("training: encode model: %w", err)
	}

	metrics := checkpoint.Metrics{
		TrainExamples: len(train),
		EvalExamples:  len(eval),
		ActionCounts:  counts,
	}
	if l, ok := trained.(interface{ TrainLoss() float64 }); ok {
		metrics.TrainLoss = l.TrainLoss()
	}
	if c, ok := trained.(model.Classifier); ok && len(eval) > 0 {
		acc := Accuracy(c, eval)
		metrics.EvalAccuracy = &acc
		logger.Infof("[train] eval accuracy=%.4f", acc)
	}

	return checkpoint.New(o.learner.Kind(), reg, o.hp, metrics, payload)
}

// Translate maps every example to its label index through reg and counts
// examples per action.
func Translate(examples []dataset.TrainingExample, reg *labels.Registry) ([]model.LabeledText, map[string]int, error) {
	out := make([]model.LabeledText, 0, len(examples))
	counts := make(map[string]int, reg.Len())
	for i, ex := range examples {
		idx, err := reg.Index(ex.Action)
		if err != nil {
			return nil, nil, &UnregisteredActionError{Example: i, Action: ex.Action}
		}
		counts[ex.Action]++
		out = append(out, model.LabeledText{Text: ex.Query, Label: idx})
	}
	return out, counts, nil
}

// Split shuffles a copy of examples with seed and holds out evalFraction of
// them. At least one example always stays in the training set.
func Split(examples []model.LabeledText, evalFraction float64, seed int64) (train, eval []model.LabeledText) {
	shuffled := make([]model.LabeledText, len(examples))
	copy(shuffled, examples)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	n := len(shuffled)
	nEval := int(float64(n) * evalFraction)
	if nEval >= n {
		nEval = n - 1
	}
	if nEval < 0 {
		nEval = 0
	}
	return shuffled[:n-nEval], shuffled[n-nEval:]
}

// Accuracy is the share of examples c labels correctly.
func Accuracy(c model.Classifier, examples []model.LabeledText) float64 {
	if len(examples) == 0 {
		return 0
	}
	correct := 0
	for _, ex := range examples {
		if label, _ := c.Predict(ex.Text); label == ex.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(examples))
}
