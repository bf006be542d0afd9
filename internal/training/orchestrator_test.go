package training

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"momo-intent-backend/internal/checkpoint"
	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/labels"
	"momo-intent-backend/internal/model"
)

type recordingLearner struct {
	got       []model.LabeledText
	numLabels int
	err       error
}

func (r *recordingLearner) Kind() string { return "recording" }

func (r *recordingLearner) Fit(_ context.Context, ex []model.LabeledText, n int, _ model.Hyperparameters) (model.Trained, error) {
	r.got = ex
	r.numLabels = n
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(`{}`), nil
}

func synthetic(t *testing.T, n int) []dataset.TrainingExample {
	t.Helper()
	s, err := dataset.NewSynthesizer(nil)
	require.NoError(t, err)
	exs, err := s.Generate(n, 42)
	require.NoError(t, err)
	return exs
}

func TestTrain_Softmax(t *testing.T) {
	exs := synthetic(t, 600)
	reg, err := labels.Build(exs)
	require.NoError(t, err)

	o, err := NewOrchestrator(model.SoftmaxLearner{}, model.DefaultHyperparameters())
	require.NoError(t, err)
	ckpt, err := o.Train(context.Background(), exs, reg)
	require.NoError(t, err)

	require.Equal(t, model.KindSoftmax, ckpt.Kind)
	require.Same(t, reg, ckpt.Registry)
	require.Equal(t, 480, ckpt.Metrics.TrainExamples)
	require.Equal(t, 120, ckpt.Metrics.EvalExamples)
	require.NotNil(t, ckpt.Metrics.EvalAccuracy)
	require.Greater(t, *ckpt.Metrics.EvalAccuracy, 0.9)
	require.Len(t, ckpt.Metrics.ActionCounts, 6)

	m, err := model.DecodeSoftmax(ckpt.Model)
	require.NoError(t, err)
	require.Equal(t, reg.Len(), m.NumLabels())
}

func TestTrain_UsesRegistryIndices(t *testing.T) {
	exs := []dataset.TrainingExample{
		{Query: "pay", Action: "Pay bill"},
		{Query: "send", Action: "Send money"},
		{Query: "bal", Action: "Check balance"},
	}
	reg, err := labels.FromActions([]string{"Send money", "Pay bill", "Check balance"})
	require.NoError(t, err)

	hp := model.DefaultHyperparameters()
	hp.EvalFraction = 0
	rec := &recordingLearner{}
	o, err := NewOrchestrator(rec, hp)
	require.NoError(t, err)
	_, err = o.Train(context.Background(), exs, reg)
	require.NoError(t, err)

	require.Equal(t, 3, rec.numLabels)
	byText := map[string]int{}
	for _, ex := range rec.got {
		byText[ex.Text] = ex.Label
	}
	require.Equal(t, map[string]int{"send": 0, "pay": 1, "bal": 2}, byText)
}

func TestTrain_UnregisteredAction(t *testing.T) {
	reg, err := labels.FromActions([]string{"Send money"})
	require.NoError(t, err)

	rec := &recordingLearner{}
	o, err := NewOrchestrator(rec, model.DefaultHyperparameters())
	require.NoError(t, err)

	_, err = o.Train(context.Background(), []dataset.TrainingExample{
		{Query: "a", Action: "Send money"},
		{Query: "b", Action: "Buy airtime"},
	}, reg)
	var unreg *UnregisteredActionError
	require.ErrorAs(t, err, &unreg)
	require.Equal(t, 1, unreg.Example)
	require.Equal(t, "Buy airtime", unreg.Action)
	require.Nil(t, rec.got, "learner must not run on a corrupt mapping")
}

func TestTrain_EmptyAndFitErrors(t *testing.T) {
	reg, err := labels.FromActions([]string{"A"})
	require.NoError(t, err)

	rec := &recordingLearner{err: errors.New("boom")}
	o, err := NewOrchestrator(rec, model.DefaultHyperparameters())
	require.NoError(t, err)

	_, err = o.Train(context.Background(), nil, reg)
	require.ErrorIs(t, err, labels.ErrEmptyDataset)

	_, err = o.Train(context.Background(), []dataset.TrainingExample{{Query: "x", Action: "A"}}, reg)
	require.ErrorContains(t, err, "boom")

	_, err = o.Train(context.Background(), []dataset.TrainingExample{{Query: "x", Action: "A"}}, nil)
	require.Error(t, err)
}

func TestNewOrchestrator_Validates(t *testing.T) {
	_, err := NewOrchestrator(nil, model.DefaultHyperparameters())
	require.Error(t, err)
	_, err = NewOrchestrator(model.SoftmaxLearner{}, model.Hyperparameters{})
	require.Error(t, err)
}

func TestSplit(t *testing.T) {
	var exs []model.LabeledText
	for i := 0; i < 10; i++ {
		exs = append(exs, model.LabeledText{Text: string(rune('a' + i)), Label: i})
	}
	train, eval := Split(exs, 0.2, 42)
	require.Len(t, train, 8)
	require.Len(t, eval, 2)

	train2, eval2 := Split(exs, 0.2, 42)
	require.Equal(t, train, train2)
	require.Equal(t, eval, eval2)

	train, eval = Split(exs[:1], 0.9, 1)
	require.Len(t, train, 1)
	require.Empty(t, eval)

	// input order is untouched
	require.Equal(t, "a", exs[0].Text)
}

func TestGeneratorBinding(t *testing.T) {
	reg, err := labels.FromActions([]string{"Check balance", "Send money"})
	require.NoError(t, err)

	o, err := NewOrchestrator(GeneratorBinding{Spec: model.GeneratorSpec{Model: "momo-mistral"}}, model.DefaultHyperparameters())
	require.NoError(t, err)
	ckpt, err := o.Train(context.Background(), []dataset.TrainingExample{
		{Query: "balance", Action: "Check balance"},
		{Query: "send 5 to John", Action: "Send money"},
	}, reg)
	require.NoError(t, err)
	require.Equal(t, checkpoint.KindGenerator, ckpt.Kind)
	require.Nil(t, ckpt.Metrics.EvalAccuracy)

	spec, err := model.DecodeGeneratorSpec(ckpt.Model)
	require.NoError(t, err)
	require.Equal(t, "momo-mistral", spec.Model)
	require.Equal(t, dataset.Instruction, spec.Instruction)
	require.Equal(t, 50, spec.MaxTokens)

	_, err = GeneratorBinding{}.Fit(context.Background(), nil, 0, model.DefaultHyperparameters())
	require.Error(t, err)
}
