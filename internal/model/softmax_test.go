package model

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toyCorpus() []LabeledText {
	var out []LabeledText
	for _, q := range []string{"send 10 to john", "send 20 to sarah", "transfer 5 to mike", "send money to emma"} {
		out = append(out, LabeledText{Text: q, Label: 0})
	}
	for _, q := range []string{"check my balance", "what is my balance", "how much money do i have", "balance please"} {
		out = append(out, LabeledText{Text: q, Label: 1})
	}
	for _, q := range []string{"pay my water bill", "pay 100 for electricity", "pay rent bill", "i need to pay my phone bill"} {
		out = append(out, LabeledText{Text: q, Label: 2})
	}
	return out
}

func toyHP() Hyperparameters {
	hp := DefaultHyperparameters()
	hp.Epochs = 200
	hp.BatchSize = 4
	return hp
}

func fit(t *testing.T, hp Hyperparameters) *Softmax {
	t.Helper()
	trained, err := SoftmaxLearner{}.Fit(context.Background(), toyCorpus(), 3, hp)
	require.NoError(t, err)
	m, ok := trained.(*Softmax)
	require.True(t, ok)
	return m
}

func TestSoftmax_LearnsToyCorpus(t *testing.T) {
	m := fit(t, toyHP())
	require.Equal(t, 3, m.NumLabels())

	for _, tc := range []struct {
		q    string
		want int
	}{
		{"Send 70 to David", 0},
		{"what's my balance?", 1},
		{"Pay my internet bill", 2},
	} {
		label, conf := m.Predict(tc.q)
		assert.Equal(t, tc.want, label, tc.q)
		assert.Greater(t, conf, 0.5, tc.q)
		assert.LessOrEqual(t, conf, 1.0, tc.q)
	}
}

func TestSoftmax_ProbabilitiesSumToOne(t *testing.T) {
	m := fit(t, toyHP())
	for _, q := range []string{"", "zzz unknown words", "pay bill"} {
		p := m.Probabilities(q)
		require.Len(t, p, 3)
		var sum float64
		for _, v := range p {
			require.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestSoftmax_Deterministic(t *testing.T) {
	a, err := json.Marshal(fit(t, toyHP()))
	require.NoError(t, err)
	b, err := json.Marshal(fit(t, toyHP()))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSoftmax_RoundTrip(t *testing.T) {
	m := fit(t, toyHP())
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	back, err := DecodeSoftmax(raw)
	require.NoError(t, err)
	require.Equal(t, m.VocabSize(), back.VocabSize())

	for _, ex := range toyCorpus() {
		l1, c1 := m.Predict(ex.Text)
		l2, c2 := back.Predict(ex.Text)
		require.Equal(t, l1, l2)
		require.True(t, math.Abs(c1-c2) < 1e-12)
	}
}

func TestDecodeSoftmax_RejectsBadShapes(t *testing.T) {
	cases := []string{
		`not json`,
		`{"vocab":["a"],"weights":[],"bias":[]}`,
		`{"vocab":["a"],"weights":[[0.1]],"bias":[0,0]}`,
		`{"vocab":["a","b"],"weights":[[0.1]],"bias":[0]}`,
		`{"vocab":["a","a"],"weights":[[0.1,0.2]],"bias":[0]}`,
	}
	for _, c := range cases {
		_, err := DecodeSoftmax([]byte(c))
		require.Error(t, err, c)
	}
}

func TestFit_Validates(t *testing.T) {
	ctx := context.Background()
	hp := DefaultHyperparameters()

	_, err := SoftmaxLearner{}.Fit(ctx, nil, 3, hp)
	require.Error(t, err)

	_, err = SoftmaxLearner{}.Fit(ctx, []LabeledText{{Text: "x", Label: 3}}, 3, hp)
	require.Error(t, err)

	bad := hp
	bad.BatchSize = 0
	_, err = SoftmaxLearner{}.Fit(ctx, toyCorpus(), 3, bad)
	require.Error(t, err)
}

func TestFit_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SoftmaxLearner{}.Fit(ctx, toyCorpus(), 3, DefaultHyperparameters())
	require.ErrorIs(t, err, context.Canceled)
}

func TestHyperparametersValidate(t *testing.T) {
	require.NoError(t, DefaultHyperparameters().Validate())

	for _, mutate := range []func(*Hyperparameters){
		func(h *Hyperparameters) { h.Epochs = 0 },
		func(h *Hyperparameters) { h.LearningRate = 0 },
		func(h *Hyperparameters) { h.MaxSeqLen = -1 },
		func(h *Hyperparameters) { h.WeightDecay = -0.1 },
		func(h *Hyperparameters) { h.EvalFraction = 1 },
	} {
		h := DefaultHyperparameters()
		mutate(&h)
		require.Error(t, h.Validate())
	}
}
