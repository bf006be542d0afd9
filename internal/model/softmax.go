package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/textproc"
)

// KindSoftmax identifies Softmax payloads in checkpoints.
const KindSoftmax = "softmax"

// Softmax is a multinomial logistic regression over stemmed unigram and
// bigram features. It is immutable after training or decoding and safe for
// concurrent use.
type Softmax struct {
	tokenizer textproc.Tokenizer
	vocab     []string
	index     map[string]int
	weights   [][]float64 // [label][feature]
	bias      []float64
	trainLoss float64
}

type softmaxJSON struct {
	Tokenizer textproc.Tokenizer `json:"tokenizer"`
	Vocab     []string           `json:"vocab"`
	Weights   [][]float64        `json:"weights"`
	Bias      []float64          `json:"bias"`
}

func newSoftmax(tok textproc.Tokenizer, vocab []string, numLabels int) *Softmax {
	m := &Softmax{
		tokenizer: tok,
		vocab:     vocab,
		index:     make(map[string]int, len(vocab)),
		weights:   make([][]float64, numLabels),
		bias:      make([]float64, numLabels),
	}
	for i, f := range vocab {
		m.index[f] = i
	}
	for k := range m.weights {
		m.weights[k] = make([]float64, len(vocab))
	}
	return m
}

// DecodeSoftmax restores a model from its checkpoint payload.
func DecodeSoftmax(b []byte) (*Softmax, error) {
	var raw softmaxJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("model: decode softmax: %w", err)
	}
	if len(raw.Bias) == 0 {
		return nil, errors.New("model: softmax has no labels")
	}
	if len(raw.Weights) != len(raw.Bias) {
		return nil, fmt.Errorf("model: softmax has %d weight rows for %d labels", len(raw.Weights), len(raw.Bias))
	}
	for k, row := range raw.Weights {
		if len(row) != len(raw.Vocab) {
			return nil, fmt.Errorf("model: weight row %d has %d columns, vocabulary has %d", k, len(row), len(raw.Vocab))
		}
	}
	m := newSoftmax(raw.Tokenizer, raw.Vocab, len(raw.Bias))
	if len(m.index) != len(raw.Vocab) {
		return nil, errors.New("model: duplicate vocabulary entries")
	}
	m.weights = raw.Weights
	m.bias = raw.Bias
	return m, nil
}

// MarshalJSON implements Trained.
func (m *Softmax) MarshalJSON() ([]byte, error) {
	return json.Marshal(softmaxJSON{
		Tokenizer: m.tokenizer,
		Vocab:     m.vocab,
		Weights:   m.weights,
		Bias:      m.bias,
	})
}

// NumLabels is the number of output classes.
func (m *Softmax) NumLabels() int { return len(m.bias) }

// VocabSize is the number of known features.
func (m *Softmax) VocabSize() int { return len(m.vocab) }

// TrainLoss is the mean cross-entropy of the final epoch. It is zero for a
// decoded model.
func (m *Softmax) TrainLoss() float64 { return m.trainLoss }

// Probabilities returns the distribution over labels for text.
func (m *Softmax) Probabilities(text string) []float64 {
	return softmax(m.logits(m.vectorize(text)))
}

// Predict returns the most probable label and its probability. Ties go to
// the lower index.
func (m *Softmax) Predict(text string) (int, float64) {
	p := m.Probabilities(text)
	best := 0
	for k := 1; k < len(p); k++ {
		if p[k] > p[best] {
			best = k
		}
	}
	return best, p[best]
}

type sparseVec struct {
	idx []int
	val []float64
}

// vectorize maps text to an L2-normalized feature count vector. Unknown
// features are dropped.
func (m *Softmax) vectorize(text string) sparseVec {
	counts := make(map[int]float64)
	for _, f := range m.tokenizer.Features(text) {
		if i, ok := m.index[f]; ok {
			counts[i]++
		}
	}
	v := sparseVec{idx: make([]int, 0, len(counts))}
	for i := range counts {
		v.idx = append(v.idx, i)
	}
	sort.Ints(v.idx)
	var norm float64
	v.val = make([]float64, len(v.idx))
	for j, i := range v.idx {
		v.val[j] = counts[i]
		norm += counts[i] * counts[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for j := range v.val {
			v.val[j] /= norm
		}
	}
	return v
}

func (m *Softmax) logits(x sparseVec) []float64 {
	z := make([]float64, len(m.bias))
	for k := range z {
		s := m.bias[k]
		row := m.weights[k]
		for j, i := range x.idx {
			s += row[i] * x.val[j]
		}
		z[k] = s
	}
	return z
}

// softmax normalizes z in place.
func softmax(z []float64) []float64 {
	if len(z) == 0 {
		return z
	}
	hi := z[0]
	for _, v := range z[1:] {
		if v > hi {
			hi = v
		}
	}
	var sum float64
	for k, v := range z {
		z[k] = math.Exp(v - hi)
		sum += z[k]
	}
	for k := range z {
		z[k] /= sum
	}
	return z
}

// SoftmaxLearner trains a Softmax with mini-batch SGD on cross-entropy.
type SoftmaxLearner struct{}

func (SoftmaxLearner) Kind() string { return KindSoftmax }

// Fit trains over examples. Shuffling is seeded from hp.Seed, so identical
// inputs produce identical weights. ctx is checked between epochs.
func (SoftmaxLearner) Fit(ctx context.Context, examples []LabeledText, numLabels int, hp Hyperparameters) (Trained, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if numLabels <= 0 {
		return nil, errors.New("model: numLabels must be positive")
	}
	if len(examples) == 0 {
		return nil, errors.New("model: no training examples")
	}
	for i, ex := range examples {
		if ex.Label < 0 || ex.Label >= numLabels {
			return nil, fmt.Errorf("model: example %d has label %d outside [0,%d)", i, ex.Label, numLabels)
		}
	}

	tok := textproc.NewTokenizer(hp.MaxSeqLen)
	m := newSoftmax(tok, buildVocab(tok, examples), numLabels)

	xs := make([]sparseVec, len(examples))
	for i, ex := range examples {
		xs[i] = m.vectorize(ex.Text)
	}

	rng := rand.New(rand.NewSource(hp.Seed))
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}

	gradW := make([][]float64, numLabels)
	for k := range gradW {
		gradW[k] = make([]float64, len(m.vocab))
	}
	gradB := make([]float64, numLabels)
	touched := make([]bool, len(m.vocab))
	var touchedList []int

	for epoch := 1; epoch <= hp.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var loss float64
		for start := 0; start < len(order); start += hp.BatchSize {
			end := start + hp.BatchSize
			if end > len(order) {
				end = len(order)
			}
			for _, n := range order[start:end] {
				x, y := xs[n], examples[n].Label
				p := softmax(m.logits(x))
				loss -= math.Log(math.Max(p[y], 1e-12))
				for k := range p {
					g := p[k]
					if k == y {
						g -= 1
					}
					gradB[k] += g
					for j, i := range x.idx {
						gradW[k][i] += g * x.val[j]
					}
				}
				for _, i := range x.idx {
					if !touched[i] {
						touched[i] = true
						touchedList = append(touchedList, i)
					}
				}
			}

			step := hp.LearningRate / float64(end-start)
			if hp.WeightDecay > 0 {
				shrink := 1 - hp.LearningRate*hp.WeightDecay
				for k := range m.weights {
					for i := range m.weights[k] {
						m.weights[k][i] *= shrink
					}
				}
			}
			for k := range m.weights {
				for _, i := range touchedList {
					m.weights[k][i] -= step * gradW[k][i]
					gradW[k][i] = 0
				}
				m.bias[k] -= step * gradB[k]
				gradB[k] = 0
			}
			for _, i := range touchedList {
				touched[i] = false
			}
			touchedList = touchedList[:0]
		}
		m.trainLoss = loss / float64(len(order))
		logger.Debugf("[train] epoch %d/%d loss=%.4f", epoch, hp.Epochs, m.trainLoss)
	}
	return m, nil
}

func buildVocab(tok textproc.Tokenizer, examples []LabeledText) []string {
	seen := make(map[string]struct{})
	for _, ex := range examples {
		for _, f := range tok.Features(ex.Text) {
			seen[f] = struct{}{}
		}
	}
	vocab := make([]string, 0, len(seen))
	for f := range seen {
		vocab = append(vocab, f)
	}
	sort.Strings(vocab)
	return vocab
}
