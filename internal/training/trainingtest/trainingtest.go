// Package trainingtest trains small checkpoints for tests of the serving
// layers.
package trainingtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"momo-intent-backend/internal/checkpoint"
	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/labels"
	"momo-intent-backend/internal/model"
	"momo-intent-backend/internal/training"
)

// SoftmaxCheckpoint trains a classifier on n synthetic examples from the
// default catalog.
func SoftmaxCheckpoint(t testing.TB, n int) *checkpoint.Checkpoint {
	t.Helper()
	s, err := dataset.NewSynthesizer(nil)
	require.NoError(t, err)
	exs, err := s.Generate(n, 42)
	require.NoError(t, err)
	reg, err := labels.Build(exs)
	require.NoError(t, err)

	o, err := training.NewOrchestrator(model.SoftmaxLearner{}, model.DefaultHyperparameters())
	require.NoError(t, err)
	ckpt, err := o.Train(context.Background(), exs, reg)
	require.NoError(t, err)
	return ckpt
}

// SaveSoftmaxCheckpoint writes a trained checkpoint into a temp dir and
// returns its path.
func SaveSoftmaxCheckpoint(t testing.TB, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "momo.ckpt")
	require.NoError(t, SoftmaxCheckpoint(t, n).Save(path))
	return path
}
