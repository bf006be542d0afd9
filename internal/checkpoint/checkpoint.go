// Package checkpoint bundles a trained model with the exact label registry
// it was trained against. The registry travels as its serialized bytes plus
// a SHA-256 digest, so a checkpoint can never be loaded with a different
// mapping than the one used in training.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"momo-intent-backend/internal/labels"
	"momo-intent-backend/internal/model"
	"momo-intent-backend/internal/store"
)

// Version of the on-disk envelope.
const Version = 1

// KindGenerator marks checkpoints that bind an external generative model.
const KindGenerator = "generator"

var (
	ErrRegistryMismatch = errors.New("checkpoint: registry does not match its digest")
	ErrUnsupported      = errors.New("checkpoint: unsupported version")
)

// Metrics summarizes the training run.
type Metrics struct {
	TrainExamples int            `json:"train_examples"`
	EvalExamples  int            `json:"eval_examples"`
	TrainLoss     float64        `json:"train_loss,omitempty"`
	EvalAccuracy  *float64       `json:"eval_accuracy,omitempty"`
	ActionCounts  map[string]int `json:"action_counts,omitempty"`
}

// Checkpoint is immutable once loaded.
type Checkpoint struct {
	Version         int
	Kind            string
	RunID           string
	CreatedAt       time.Time
	Registry        *labels.Registry
	Hyperparameters model.Hyperparameters
	Metrics         Metrics
	Model           json.RawMessage
}

type envelope struct {
	Version         int                   `json:"version"`
	Kind            string                `json:"kind"`
	RunID           string                `json:"run_id"`
	CreatedAt       time.Time             `json:"created_at"`
	Registry        string                `json:"registry"`
	RegistryDigest  string                `json:"registry_digest"`
	Hyperparameters model.Hyperparameters `json:"hyperparameters"`
	Metrics         Metrics               `json:"metrics"`
	Model           json.RawMessage       `json:"model,omitempty"`
}

// New stamps a fresh run ID and creation time.
func New(kind string, reg *labels.Registry, hp model.Hyperparameters, metrics Metrics, payload json.RawMessage) (*Checkpoint, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, errors.New("checkpoint: registry must not be empty")
	}
	if kind == "" {
		return nil, errors.New("checkpoint: kind must not be empty")
	}
	return &Checkpoint{
		Version:         Version,
		Kind:            kind,
		RunID:           uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Registry:        reg,
		Hyperparameters: hp,
		Metrics:         metrics,
		Model:           payload,
	}, nil
}

// Encode writes the checkpoint as snappy-framed JSON.
func (c *Checkpoint) Encode(w io.Writer) error {
	env := envelope{
		Version:         c.Version,
		Kind:            c.Kind,
		RunID:           c.RunID,
		CreatedAt:       c.CreatedAt,
		Registry:        string(c.Registry.Serialize()),
		RegistryDigest:  c.Registry.Digest(),
		Hyperparameters: c.Hyperparameters,
		Metrics:         c.Metrics,
		Model:           c.Model,
	}
	sw := snappy.NewBufferedWriter(w)
	if err := json.NewEncoder(sw).Encode(env); err != nil {
		sw.Close()
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	return sw.Close()
}

// Decode reads a checkpoint written by Encode and verifies the registry.
func Decode(r io.Reader) (*Checkpoint, error) {
	var env envelope
	if err := json.NewDecoder(snappy.NewReader(r)).Decode(&env); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w %d", ErrUnsupported, env.Version)
	}
	raw := []byte(env.Registry)
	if labels.DigestOf(raw) != env.RegistryDigest {
		return nil, ErrRegistryMismatch
	}
	reg, err := labels.Deserialize(raw)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return &Checkpoint{
		Version:         env.Version,
		Kind:            env.Kind,
		RunID:           env.RunID,
		CreatedAt:       env.CreatedAt,
		Registry:        reg,
		Hyperparameters: env.Hyperparameters,
		Metrics:         env.Metrics,
		Model:           env.Model,
	}, nil
}

// Save writes the checkpoint to path atomically.
func (c *Checkpoint) Save(path string) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	return store.NewFileStore(path).Write(buf.Bytes())
}

// Load reads and verifies the checkpoint at path.
func Load(path string) (*Checkpoint, error) {
	b, err := store.NewFileStore(path).Read()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return Decode(bytes.NewReader(b))
}
