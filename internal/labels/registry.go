// Package labels maps action names to the dense label indices a classifier
// works with, and back.
//
// Indices are assigned in lexicographic order of the action names, so the
// same set of actions always yields the same mapping no matter how the
// training corpus was ordered or shuffled. The realized mapping is persisted
// next to the model (see package checkpoint) and is the only mapping an
// inference process ever uses.
package labels

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/store"
)

// ErrEmptyDataset is returned when a registry is built from zero examples.
var ErrEmptyDataset = errors.New("labels: cannot build registry from an empty dataset")

// UnknownLabelError reports a label index outside [0, N).
type UnknownLabelError struct {
	Index int
	Size  int
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("labels: unknown label index %d (registry has %d actions)", e.Index, e.Size)
}

// UnknownActionError reports an action that was never registered.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("labels: unknown action %q", e.Action)
}

// Registry is an immutable bijection between actions and label indices.
// It is safe for concurrent use.
type Registry struct {
	actions []string
	index   map[string]int
}

// Build collects the distinct actions of examples and assigns indices in
// lexicographic order.
func Build(examples []dataset.TrainingExample) (*Registry, error) {
	if len(examples) == 0 {
		return nil, ErrEmptyDataset
	}
	seen := make(map[string]struct{}, 8)
	actions := make([]string, 0, 8)
	for _, ex := range examples {
		if _, ok := seen[ex.Action]; ok {
			continue
		}
		seen[ex.Action] = struct{}{}
		actions = append(actions, ex.Action)
	}
	sort.Strings(actions)
	return newRegistry(actions), nil
}

// FromActions builds a registry that keeps the given order. Actions must be
// distinct and non-empty.
func FromActions(actions []string) (*Registry, error) {
	if len(actions) == 0 {
		return nil, ErrEmptyDataset
	}
	seen := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if _, ok := seen[a]; ok {
			return nil, fmt.Errorf("labels: duplicate action %q", a)
		}
		seen[a] = struct{}{}
	}
	return newRegistry(append([]string(nil), actions...)), nil
}

func newRegistry(actions []string) *Registry {
	idx := make(map[string]int, len(actions))
	for i, a := range actions {
		idx[a] = i
	}
	return &Registry{actions: actions, index: idx}
}

// Len returns the number of registered actions.
func (r *Registry) Len() int { return len(r.actions) }

// Actions returns the actions ordered by label index.
func (r *Registry) Actions() []string {
	return append([]string(nil), r.actions...)
}

// Action returns the action for a label index.
func (r *Registry) Action(index int) (string, error) {
	if index < 0 || index >= len(r.actions) {
		return "", &UnknownLabelError{Index: index, Size: len(r.actions)}
	}
	return r.actions[index], nil
}

// Index returns the label index of an action.
func (r *Registry) Index(action string) (int, error) {
	i, ok := r.index[action]
	if !ok {
		return 0, &UnknownActionError{Action: action}
	}
	return i, nil
}

// Has reports whether action is registered.
func (r *Registry) Has(action string) bool {
	_, ok := r.index[action]
	return ok
}

// Equal reports whether both registries assign the same index to every action.
func (r *Registry) Equal(o *Registry) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.actions) != len(o.actions) {
		return false
	}
	for i := range r.actions {
		if r.actions[i] != o.actions[i] {
			return false
		}
	}
	return true
}

// Serialize encodes the registry as a JSON object of action -> index,
// with keys written in index order.
func (r *Registry) Serialize() []byte {
	var b bytes.Buffer
	b.WriteString("{")
	for i, a := range r.actions {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  ")
		key, _ := json.Marshal(a)
		b.Write(key)
		fmt.Fprintf(&b, ": %d", i)
	}
	b.WriteString("\n}\n")
	return b.Bytes()
}

// Digest is the hex SHA-256 of Serialize. Two registries with the same digest
// are byte-identical on disk.
func (r *Registry) Digest() string {
	return DigestOf(r.Serialize())
}

// DigestOf is the hex SHA-256 of serialized registry bytes.
func DigestOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	return r.Serialize(), nil
}

func (r *Registry) UnmarshalJSON(b []byte) error {
	out, err := Deserialize(b)
	if err != nil {
		return err
	}
	*r = *out
	return nil
}

// Deserialize parses the form written by Serialize. Any bijection onto
// [0, N) is accepted regardless of key order; duplicate keys, duplicate
// indices and gaps are rejected.
func Deserialize(b []byte) (*Registry, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("labels: decode registry: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("labels: decode registry: expected JSON object")
	}
	byIndex := map[int]string{}
	seen := map[string]struct{}{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("labels: decode registry: %w", err)
		}
		action, _ := kt.(string)
		if _, dup := seen[action]; dup {
			return nil, fmt.Errorf("labels: duplicate action %q", action)
		}
		seen[action] = struct{}{}

		vt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("labels: decode registry: %w", err)
		}
		num, ok := vt.(json.Number)
		if !ok {
			return nil, fmt.Errorf("labels: index for %q is not a number", action)
		}
		n, err := num.Int64()
		if err != nil || n < 0 {
			return nil, fmt.Errorf("labels: index for %q must be a non-negative integer", action)
		}
		if prev, dup := byIndex[int(n)]; dup {
			return nil, fmt.Errorf("labels: index %d assigned to both %q and %q", n, prev, action)
		}
		byIndex[int(n)] = action
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("labels: decode registry: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("labels: decode registry: trailing data")
	}
	if len(byIndex) == 0 {
		return nil, ErrEmptyDataset
	}
	actions := make([]string, len(byIndex))
	for i := range actions {
		a, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("labels: indices are not dense, missing %d", i)
		}
		actions[i] = a
	}
	return newRegistry(actions), nil
}

// Save writes the serialized registry to path atomically.
func (r *Registry) Save(path string) error {
	return store.WriteFileAtomic(path, r.Serialize(), 0o644)
}

// Load reads a registry file such as action_to_label.json.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Deserialize(b)
}
