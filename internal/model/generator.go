package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeneratorSpec describes an instruction-tuned generative model served
// behind an OpenAI-compatible endpoint. It is what a generative checkpoint
// stores in place of weights.
type GeneratorSpec struct {
	Model       string  `json:"model" yaml:"model"`
	Instruction string  `json:"instruction" yaml:"instruction"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	// LogProbs asks the server for token log-probabilities, which are used
	// to derive a confidence.
	LogProbs bool `json:"logprobs" yaml:"logprobs"`
}

// Defaults fills unset fields: greedy decoding with at most 50 new tokens.
func (g GeneratorSpec) Defaults(instruction string) GeneratorSpec {
	if g.Instruction == "" {
		g.Instruction = instruction
	}
	if g.MaxTokens <= 0 {
		g.MaxTokens = 50
	}
	return g
}

func (g GeneratorSpec) Validate() error {
	if strings.TrimSpace(g.Model) == "" {
		return errors.New("model: generator model must not be empty")
	}
	if g.MaxTokens <= 0 {
		return fmt.Errorf("model: generator max_tokens must be positive, got %d", g.MaxTokens)
	}
	if g.Temperature < 0 {
		return fmt.Errorf("model: generator temperature must not be negative, got %g", g.Temperature)
	}
	return nil
}

// MarshalJSON implements Trained.
func (g GeneratorSpec) MarshalJSON() ([]byte, error) {
	type plain GeneratorSpec
	return json.Marshal(plain(g))
}

// DecodeGeneratorSpec restores a spec from its checkpoint payload.
func DecodeGeneratorSpec(b []byte) (GeneratorSpec, error) {
	type plain GeneratorSpec
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return GeneratorSpec{}, fmt.Errorf("model: decode generator: %w", err)
	}
	g := GeneratorSpec(p)
	return g, g.Validate()
}

// LoadGeneratorSpec reads a YAML generator description.
func LoadGeneratorSpec(path string) (GeneratorSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return GeneratorSpec{}, err
	}
	var g GeneratorSpec
	if err := yaml.Unmarshal(b, &g); err != nil {
		return GeneratorSpec{}, fmt.Errorf("model: parse generator %s: %w", path, err)
	}
	return g, nil
}
