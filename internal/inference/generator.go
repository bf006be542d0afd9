package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/labels"
	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/model"
)

// ChatCompleter is the part of the OpenAI client the generative variant
// needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator is the generative variant. It prompts an instruction-tuned
// model with the query and parses the completion for an intent.
//
// Confidence is exp(mean token log-probability) of the completion when the
// server returns log-probabilities, and absent otherwise.
type Generator struct {
	client ChatCompleter
	spec   model.GeneratorSpec
	reg    *labels.Registry
}

func NewGenerator(client ChatCompleter, spec model.GeneratorSpec, reg *labels.Registry) (*Generator, error) {
	if client == nil {
		return nil, errors.New("inference: generator client must not be nil")
	}
	if reg == nil {
		return nil, errors.New("inference: registry must not be nil")
	}
	spec = spec.Defaults(dataset.Instruction)
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Generator{client: client, spec: spec, reg: reg}, nil
}

func (g *Generator) Variant() string { return VariantGenerative }

// wireTemperature keeps greedy decoding on the wire. go-openai omits a zero
// temperature, which lets the server apply its own sampling default.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func (g *Generator) Predict(ctx context.Context, query string) (Prediction, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.spec.Model,
		Temperature: wireTemperature(g.spec.Temperature),
		MaxTokens:   g.spec.MaxTokens,
		LogProbs:    g.spec.LogProbs,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: g.spec.Instruction + "\n" + query},
		},
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("inference: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Prediction{}, errors.New("inference: generate: no choices")
	}
	choice := resp.Choices[0]
	raw := choice.Message.Content

	p := Prediction{Index: -1}
	intent, params, perr := parseCompletion(raw)
	if perr == nil {
		p.Parameters = params
		if action, ok := resolveAction(intent, g.reg); ok {
			p.Action = action
		}
	}
	if p.Action == "" {
		if action, ok := DetectAction(raw, g.reg); ok {
			p.Action = action
		}
	}
	if p.Action == "" {
		logger.Debugw("generative completion did not resolve to an action", "completion", raw)
		p.Action = unresolvedAction(intent)
	} else {
		p.Index, _ = g.reg.Index(p.Action)
	}
	if c, ok := logProbConfidence(choice.LogProbs); ok {
		p.Confidence = &c
	}
	return p, nil
}

// parseCompletion extracts the JSON object between the first '{' and the
// last '}' of raw and decodes it as {"intent": ..., params...}.
func parseCompletion(raw string) (string, dataset.Parameters, error) {
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first < 0 || last <= first {
		return "", nil, errors.New("no JSON object in completion")
	}
	return dataset.ParseIntentJSON(raw[first : last+1])
}

func unresolvedAction(intent string) string {
	if intent = strings.TrimSpace(intent); intent != "" {
		return fmt.Sprintf("Unknown action (intent: %s)", intent)
	}
	return "Unknown action"
}

func logProbConfidence(lp *openai.LogProbs) (float64, bool) {
	if lp == nil || len(lp.Content) == 0 {
		return 0, false
	}
	var sum float64
	for _, t := range lp.Content {
		sum += t.LogProb
	}
	return clamp01(math.Exp(sum / float64(len(lp.Content)))), true
}
