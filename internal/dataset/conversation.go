package dataset

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"momo-intent-backend/internal/logger"
)

//go:embed defaults/cleaning.yaml
var defaultPromptsYAML []byte

const (
	speakerCustomer = "Customer"
	speakerBot      = "Bot"
)

// Prompts are the system prompt attached to every conversation and the
// instructions sent to the cleaning model.
type Prompts struct {
	System   string `yaml:"system"`
	Cleaning string `yaml:"cleaning"`
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() Prompts {
	var p Prompts
	if err := yaml.Unmarshal(defaultPromptsYAML, &p); err != nil {
		panic(fmt.Sprintf("dataset: embedded prompts are invalid: %v", err))
	}
	return p
}

// ConversationTurn is one row of a raw support transcript export.
type ConversationTurn struct {
	ConversationID string `csv:"conversation_id"`
	Speaker        string `csv:"speaker"`
	Dialogue       string `csv:"dialogue"`
	ScenarioType   string `csv:"scenario_type"`
}

// Message is a ShareGPT-style chat message.
type Message struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

// Conversation is a system/human/gpt exchange.
type Conversation struct {
	Messages     []Message `json:"conversations"`
	ScenarioType string    `json:"scenario_type,omitempty"`
}

// ReadTurns parses a transcript CSV with conversation_id, speaker, dialogue
// and scenario_type columns.
func ReadTurns(r io.Reader) ([]ConversationTurn, error) {
	var rows []*ConversationTurn
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("dataset: read turns: %w", err)
	}
	out := make([]ConversationTurn, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

// PairConversations groups turns by conversation, keeping first-seen order,
// and emits one exchange for every customer turn that is directly followed by
// a bot turn.
func PairConversations(turns []ConversationTurn, systemPrompt string) []Conversation {
	order := make([]string, 0)
	groups := make(map[string][]ConversationTurn)
	for _, t := range turns {
		if _, ok := groups[t.ConversationID]; !ok {
			order = append(order, t.ConversationID)
		}
		groups[t.ConversationID] = append(groups[t.ConversationID], t)
	}

	var out []Conversation
	for _, id := range order {
		conv := groups[id]
		for i := 0; i+1 < len(conv); i++ {
			cur, next := conv[i], conv[i+1]
			if cur.Speaker != speakerCustomer || next.Speaker != speakerBot {
				continue
			}
			out = append(out, Conversation{
				Messages: []Message{
					{From: "system", Value: strings.TrimSpace(systemPrompt)},
					{From: "human", Value: strings.TrimSpace(cur.Dialogue)},
					{From: "gpt", Value: strings.TrimSpace(next.Dialogue)},
				},
				ScenarioType: cur.ScenarioType,
			})
		}
	}
	return out
}

// WriteConversations writes one JSON conversation per line.
func WriteConversations(w io.Writer, convs []Conversation) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, c := range convs {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("dataset: write conversations: %w", err)
		}
	}
	return nil
}

// ChatCompleter is the part of the OpenAI client the cleaner needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CleanerConfig tunes calls to the cleaning model.
type CleanerConfig struct {
	Model       string
	Prompt      string
	MaxAttempts int
	Backoff     time.Duration
	// RequestsPerSecond caps the call rate; zero disables the limiter.
	RequestsPerSecond float64
	CallTimeout       time.Duration
}

// CleanStats summarizes a cleaning run.
type CleanStats struct {
	Total   int
	Cleaned int
	Skipped int
}

// Cleaner strips stage directions from utterances through an external chat
// model. Each call is retried with exponential backoff; a record whose
// utterances still cannot be cleaned is skipped rather than failing the run.
type Cleaner struct {
	client  ChatCompleter
	cfg     CleanerConfig
	limiter *rate.Limiter
}

func NewCleaner(client ChatCompleter, cfg CleanerConfig) (*Cleaner, error) {
	if client == nil {
		return nil, errors.New("dataset: cleaner client must not be nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("dataset: cleaner model must not be empty")
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompts().Cleaning
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	c := &Cleaner{client: client, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// Clean cleans the human and gpt messages of every conversation. It returns
// early only when ctx is done.
func (c *Cleaner) Clean(ctx context.Context, convs []Conversation) ([]Conversation, CleanStats, error) {
	stats := CleanStats{Total: len(convs)}
	out := make([]Conversation, 0, len(convs))
	for i, conv := range convs {
		cleaned, err := c.cleanOne(ctx, conv)
		if err != nil {
			if ctx.Err() != nil {
				return out, stats, ctx.Err()
			}
			stats.Skipped++
			logger.Warnw("skipping conversation after cleaning failures", "index", i, "err", err)
			continue
		}
		stats.Cleaned++
		out = append(out, cleaned)
	}
	return out, stats, nil
}

func (c *Cleaner) cleanOne(ctx context.Context, conv Conversation) (Conversation, error) {
	msgs := make([]Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	for i, m := range msgs {
		if m.From == "system" {
			continue
		}
		text, err := c.cleanText(ctx, m.Value)
		if err != nil {
			return Conversation{}, err
		}
		msgs[i].Value = text
	}
	return Conversation{Messages: msgs, ScenarioType: conv.ScenarioType}, nil
}

func (c *Cleaner) cleanText(ctx context.Context, text string) (string, error) {
	var lastErr error
	delay := c.cfg.Backoff
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		out, err := c.call(ctx, text)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Debugf("[clean] attempt %d/%d failed: %v", attempt, c.cfg.MaxAttempts, err)
		if attempt == c.cfg.MaxAttempts || delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("dataset: clean failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Cleaner) call(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.cfg.Prompt},
			{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(text)},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("empty completion")
	}
	return out, nil
}
