package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/llm"
	"momo-intent-backend/internal/logger"
)

type CleanOptions struct {
	*GlobalOptions

	Conversations string
	Out           string
	Model         string
	BaseURL       string
	MaxAttempts   int
	RPS           float64
	Backoff       time.Duration
	SkipCleaning  bool
}

// NewCleanCommand creates the clean command.
//
// Customer turns are paired with the Bot reply that follows them, every pair
// gets the support system prompt, and both utterances are rewritten by the
// cleaning model to drop stage directions. Pairs that still fail after the
// retry budget are skipped.
func NewCleanCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &CleanOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Build a cleaned conversation dataset from support transcripts",
		Example: `  # clean through a local Ollama server
  momo clean --conversations data/conversations.csv --out data/conversations.jsonl

  # only pair turns, no cleaning model
  momo clean --conversations data/conversations.csv --skip-cleaning`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Conversations, "conversations", "", "transcript CSV (conversation_id,speaker,dialogue,scenario_type)")
	f.StringVarP(&opts.Out, "out", "o", "-", "ShareGPT JSONL output, - for stdout")
	f.StringVar(&opts.Model, "model", "", "cleaning model (default: CLEANER_MODEL)")
	f.StringVar(&opts.BaseURL, "base-url", "", "OpenAI-compatible endpoint (default: CLEANER_BASE_URL)")
	f.IntVar(&opts.MaxAttempts, "max-attempts", 0, "attempts per utterance (default: CLEANER_MAX_ATTEMPTS)")
	f.Float64Var(&opts.RPS, "rps", 0, "max requests per second (default: CLEANER_RPS)")
	f.DurationVar(&opts.Backoff, "backoff", 500*time.Millisecond, "initial retry backoff")
	f.BoolVar(&opts.SkipCleaning, "skip-cleaning", false, "only pair turns")
	_ = cmd.MarkFlagRequired("conversations")

	return cmd
}

func (o *CleanOptions) cleanerConfig() dataset.CleanerConfig {
	cfg := dataset.CleanerConfig{
		Model:             o.Config.CleanerModel,
		MaxAttempts:       o.Config.CleanerMaxAttempts,
		RequestsPerSecond: o.Config.CleanerRPS,
		Backoff:           o.Backoff,
	}
	if o.Model != "" {
		cfg.Model = o.Model
	}
	if o.MaxAttempts > 0 {
		cfg.MaxAttempts = o.MaxAttempts
	}
	if o.RPS > 0 {
		cfg.RequestsPerSecond = o.RPS
	}
	return cfg
}

func runClean(cmd *cobra.Command, opts *CleanOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := os.Open(opts.Conversations)
	if err != nil {
		return err
	}
	turns, err := dataset.ReadTurns(in)
	in.Close()
	if err != nil {
		return err
	}
	convs := dataset.PairConversations(turns, dataset.DefaultPrompts().System)
	logger.Infof("[clean] %d turns paired into %d conversations", len(turns), len(convs))

	if !opts.SkipCleaning {
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = opts.Config.CleanerBaseURL
		}
		client, err := llm.NewClient(ctx, llm.Options{BaseURL: baseURL, APIKey: opts.Config.OpenAIAPIKey})
		if err != nil {
			return err
		}
		cleaner, err := dataset.NewCleaner(client, opts.cleanerConfig())
		if err != nil {
			return err
		}
		cleaned, stats, err := cleaner.Clean(ctx, convs)
		if err != nil {
			return fmt.Errorf("clean interrupted after %d conversations: %w", stats.Cleaned, err)
		}
		logger.Infow("cleaning finished", "total", stats.Total, "cleaned", stats.Cleaned, "skipped", stats.Skipped)
		convs = cleaned
	}

	w, err := createOutput(cmd, opts.Out)
	if err != nil {
		return err
	}
	if err := dataset.WriteConversations(w, convs); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
