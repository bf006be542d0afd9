package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"momo-intent-backend/internal/app"
	"momo-intent-backend/internal/config"
	"momo-intent-backend/internal/types"
)

type PredictOptions struct {
	*GlobalOptions

	Checkpoint string
}

// NewPredictCommand classifies queries against a checkpoint without
// starting the server. Interactions are not recorded.
func NewPredictCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &PredictOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:     "predict QUERY...",
		Short:   "Classify queries with a trained checkpoint",
		Example: `  momo predict --checkpoint data/momo.ckpt "Send 50 ZAR to John" "what is my balance"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.Checkpoint, "checkpoint", "", "checkpoint file (default: CHECKPOINT_PATH)")
	return cmd
}

func runPredict(cmd *cobra.Command, opts *PredictOptions, queries []string) error {
	cfg := opts.Config
	if opts.Checkpoint != "" {
		cfg.CheckpointPath = opts.Checkpoint
	}
	cfg.InteractionStore = config.StoreNone

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, q := range queries {
		out, err := a.Service.Predict(ctx, strings.TrimSpace(q))
		if err != nil {
			return err
		}
		if err := enc.Encode(types.PredictResponse{
			Action:     out.Action,
			Confidence: out.Confidence,
			Parameters: out.Parameters,
		}); err != nil {
			return err
		}
	}
	return nil
}
