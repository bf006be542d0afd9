package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"momo-intent-backend/internal/app"
	"momo-intent-backend/internal/checkpoint"
	"momo-intent-backend/internal/config"
	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/usecase"
)

type HarvestOptions struct {
	*GlobalOptions

	Limit         int
	MinConfidence float64
	Out           string
	Format        string
	Checkpoint    string
}

// NewHarvestCommand turns logged predictions into training examples.
func NewHarvestCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &HarvestOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Export confident served predictions as training examples",
		Long: `Read recent interactions from the configured interaction store
(INTERACTION_STORE=postgres or dynamodb) and write the confident ones as a
corpus that can be merged into the next training run. When --checkpoint is
given, only actions known to its registry are kept.`,
		Example: `  momo harvest --limit 5000 --min-confidence 0.9 --out data/harvested.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Limit, "limit", 1000, "interactions to read, newest first")
	f.Float64Var(&opts.MinConfidence, "min-confidence", 0.9, "minimum confidence to keep")
	f.StringVarP(&opts.Out, "out", "o", "-", "output file, - for stdout")
	f.StringVarP(&opts.Format, "format", "f", "", "csv, jsonl or instruction (default: from --out extension)")
	f.StringVar(&opts.Checkpoint, "checkpoint", "", "restrict to actions of this checkpoint's registry")

	return cmd
}

func runHarvest(cmd *cobra.Command, opts *HarvestOptions) error {
	ctx := context.Background()
	if s := opts.Config.InteractionStore; s != config.StorePostgres && s != config.StoreDynamo {
		return fmt.Errorf("harvest needs a persistent INTERACTION_STORE (%s or %s)", config.StorePostgres, config.StoreDynamo)
	}

	log, closer, err := app.NewInteractionLog(ctx, opts.Config)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	hopts := usecase.HarvestOptions{Limit: opts.Limit, MinConfidence: opts.MinConfidence}
	if opts.Checkpoint != "" {
		ckpt, err := checkpoint.Load(opts.Checkpoint)
		if err != nil {
			return err
		}
		hopts.Registry = ckpt.Registry
	}

	examples, err := usecase.Harvest(ctx, log, hopts)
	if err != nil {
		return err
	}

	format := resolveFormat(opts.Format, opts.Out)
	w, err := createOutput(cmd, opts.Out)
	if err != nil {
		return err
	}
	if err := dataset.Write(w, format, examples); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Infof("[harvest] %d examples written to %s", len(examples), opts.Out)
	return nil
}
