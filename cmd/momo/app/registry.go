package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"momo-intent-backend/internal/checkpoint"
	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/labels"
	"momo-intent-backend/internal/logger"
)

type RegistryOptions struct {
	*GlobalOptions

	Data       string
	Out        string
	Checkpoint string
	File       string
}

// NewRegistryCommand groups the label registry subcommands.
func NewRegistryCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &RegistryOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Build or inspect the action-to-label registry",
	}

	build := &cobra.Command{
		Use:     "build",
		Short:   "Build the registry from a corpus",
		Example: `  momo registry build --data data/train.csv --out data/action_to_label.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryBuild(opts)
		},
	}
	build.Flags().StringVar(&opts.Data, "data", "", "corpus file (csv, jsonl or instruction json)")
	build.Flags().StringVarP(&opts.Out, "out", "o", "action_to_label.json", "registry output file")
	_ = build.MarkFlagRequired("data")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print a registry from a checkpoint or registry file",
		Example: `  momo registry show --checkpoint data/momo.ckpt
  momo registry show --file data/action_to_label.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryShow(cmd, opts)
		},
	}
	show.Flags().StringVar(&opts.Checkpoint, "checkpoint", "", "checkpoint file")
	show.Flags().StringVar(&opts.File, "file", "", "registry JSON file")

	cmd.AddCommand(build, show)
	return cmd
}

func runRegistryBuild(opts *RegistryOptions) error {
	examples, err := dataset.ReadFile(opts.Data)
	if err != nil {
		return err
	}
	reg, err := labels.Build(examples)
	if err != nil {
		return err
	}
	if err := reg.Save(opts.Out); err != nil {
		return err
	}
	logger.Infof("[registry] %d actions from %d examples written to %s (digest %s)",
		reg.Len(), len(examples), opts.Out, reg.Digest())
	return nil
}

func runRegistryShow(cmd *cobra.Command, opts *RegistryOptions) error {
	var reg *labels.Registry
	switch {
	case opts.Checkpoint != "" && opts.File != "":
		return errors.New("use either --checkpoint or --file, not both")
	case opts.Checkpoint != "":
		ckpt, err := checkpoint.Load(opts.Checkpoint)
		if err != nil {
			return err
		}
		reg = ckpt.Registry
	case opts.File != "":
		r, err := labels.Load(opts.File)
		if err != nil {
			return err
		}
		reg = r
	default:
		opts.Checkpoint = opts.Config.CheckpointPath
		return runRegistryShow(cmd, opts)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", reg.Serialize())
	fmt.Fprintf(out, "# %d actions, digest %s\n", reg.Len(), reg.Digest())
	return nil
}
