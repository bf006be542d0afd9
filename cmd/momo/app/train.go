package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/inference"
	"momo-intent-backend/internal/labels"
	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/model"
	"momo-intent-backend/internal/training"
)

type TrainOptions struct {
	*GlobalOptions

	Data     string
	Out      string
	Registry string
	Variant  string

	// generative variant
	Model         string
	GeneratorSpec string
	LogProbs      bool

	HP model.Hyperparameters
}

// NewTrainCommand creates the train command.
func NewTrainCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &TrainOptions{GlobalOptions: globalOpts}
	def := model.DefaultHyperparameters()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a checkpoint for the inference service",
		Long: `Train a checkpoint from a labelled corpus.

The classifier variant fits a softmax model over stemmed unigram and bigram
features. The generative variant binds an instruction-tuned model served
behind an OpenAI-compatible endpoint to the registry; fine-tune that model
on "momo generate --format instruction" output.

Hyperparameters default to the TRAIN_* environment values. A registry given
with --registry is used as is; otherwise one is built from the corpus.`,
		Example: `  momo train --data data/train.csv --out data/momo.ckpt
  momo train --data data/train.csv --variant generative --model mistral-7b-momo --out data/momo-gen.ckpt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Data, "data", "", "training corpus (csv, jsonl or instruction json)")
	f.StringVarP(&opts.Out, "out", "o", "", "checkpoint output (default: CHECKPOINT_PATH)")
	f.StringVar(&opts.Registry, "registry", "", "existing action_to_label.json to train against")
	f.StringVar(&opts.Variant, "variant", inference.VariantClassifier, "classifier or generative")
	f.StringVar(&opts.Model, "model", "", "generative model name (default: GENERATOR_MODEL)")
	f.StringVar(&opts.GeneratorSpec, "generator-spec", "", "YAML file describing the generative model")
	f.BoolVar(&opts.LogProbs, "logprobs", true, "request token log-probabilities for generative confidence")
	f.IntVar(&opts.HP.Epochs, "epochs", def.Epochs, "training epochs")
	f.Float64Var(&opts.HP.LearningRate, "learning-rate", def.LearningRate, "SGD learning rate")
	f.IntVar(&opts.HP.BatchSize, "batch-size", def.BatchSize, "mini-batch size")
	f.IntVar(&opts.HP.MaxSeqLen, "max-seq-length", def.MaxSeqLen, "maximum tokens per query")
	f.Float64Var(&opts.HP.WeightDecay, "weight-decay", def.WeightDecay, "L2 weight decay")
	f.Float64Var(&opts.HP.EvalFraction, "eval-fraction", def.EvalFraction, "share of examples held out for evaluation")
	f.Int64Var(&opts.HP.Seed, "seed", def.Seed, "shuffle seed")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// hyperparameters starts from the environment and applies explicit flags.
func (o *TrainOptions) hyperparameters(cmd *cobra.Command) model.Hyperparameters {
	hp := o.Config.Train
	f := cmd.Flags()
	if f.Changed("epochs") {
		hp.Epochs = o.HP.Epochs
	}
	if f.Changed("learning-rate") {
		hp.LearningRate = o.HP.LearningRate
	}
	if f.Changed("batch-size") {
		hp.BatchSize = o.HP.BatchSize
	}
	if f.Changed("max-seq-length") {
		hp.MaxSeqLen = o.HP.MaxSeqLen
	}
	if f.Changed("weight-decay") {
		hp.WeightDecay = o.HP.WeightDecay
	}
	if f.Changed("eval-fraction") {
		hp.EvalFraction = o.HP.EvalFraction
	}
	if f.Changed("seed") {
		hp.Seed = o.HP.Seed
	}
	return hp
}

func (o *TrainOptions) learner() (model.Learner, error) {
	switch o.Variant {
	case inference.VariantClassifier:
		return model.SoftmaxLearner{}, nil
	case inference.VariantGenerative:
		var spec model.GeneratorSpec
		if o.GeneratorSpec != "" {
			s, err := model.LoadGeneratorSpec(o.GeneratorSpec)
			if err != nil {
				return nil, err
			}
			spec = s
		} else {
			spec.LogProbs = o.LogProbs
		}
		if o.Model != "" {
			spec.Model = o.Model
		}
		if spec.Model == "" {
			spec.Model = o.Config.GeneratorModel
		}
		return training.GeneratorBinding{Spec: spec}, nil
	default:
		return nil, fmt.Errorf("unknown variant %q (want %s or %s)", o.Variant, inference.VariantClassifier, inference.VariantGenerative)
	}
}

func runTrain(cmd *cobra.Command, opts *TrainOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	examples, err := dataset.ReadFile(opts.Data)
	if err != nil {
		return err
	}

	var reg *labels.Registry
	if opts.Registry != "" {
		reg, err = labels.Load(opts.Registry)
	} else {
		reg, err = labels.Build(examples)
	}
	if err != nil {
		return err
	}

	learner, err := opts.learner()
	if err != nil {
		return err
	}
	o, err := training.NewOrchestrator(learner, opts.hyperparameters(cmd))
	if err != nil {
		return err
	}
	ckpt, err := o.Train(ctx, examples, reg)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == "" {
		out = opts.Config.CheckpointPath
	}
	if err := ckpt.Save(out); err != nil {
		return err
	}
	logger.Infow("checkpoint written",
		"path", out, "kind", ckpt.Kind, "run_id", ckpt.RunID,
		"actions", reg.Len(), "train_examples", ckpt.Metrics.TrainExamples,
		"eval_examples", ckpt.Metrics.EvalExamples)
	if ckpt.Metrics.EvalAccuracy != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "eval accuracy: %.4f\n", *ckpt.Metrics.EvalAccuracy)
	}
	return nil
}
