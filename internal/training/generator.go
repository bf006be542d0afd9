package training

import (
	"context"

	"momo-intent-backend/internal/checkpoint"
	"momo-intent-backend/internal/dataset"
	"momo-intent-backend/internal/model"
)

// GeneratorBinding is the learner for the generative variant. The model
// itself is fine-tuned elsewhere on instruction records (see
// dataset.FormatInstruction); training here only binds its endpoint
// description to the registry.
type GeneratorBinding struct {
	Spec model.GeneratorSpec
}

func (GeneratorBinding) Kind() string { return checkpoint.KindGenerator }

func (g GeneratorBinding) Fit(ctx context.Context, _ []model.LabeledText, _ int, _ model.Hyperparameters) (model.Trained, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec := g.Spec.Defaults(dataset.Instruction)
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}
