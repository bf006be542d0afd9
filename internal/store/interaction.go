package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Interaction is one served prediction.
type Interaction struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Action     string    `json:"action"`
	Index      int       `json:"index"`
	Confidence *float64  `json:"confidence,omitempty"`
	Variant    string    `json:"variant"`
	CreatedAt  time.Time `json:"created_at"`
}

// InteractionLog records served predictions so they can later be reviewed
// or harvested as training examples. Recent returns newest first.
type InteractionLog interface {
	Record(ctx context.Context, in Interaction) error
	Recent(ctx context.Context, limit int) ([]Interaction, error)
}

// NewInteraction stamps an ID and creation time.
func NewInteraction(query, action string, index int, confidence *float64, variant string) Interaction {
	return Interaction{
		ID:         uuid.NewString(),
		Query:      query,
		Action:     action,
		Index:      index,
		Confidence: confidence,
		Variant:    variant,
		CreatedAt:  time.Now().UTC(),
	}
}

// NopLog discards interactions.
type NopLog struct{}

func (NopLog) Record(context.Context, Interaction) error { return nil }

func (NopLog) Recent(context.Context, int) ([]Interaction, error) { return nil, nil }
