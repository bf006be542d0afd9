package types

import "time"

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	Action     string         `json:"action"`
	Confidence *float64       `json:"confidence,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	Variant        string `json:"variant"`
	Actions        int    `json:"actions"`
	RegistryDigest string `json:"registry_digest"`
	RunID          string `json:"run_id,omitempty"`
}

// InteractionResponse is one entry of GET /api/interactions/recent.
type InteractionResponse struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Action     string    `json:"action"`
	Confidence *float64  `json:"confidence,omitempty"`
	Variant    string    `json:"variant"`
	CreatedAt  time.Time `json:"createdAt"`
}

type InteractionsResponse struct {
	Interactions []InteractionResponse `json:"interactions"`
}
