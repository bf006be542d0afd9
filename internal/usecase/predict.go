package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"momo-intent-backend/internal/inference"
	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/store"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	recordTimeout      = 2 * time.Second
)

type Predictor interface {
	Predict(ctx context.Context, query string) (inference.Prediction, error)
	Variant() string
}

type InteractionLog interface {
	Record(ctx context.Context, in store.Interaction) error
	Recent(ctx context.Context, limit int) ([]store.Interaction, error)
}

type PredictOutput struct {
	Action     string
	Index      int
	Confidence *float64
	Parameters map[string]any
}

// PredictService validates queries, runs the loaded predictor and records
// every served prediction. It holds no per-request state.
type PredictService struct {
	predictor Predictor
	log       InteractionLog
}

// NewPredictService wires the service. A nil log discards interactions.
func NewPredictService(p Predictor, log InteractionLog) (*PredictService, error) {
	if p == nil {
		return nil, errors.New("usecase: predictor must not be nil")
	}
	if log == nil {
		log = store.NopLog{}
	}
	return &PredictService{predictor: p, log: log}, nil
}

func (s *PredictService) Variant() string { return s.predictor.Variant() }

// DecodeQuery extracts the query from a {"query": string} body. A malformed
// body, or a query that is missing, null, not a string or blank, is an
// INVALID_INPUT error.
func DecodeQuery(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", newError(ErrorInvalidInput, "empty_body", nil)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", newError(ErrorInvalidInput, "malformed_json", err)
	}
	raw, ok := fields["query"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", newError(ErrorInvalidInput, "missing_query", nil)
	}
	var q string
	if err := json.Unmarshal(raw, &q); err != nil {
		return "", newError(ErrorInvalidInput, "query_not_string", err)
	}
	if strings.TrimSpace(q) == "" {
		return "", newError(ErrorInvalidInput, "empty_query", nil)
	}
	return q, nil
}

func (s *PredictService) Predict(ctx context.Context, query string) (PredictOutput, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return PredictOutput{}, newError(ErrorInvalidInput, "empty_query", nil)
	}

	pred, err := s.predictor.Predict(ctx, query)
	if err != nil {
		if errors.Is(err, inference.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return PredictOutput{}, newError(ErrorTimeout, "prediction_timeout", err)
		}
		return PredictOutput{}, newError(ErrorInternal, "prediction_failed", err)
	}

	s.record(ctx, query, pred)

	out := PredictOutput{
		Action:     pred.Action,
		Index:      pred.Index,
		Confidence: pred.Confidence,
	}
	if len(pred.Parameters) > 0 {
		out.Parameters = map[string]any(pred.Parameters)
	}
	return out, nil
}

// record never fails the request.
func (s *PredictService) record(ctx context.Context, query string, pred inference.Prediction) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	in := store.NewInteraction(query, pred.Action, pred.Index, pred.Confidence, s.predictor.Variant())
	if err := s.log.Record(rctx, in); err != nil {
		logger.Warnw("failed to record interaction", "id", in.ID, "err", err)
	}
}

// Recent returns logged interactions, newest first. limit is clamped to
// [1, 500]; zero or less means the default of 50.
func (s *PredictService) Recent(ctx context.Context, limit int) ([]store.Interaction, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	out, err := s.log.Recent(ctx, limit)
	if err != nil {
		return nil, newError(ErrorInternal, "interaction_log_error", err)
	}
	return out, nil
}
