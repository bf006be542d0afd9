// Package handler serves the predict contract through API Gateway proxy
// events.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/store"
	"momo-intent-backend/internal/types"
	"momo-intent-backend/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type PredictUseCase interface {
	Predict(ctx context.Context, query string) (usecase.PredictOutput, error)
	Recent(ctx context.Context, limit int) ([]store.Interaction, error)
}

type Handler struct {
	uc     PredictUseCase
	health func() types.HealthResponse
}

// NewHandler wires the use case. health may be nil.
func NewHandler(uc PredictUseCase, health func() types.HealthResponse) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if health == nil {
		health = func() types.HealthResponse { return types.HealthResponse{Status: "ok"} }
	}
	return &Handler{uc: uc, health: health}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := header(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}

	path := strings.TrimSuffix(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodPost && path == "/predict":
		return h.predict(ctx, req, corrID), nil
	case req.HTTPMethod == http.MethodGet && path == "/api/health":
		return respond(http.StatusOK, corrID, h.health()), nil
	case req.HTTPMethod == http.MethodGet && path == "/api/interactions/recent":
		return h.recent(ctx, req, corrID), nil
	default:
		return respond(http.StatusNotFound, corrID, types.ErrorResponse{Error: "not found"}), nil
	}
}

func (h *Handler) predict(ctx context.Context, req events.APIGatewayProxyRequest, corrID string) events.APIGatewayProxyResponse {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return errorResponse(corrID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_base64", Err: err})
		}
		body = decoded
	}
	query, err := usecase.DecodeQuery(body)
	if err != nil {
		return errorResponse(corrID, err)
	}
	out, err := h.uc.Predict(ctx, query)
	if err != nil {
		return errorResponse(corrID, err)
	}
	return respond(http.StatusOK, corrID, types.PredictResponse{
		Action:     out.Action,
		Confidence: out.Confidence,
		Parameters: out.Parameters,
	})
}

func (h *Handler) recent(ctx context.Context, req events.APIGatewayProxyRequest, corrID string) events.APIGatewayProxyResponse {
	limit := 0
	if v := req.QueryStringParameters["limit"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return errorResponse(corrID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_limit", Err: err})
		}
		limit = n
	}
	recent, err := h.uc.Recent(ctx, limit)
	if err != nil {
		return errorResponse(corrID, err)
	}
	out := types.InteractionsResponse{Interactions: make([]types.InteractionResponse, 0, len(recent))}
	for _, i := range recent {
		out.Interactions = append(out.Interactions, types.InteractionResponse{
			ID: i.ID, Query: i.Query, Action: i.Action, Confidence: i.Confidence, Variant: i.Variant, CreatedAt: i.CreatedAt,
		})
	}
	return respond(http.StatusOK, corrID, out)
}

func errorResponse(corrID string, err error) events.APIGatewayProxyResponse {
	ue := usecase.AsError(err)
	status := ue.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "correlation_id", corrID, "code", ue.Code, "reason", ue.Reason, "err", err)
	}
	return respond(status, corrID, types.ErrorResponse{Error: ue.Code.Message(), Code: string(ue.Code), Reason: ue.Reason})
}

func respond(status int, corrID string, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"internal error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(b),
	}
}

// header looks a header up case-insensitively.
func header(h map[string]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
