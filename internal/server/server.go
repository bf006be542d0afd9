package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/store"
	"momo-intent-backend/internal/types"
	"momo-intent-backend/internal/usecase"
)

const maxBodyBytes = 64 << 10

// Options configure the HTTP surface.
type Options struct {
	AllowedOrigin string
	Health        func() types.HealthResponse
}

type Server struct {
	router  *chi.Mux
	predict *usecase.PredictService
	health  func() types.HealthResponse
}

func NewServer(svc *usecase.PredictService, opts Options) (*Server, error) {
	if svc == nil {
		return nil, errors.New("server: predict service must not be nil")
	}
	origin := opts.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	health := opts.Health
	if health == nil {
		health = func() types.HealthResponse {
			return types.HealthResponse{Status: "ok", Variant: svc.Variant()}
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s := &Server{router: r, predict: svc, health: health}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Post("/predict", s.handlePredict)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/interactions/recent", s.handleRecentInteractions)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, types.ErrorResponse{
				Error: "request body too large", Code: string(usecase.ErrorInvalidInput), Reason: "body_too_large",
			})
			return
		}
		s.writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "unreadable_body", Err: err})
		return
	}

	query, err := usecase.DecodeQuery(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.predict.Predict(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.PredictResponse{
		Action:     out.Action,
		Confidence: out.Confidence,
		Parameters: out.Parameters,
	})
}

func (s *Server) handleRecentInteractions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_limit", Err: err})
			return
		}
		limit = n
	}
	recent, err := s.predict.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.InteractionsResponse{Interactions: toInteractionResponses(recent)})
}

func toInteractionResponses(in []store.Interaction) []types.InteractionResponse {
	out := make([]types.InteractionResponse, 0, len(in))
	for _, i := range in {
		out = append(out, types.InteractionResponse{
			ID:         i.ID,
			Query:      i.Query,
			Action:     i.Action,
			Confidence: i.Confidence,
			Variant:    i.Variant,
			CreatedAt:  i.CreatedAt,
		})
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ue := usecase.AsError(err)
	status := ue.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	writeJSON(w, status, types.ErrorResponse{Error: ue.Code.Message(), Code: string(ue.Code), Reason: ue.Reason})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debugw("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
