// Package server exposes the review engine over HTTP: correction submission,
// result detail, async job status, and validation-record listing.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scanvoice/review-engine/internal/correction"
	"github.com/scanvoice/review-engine/internal/jobstatus"
	"github.com/scanvoice/review-engine/internal/model"
	"github.com/scanvoice/review-engine/internal/store"
	"github.com/scanvoice/review-engine/internal/validate"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	corrections *correction.Service
	store       store.Store
	engine      jobstatus.Engine
}

// New creates a Server. engine may be nil when no OCR engine is configured;
// status requests then answer 503.
func New(corrections *correction.Service, st store.Store, engine jobstatus.Engine) *Server {
	return &Server{corrections: corrections, store: st, engine: engine}
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Route("/results/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetResult)
			r.Post("/corrections", s.handlePostCorrections)
		})
		r.Get("/status/{taskID}", s.handleGetStatus)
		r.Get("/validations", s.handleListValidations)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// correctionRequest is the POST body for correction submission. The validator
// identity rides in the payload; auth is the host's concern.
type correctionRequest struct {
	Corrections   map[string]any `json:"corrections"`
	CreateInvoice bool           `json:"create_invoice"`
	Notes         string         `json:"notes"`
	ValidatedBy   string         `json:"validated_by"`
}

func (s *Server) handlePostCorrections(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	set := &model.CorrectionSet{
		Corrections:   req.Corrections,
		CreateInvoice: req.CreateInvoice,
		Notes:         req.Notes,
	}
	resp, err := s.corrections.ApplyCorrection(r.Context(), id, set, req.ValidatedBy)
	if err != nil {
		s.writeCorrectionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeCorrectionError(w http.ResponseWriter, id string, err error) {
	if ferrs, ok := validate.AsFieldErrors(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":        "validation failed",
			"field_errors": ferrs,
		})
		return
	}
	switch {
	case eris.Is(err, validate.ErrEmptyCorrections):
		writeError(w, http.StatusBadRequest, "invoice creation requires at least one correction")
	case store.IsNotFound(err):
		writeError(w, http.StatusNotFound, "result not found")
	case store.IsVersionConflict(err):
		writeError(w, http.StatusConflict, "result was modified concurrently, reload and retry")
	default:
		zap.L().Error("correction request failed",
			zap.String("result_id", id),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := s.corrections.GetDetail(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "result not found")
			return
		}
		zap.L().Error("result detail failed", zap.String("result_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "no OCR engine configured")
		return
	}

	status, err := jobstatus.Fetch(r.Context(), s.engine, taskID)
	if err != nil {
		if jobstatus.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		zap.L().Error("status fetch failed", zap.String("task_id", taskID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "engine unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListValidations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListValidationRecords(r.Context(), 500)
	if err != nil {
		zap.L().Error("validation list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recs == nil {
		recs = []model.ValidationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"validations": recs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
