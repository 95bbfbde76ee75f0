package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/punchamoorthee/bizfin/internal/logger"
	"github.com/punchamoorthee/bizfin/internal/metrics"
	"github.com/punchamoorthee/bizfin/internal/models"
	"github.com/punchamoorthee/bizfin/internal/recurring"
	"github.com/rs/zerolog"
)

// Generator runs recurring template expansion.
type Generator interface {
	RunBatchReport(ctx context.Context) (recurring.Report, error)
	RunOneReport(ctx context.Context, templateID uuid.UUID) (recurring.Report, error)
}

// Transferer moves funds between bank accounts.
type Transferer interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, bool, error)
}

// AccountReader loads bank accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error)
}

type Handler struct {
	generator Generator
	transfers Transferer
	accounts  AccountReader
	logger    zerolog.Logger
}

func NewHandler(g Generator, t Transferer, a AccountReader, logger zerolog.Logger) *Handler {
	return &Handler{
		generator: g,
		transfers: t,
		accounts:  a,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

// NewRouter wires the handler, health check and metrics endpoints.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestLogger)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/transfers", h.CreateTransfer).Methods("POST")
	apiV1.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	apiV1.HandleFunc("/recurring/run", h.RunRecurring).Methods("POST")
	apiV1.HandleFunc("/recurring/{id}/run", h.RunTemplate).Methods("POST")
	return r
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "POST", "/transfers"
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", method, endpoint)
		return
	}

	res, replayed, err := h.transfers.Transfer(r.Context(), req.Domain(r.Header.Get("Idempotency-Key")))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			h.respondError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
		case errors.Is(err, domain.ErrInsufficientFunds):
			h.respondError(w, http.StatusUnprocessableEntity, "Insufficient funds", method, endpoint)
		case errors.Is(err, domain.ErrIdempotencyMismatch):
			h.respondError(w, http.StatusUnprocessableEntity, "Key reuse mismatch", method, endpoint)
		case errors.Is(err, domain.ErrAccountNotFound):
			h.respondError(w, http.StatusNotFound, "Account not found", method, endpoint)
		case errors.Is(err, domain.ErrConflict):
			h.respondError(w, http.StatusConflict, "Request in progress", method, endpoint)
		default:
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("transfer request failed")
			h.respondError(w, http.StatusInternalServerError, "Internal error", method, endpoint)
		}
		return
	}

	code := http.StatusCreated
	if replayed {
		code = http.StatusOK
	}
	h.respondJSON(w, code, models.TransferResponse{TransferResult: *res, Replayed: replayed}, method, endpoint)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "GET", "/accounts/{id}"
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid account id", method, endpoint)
		return
	}

	acc, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			h.respondError(w, http.StatusNotFound, "Not Found", method, endpoint)
			return
		}
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("account_id", id.String()).Msg("account lookup failed")
		h.respondError(w, http.StatusInternalServerError, "Internal error", method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, models.AccountFrom(acc), method, endpoint)
}

func (h *Handler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "POST", "/recurring/run"
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	rep, err := h.generator.RunBatchReport(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Unable to load recurring templates", method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, runResponse(rep), method, endpoint)
}

func (h *Handler) RunTemplate(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "POST", "/recurring/{id}/run"
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid template id", method, endpoint)
		return
	}

	rep, err := h.generator.RunOneReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			h.respondError(w, http.StatusNotFound, "Template not found", method, endpoint)
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Unable to load recurring template", method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, runResponse(rep), method, endpoint)
}

func runResponse(rep recurring.Report) models.RunResponse {
	return models.RunResponse{
		Generated:         rep.Generated,
		Templates:         rep.Templates,
		Duplicates:        rep.Duplicates,
		Failed:            rep.Failed,
		WatermarkFailures: rep.WatermarkFailures,
	}
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	metrics.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, models.ErrorResponse{Error: msg}, method, endpoint)
}
