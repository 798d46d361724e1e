package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autorca/autorca-core/internal/cache"
	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/engine"
	"github.com/autorca/autorca-core/internal/models"
	"github.com/autorca/autorca-core/internal/summary"
	"github.com/autorca/autorca-core/internal/utils"
)

// Handler serves the analysis endpoints. Identical requests hit the result
// cache instead of recomputing; the engine is deterministic, so cached
// results never go stale within their TTL.
type Handler struct {
	engine     *engine.Engine
	summarizer summary.Summarizer
	cache      cache.Provider
	cacheTTL   time.Duration
	latency    *utils.LatencyTracker
	logger     *slog.Logger
}

// NewHandler wires the analysis engine into the HTTP surface.
func NewHandler(eng *engine.Engine, summarizer summary.Summarizer, provider cache.Provider, cfg config.CacheConfig, logger *slog.Logger) *Handler {
	if provider == nil || !cfg.Enabled {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:     eng,
		summarizer: summarizer,
		cache:      provider,
		cacheTTL:   cfg.ResultTTL,
		latency:    utils.NewLatencyTracker(512),
		logger:     logger,
	}
}

// Routes mounts the endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.health)
	r.Route("/api/v1/rca", func(r chi.Router) {
		r.Post("/run", h.run)
		r.Post("/summarize", h.summarize)
		r.Get("/stats", h.stats)
	})
}

// runRequest is the JSON analysis request body. Config, when present,
// overrides the server's analysis settings for this request only.
type runRequest struct {
	Events  []models.Event         `json:"events"`
	Spans   []models.Span          `json:"spans,omitempty"`
	Symptom models.Symptom         `json:"symptom"`
	Config  *config.AnalysisConfig `json:"config,omitempty"`
}

type summarizeResponse struct {
	Result  *models.RunResult `json:"result"`
	Summary string            `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, req, err := decodeRunRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	key := requestDigest(body)
	if cached, err := h.cache.Get(r.Context(), key); err == nil {
		h.logger.Debug("serving cached result", slog.String("key", key))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	eng, err := h.engineFor(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := eng.Run(r.Context(), engine.RunInput{
		Events:  req.Events,
		Spans:   req.Spans,
		Symptom: req.Symptom,
	})
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	h.latency.Observe(time.Since(started))

	payload, err := json.Marshal(result)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "encode result"})
		return
	}
	if err := h.cache.Set(r.Context(), key, payload, h.cacheTTL); err != nil {
		h.logger.Warn("result cache write failed", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	_, req, err := decodeRunRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	eng, err := h.engineFor(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := eng.Run(r.Context(), engine.RunInput{
		Events:  req.Events,
		Spans:   req.Spans,
		Symptom: req.Symptom,
	})
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	text, err := h.summarizer.Summarize(r.Context(), result)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	h.latency.Observe(time.Since(started))

	writeJSON(w, http.StatusOK, summarizeResponse{Result: result, Summary: text})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": h.latency.Count(),
		"p50_ms":   h.latency.Percentile(50).Milliseconds(),
		"p95_ms":   h.latency.Percentile(95).Milliseconds(),
		"p99_ms":   h.latency.Percentile(99).Milliseconds(),
	})
}

// engineFor returns the shared engine, or a transient one when the request
// overrides the analysis configuration. Construction validates the override.
func (h *Handler) engineFor(req runRequest) (*engine.Engine, error) {
	if req.Config == nil {
		return h.engine, nil
	}
	return engine.New(*req.Config, h.logger)
}

func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, utils.ErrSymptom):
		status = http.StatusBadRequest
	case errors.Is(err, utils.ErrResourceLimit):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrConfiguration):
		status = http.StatusInternalServerError
	}
	h.logger.Warn("analysis run failed",
		slog.Int("status", status),
		slog.String("error", err.Error()))
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeRunRequest(r *http.Request) ([]byte, runRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, runRequest{}, fmt.Errorf("read request body: %w", err)
	}
	var req runRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, runRequest{}, fmt.Errorf("invalid JSON request body: %w", err)
	}
	if req.Symptom.Service == "" {
		return nil, runRequest{}, errors.New("symptom.service is required")
	}
	return body, req, nil
}

// requestDigest keys the result cache by the exact request bytes.
func requestDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return "rca:run:" + hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
