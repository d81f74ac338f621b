// Package httpapi serves the store's query surface: bootstrap catch-up for
// joining clients, direct message insertion, the administrative reset, and
// the health probe.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"chat-relay/domain"
	relayerrors "chat-relay/errors"
	"chat-relay/observability"
	s "chat-relay/services"
)

type API struct {
	log        *slog.Logger
	service    s.IChatService
	monitoring *observability.MonitoringManager
	fetchLimit int
	corsOrigin string
}

// New builds the query API. fetchLimit caps GET /messages (default bound
// for the bootstrap catch-up); corsOrigin is echoed to browsers.
func New(log *slog.Logger, service s.IChatService, monitoring *observability.MonitoringManager, fetchLimit int, corsOrigin string) *API {
	return &API{log: log, service: service, monitoring: monitoring, fetchLimit: fetchLimit, corsOrigin: corsOrigin}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(a.cors)

	r.Get("/healthz", a.health)
	r.Route("/messages", func(r chi.Router) {
		r.Get("/", a.listMessages)
		r.Post("/", a.postMessage)
		r.Delete("/", a.deleteMessages)
	})
	return r
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "ok",
		"stats":  a.monitoring.Snapshot(),
	}
	code := http.StatusOK
	if err := a.service.Health(); err != nil {
		a.log.Error("Health probe failed", "err", err)
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	a.respond(w, code, status)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	limit := a.fetchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(parsed, a.fetchLimit)
	}

	messages, err := a.service.Recent(limit)
	if err != nil {
		a.log.Error("Listing messages failed", "err", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	// A fresh log serves [] rather than null.
	a.respond(w, http.StatusOK, lo.Ternary(messages != nil, messages, []domain.Message{}))
}

func (a *API) postMessage(w http.ResponseWriter, r *http.Request) {
	var candidate domain.Candidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	stored, err := a.service.PostMessage(candidate)
	switch {
	case errors.Is(err, relayerrors.ErrEmptyUser), errors.Is(err, relayerrors.ErrEmptyText):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		a.log.Error("Storing message failed", "err", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
	default:
		a.respond(w, http.StatusCreated, stored)
	}
}

func (a *API) deleteMessages(w http.ResponseWriter, r *http.Request) {
	if err := a.service.Reset(); err != nil {
		a.log.Error("Reset failed", "err", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Error("Response encoding failed", "err", err)
	}
}
