// Package handlers implements the admin HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/droprelay/droprelay/internal/httputil"
	"github.com/droprelay/droprelay/internal/logging"
	"github.com/droprelay/droprelay/internal/lookup"
	"github.com/droprelay/droprelay/internal/models"
	"github.com/droprelay/droprelay/internal/repository"
	"github.com/droprelay/droprelay/internal/service"
)

type Handler struct {
	service *service.Service
	logger  *logging.Logger
}

func NewHandler(svc *service.Service, logger *logging.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListRules handles GET /api/v1/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp, err := h.service.ListRules(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list rules", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// CreateRule handles POST /api/v1/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.service.CreateRule(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRule):
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrRuleExists), errors.Is(err, repository.ErrRuleConflict):
			httputil.WriteError(w, http.StatusConflict, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "failed to create rule", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to create rule")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rule)
}

// DeleteRule handles DELETE /api/v1/rules/{name}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/rules/")
	if name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "rule name required")
		return
	}

	if err := h.service.DeleteRule(r.Context(), name); err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "rule not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to delete rule", "name", name, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ReloadRules handles POST /api/v1/rules/reload
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	warnings, err := h.service.ReloadRules(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to reload rules", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to reload rules")
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "reloaded",
		"warnings": warnings,
	})
}

// GetWatermark handles GET /api/v1/watermark
func (h *Handler) GetWatermark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"watermark": h.service.Watermark()})
}

// Lookup handles GET /api/v1/lookup?subject=...&query=...
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	subject := r.URL.Query().Get("subject")
	query := r.URL.Query().Get("query")
	if subject == "" || query == "" {
		httputil.WriteError(w, http.StatusBadRequest, "subject and query are required")
		return
	}

	match, err := h.service.Lookup(r.Context(), query, subject)
	if err != nil {
		switch {
		case errors.Is(err, lookup.ErrNoConfidentMatch):
			httputil.WriteError(w, http.StatusNotFound, "no confident match")
		case errors.Is(err, lookup.ErrSourceUnavailable):
			httputil.WriteError(w, http.StatusBadGateway, "record source unavailable")
		default:
			h.logger.ErrorContext(r.Context(), "lookup failed", "subject", subject, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "lookup failed")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":  match.Record.DisplayName,
		"score": match.Record.Score,
		"ratio": match.Ratio,
	})
}
