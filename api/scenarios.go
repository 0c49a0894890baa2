/*
scenarios.go - Demo scenario endpoints

PURPOSE:
  Lets the dashboard switch between the embedded demo datasets. Loading
  resets the store, imports the scenario and recomputes, so the next view
  request sees the new data.

USAGE VIA API:
	GET  /api/scenarios
	GET  /api/scenarios/current
	POST /api/scenarios/load
	{"scenario_id": "spring-team"}

NOTE:
	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - scenarios/scenarios.go: Fixture catalog and loader
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/sales"
	"github.com/astropanel/sales-engine/scenarios"
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	infos, err := scenarios.List()
	if err != nil {
		writeDomainError(w, "Failed to list scenarios", err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	info, _, err := scenarios.Get(current)
	if err != nil {
		writeDomainError(w, "Failed to read scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if err := h.SeedScenario(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errNoImporter) {
			writeError(w, http.StatusNotImplemented, "Store does not support scenario loading", nil)
			return
		}
		writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

var errNoImporter = errors.New("store does not support import")

// SeedScenario resets the store to scenario id and recomputes.
func (h *Handler) SeedScenario(ctx context.Context, id string) error {
	importer, ok := h.Store.(sales.Importer)
	if !ok {
		return errNoImporter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := scenarios.Load(ctx, importer, id)
	if err != nil {
		h.currentScenario = ""
		return err
	}
	h.currentScenario = info.ID
	h.Logger.Info("scenario loaded", zap.String("scenario", info.ID))

	return h.recompute(ctx)
}
