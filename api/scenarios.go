/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	bench data. Every row goes through the relation workspace, so the same
	invariant checks, strategies and change notifications apply as for a
	user's own edits.

AVAILABLE SCENARIOS:

	gloves-ledger: non-consumable ledger, balance at the reorder threshold
	reagent-lots:  consumable lots in each lifecycle state
	full-bench:    both, plus one out-of-stock product of each kind

HOW SCENARIOS WORK:
 1. Reset the store (clear all data, restart ids)
 2. Mark every relation stale
 3. Create products
 4. Create lots and advance them, append ledger events

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "gloves-ledger"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and error mapping
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/benchtrack/inventory/inventory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "gloves-ledger",
		Name:        "Gloves Ledger",
		Description: "Non-consumable gloves received and partly opened; balance 4 with alert 5",
	},
	{
		ID:          "reagent-lots",
		Name:        "Reagent Lots",
		Description: "Consumable reagent with one received, one opened and one finished lot",
	},
	{
		ID:          "full-bench",
		Name:        "Full Bench",
		Description: "Gloves and reagent plus one out-of-stock product of each kind",
	},
}

var scenarioLoaders = map[string]func(*Handler, context.Context) error{
	"gloves-ledger": (*Handler).loadGlovesLedgerScenario,
	"reagent-lots":  (*Handler).loadReagentLotsScenario,
	"full-bench":    (*Handler).loadFullBenchScenario,
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario": current})
}

// LoadScenario resets the store and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		h.writeError(w, r, &inventory.ValidationError{Field: "scenario_id", Reason: "unknown scenario", Value: req.ScenarioID})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := load(h, ctx); err != nil {
		h.writeError(w, r, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}
	h.currentScenario = req.ScenarioID

	h.log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// reset clears the store and marks every relation stale. Callers hold h.mu.
func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.currentScenario = ""
	h.Workspace.Invalidate(h.now())
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadGlovesLedgerScenario(ctx context.Context) error {
	if err := h.createProduct(ctx, "Gloves-M", "box", "Nitrile gloves, medium", false, 5); err != nil {
		return err
	}
	// 10 received, 6 opened: balance 4, at or below alert 5.
	if err := h.appendEvent(ctx, "Gloves-M", inventory.ActionReceived, 10, "2024-01-01", "JD"); err != nil {
		return err
	}
	return h.appendEvent(ctx, "Gloves-M", inventory.ActionOpened, 6, "2024-01-15", "JD")
}

func (h *Handler) loadReagentLotsScenario(ctx context.Context) error {
	if err := h.createProduct(ctx, "Reagent-A", "bottle", "Buffer reagent A, 500 mL", true, 1); err != nil {
		return err
	}

	finished, err := h.receiveLot(ctx, "Reagent-A", "RA-001", "2024-01-01", "2024-12-31")
	if err != nil {
		return err
	}
	if err := h.advanceLot(ctx, finished, inventory.StateOpened, "2024-02-01"); err != nil {
		return err
	}
	if err := h.advanceLot(ctx, finished, inventory.StateFinished, "2024-03-01"); err != nil {
		return err
	}

	opened, err := h.receiveLot(ctx, "Reagent-A", "RA-002", "2024-02-01", "2025-01-31")
	if err != nil {
		return err
	}
	if err := h.advanceLot(ctx, opened, inventory.StateOpened, "2024-03-01"); err != nil {
		return err
	}

	_, err = h.receiveLot(ctx, "Reagent-A", "RA-003", "2024-03-01", "2025-02-28")
	return err
}

func (h *Handler) loadFullBenchScenario(ctx context.Context) error {
	if err := h.loadGlovesLedgerScenario(ctx); err != nil {
		return err
	}
	if err := h.loadReagentLotsScenario(ctx); err != nil {
		return err
	}
	if err := h.createProduct(ctx, "Pipette-Tips", "rack", "200 uL filtered tips", true, 2); err != nil {
		return err
	}
	return h.createProduct(ctx, "Tape-2in", "roll", "Lab tape, 2 inch", false, 1)
}

// =============================================================================
// LOADER HELPERS
// =============================================================================

func (h *Handler) createProduct(ctx context.Context, name, unit, description string, consumable bool, alert int) error {
	flag := "no"
	if consumable {
		flag = "yes"
	}
	_, err := h.Workspace.Get(inventory.EntityProduct).Create(ctx, inventory.Fields{
		inventory.ColName:          name,
		inventory.ColUnitOfMeasure: unit,
		inventory.ColDescription:   description,
		inventory.ColStation:       "Bench 1",
		inventory.ColIsConsumable:  flag,
		inventory.ColAlert:         fmt.Sprint(alert),
		inventory.ColVendor:        "Demo Supply Co.",
	})
	return err
}

func (h *Handler) appendEvent(ctx context.Context, product string, action inventory.Action, qty int, date, initials string) error {
	_, err := h.Workspace.Get(inventory.EntityNonConsumableEvent).Create(ctx, inventory.Fields{
		inventory.ColProductName: product,
		inventory.ColQuantity:    fmt.Sprint(qty),
		inventory.ColDate:        date,
		inventory.ColInitials:    initials,
		inventory.ColAction:      string(action),
	})
	return err
}

// receiveLot creates a single lot regardless of the configured strategy.
func (h *Handler) receiveLot(ctx context.Context, product, lot, received, expiry string) (int64, error) {
	keys, err := h.Workspace.Get(inventory.EntityConsumableLot).Create(ctx, inventory.Fields{
		inventory.ColProductName:      product,
		inventory.ColLot:              lot,
		inventory.ColReceivedDate:     received,
		inventory.ColReceivedInitials: "JD",
		inventory.ColExpiryDate:       expiry,
	})
	if err != nil {
		return 0, err
	}
	return keys[0].ID, nil
}

func (h *Handler) advanceLot(ctx context.Context, id int64, to inventory.LotState, date string) error {
	_, err := h.Workspace.Get(inventory.EntityConsumableLot).AdvanceLot(ctx, id, to, inventory.Date(date), "JD")
	return err
}
