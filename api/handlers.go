/*
handlers.go - HTTP API handlers for the inventory core

PURPOSE:
  Exposes the inventory core to the presentation layer over local HTTP.
  Handles request/response and JSON, and delegates everything else to the
  relation workspace and the stock engine.

ENDPOINTS:
  Schema:
    GET    /api/entities                          List entities and views
    GET    /api/entities/{entity}/columns         Columns, types, predicates

  Relations:
    GET    /api/entities/{entity}/rows            Cached result set
    POST   /api/entities/{entity}/rows            Create (strategy applies)
    PUT    /api/entities/{entity}/rows/{key}      Update by key
    DELETE /api/entities/{entity}/rows/{key}      Delete by key
    POST   /api/entities/{entity}/search          Replace filters and quick search
    PUT    /api/entities/{entity}/filters         Replace filters only
    PUT    /api/entities/{entity}/quick           Replace quick search only
    POST   /api/entities/{entity}/reset           Back to default filters

  Lots:
    POST   /api/lots/{id}/advance                 Next lifecycle state

  Stock:
    GET    /api/stock/levels[/{product}]
    GET    /api/stock/available?kind=
    GET    /api/stock/out-of-stock[?kind=]
    GET    /api/stock/reorder
    GET    /api/stock/expiring[?within=30]
    GET    /api/stock/summary

ERROR HANDLING:
  Every error body is {kind, error, details}. Status by kind:
  - 400: validation, unknown_predicate
  - 404: unknown product on /stock/levels/{product}
  - 409: invalid_transition, ledger_underflow, duplicate_key, stale_write
  - 422: referential
  - 503: busy (retry later)
  - 500: unknown

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benchtrack/inventory/factory"
	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/logger"
	"github.com/benchtrack/inventory/query"
	"github.com/benchtrack/inventory/relation"
	"github.com/benchtrack/inventory/stock"
	"github.com/benchtrack/inventory/store/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// defaultExpiringWithin is the look-ahead of /stock/expiring in days.
const defaultExpiringWithin = 30

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Workspace *relation.Workspace
	Stock     *stock.Engine
	Filters   *factory.FilterFactory

	log *logger.Logger
	now func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, ws *relation.Workspace, engine *stock.Engine, log *logger.Logger) *Handler {
	return &Handler{
		Store:     store,
		Workspace: ws,
		Stock:     engine,
		Filters:   factory.NewFilterFactory(),
		log:       log.WithComponent("api"),
		now:       time.Now,
	}
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCHEMA HANDLERS
// =============================================================================

// ListEntities returns every entity and view in schema order.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities := inventory.Entities()
	dtos := make([]EntityDTO, len(entities))
	for i, e := range entities {
		def := e.Def()
		dtos[i] = EntityDTO{
			Name:        string(def.Name),
			KeyColumn:   string(def.KeyColumn),
			QuickSearch: string(def.QuickSearch),
			ReadOnly:    def.ReadOnly,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListColumns returns the ordered columns of an entity.
func (h *Handler) ListColumns(w http.ResponseWriter, r *http.Request) {
	def, err := inventory.Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]ColumnDTO, len(def.Columns))
	for i, c := range def.Columns {
		preds := query.PredicatesFor(c.Type)
		names := make([]string, len(preds))
		for j, p := range preds {
			names[j] = string(p)
		}
		dtos[i] = ColumnDTO{
			Name:       string(c.Name),
			Type:       c.Type.String(),
			Writable:   c.Writable && !def.ReadOnly,
			Nullable:   c.Nullable,
			Predicates: names,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RELATION HANDLERS
// =============================================================================

// GetRows returns the cached result set, re-querying first when another
// relation's change may have outdated it.
func (h *Handler) GetRows(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.relation(w, r)
	if !ok {
		return
	}
	if rel.Stale() {
		if _, err := rel.Refresh(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.writeRows(w, http.StatusOK, rel)
}

// Search replaces filters and quick search.
// POST /api/entities/{entity}/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.relation(w, r)
	if !ok {
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_, spec, quick, err := h.Filters.ParseFilter(string(rel.Entity()), string(body))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := rel.Search(r.Context(), spec, quick); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRows(w, http.StatusOK, rel)
}

// SetFilters replaces the advanced filters and keeps the quick search.
// PUT /api/entities/{entity}/filters
func (h *Handler) SetFilters(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.relation(w, r)
	if !ok {
		return
	}
	var fj factory.FilterJSON
	if err := decodeBody(r, &fj); err != nil {
		h.writeError(w, r, err)
		return
	}
	if fj.Quick != "" {
		h.writeError(w, r, &inventory.ValidationError{Field: "quick", Reason: "use the quick endpoint to change the quick search"})
		return
	}
	spec, err := h.Filters.FromJSON(rel.Def(), fj)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := rel.SetFilters(r.Context(), spec); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRows(w, http.StatusOK, rel)
}

// SetQuickSearch replaces the quick search and keeps the filters.
// PUT /api/entities/{entity}/quick
func (h *Handler) SetQuickSearch(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.relation(w, r)
	if !ok {
		return
	}
	var req struct {
		Quick string `json:"quick"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := rel.SetQuickSearch(r.Context(), req.Quick); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRows(w, http.StatusOK, rel)
}

// ResetFilters restores the default filters.
// POST /api/entities/{entity}/reset
func (h *Handler) ResetFilters(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.relation(w, r)
	if !ok {
		return
	}
	if _, err := rel.Reset(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRows(w, http.StatusOK, rel)
}

// CreateRow inserts one request, which the relation's strategy may expand
// into several rows.
// POST /api/entities/{entity}/rows
func (h *Handler) CreateRow(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.relation(w, r)
	if !ok {
		return
	}
	var req FieldsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	keys, err := rel.Create(r.Context(), req.Fields())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := KeysResponse{Entity: string(rel.Entity()), Keys: make([]string, len(keys))}
	for i, k := range keys {
		resp.Keys[i] = k.String()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// UpdateRow changes the row matching the key.
// PUT /api/entities/{entity}/rows/{key}
func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.relation(w, r)
	if !ok {
		return
	}
	key, err := rel.Def().ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req FieldsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := rel.Update(r.Context(), key, req.Fields()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRows(w, http.StatusOK, rel)
}

// DeleteRow removes the row matching the key.
// DELETE /api/entities/{entity}/rows/{key}
func (h *Handler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.relation(w, r)
	if !ok {
		return
	}
	key, err := rel.Def().ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := rel.Delete(r.Context(), key); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRows(w, http.StatusOK, rel)
}

// AdvanceLot moves a lot to its next lifecycle state.
// POST /api/lots/{id}/advance
func (h *Handler) AdvanceLot(w http.ResponseWriter, r *http.Request) {
	lots := h.Workspace.Get(inventory.EntityConsumableLot)
	key, err := lots.Def().ParseKey(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req AdvanceLotRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := inventory.ParseLotState(req.To)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := inventory.ParseDate(req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lot, err := lots.AdvanceLot(r.Context(), key.ID, to, date, req.Initials)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lot":   lot,
		"state": lot.State().String(),
	})
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// StockLevels returns every product's stock level.
func (h *Handler) StockLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.Stock.Levels(r.Context(), nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// StockLevel returns one product's level.
// GET /api/stock/levels/{product}
func (h *Handler) StockLevel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "product")
	level, ok, err := h.Stock.Level(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Kind: "not_found", Error: "product " + strconv.Quote(name) + " does not exist"})
		return
	}
	writeJSON(w, http.StatusOK, level)
}

// Available returns the stock of one product kind.
// GET /api/stock/available?kind=consumable
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	kind, err := stock.ParseKind(r.URL.Query().Get("kind"))
	if err == nil && kind == "" {
		err = &inventory.ValidationError{Field: "kind", Reason: "is required"}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	levels, err := h.Stock.Available(r.Context(), kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// OutOfStock returns products with nothing available, optionally one kind.
func (h *Handler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	kind, err := stock.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	levels, err := h.Stock.OutOfStock(r.Context(), kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	levels, err := h.Stock.ReorderList(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// Expiring returns unfinished lots expiring within ?within= days.
func (h *Handler) Expiring(w http.ResponseWriter, r *http.Request) {
	within := defaultExpiringWithin
	if raw := r.URL.Query().Get("within"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, &inventory.ValidationError{Field: "within", Reason: "must be a whole number of days", Value: raw})
			return
		}
		within = n
	}
	lots, err := h.Stock.ExpiringLots(r.Context(), within)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if lots == nil {
		lots = []inventory.ConsumableLot{}
	}
	writeJSON(w, http.StatusOK, lots)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Stock.Summary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) relation(w http.ResponseWriter, r *http.Request) (*relation.Relation, bool) {
	rel, err := h.Workspace.Relation(chi.URLParam(r, "entity"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return rel, true
}

func (h *Handler) writeRows(w http.ResponseWriter, status int, rel *relation.Relation) {
	rows := rel.Results()
	if rows == nil {
		rows = []inventory.Record{}
	}
	writeJSON(w, status, RowsResponse{
		Entity:    string(rel.Entity()),
		Count:     len(rows),
		Rows:      rows,
		Filters:   h.Filters.ToJSON(rel.Filters(), rel.QuickSearch()),
		IsDefault: rel.IsDefault(),
	})
}

// writeError maps err to its status and writes the error body. Server-side
// failures are logged with the request ID.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.WithRequestID(middleware.GetReqID(r.Context())).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{
		Kind:    KindName(err),
		Error:   err.Error(),
		Details: details(err),
	})
}

// StatusOf maps the error taxonomy onto HTTP statuses.
func StatusOf(err error) int {
	switch inventory.KindOf(err) {
	case inventory.KindValidation:
		return http.StatusBadRequest
	case inventory.KindReferential:
		return http.StatusUnprocessableEntity
	case inventory.KindInvalidTransition, inventory.KindLedgerUnderflow,
		inventory.KindDuplicateKey, inventory.KindStaleWrite:
		return http.StatusConflict
	case inventory.KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindName is the kind string clients switch on. Unknown predicates are
// validation errors but get their own name.
func KindName(err error) string {
	if errors.Is(err, inventory.ErrUnknownPredicate) {
		return "unknown_predicate"
	}
	return inventory.KindOf(err).String()
}

func details(err error) map[string]string {
	var (
		ve    *inventory.ValidationError
		under *inventory.UnderflowError
		tr    *inventory.TransitionError
		busy  *inventory.BusyError
	)
	switch {
	case errors.As(err, &ve):
		d := make(map[string]string, len(ve.Details)+1)
		for k, v := range ve.Details {
			d[k] = v
		}
		if ve.Field != "" && ve.Reason != "" {
			d[ve.Field] = ve.Reason
		}
		if len(d) == 0 {
			return nil
		}
		return d
	case errors.As(err, &under):
		return map[string]string{
			"product":   under.Product,
			"received":  strconv.FormatInt(under.Received, 10),
			"opened":    strconv.FormatInt(under.Opened, 10),
			"requested": strconv.FormatInt(under.Requested, 10),
		}
	case errors.As(err, &tr):
		return map[string]string{"from": tr.From.String(), "to": tr.To.String()}
	case errors.As(err, &busy):
		return map[string]string{"attempts": strconv.Itoa(busy.Attempts)}
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &inventory.ValidationError{Reason: "unreadable request body: " + err.Error()}
	}
	return b, nil
}

// decodeBody reads a JSON body strictly into v.
func decodeBody(r *http.Request, v any) error {
	b, err := readBody(r)
	if err != nil {
		return err
	}
	return factory.Decode(b, v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
