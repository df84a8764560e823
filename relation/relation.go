/*
Package relation is the entity-name-driven CRUD orchestrator.

PURPOSE:
  A Relation is one entity (table or view) together with the caller's
  current filter state and the last result set. Every mutation is followed
  by a full re-query under the current filters so the cached results never
  lag more than one query behind the store.

FILTER STATE:
  filters   advanced per-column conditions (query.Spec)
  quick     free-text prefix on the entity's designated column
  defaults  the filters Reset returns to; IsDefault compares against them

ERRORS:
  Everything returned from a Relation carries an inventory.Kind. Errors
  without one are wrapped in inventory.StoreError at this boundary.

CHANGE NOTIFICATION:
  Committed mutations are published on an inventory.Feed. Interested
  parties subscribe; the Relation keeps no list of consumers.

SEE ALSO:
  - workspace.go:  one Relation per entity, wired to a shared feed
  - query/:        predicate compiler
  - store/sqlite/: the Store implementation
*/
package relation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/logger"
	"github.com/benchtrack/inventory/query"
)

// Store is the storage the orchestrator needs.
type Store interface {
	Search(ctx context.Context, def *inventory.EntityDef, where query.Where) ([]inventory.Record, error)
	Create(ctx context.Context, entity inventory.Entity, rows []inventory.Fields) ([]inventory.Key, error)
	Update(ctx context.Context, entity inventory.Entity, key inventory.Key, f inventory.Fields) error
	Delete(ctx context.Context, entity inventory.Entity, key inventory.Key) error
	AdvanceLot(ctx context.Context, id int64, to inventory.LotState, date inventory.Date, initials string) (inventory.ConsumableLot, error)
}

// Relation orchestrates searches and mutations for one entity.
type Relation struct {
	def      *inventory.EntityDef
	store    Store
	compiler *query.Compiler
	strategy inventory.CreateStrategy
	feed     *inventory.Feed
	log      *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	filters  query.Spec
	defaults query.Spec
	quick    string
	results  []inventory.Record
	stale    bool
}

// Option configures a Relation.
type Option func(*Relation)

func WithCompiler(c *query.Compiler) Option {
	return func(r *Relation) { r.compiler = c }
}

// WithStrategy sets how Create expands one request into rows.
func WithStrategy(s inventory.CreateStrategy) Option {
	return func(r *Relation) { r.strategy = s }
}

func WithFeed(f *inventory.Feed) Option {
	return func(r *Relation) { r.feed = f }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Relation) { r.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relation) { r.now = now }
}

// WithDefaults sets the default filters. They are also the initial filters.
func WithDefaults(spec query.Spec) Option {
	return func(r *Relation) {
		r.defaults = spec.Clone()
		r.filters = spec.Clone()
	}
}

// New returns a relation over entity. The result set is empty until the
// first Refresh or Search.
func New(entity inventory.Entity, store Store, opts ...Option) *Relation {
	r := &Relation{
		def:      entity.Def(),
		store:    store,
		compiler: query.NewCompiler(),
		strategy: inventory.SingleRow{},
		feed:     inventory.NewFeed(),
		log:      logger.Nop(),
		now:      time.Now,
		stale:    true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent("relation").WithEntity(string(entity))
	return r
}

func (r *Relation) Entity() inventory.Entity { return r.def.Name }

func (r *Relation) Def() *inventory.EntityDef { return r.def }

// Columns returns the ordered column names.
func (r *Relation) Columns() []inventory.Column { return r.def.ColumnNames() }

// =============================================================================
// SEARCH
// =============================================================================

// Search replaces both filter and quick search, then re-queries. On error
// the previous state is kept.
func (r *Relation) Search(ctx context.Context, spec query.Spec, quick string) ([]inventory.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searchLocked(ctx, spec, quick)
}

// SetFilters replaces the advanced filters and re-applies the current
// quick search.
func (r *Relation) SetFilters(ctx context.Context, spec query.Spec) ([]inventory.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searchLocked(ctx, spec, r.quick)
}

// SetQuickSearch replaces the quick search value.
func (r *Relation) SetQuickSearch(ctx context.Context, quick string) ([]inventory.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searchLocked(ctx, r.filters, quick)
}

// Refresh re-runs the current search.
func (r *Relation) Refresh(ctx context.Context) ([]inventory.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searchLocked(ctx, r.filters, r.quick)
}

// Results returns the cached snapshot from the last search.
func (r *Relation) Results() []inventory.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.Record, len(r.results))
	copy(out, r.results)
	return out
}

// Stale reports whether a committed change may have outdated Results.
func (r *Relation) Stale() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

// MarkStale flags the cached results as outdated.
func (r *Relation) MarkStale() {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
}

func (r *Relation) Filters() query.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filters.Clone()
}

func (r *Relation) QuickSearch() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quick
}

func (r *Relation) searchLocked(ctx context.Context, spec query.Spec, quick string) ([]inventory.Record, error) {
	where, err := r.compiler.Compile(r.def, spec, quick)
	if err != nil {
		return nil, boundary("search", err)
	}
	rows, err := r.store.Search(ctx, r.def, where)
	if err != nil {
		return nil, boundary("search", err)
	}
	r.filters = spec.Clone()
	r.quick = quick
	r.results = rows
	r.stale = false

	out := make([]inventory.Record, len(rows))
	copy(out, rows)
	return out, nil
}

// =============================================================================
// DEFAULT FILTERS
// =============================================================================

// SetDefaults stores spec as the default filters after checking it compiles.
func (r *Relation) SetDefaults(spec query.Spec) error {
	if _, err := r.compiler.Compile(r.def, spec, ""); err != nil {
		return boundary("set defaults", err)
	}
	r.mu.Lock()
	r.defaults = spec.Clone()
	r.mu.Unlock()
	return nil
}

// IsDefault reports whether the current filters equal the defaults and no
// quick search is active.
func (r *Relation) IsDefault() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quick == "" && r.filters.Equal(r.defaults)
}

// Reset restores the default filters, clears the quick search and
// re-queries.
func (r *Relation) Reset(ctx context.Context) ([]inventory.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searchLocked(ctx, r.defaults, "")
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create inserts the rows the strategy derives from f.
func (r *Relation) Create(ctx context.Context, f inventory.Fields) ([]inventory.Key, error) {
	if err := inventory.ValidateDates(r.def, f); err != nil {
		return nil, err
	}
	rows, err := r.strategy.Expand(r.def, f)
	if err != nil {
		return nil, boundary("create", err)
	}
	keys, err := r.store.Create(ctx, r.def.Name, rows)
	if err != nil {
		r.log.Debug().Err(err).Str("kind", inventory.KindOf(err).String()).Msg("create rejected")
		return nil, boundary("create", err)
	}
	r.log.Debug().Int("rows", len(keys)).Str("strategy", r.strategy.Name()).Msg("created")
	return keys, r.committed(ctx, inventory.OpCreate, keys...)
}

// Update changes the row matching key. The key is the product name for
// products and the surrogate id for lots and events.
func (r *Relation) Update(ctx context.Context, key inventory.Key, f inventory.Fields) error {
	if err := inventory.ValidateDates(r.def, f); err != nil {
		return err
	}
	if err := r.store.Update(ctx, r.def.Name, key, f); err != nil {
		r.log.Debug().Err(err).Str("key", key.String()).Msg("update rejected")
		return boundary("update", err)
	}
	r.log.Debug().Str("key", key.String()).Msg("updated")
	return r.committed(ctx, inventory.OpUpdate, key)
}

// Delete removes the row matching key.
func (r *Relation) Delete(ctx context.Context, key inventory.Key) error {
	if err := r.store.Delete(ctx, r.def.Name, key); err != nil {
		r.log.Debug().Err(err).Str("key", key.String()).Msg("delete rejected")
		return boundary("delete", err)
	}
	r.log.Debug().Str("key", key.String()).Msg("deleted")
	return r.committed(ctx, inventory.OpDelete, key)
}

// AdvanceLot moves a lot to the next lifecycle state. Only valid on the
// consumable lot relation.
func (r *Relation) AdvanceLot(ctx context.Context, id int64, to inventory.LotState, date inventory.Date, initials string) (inventory.ConsumableLot, error) {
	if r.def.Name != inventory.EntityConsumableLot {
		return inventory.ConsumableLot{}, &inventory.ValidationError{Entity: r.def.Name, Reason: "only lots have a lifecycle"}
	}
	lot, err := r.store.AdvanceLot(ctx, id, to, date, initials)
	if err != nil {
		r.log.Debug().Err(err).Int64("id", id).Stringer("to", to).Msg("advance rejected")
		return inventory.ConsumableLot{}, boundary("advance lot", err)
	}
	r.log.Debug().Int64("id", id).Stringer("to", to).Msg("advanced")
	return lot, r.committed(ctx, inventory.OpUpdate, lot.Key())
}

// committed publishes the change and refreshes the cached results. The
// write is durable by now, so a failed refresh only leaves the relation
// stale for the next read.
func (r *Relation) committed(ctx context.Context, op inventory.Op, keys ...inventory.Key) error {
	r.feed.Publish(inventory.NewChange(r.def.Name, op, r.now(), keys...))
	if _, err := r.Refresh(ctx); err != nil {
		r.MarkStale()
		r.log.WithError(err).Warn().Str("op", string(op)).Msg("refresh after commit failed")
	}
	return nil
}

// boundary guarantees a kind on every error leaving the orchestrator.
func boundary(op string, err error) error {
	if err == nil || inventory.KindOf(err) != inventory.KindUnknown {
		return err
	}
	var se *inventory.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &inventory.StoreError{Op: op, Err: err}
}
