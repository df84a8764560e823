package relation

import (
	"time"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/logger"
	"github.com/benchtrack/inventory/query"
)

// Workspace holds one Relation per entity, all publishing to one feed.
// When any relation commits a change, every other relation is marked stale.
type Workspace struct {
	feed        *inventory.Feed
	relations   map[inventory.Entity]*Relation
	unsubscribe func()
}

type workspaceConfig struct {
	lotStrategy inventory.CreateStrategy
	defaults    map[inventory.Entity]query.Spec
	compiler    *query.Compiler
	log         *logger.Logger
	now         func() time.Time
}

type WorkspaceOption func(*workspaceConfig)

// WithLotStrategy sets the create strategy of the consumable lot relation.
func WithLotStrategy(s inventory.CreateStrategy) WorkspaceOption {
	return func(c *workspaceConfig) { c.lotStrategy = s }
}

// WithDefaultFilters sets per-entity default filters.
func WithDefaultFilters(d map[inventory.Entity]query.Spec) WorkspaceOption {
	return func(c *workspaceConfig) { c.defaults = d }
}

func WithWorkspaceCompiler(comp *query.Compiler) WorkspaceOption {
	return func(c *workspaceConfig) { c.compiler = comp }
}

func WithWorkspaceLogger(l *logger.Logger) WorkspaceOption {
	return func(c *workspaceConfig) { c.log = l }
}

func WithWorkspaceClock(now func() time.Time) WorkspaceOption {
	return func(c *workspaceConfig) { c.now = now }
}

// NewWorkspace builds relations for every entity. Default filters are
// checked here so a bad configuration fails at startup.
func NewWorkspace(store Store, feed *inventory.Feed, opts ...WorkspaceOption) (*Workspace, error) {
	cfg := workspaceConfig{
		lotStrategy: inventory.SingleRow{},
		compiler:    query.NewCompiler(),
		log:         logger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := &Workspace{
		feed:      feed,
		relations: make(map[inventory.Entity]*Relation),
	}
	for _, entity := range inventory.Entities() {
		strategy := inventory.CreateStrategy(inventory.SingleRow{})
		if entity == inventory.EntityConsumableLot {
			strategy = cfg.lotStrategy
		}
		r := New(entity, store,
			WithCompiler(cfg.compiler),
			WithStrategy(strategy),
			WithFeed(feed),
			WithLogger(cfg.log),
			WithClock(cfg.now),
		)
		if spec, ok := cfg.defaults[entity]; ok {
			if err := r.SetDefaults(spec); err != nil {
				return nil, err
			}
			r.filters = spec.Clone()
		}
		w.relations[entity] = r
	}

	w.unsubscribe = feed.Subscribe(func(c inventory.Change) {
		for entity, r := range w.relations {
			if c.Entity == "" || entity != c.Entity {
				r.MarkStale()
			}
		}
	})
	return w, nil
}

// Relation returns the relation for a caller-supplied entity name.
func (w *Workspace) Relation(name string) (*Relation, error) {
	def, err := inventory.Lookup(name)
	if err != nil {
		return nil, err
	}
	return w.relations[def.Name], nil
}

// Get returns the relation for a known entity.
func (w *Workspace) Get(entity inventory.Entity) *Relation {
	return w.relations[entity]
}

func (w *Workspace) Feed() *inventory.Feed { return w.feed }

// Invalidate publishes a reset so every relation is marked stale. Call it
// after the store was changed behind the relations' back.
func (w *Workspace) Invalidate(at time.Time) {
	w.feed.Publish(inventory.NewChange("", inventory.OpReset, at))
}

// Close detaches the workspace from the feed.
func (w *Workspace) Close() {
	w.unsubscribe()
}
