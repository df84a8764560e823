package inventory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpReset  Op = "reset"
)

// Change describes one committed mutation. A reset has no Entity and
// concerns every entity.
type Change struct {
	ID     uuid.UUID `json:"id"`
	Entity Entity    `json:"entity"`
	Op     Op        `json:"op"`
	Keys   []Key     `json:"keys,omitempty"`
	At     time.Time `json:"at"`
}

func NewChange(entity Entity, op Op, at time.Time, keys ...Key) Change {
	return Change{ID: uuid.New(), Entity: entity, Op: op, Keys: keys, At: at}
}

// Feed fans out committed changes to subscribers. Delivery is synchronous
// and in subscription order.
type Feed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
	order  []int
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]func(Change))}
}

// Subscribe registers fn and returns a function that removes it.
func (f *Feed) Subscribe(fn func(Change)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.order = append(f.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			for i, o := range f.order {
				if o == id {
					f.order = append(f.order[:i], f.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (f *Feed) Publish(c Change) {
	f.mu.RLock()
	fns := make([]func(Change), 0, len(f.order))
	for _, id := range f.order {
		fns = append(fns, f.subs[id])
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Len returns the number of live subscribers.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
