package submission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"p9e.in/siteprogress/models"
)

// Registry keeps open drafts between requests. A draft that is not touched
// for the TTL is forgotten.
type Registry struct {
	drafts *cache.Cache
	ttl    time.Duration
}

// NewRegistry creates a Registry with the given idle TTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Registry{drafts: cache.New(ttl, ttl/2), ttl: ttl}
}

// Put stores d under its id.
func (r *Registry) Put(d *Draft) {
	r.drafts.Set(d.ID().String(), d, r.ttl)
}

// Get returns the draft and refreshes its TTL.
func (r *Registry) Get(id uuid.UUID) (*Draft, error) {
	v, ok := r.drafts.Get(id.String())
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, models.ErrNotFound)
	}
	d := v.(*Draft)
	r.drafts.Set(id.String(), d, r.ttl)
	return d, nil
}

// Delete forgets a draft.
func (r *Registry) Delete(id uuid.UUID) {
	r.drafts.Delete(id.String())
}

// Len returns the number of drafts held, expired ones included until the
// next cleanup.
func (r *Registry) Len() int { return r.drafts.ItemCount() }
