package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"giveaway-bot/internal/model"
	"giveaway-bot/internal/repository"
)

// registry is the in-memory giveaway set backed by a Store.
// Committed records are never modified; changes are made on a clone and
// committed as a whole, so readers may hold a record without locking.
type registry struct {
	mu     sync.Mutex
	store  repository.Store
	byID   map[int64]*model.Giveaway
	order  []int64
	lastID int64
}

func newRegistry(store repository.Store, loaded []*model.Giveaway) *registry {
	r := &registry{
		store: store,
		byID:  make(map[int64]*model.Giveaway, len(loaded)),
		order: make([]int64, 0, len(loaded)),
	}
	for _, g := range loaded {
		r.byID[g.ID] = g
		r.order = append(r.order, g.ID)
		r.lastID = max(r.lastID, g.ID)
	}
	return r
}

// nextID returns a fresh id. Ids are never reused, even if the create that
// reserved one fails to persist.
func (r *registry) nextID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	return r.lastID
}

func (r *registry) get(id int64) (*model.Giveaway, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[id]
	return g, ok
}

// list returns the committed records ordered by id.
func (r *registry) list() []*model.Giveaway {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// commit installs g and saves the whole set. On save failure the previous
// record (or its absence) is restored.
func (r *registry) commit(ctx context.Context, g *model.Giveaway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.byID[g.ID]
	r.byID[g.ID] = g
	if !existed {
		r.order = append(r.order, g.ID)
	}

	if err := r.store.Save(ctx, r.snapshotLocked()); err != nil {
		if existed {
			r.byID[g.ID] = prev
		} else {
			delete(r.byID, g.ID)
			r.order = r.order[:len(r.order)-1]
		}
		if !errors.Is(err, repository.ErrPersistence) {
			err = fmt.Errorf("%w: %w", repository.ErrPersistence, err)
		}
		return err
	}
	return nil
}

func (r *registry) snapshotLocked() []*model.Giveaway {
	out := make([]*model.Giveaway, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	slices.SortFunc(out, func(a, b *model.Giveaway) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
