// Package store wraps the B+ tree local index behind a concurrency-safe
// facade keyed by ring identifiers: an ordered index instead of a bare
// map, so range scans (used for key migration on join/leave) are
// native.
package store

import (
	"sort"
	"sync"

	"dhtcompare/internal/bptree"
	"dhtcompare/internal/logger"
	"dhtcompare/internal/ring"
)

// Resource is a single stored key-value pair, keyed by its ring
// identifier and carrying its raw (pre-hash) key for logging.
type Resource struct {
	ID    ring.ID
	Key   string
	Value string
}

// Store is a per-node local index: a B+ tree ordered by ring identifier,
// guarded by a RWMutex since bptree.Tree itself is not concurrency-safe.
type Store struct {
	lgr  logger.Logger
	mu   sync.RWMutex
	tree *bptree.Tree
}

// New builds an empty store backed by a B+ tree of the given order.
func New(order int, lgr logger.Logger) (*Store, error) {
	tree, err := bptree.New(order)
	if err != nil {
		return nil, err
	}
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	s := &Store{lgr: lgr, tree: tree}
	s.lgr.Debug("initialized local store")
	return s, nil
}

// Put inserts or updates the given resource, indexed by its ring ID.
func (s *Store) Put(r Resource) {
	s.mu.Lock()
	_, err := s.tree.Get(r.ID)
	s.tree.Put([]byte(r.ID), r)
	s.mu.Unlock()
	if err == nil {
		s.lgr.Debug("put: resource updated", logger.F("key", r.Key), logger.F("id", r.ID.ToHexString()))
	} else {
		s.lgr.Debug("put: resource inserted", logger.F("key", r.Key), logger.F("id", r.ID.ToHexString()))
	}
}

// Get retrieves the resource stored under id.
func (s *Store) Get(id ring.ID) (Resource, bool) {
	s.mu.RLock()
	v, err := s.tree.Get([]byte(id))
	s.mu.RUnlock()
	if err != nil {
		s.lgr.Debug("get: not found", logger.F("id", id.ToHexString()))
		return Resource{}, false
	}
	s.lgr.Debug("get: found", logger.F("id", id.ToHexString()))
	return v.(Resource), true
}

// Delete removes the resource stored under id, reporting whether it was
// present.
func (s *Store) Delete(id ring.ID) bool {
	s.mu.Lock()
	err := s.tree.Delete([]byte(id))
	s.mu.Unlock()
	found := err == nil
	s.lgr.Debug("delete", logger.F("id", id.ToHexString()), logger.F("found", found))
	return found
}

// Between returns every resource with identifier k in the ring interval
// (from, to]. Since the B+ tree is linearly ordered (not circular), a
// wrapped interval is served as two linear scans.
func (s *Store) Between(from, to ring.ID) []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zero := make(ring.ID, len(from))
	max := make(ring.ID, len(from))
	for i := range max {
		max[i] = 0xFF
	}

	var items []bptree.Item
	if from.Cmp(to) < 0 {
		items = s.tree.Range([]byte(from), []byte(to))
		// exclude 'from' itself: (from, to] is exclusive of from
		items = dropLeading(items, from)
	} else if from.Cmp(to) == 0 {
		items = s.tree.Range([]byte(zero), []byte(max))
	} else {
		// wrap-around: (from, max] U [zero, to]
		upper := s.tree.Range([]byte(from), []byte(max))
		upper = dropLeading(upper, from)
		lower := s.tree.Range([]byte(zero), []byte(to))
		items = append(upper, lower...)
	}

	out := make([]Resource, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value.(Resource))
	}
	s.lgr.Debug("between", logger.F("from", from.ToHexString()), logger.F("to", to.ToHexString()), logger.F("count", len(out)))
	return out
}

func dropLeading(items []bptree.Item, exclusive ring.ID) []bptree.Item {
	if len(items) > 0 && ring.ID(items[0].Key).Equal(exclusive) {
		return items[1:]
	}
	return items
}

// All returns a snapshot of every resource currently stored, sorted by
// ring identifier.
func (s *Store) All() []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Resource
	next := s.tree.IterItems()
	for {
		item, ok := next()
		if !ok {
			break
		}
		out = append(out, item.Value.(Resource))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Cmp(out[j].ID) < 0 })
	return out
}

// Len returns the number of resources currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}
