// Package network is the protocol-agnostic facade over a set of DHT
// nodes: it maintains the active-node registry, dispatches the four
// key-value operations to a node chosen at random (or pinned by the
// caller), and offers bulk and worker-pool-bounded concurrent variants.
// It is generic over the node type so the exact same facade code drives
// both a Chord and a Pastry overlay, through a type parameter instead
// of inheritance.
package network

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"dhtcompare/internal/dhtops"
	"dhtcompare/internal/logger"
	"dhtcompare/internal/ring"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrEmptyNetwork is returned by ConcurrentLookup and ConcurrentInsert on
// a facade with zero nodes. Insert, Lookup, Update and Delete do not
// return it; on an empty facade they report failure with zero hops.
var ErrEmptyNetwork = errors.New("network: empty network")

// ErrDuplicateName is returned by CreateNode/AddNode when the name is
// already registered.
var ErrDuplicateName = errors.New("network: duplicate node name")

// Node is the surface every overlay node type must expose to be driven
// by the facade. T is the concrete node type itself (e.g. *chord.Node),
// so Join can be expressed with its own concrete bootstrap parameter
// rather than an emptied-out interface.
type Node[T any] interface {
	dhtops.Router
	Name() string
	ID() ring.ID
	Active() bool
	RoutingTableSize() int
	Join(bootstrap T) int
	Leave() int
}

// Network holds a set of active T nodes indexed by name and by
// insertion order.
type Network[T Node[T]] struct {
	lgr      logger.Logger
	newNode  func(name string) (T, error)
	postJoin func(nodes []T)

	mu     sync.RWMutex
	nodes  []T
	byName map[string]T
	rng    *rand.Rand
}

// Option configures a Network at construction time.
type Option[T Node[T]] func(*Network[T])

// WithLogger attaches a structured logger to the facade.
func WithLogger[T Node[T]](lgr logger.Logger) Option[T] {
	return func(nw *Network[T]) { nw.lgr = lgr }
}

// WithPostJoin registers a hook BuildNetwork runs once after every
// requested node has joined — the facade's seam for driving Chord's
// configurable number of stabilize/fix_fingers rounds. Pastry has no
// analogous periodic maintenance step and simply omits this option.
func WithPostJoin[T Node[T]](fn func(nodes []T)) Option[T] {
	return func(nw *Network[T]) { nw.postJoin = fn }
}

// New builds an empty facade. newNode constructs (but does not add) a
// node of the concrete overlay type identified by name.
func New[T Node[T]](newNode func(name string) (T, error), opts ...Option[T]) *Network[T] {
	nw := &Network[T]{
		lgr:     &logger.NopLogger{},
		newNode: newNode,
		byName:  make(map[string]T),
		rng:     rand.New(rand.NewSource(1)),
	}
	for _, o := range opts {
		o(nw)
	}
	nw.lgr = nw.lgr.Named("network")
	return nw
}

// CreateNode constructs a new node but does not add it to the network.
func (nw *Network[T]) CreateNode(name string) (T, error) {
	var zero T
	nw.mu.RLock()
	_, exists := nw.byName[name]
	nw.mu.RUnlock()
	if exists {
		return zero, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	return nw.newNode(name)
}

// AddNode registers n, joining it as a seed if the network is empty or
// through a uniformly-random existing node otherwise. Returns the join
// hop count.
func (nw *Network[T]) AddNode(n T) (int, error) {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	if _, exists := nw.byName[n.Name()]; exists {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateName, n.Name())
	}

	var bootstrap T
	if len(nw.nodes) > 0 {
		bootstrap = nw.nodes[nw.rng.Intn(len(nw.nodes))]
	}
	hops := n.Join(bootstrap)

	nw.nodes = append(nw.nodes, n)
	nw.byName[n.Name()] = n
	nw.lgr.Info("node joined", logger.F("node", n.Name()), logger.F("hops", hops))
	return hops, nil
}

// RemoveNode removes the named node, returning (success, leave-hops). A
// missing name returns (false, 0), not an error.
func (nw *Network[T]) RemoveNode(name string) (bool, int) {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	n, ok := nw.byName[name]
	if !ok {
		return false, 0
	}
	hops := n.Leave()
	delete(nw.byName, name)
	for i, x := range nw.nodes {
		if x.Name() == name {
			nw.nodes = append(nw.nodes[:i], nw.nodes[i+1:]...)
			break
		}
	}
	nw.lgr.Info("node left", logger.F("node", name), logger.F("hops", hops))
	return true, hops
}

// BuildStats summarizes a BuildNetwork call.
type BuildStats struct {
	NodeCount int
	TotalHops int
	JoinHops  []int
}

// BuildNetwork sequentially creates and adds count nodes named
// prefix+index, then runs the facade's post-join hook (if any) once
// over the finished set.
func (nw *Network[T]) BuildNetwork(count int, prefix string) (BuildStats, error) {
	stats := BuildStats{JoinHops: make([]int, 0, count)}
	for i := 0; i < count; i++ {
		n, err := nw.CreateNode(fmt.Sprintf("%s%d", prefix, i))
		if err != nil {
			return stats, err
		}
		hops, err := nw.AddNode(n)
		if err != nil {
			return stats, err
		}
		stats.JoinHops = append(stats.JoinHops, hops)
		stats.TotalHops += hops
	}
	stats.NodeCount = count
	if nw.postJoin != nil {
		nw.postJoin(nw.Nodes())
	}
	return stats, nil
}

// GetNode returns the named node, if present.
func (nw *Network[T]) GetNode(name string) (T, bool) {
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	n, ok := nw.byName[name]
	return n, ok
}

// GetRandomNode returns a uniformly-random active node, or the zero
// value and false if the network is empty.
func (nw *Network[T]) GetRandomNode() (T, bool) {
	// exclusive lock: drawing from nw.rng mutates its state
	nw.mu.Lock()
	defer nw.mu.Unlock()
	var zero T
	if len(nw.nodes) == 0 {
		return zero, false
	}
	return nw.nodes[nw.rng.Intn(len(nw.nodes))], true
}

// Nodes returns a snapshot of every node, in insertion order.
func (nw *Network[T]) Nodes() []T {
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	out := make([]T, len(nw.nodes))
	copy(out, nw.nodes)
	return out
}

// NodesByID returns a snapshot sorted by ring identifier.
func (nw *Network[T]) NodesByID() []T {
	out := nw.Nodes()
	sort.Slice(out, func(i, j int) bool { return out[i].ID().Cmp(out[j].ID()) < 0 })
	return out
}

func (nw *Network[T]) entryNode(pinned []T) (T, error) {
	var zero T
	if len(pinned) > 0 {
		return pinned[0], nil
	}
	n, ok := nw.GetRandomNode()
	if !ok {
		return zero, ErrEmptyNetwork
	}
	return n, nil
}

// Insert dispatches an insert through from (if given) or a random node.
func (nw *Network[T]) Insert(key, value string, from ...T) (bool, int) {
	entry, err := nw.entryNode(from)
	if err != nil {
		return false, 0
	}
	return dhtops.Insert(entry, key, value)
}

// Lookup dispatches a lookup through from (if given) or a random node.
func (nw *Network[T]) Lookup(key string, from ...T) (string, bool, int) {
	entry, err := nw.entryNode(from)
	if err != nil {
		return "", false, 0
	}
	return dhtops.Lookup(entry, key)
}

// Update dispatches an update through from (if given) or a random node.
func (nw *Network[T]) Update(key, value string, from ...T) (bool, int) {
	entry, err := nw.entryNode(from)
	if err != nil {
		return false, 0
	}
	return dhtops.Update(entry, key, value)
}

// Delete dispatches a delete through from (if given) or a random node.
func (nw *Network[T]) Delete(key string, from ...T) (bool, int) {
	entry, err := nw.entryNode(from)
	if err != nil {
		return false, 0
	}
	return dhtops.Delete(entry, key)
}

// Item is a single key-value pair for bulk operations.
type Item struct {
	Key   string
	Value string
}

// BulkStats summarizes a sequential bulk operation.
type BulkStats struct {
	Total        int
	TotalHops    int
	SuccessCount int
}

// AverageHops returns TotalHops/Total, or 0 for an empty batch.
func (s BulkStats) AverageHops() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.TotalHops) / float64(s.Total)
}

// BulkInsert inserts items sequentially, each through a fresh random
// entry node unless from is provided.
func (nw *Network[T]) BulkInsert(items []Item, from ...T) BulkStats {
	stats := BulkStats{Total: len(items)}
	for _, it := range items {
		ok, hops := nw.Insert(it.Key, it.Value, from...)
		stats.TotalHops += hops
		if ok {
			stats.SuccessCount++
		}
	}
	return stats
}

// BulkLookup looks up keys sequentially, each through a fresh random
// entry node unless from is provided.
func (nw *Network[T]) BulkLookup(keys []string, from ...T) BulkStats {
	stats := BulkStats{Total: len(keys)}
	for _, k := range keys {
		_, ok, hops := nw.Lookup(k, from...)
		stats.TotalHops += hops
		if ok {
			stats.SuccessCount++
		}
	}
	return stats
}

// BulkDelete deletes keys sequentially, each through a fresh random
// entry node unless from is provided.
func (nw *Network[T]) BulkDelete(keys []string, from ...T) BulkStats {
	stats := BulkStats{Total: len(keys)}
	for _, k := range keys {
		ok, hops := nw.Delete(k, from...)
		stats.TotalHops += hops
		if ok {
			stats.SuccessCount++
		}
	}
	return stats
}

func workerCount(n, configured int) int {
	if configured <= 0 {
		configured = 32
	}
	if n < configured {
		return n
	}
	return configured
}

// ConcurrentLookup issues up to workerPoolSize lookups at a time across
// an errgroup-managed worker pool, each starting from a fresh random
// node. There is no shared mutable state across lookups; every mutation
// happens inside the owning node's own locked local store.
func (nw *Network[T]) ConcurrentLookup(ctx context.Context, keys []string, workerPoolSize int) (BulkStats, error) {
	if len(keys) == 0 {
		return BulkStats{}, nil
	}
	if _, ok := nw.GetRandomNode(); !ok {
		return BulkStats{}, ErrEmptyNetwork
	}

	sem := semaphore.NewWeighted(int64(workerCount(len(keys), workerPoolSize)))
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	stats := BulkStats{Total: len(keys)}

	for _, k := range keys {
		key := k
		if err := sem.Acquire(ctx, 1); err != nil {
			return stats, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			_, ok, hops := nw.Lookup(key)
			mu.Lock()
			stats.TotalHops += hops
			if ok {
				stats.SuccessCount++
			}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return stats, err
}

// ConcurrentInsert issues up to workerPoolSize inserts at a time across
// an errgroup-managed worker pool, each starting from a fresh random
// node.
func (nw *Network[T]) ConcurrentInsert(ctx context.Context, items []Item, workerPoolSize int) (BulkStats, error) {
	if len(items) == 0 {
		return BulkStats{}, nil
	}
	if _, ok := nw.GetRandomNode(); !ok {
		return BulkStats{}, ErrEmptyNetwork
	}

	sem := semaphore.NewWeighted(int64(workerCount(len(items), workerPoolSize)))
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	stats := BulkStats{Total: len(items)}

	for _, it := range items {
		item := it
		if err := sem.Acquire(ctx, 1); err != nil {
			return stats, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			ok, hops := nw.Insert(item.Key, item.Value)
			mu.Lock()
			stats.TotalHops += hops
			if ok {
				stats.SuccessCount++
			}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return stats, err
}

// Stats summarizes the network's current state.
type Stats struct {
	NodeCount            int
	TotalKeys            int
	KeysPerNodeMin       int
	KeysPerNodeMax       int
	KeysPerNodeAvg       float64
	RoutingTableSizeAvg  float64
	RoutingTableSizeList []int
}

// GetNetworkStats reports node count, total keys, per-node key min/max/
// mean, and the average routing-state size (unique finger-table nodes
// for Chord, routing-table-union-leaf-set nodes for Pastry).
func (nw *Network[T]) GetNetworkStats() Stats {
	nodes := nw.Nodes()
	if len(nodes) == 0 {
		return Stats{}
	}

	total := 0
	min, max := -1, -1
	routingSizes := make([]int, len(nodes))
	routingTotal := 0
	for i, n := range nodes {
		keyCount := n.LocalStore().Len()
		total += keyCount
		if min == -1 || keyCount < min {
			min = keyCount
		}
		if max == -1 || keyCount > max {
			max = keyCount
		}
		routingSizes[i] = n.RoutingTableSize()
		routingTotal += routingSizes[i]
	}

	return Stats{
		NodeCount:            len(nodes),
		TotalKeys:            total,
		KeysPerNodeMin:       min,
		KeysPerNodeMax:       max,
		KeysPerNodeAvg:       float64(total) / float64(len(nodes)),
		RoutingTableSizeAvg:  float64(routingTotal) / float64(len(nodes)),
		RoutingTableSizeList: routingSizes,
	}
}

// Clear marks every node inactive (via Leave), empties their local
// indexes, and resets the registry.
func (nw *Network[T]) Clear() {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	for _, n := range nw.nodes {
		if n.Active() {
			n.Leave()
		}
		for _, r := range n.LocalStore().All() {
			n.LocalStore().Delete(r.ID)
		}
	}
	nw.nodes = nil
	nw.byName = make(map[string]T)
	nw.lgr.Info("network cleared")
}
