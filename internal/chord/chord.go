// Package chord implements the ring-based Chord overlay: a finger table
// for logarithmic routing, successor/predecessor pointers, the lazy
// join protocol, periodic stabilization, and graceful leave. Nodes hold
// direct references to their peers rather than addresses, since this
// module simulates the overlay in a single process and has no network
// transport.
package chord

import (
	"errors"
	"fmt"
	"sync"

	"dhtcompare/internal/dhtops"
	"dhtcompare/internal/logger"
	"dhtcompare/internal/ring"
	"dhtcompare/internal/store"
)

// ErrRoutingDiverged is returned when find_predecessor exceeds its hop
// budget (m) without converging, signalling inconsistent routing state.
var ErrRoutingDiverged = errors.New("chord: routing diverged")

// fingerEntry is one row of the finger table: the ring position this
// finger covers (start) and the node currently believed responsible for
// it. Each entry is independently lockable since fix_fingers updates
// one entry at a time while lookups may be reading any entry.
type fingerEntry struct {
	mu    sync.RWMutex
	start ring.ID
	node  *Node
}

func (e *fingerEntry) get() *Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.node
}

func (e *fingerEntry) set(n *Node) {
	e.mu.Lock()
	e.node = n
	e.mu.Unlock()
}

// Node is one member of the Chord ring.
type Node struct {
	lgr   logger.Logger
	space ring.Space
	name  string
	id    ring.ID

	mu          sync.RWMutex
	successor   *Node
	predecessor *Node
	active      bool

	fingers []*fingerEntry // length == finger table size

	localStore *store.Store
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger attaches a structured logger to the node.
func WithLogger(lgr logger.Logger) Option {
	return func(n *Node) { n.lgr = lgr }
}

// New builds a Chord node identified by name, hashed into sp, with a
// finger table of fingerTableSize entries and a local index backed by
// a B+ tree of the given order. The node starts inactive until Join is
// called.
func New(name string, sp ring.Space, fingerTableSize, bptreeOrder int, opts ...Option) (*Node, error) {
	st, err := store.New(bptreeOrder, nil)
	if err != nil {
		return nil, fmt.Errorf("chord: %w", err)
	}
	n := &Node{
		space:      sp,
		name:       name,
		id:         sp.HashID(name),
		lgr:        &logger.NopLogger{},
		localStore: st,
		fingers:    make([]*fingerEntry, fingerTableSize),
	}
	for _, o := range opts {
		o(n)
	}
	n.lgr = n.lgr.Named("chord").With(logger.F("node", name), logger.F("id", n.id.ToHexString()))
	for i := range n.fingers {
		start, _ := sp.AddMod(n.id, sp.PowerOfTwoMod(i))
		n.fingers[i] = &fingerEntry{start: start}
	}
	return n, nil
}

// Name returns the node's human-readable identifier.
func (n *Node) Name() string { return n.name }

// ID returns the node's position on the ring.
func (n *Node) ID() ring.ID { return n.id }

// Space returns the identifier space this node was constructed in,
// satisfying dhtops.Router.
func (n *Node) Space() ring.Space { return n.space }

// LocalStore returns the node's local index, satisfying dhtops.Owner.
func (n *Node) LocalStore() *store.Store { return n.localStore }

// Active reports whether the node is currently a live ring member.
func (n *Node) Active() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

func (n *Node) Successor() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.successor
}

func (n *Node) setSuccessor(s *Node) {
	n.mu.Lock()
	n.successor = s
	n.mu.Unlock()
}

func (n *Node) Predecessor() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.predecessor
}

func (n *Node) setPredecessor(p *Node) {
	n.mu.Lock()
	n.predecessor = p
	n.mu.Unlock()
}

// RoutingTableSize returns the number of distinct non-nil nodes
// referenced by the finger table, used by the network facade's
// statistics summary.
func (n *Node) RoutingTableSize() int {
	seen := make(map[string]bool)
	for _, f := range n.fingers {
		if node := f.get(); node != nil {
			seen[node.name] = true
		}
	}
	return len(seen)
}

// closestPrecedingFinger scans the finger table from highest to lowest
// and returns the first finger whose node lies strictly between n and
// id, or nil if none qualifies (the caller substitutes self).
func (n *Node) closestPrecedingFinger(id ring.ID) *Node {
	for i := len(n.fingers) - 1; i >= 0; i-- {
		f := n.fingers[i].get()
		if f != nil && f.id.Between(n.id, id) && !f.id.Equal(id) {
			return f
		}
	}
	return nil
}

// findPredecessor walks the ring toward id, returning the node whose
// successor already covers id and the number of forwarding hops taken.
func (n *Node) findPredecessor(id ring.ID) (*Node, int, error) {
	curr := n
	hops := 0
	budget := len(n.fingers)
	if budget == 0 {
		budget = 1
	}
	for {
		succ := curr.Successor()
		if succ == nil || succ == curr {
			return curr, hops, nil
		}
		if id.Between(curr.id, succ.id) {
			return curr, hops, nil
		}
		next := curr.closestPrecedingFinger(id)
		if next == nil || next == curr {
			return curr, hops, nil
		}
		curr = next
		hops++
		if hops > budget {
			return nil, hops, ErrRoutingDiverged
		}
	}
}

// findSuccessor resolves the node responsible for id.
func (n *Node) findSuccessor(id ring.ID) (*Node, int) {
	pred, hops, err := n.findPredecessor(id)
	if err != nil {
		n.lgr.Error("find_successor diverged", logger.F("target", id.ToHexString()))
		return nil, hops
	}
	succ := pred.Successor()
	if succ == nil {
		succ = pred
	}
	return succ, hops
}

// FindSuccessor satisfies dhtops.Router.
func (n *Node) FindSuccessor(id ring.ID) (dhtops.Owner, int) {
	s, hops := n.findSuccessor(id)
	if s == nil {
		return nil, hops
	}
	return s, hops
}

// Join brings the node into the ring through bootstrap. A nil bootstrap
// starts a brand-new ring with this node as its sole member (0 hops).
// Otherwise this runs a lazy join: the finger table is left empty and
// filled in by later stabilization.
func (n *Node) Join(bootstrap *Node) int {
	if bootstrap == nil {
		n.setSuccessor(n)
		n.setPredecessor(n)
		n.mu.Lock()
		n.active = true
		n.mu.Unlock()
		n.lgr.Info("joined as seed node")
		return 0
	}

	succ, hops := bootstrap.findSuccessor(n.id)
	n.setSuccessor(succ)

	pred := succ.Predecessor()
	hops++ // query successor.predecessor

	n.setPredecessor(pred)
	succ.setPredecessor(n)
	hops++ // notify successor

	if pred != nil && pred != n && pred != succ {
		pred.setSuccessor(n)
		hops++
	}

	predID := n.id
	if pred != nil {
		predID = pred.id
	}
	moved := n.migrateFrom(succ, predID)
	if moved {
		hops++
	}

	n.mu.Lock()
	n.active = true
	n.mu.Unlock()
	n.lgr.Info("joined ring", logger.F("hops", hops), logger.F("successor", succ.name))
	return hops
}

// migrateFrom pulls every key k from src with identifier(k) in
// (fromID, n.id] into n's local store.
func (n *Node) migrateFrom(src *Node, fromID ring.ID) bool {
	if src == n {
		return false
	}
	keys := src.localStore.Between(fromID, n.id)
	for _, r := range keys {
		n.localStore.Put(r)
		src.localStore.Delete(r.ID)
	}
	return len(keys) > 0
}

// Stabilize verifies the successor's predecessor hasn't moved closer,
// adopting it if so, then notifies the successor of self.
func (n *Node) Stabilize() {
	succ := n.Successor()
	if succ == nil || succ == n {
		succ = n
	}
	x := succ.Predecessor()
	if x != nil && x != succ && x.id.Between(n.id, succ.id) {
		n.setSuccessor(x)
		succ = x
	}
	succ.Notify(n)
}

// Notify is called by a node that believes it might be n's predecessor.
func (n *Node) Notify(from *Node) {
	pred := n.Predecessor()
	if pred == nil || from.id.Between(pred.id, n.id) {
		n.setPredecessor(from)
	}
}

// StabilizeRound runs one stabilize pass followed by a fix_fingers pass
// over every finger entry, the unit of periodic maintenance the network
// facade drives for a configurable number of rounds after bulk joins.
func (n *Node) StabilizeRound() {
	n.Stabilize()
	for i := range n.fingers {
		n.FixFingers(i)
	}
}

// FixFingers recomputes finger table entry i via find_successor.
func (n *Node) FixFingers(i int) int {
	if i < 0 || i >= len(n.fingers) {
		return 0
	}
	start := n.fingers[i].start
	succ, hops := n.findSuccessor(start)
	n.fingers[i].set(succ)
	return hops
}

// Leave gracefully removes the node from the ring: local keys transfer
// to the successor, predecessor/successor links are stitched around
// the gap, and the node is marked inactive. A single-node ring
// (successor == self) clears state with 0 hops.
func (n *Node) Leave() int {
	if !n.Active() {
		return 0
	}

	succ := n.Successor()
	pred := n.Predecessor()
	hops := 0

	if succ != nil && succ != n {
		keys := n.localStore.All()
		if len(keys) > 0 {
			for _, r := range keys {
				succ.localStore.Put(r)
				n.localStore.Delete(r.ID)
			}
			hops++
		}
		succ.setPredecessor(pred)
		if pred != nil && pred != n {
			pred.setSuccessor(succ)
			hops++
		}
	}

	n.mu.Lock()
	n.active = false
	n.successor = nil
	n.predecessor = nil
	n.mu.Unlock()
	n.lgr.Info("left ring", logger.F("hops", hops))
	return hops
}
