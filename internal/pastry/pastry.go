// Package pastry implements the prefix-based Pastry overlay: a rows x
// base routing table, a leaf set of numerically close neighbors, the
// route/next_hop procedure, join (absorb routing state hop-by-hop), and
// leave (transfer to the closest leaf neighbor). Nodes hold direct
// references to their peers rather than addresses, since this module
// simulates the overlay in a single process.
package pastry

import (
	"errors"
	"fmt"
	"sync"

	"dhtcompare/internal/dhtops"
	"dhtcompare/internal/logger"
	"dhtcompare/internal/ring"
	"dhtcompare/internal/store"
)

// ErrRoutingDiverged is returned by routeResolve when routing exceeds its
// hop budget (m/B + L) without converging, signalling inconsistent
// routing state. Route does not return it: Route logs the divergence
// and reports a nil node.
var ErrRoutingDiverged = errors.New("pastry: routing diverged")

// Node is one member of the Pastry overlay.
type Node struct {
	lgr          logger.Logger
	space        ring.Space
	name         string
	id           ring.ID
	bitsPerDigit int
	digitCount   int // rows

	mu     sync.RWMutex
	active bool

	leafSet      *LeafSet
	routingTable *RoutingTable
	localStore   *store.Store
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger attaches a structured logger to the node.
func WithLogger(lgr logger.Logger) Option {
	return func(n *Node) { n.lgr = lgr }
}

// New builds a Pastry node identified by name, hashed into sp, with a
// routing table of base 2^bitsPerDigit and a leaf set tracking leafHalf
// neighbors on each side (L/2, so 2*leafHalf total), plus a local index
// backed by a B+ tree of the given order. The node starts inactive
// until Join is called.
func New(name string, sp ring.Space, bitsPerDigit, leafHalf, bptreeOrder int, opts ...Option) (*Node, error) {
	if bitsPerDigit <= 0 {
		return nil, fmt.Errorf("pastry: bitsPerDigit must be > 0, got %d", bitsPerDigit)
	}
	st, err := store.New(bptreeOrder, nil)
	if err != nil {
		return nil, fmt.Errorf("pastry: %w", err)
	}
	n := &Node{
		space:        sp,
		name:         name,
		id:           sp.HashID(name),
		bitsPerDigit: bitsPerDigit,
		digitCount:   sp.DigitCount(bitsPerDigit),
		lgr:          &logger.NopLogger{},
		localStore:   st,
	}
	for _, o := range opts {
		o(n)
	}
	n.lgr = n.lgr.Named("pastry").With(logger.F("node", name), logger.F("id", n.id.ToHexString()))
	n.leafSet = newLeafSet(n, sp, leafHalf)
	n.routingTable = newRoutingTable(n, n.digitCount, 1<<uint(bitsPerDigit), bitsPerDigit)
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

// Active reports whether the node is currently a live overlay member.
func (n *Node) Active() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

func (n *Node) setActive(v bool) {
	n.mu.Lock()
	n.active = v
	n.mu.Unlock()
}

// RoutingTableSize returns the number of distinct nodes referenced by
// the union of the routing table and the leaf set, used by the network
// facade's "average routing-table fill" statistic.
func (n *Node) RoutingTableSize() int {
	seen := make(map[*Node]bool)
	for _, x := range n.routingTable.AllNodes() {
		seen[x] = true
	}
	for _, x := range n.leafSet.All() {
		seen[x] = true
	}
	return len(seen)
}

// hopBudget caps routing iterations at m/B + L to prevent infinite
// loops under malformed state.
func (n *Node) hopBudget() int {
	return n.digitCount + n.leafSet.half*2
}

// nextHop picks the next forwarding target: prefer a leaf-set node
// (including current) numerically closer to key than current; else an
// exact routing-table match on the shared-prefix row; else the closest
// node in that row sharing at least as long a prefix; else nil.
// nextHop treats a reference to an inactive node as stale and drops it
// (removing it from the routing table) rather than forwarding into a
// dead node, a passive repair for routing-table pointers that leave
// never cleans up on non-leaf nodes.
func (n *Node) nextHop(key ring.ID) *Node {
	if closest := n.leafSet.GetClosestNode(key); closest != n {
		if closest.Active() {
			return closest
		}
		n.leafSet.Remove(closest)
	}

	p := n.id.SharedDigitPrefixLen(key, n.bitsPerDigit, n.digitCount)
	if p >= n.digitCount {
		return nil
	}
	d := key.DigitAt(n.bitsPerDigit, p)
	if exact := n.routingTable.Get(p, d); exact != nil {
		if exact.Active() {
			return exact
		}
		n.routingTable.Remove(exact)
	}

	var best *Node
	bestDist := ringDist(n.space, n.id, key)
	for _, cand := range n.routingTable.Row(p) {
		if !cand.Active() {
			n.routingTable.Remove(cand)
			continue
		}
		if cand.id.SharedDigitPrefixLen(key, n.bitsPerDigit, n.digitCount) < p {
			continue
		}
		d := ringDist(n.space, cand.id, key)
		if d.Cmp(bestDist) < 0 {
			best = cand
			bestDist = d
		}
	}
	return best
}

// routeResolve iteratively forwards toward key via nextHop, returning
// the terminal node, the number of forwarding hops taken, and
// ErrRoutingDiverged if the hop budget (m/B + L) is exceeded without
// convergence.
func (n *Node) routeResolve(key ring.ID) (*Node, int, error) {
	current := n
	hops := 0
	visited := make(map[*Node]bool)
	budget := n.hopBudget()
	for {
		if visited[current] {
			return current, hops, nil
		}
		visited[current] = true
		candidate := current.nextHop(key)
		if candidate == nil || candidate == current {
			return current, hops, nil
		}
		if ringDist(n.space, candidate.id, key).Cmp(ringDist(n.space, current.id, key)) >= 0 {
			return current, hops, nil
		}
		hops++
		if hops > budget {
			return nil, hops, ErrRoutingDiverged
		}
		current = candidate
	}
}

// Route resolves the node responsible for key, returning the terminal
// node and the number of forwarding hops taken.
func (n *Node) Route(key ring.ID) (*Node, int) {
	node, hops, err := n.routeResolve(key)
	if err != nil {
		n.lgr.Error("route diverged", logger.F("target", key.ToHexString()))
		return nil, hops
	}
	return node, hops
}

// FindSuccessor satisfies dhtops.Router.
func (n *Node) FindSuccessor(id ring.ID) (dhtops.Owner, int) {
	node, hops := n.Route(id)
	if node == nil {
		return nil, hops
	}
	return node, hops
}

// absorb folds h's routing knowledge into n: h itself joins n's leaf
// set and routing table; the row of h's routing table matching n's
// shared-prefix length with h is copied wholesale; h's leaf set is
// merged in.
func (n *Node) absorb(h *Node) {
	n.leafSet.Insert(h)
	n.routingTable.Insert(h)
	row := n.id.SharedDigitPrefixLen(h.id, n.bitsPerDigit, n.digitCount)
	if row < n.digitCount {
		n.routingTable.CopyRowFrom(h.routingTable, row)
	}
	for _, ln := range h.leafSet.All() {
		n.leafSet.Insert(ln)
	}
}

// Join brings the node into the overlay through bootstrap, routing
// toward its own identifier and absorbing routing state from every node
// along the way. A nil bootstrap starts a brand-new overlay with this
// node as its sole member (0 hops).
func (n *Node) Join(bootstrap *Node) int {
	if bootstrap == nil {
		n.setActive(true)
		n.lgr.Info("joined as seed node")
		return 0
	}

	hops := 0
	current := bootstrap
	visited := make(map[*Node]bool)
	budget := n.hopBudget()
	for !visited[current] {
		visited[current] = true
		n.absorb(current)
		hops++
		if hops > budget {
			break
		}
		candidate := current.nextHop(n.id)
		if candidate == nil || candidate == current {
			break
		}
		if ringDist(n.space, candidate.id, n.id).Cmp(ringDist(n.space, current.id, n.id)) >= 0 {
			break
		}
		current = candidate
	}

	for _, ln := range n.leafSet.All() {
		ln.leafSet.Insert(n)
		ln.routingTable.Insert(n)
		hops++
	}

	moved := false
	for _, ln := range n.leafSet.All() {
		for _, r := range ln.localStore.All() {
			if ringDist(n.space, r.ID, n.id).Cmp(ringDist(n.space, r.ID, ln.id)) < 0 {
				n.localStore.Put(r)
				ln.localStore.Delete(r.ID)
				moved = true
			}
		}
	}
	if moved {
		hops++
	}

	n.setActive(true)
	n.lgr.Info("joined overlay", logger.F("hops", hops), logger.F("leaf_set_size", n.leafSet.Size()))
	return hops
}

// Leave gracefully removes the node from the overlay: each local key
// transfers to the leaf neighbor numerically closest to that key, every leaf
// neighbor is told to forget this node, and the node is marked
// inactive. Stale routing-table pointers in non-leaf nodes are not
// repaired here — nextHop drops them passively the next time they would
// have been used.
func (n *Node) Leave() int {
	if !n.Active() {
		return 0
	}

	neighbors := n.leafSet.All()
	hops := 0

	if len(neighbors) > 0 {
		closest := neighbors[0]
		bestDist := ringDist(n.space, closest.id, n.id)
		for _, nb := range neighbors[1:] {
			if d := ringDist(n.space, nb.id, n.id); d.Cmp(bestDist) < 0 {
				closest = nb
				bestDist = d
			}
		}

		keys := n.localStore.All()
		if len(keys) > 0 {
			for _, r := range keys {
				dest := closest
				destDist := ringDist(n.space, dest.id, r.ID)
				for _, nb := range neighbors {
					if d := ringDist(n.space, nb.id, r.ID); d.Cmp(destDist) < 0 {
						dest, destDist = nb, d
					}
				}
				dest.localStore.Put(r)
				n.localStore.Delete(r.ID)
			}
			hops++
		}

		for _, nb := range neighbors {
			nb.leafSet.Remove(n)
			nb.routingTable.Remove(n)
			hops++
		}
	}

	n.setActive(false)
	n.leafSet = newLeafSet(n, n.space, n.leafSet.half)
	n.routingTable = newRoutingTable(n, n.digitCount, 1<<uint(n.bitsPerDigit), n.bitsPerDigit)
	n.lgr.Info("left overlay", logger.F("hops", hops))
	return hops
}
