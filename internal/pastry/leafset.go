package pastry

import (
	"math/big"
	"sort"
	"sync"

	"dhtcompare/internal/ring"
)

// LeafSet tracks the L/2 numerically closest nodes on each side of self,
// the neighborhood Pastry uses for the final delivery hop and for
// deciding which node is responsible for a given key.
type LeafSet struct {
	mu    sync.RWMutex
	space ring.Space
	self  *Node
	half  int // L/2
	left  []*Node
	right []*Node
}

func newLeafSet(self *Node, sp ring.Space, half int) *LeafSet {
	return &LeafSet{space: sp, self: self, half: half}
}

func (ls *LeafSet) cwDist(a, b ring.ID) *big.Int { return ls.space.CWDistance(a, b) }

// ringDistance returns the smaller of the two clockwise distances
// between a and b, i.e. the numeric closeness Pastry routes on.
func (ls *LeafSet) ringDistance(a, b ring.ID) *big.Int {
	return ringDist(ls.space, a, b)
}

// ringDist is the package-wide numeric-closeness measure: the smaller of
// the two clockwise distances between a and b. Used by routing,
// join-time absorption, and leave-time key migration as well as the
// leaf set.
func ringDist(sp ring.Space, a, b ring.ID) *big.Int {
	d1 := sp.CWDistance(a, b)
	d2 := sp.CWDistance(b, a)
	if d1.Cmp(d2) < 0 {
		return d1
	}
	return d2
}

// Insert adds n to whichever side it belongs on, keeping each side
// sorted by distance from self and trimmed to half entries.
func (ls *LeafSet) Insert(n *Node) {
	if n == nil || n == ls.self {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if contains(ls.left, n) || contains(ls.right, n) {
		return
	}

	if ls.onRightSide(n.id) {
		ls.right = append(ls.right, n)
		ls.right = ls.sortAndTrim(ls.right, true)
	} else {
		ls.left = append(ls.left, n)
		ls.left = ls.sortAndTrim(ls.left, false)
	}
}

func (ls *LeafSet) onRightSide(id ring.ID) bool {
	// Right (clockwise/successor) side: distance going forward from self
	// is smaller than going backward.
	fwd := ls.cwDist(ls.self.id, id)
	bwd := ls.cwDist(id, ls.self.id)
	return fwd.Cmp(bwd) <= 0
}

func (ls *LeafSet) sortAndTrim(nodes []*Node, rightSide bool) []*Node {
	sort.Slice(nodes, func(i, j int) bool {
		var di, dj *big.Int
		if rightSide {
			di = ls.cwDist(ls.self.id, nodes[i].id)
			dj = ls.cwDist(ls.self.id, nodes[j].id)
		} else {
			di = ls.cwDist(nodes[i].id, ls.self.id)
			dj = ls.cwDist(nodes[j].id, ls.self.id)
		}
		return di.Cmp(dj) < 0
	})
	if len(nodes) > ls.half {
		nodes = nodes[:ls.half]
	}
	return nodes
}

func contains(nodes []*Node, n *Node) bool {
	for _, x := range nodes {
		if x == n {
			return true
		}
	}
	return false
}

// Remove drops n from the leaf set if present.
func (ls *LeafSet) Remove(n *Node) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.left = removeNode(ls.left, n)
	ls.right = removeNode(ls.right, n)
}

func removeNode(nodes []*Node, n *Node) []*Node {
	out := nodes[:0]
	for _, x := range nodes {
		if x != n {
			out = append(out, x)
		}
	}
	return out
}

// All returns every node currently in the leaf set (both sides).
func (ls *LeafSet) All() []*Node {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	out := make([]*Node, 0, len(ls.left)+len(ls.right))
	out = append(out, ls.left...)
	out = append(out, ls.right...)
	return out
}

// IsWithinRange reports whether id falls in the ring interval
// (outermost left neighbor, outermost right neighbor], i.e. inside the
// portion of the ring this leaf set has direct knowledge of. A missing
// side is bounded by self; an empty leaf set covers every id.
func (ls *LeafSet) IsWithinRange(id ring.ID) bool {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if len(ls.left) == 0 && len(ls.right) == 0 {
		return true
	}
	lo := ls.self.id
	if len(ls.left) > 0 {
		lo = ls.left[len(ls.left)-1].id
	}
	hi := ls.self.id
	if len(ls.right) > 0 {
		hi = ls.right[len(ls.right)-1].id
	}
	return id.Between(lo, hi)
}

// GetClosestNode returns the node in self ∪ leaf set numerically
// closest to id.
func (ls *LeafSet) GetClosestNode(id ring.ID) *Node {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	best := ls.self
	bestDist := ls.ringDistance(ls.self.id, id)
	for _, n := range append(append([]*Node{}, ls.left...), ls.right...) {
		d := ls.ringDistance(n.id, id)
		if d.Cmp(bestDist) < 0 {
			best = n
			bestDist = d
		}
	}
	return best
}

// Size returns the total number of nodes held by the leaf set.
func (ls *LeafSet) Size() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.left) + len(ls.right)
}
