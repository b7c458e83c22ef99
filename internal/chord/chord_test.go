package chord

import (
	"testing"

	"dhtcompare/internal/dhtops"
	"dhtcompare/internal/ring"
)

func newTestSpace(t *testing.T) ring.Space {
	sp, err := ring.NewSpace(16)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

func TestSeedJoinIsSelfLoop(t *testing.T) {
	sp := newTestSpace(t)
	n, err := New("seed", sp, 16, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hops := n.Join(nil)
	if hops != 0 {
		t.Errorf("seed Join hops = %d, want 0", hops)
	}
	if n.Successor() != n || n.Predecessor() != n {
		t.Error("seed node should be its own successor and predecessor")
	}
}

func buildRing(t *testing.T, count int) []*Node {
	sp := newTestSpace(t)
	nodes := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		n, err := New(nameFor(i), sp, 16, 4)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		nodes = append(nodes, n)
	}
	nodes[0].Join(nil)
	for i := 1; i < count; i++ {
		nodes[i].Join(nodes[0])
	}
	// several stabilization rounds so the ring converges
	for round := 0; round < count*2; round++ {
		for _, n := range nodes {
			n.Stabilize()
		}
	}
	for round := 0; round < 3; round++ {
		for _, n := range nodes {
			for i := range n.fingers {
				n.FixFingers(i)
			}
		}
	}
	return nodes
}

func nameFor(i int) string {
	return "node_" + string(rune('a'+i))
}

func TestStabilizationConvergesToCorrectRing(t *testing.T) {
	nodes := buildRing(t, 6)

	// Every node's successor's predecessor should be itself once stable.
	for _, n := range nodes {
		succ := n.Successor()
		if succ == nil {
			t.Fatalf("node %s has nil successor after stabilization", n.Name())
		}
		if succ.Predecessor() != n {
			t.Errorf("node %s: successor %s's predecessor = %v, want %s",
				n.Name(), succ.Name(), succ.Predecessor(), n.Name())
		}
	}
}

func TestInsertLookupRoundTrip(t *testing.T) {
	nodes := buildRing(t, 8)
	entry := nodes[0]

	ok, _ := dhtops.Insert(entry, "movie:inception", "Inception")
	if !ok {
		t.Fatal("Insert failed")
	}

	val, found, _ := dhtops.Lookup(entry, "movie:inception")
	if !found || val != "Inception" {
		t.Fatalf("Lookup = (%q, %v), want (Inception, true)", val, found)
	}

	ok, _ = dhtops.Delete(entry, "movie:inception")
	if !ok {
		t.Fatal("Delete reported failure")
	}
	_, found, _ = dhtops.Lookup(entry, "movie:inception")
	if found {
		t.Fatal("Lookup found value after Delete")
	}
}

func TestJoinMigratesOwnedKeys(t *testing.T) {
	nodes := buildRing(t, 4)
	entry := nodes[0]

	for i := 0; i < 50; i++ {
		dhtops.Insert(entry, keyFor(i), valueFor(i))
	}

	sp := newTestSpace(t)
	newNode, err := New("new_node_0", sp, 16, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	newNode.Join(nodes[0])

	for round := 0; round < 8; round++ {
		for _, n := range append(nodes, newNode) {
			n.Stabilize()
		}
	}

	pred := newNode.Predecessor()
	if pred == nil {
		t.Fatal("new node has no predecessor after join")
	}

	for i := 0; i < 50; i++ {
		id := sp.HashID(keyFor(i))
		if !id.Between(pred.ID(), newNode.ID()) {
			continue
		}
		if _, ok := newNode.LocalStore().Get(id); !ok {
			t.Errorf("key %s should have migrated to new_node_0", keyFor(i))
		}
	}
}

func TestLeaveClearsSingleNodeWithZeroHops(t *testing.T) {
	sp := newTestSpace(t)
	n, _ := New("solo", sp, 16, 4)
	n.Join(nil)
	if hops := n.Leave(); hops != 0 {
		t.Errorf("Leave on single-node ring = %d hops, want 0", hops)
	}
	if n.Active() {
		t.Error("node should be inactive after Leave")
	}
}

func TestLeaveIsNoOpWhenAlreadyInactive(t *testing.T) {
	sp := newTestSpace(t)
	n, _ := New("solo", sp, 16, 4)
	if hops := n.Leave(); hops != 0 {
		t.Errorf("Leave on never-joined node = %d, want 0", hops)
	}
}

func keyFor(i int) string   { return "movie:" + string(rune('a'+i%26)) + string(rune('0'+i%10)) }
func valueFor(i int) string { return "Title " + string(rune('0'+i%10)) }
