package network

import (
	"context"
	"testing"

	"dhtcompare/internal/chord"
	"dhtcompare/internal/pastry"
	"dhtcompare/internal/ring"
)

func newChordSpace(t *testing.T) ring.Space {
	sp, err := ring.NewSpace(16)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

func newChordNetwork(t *testing.T, rounds int) *Network[*chord.Node] {
	sp := newChordSpace(t)
	return New[*chord.Node](
		func(name string) (*chord.Node, error) { return chord.New(name, sp, 16, 4) },
		WithPostJoin[*chord.Node](func(nodes []*chord.Node) {
			for r := 0; r < rounds; r++ {
				for _, n := range nodes {
					n.StabilizeRound()
				}
			}
		}),
	)
}

func TestBuildNetworkJoinsAllNodes(t *testing.T) {
	nw := newChordNetwork(t, 6)
	stats, err := nw.BuildNetwork(8, "node_")
	if err != nil {
		t.Fatalf("BuildNetwork: %v", err)
	}
	if stats.NodeCount != 8 {
		t.Errorf("NodeCount = %d, want 8", stats.NodeCount)
	}
	if len(nw.Nodes()) != 8 {
		t.Errorf("len(Nodes()) = %d, want 8", len(nw.Nodes()))
	}
}

func TestInsertLookupUpdateDeleteThroughFacade(t *testing.T) {
	nw := newChordNetwork(t, 6)
	if _, err := nw.BuildNetwork(8, "node_"); err != nil {
		t.Fatalf("BuildNetwork: %v", err)
	}

	ok, _ := nw.Insert("movie:1", "Her")
	if !ok {
		t.Fatal("Insert failed")
	}
	val, found, _ := nw.Lookup("movie:1")
	if !found || val != "Her" {
		t.Fatalf("Lookup = (%q, %v), want (Her, true)", val, found)
	}
	ok, _ = nw.Update("movie:1", "Inception")
	if !ok {
		t.Fatal("Update failed")
	}
	ok, _ = nw.Delete("movie:1")
	if !ok {
		t.Fatal("Delete failed")
	}
}

func TestOperationsOnEmptyNetworkFail(t *testing.T) {
	nw := newChordNetwork(t, 1)
	if ok, _ := nw.Insert("k", "v"); ok {
		t.Error("Insert on empty network reported success")
	}
	if _, ok, _ := nw.Lookup("k"); ok {
		t.Error("Lookup on empty network reported found")
	}
}

func TestRemoveNodeReportsMissingName(t *testing.T) {
	nw := newChordNetwork(t, 1)
	ok, hops := nw.RemoveNode("ghost")
	if ok || hops != 0 {
		t.Errorf("RemoveNode(missing) = (%v, %d), want (false, 0)", ok, hops)
	}
}

func TestBulkAndConcurrentOperationsAgree(t *testing.T) {
	nw := newChordNetwork(t, 6)
	if _, err := nw.BuildNetwork(8, "node_"); err != nil {
		t.Fatalf("BuildNetwork: %v", err)
	}

	items := make([]Item, 20)
	for i := range items {
		items[i] = Item{Key: keyFor(i), Value: valueFor(i)}
	}
	bulk := nw.BulkInsert(items)
	if bulk.SuccessCount != len(items) {
		t.Fatalf("BulkInsert.SuccessCount = %d, want %d", bulk.SuccessCount, len(items))
	}

	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	concurrent, err := nw.ConcurrentLookup(context.Background(), keys, 4)
	if err != nil {
		t.Fatalf("ConcurrentLookup: %v", err)
	}
	if concurrent.SuccessCount != len(items) {
		t.Errorf("ConcurrentLookup.SuccessCount = %d, want %d", concurrent.SuccessCount, len(items))
	}
}

func TestGetNetworkStats(t *testing.T) {
	nw := newChordNetwork(t, 6)
	if _, err := nw.BuildNetwork(4, "node_"); err != nil {
		t.Fatalf("BuildNetwork: %v", err)
	}
	for i := 0; i < 10; i++ {
		nw.Insert(keyFor(i), valueFor(i))
	}
	stats := nw.GetNetworkStats()
	if stats.NodeCount != 4 {
		t.Errorf("NodeCount = %d, want 4", stats.NodeCount)
	}
	if stats.TotalKeys != 10 {
		t.Errorf("TotalKeys = %d, want 10", stats.TotalKeys)
	}
}

func TestClearResetsRegistry(t *testing.T) {
	nw := newChordNetwork(t, 6)
	if _, err := nw.BuildNetwork(4, "node_"); err != nil {
		t.Fatalf("BuildNetwork: %v", err)
	}
	nw.Clear()
	if len(nw.Nodes()) != 0 {
		t.Errorf("len(Nodes()) after Clear = %d, want 0", len(nw.Nodes()))
	}
}

func newPastrySpace(t *testing.T) ring.Space {
	sp, err := ring.NewSpace(16)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

func TestFacadeWorksWithPastryToo(t *testing.T) {
	sp := newPastrySpace(t)
	nw := New[*pastry.Node](func(name string) (*pastry.Node, error) {
		return pastry.New(name, sp, 4, 8, 4)
	})
	if _, err := nw.BuildNetwork(8, "node_"); err != nil {
		t.Fatalf("BuildNetwork: %v", err)
	}
	ok, _ := nw.Insert("movie:1", "Her")
	if !ok {
		t.Fatal("Insert failed")
	}
	val, found, _ := nw.Lookup("movie:1")
	if !found || val != "Her" {
		t.Fatalf("Lookup = (%q, %v), want (Her, true)", val, found)
	}
}

func keyFor(i int) string   { return "movie:" + string(rune('a'+i%26)) + string(rune('0'+i%10)) }
func valueFor(i int) string { return "Title " + string(rune('0'+i%10)) }
