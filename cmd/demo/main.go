// Command demo walks through a handful of end-to-end scenarios against
// real Chord and Pastry overlays, printing each assertion so the
// behavior can be eyeballed without a test harness.
package main

import (
	"fmt"
	"os"

	"dhtcompare/internal/chord"
	"dhtcompare/internal/network"
	"dhtcompare/internal/pastry"
	"dhtcompare/internal/ring"
)

func check(name string, ok bool) {
	status := "ok"
	if !ok {
		status = "FAILED"
	}
	fmt.Printf("[%s] %s\n", status, name)
	if !ok {
		os.Exit(1)
	}
}

func newChordNetwork(sp ring.Space, rounds int) *network.Network[*chord.Node] {
	return network.New[*chord.Node](
		func(name string) (*chord.Node, error) { return chord.New(name, sp, 16, 4) },
		network.WithPostJoin[*chord.Node](func(nodes []*chord.Node) {
			for r := 0; r < rounds; r++ {
				for _, n := range nodes {
					n.StabilizeRound()
				}
			}
		}),
	)
}

func newPastryNetwork(sp ring.Space) *network.Network[*pastry.Node] {
	return network.New[*pastry.Node](func(name string) (*pastry.Node, error) {
		return pastry.New(name, sp, 4, 8, 4)
	})
}

// buildAndLookupChord is scenario 1: build 8 nodes named "node_0".."node_7",
// insert ("The Matrix", {year:1999}), lookup returns it with hops > 0.
func buildAndLookupChord() {
	fmt.Println("--- build-and-lookup (Chord) ---")
	sp, _ := ring.NewSpace(16)
	nw := newChordNetwork(sp, 6)
	if _, err := nw.BuildNetwork(8, "node_"); err != nil {
		check("build 8 nodes", false)
	}
	ok, _ := nw.Insert("The Matrix", `{"year":1999}`)
	check("insert The Matrix", ok)
	val, found, hops := nw.Lookup("The Matrix")
	check("lookup returns value", found && val == `{"year":1999}`)
	check("lookup took at least one hop", hops > 0)
}

// updateOverwritesPastry is scenario 2: build 16 nodes, insert Inception,
// update it, lookup returns the new value.
func updateOverwritesPastry() {
	fmt.Println("--- update overwrites (Pastry) ---")
	sp, _ := ring.NewSpace(16)
	nw := newPastryNetwork(sp)
	if _, err := nw.BuildNetwork(16, "node_"); err != nil {
		check("build 16 nodes", false)
	}
	ok, _ := nw.Insert("Inception", `{"year":2010,"rating":8.8}`)
	check("insert Inception", ok)
	ok, _ = nw.Update("Inception", `{"year":2010,"rating":9.0}`)
	check("update Inception", ok)
	val, found, _ := nw.Lookup("Inception")
	check("lookup returns updated value", found && val == `{"year":2010,"rating":9.0}`)
}

// deleteThenLookup is scenario 3: build 32 nodes, insert 100 movie titles,
// delete the last 50, lookup of the last 50 is absent and the first 50
// still resolve. Run against Chord.
func deleteThenLookup() {
	fmt.Println("--- delete then lookup (Chord) ---")
	sp, _ := ring.NewSpace(16)
	nw := newChordNetwork(sp, 6)
	if _, err := nw.BuildNetwork(32, "node_"); err != nil {
		check("build 32 nodes", false)
	}
	movieKeys(nw, 100)
	for i := 50; i < 100; i++ {
		ok, _ := nw.Delete(movieKey(i))
		check(fmt.Sprintf("delete %s", movieKey(i)), ok)
	}
	for i := 50; i < 100; i++ {
		_, found, _ := nw.Lookup(movieKey(i))
		check(fmt.Sprintf("lookup %s absent", movieKey(i)), !found)
	}
	for i := 0; i < 50; i++ {
		val, found, _ := nw.Lookup(movieKey(i))
		check(fmt.Sprintf("lookup %s present", movieKey(i)), found && val == movieValue(i))
	}
}

func movieKey(i int) string   { return fmt.Sprintf("movie_%03d", i) }
func movieValue(i int) string { return fmt.Sprintf(`{"title":"movie_%03d"}`, i) }

func movieKeys[T network.Node[T]](nw *network.Network[T], n int) {
	for i := 0; i < n; i++ {
		nw.Insert(movieKey(i), movieValue(i))
	}
}

// joinMigrationChord is scenario 4: build 8 nodes, insert 100 keys, add
// "new_node_0"; every key whose identifier lands in the new node's
// predecessor range now lives there and is gone from its old successor.
func joinMigrationChord() {
	fmt.Println("--- join migration (Chord) ---")
	sp, _ := ring.NewSpace(16)
	nw := newChordNetwork(sp, 6)
	if _, err := nw.BuildNetwork(8, "node_"); err != nil {
		check("build 8 nodes", false)
	}
	for i := 0; i < 100; i++ {
		nw.Insert(movieKey(i), movieValue(i))
	}

	before := make(map[string]string)
	for _, n := range nw.Nodes() {
		for _, r := range n.LocalStore().All() {
			before[r.Key] = n.Name()
		}
	}

	newNode, err := nw.CreateNode("new_node_0")
	if err != nil {
		check("create new_node_0", false)
	}
	if _, err := nw.AddNode(newNode); err != nil {
		check("join new_node_0", false)
	}

	migrated := 0
	for _, r := range newNode.LocalStore().All() {
		prevOwner, ok := before[r.Key]
		check(fmt.Sprintf("%s migrated from a prior owner", r.Key), ok && prevOwner != "new_node_0")
		if owner, ok := nw.GetNode(prevOwner); ok {
			if _, found := owner.LocalStore().Get(r.ID); found {
				check(fmt.Sprintf("%s removed from %s", r.Key, prevOwner), false)
			}
		}
		migrated++
	}
	fmt.Printf("[ok] new_node_0 now owns %d migrated keys\n", migrated)
}

// leavePreservationPastry is scenario 5: build 8 nodes, insert 50 keys,
// remove "node_3"; all 50 keys still resolve, node_3's store is empty and
// node_3 is no longer registered in the network. Surviving nodes' leaf
// sets are not inspected here.
func leavePreservationPastry() {
	fmt.Println("--- leave preservation (Pastry) ---")
	sp, _ := ring.NewSpace(16)
	nw := newPastryNetwork(sp)
	if _, err := nw.BuildNetwork(8, "node_"); err != nil {
		check("build 8 nodes", false)
	}
	values := make(map[string]string, 50)
	for i := 0; i < 50; i++ {
		k, v := movieKey(i), movieValue(i)
		ok, _ := nw.Insert(k, v)
		check(fmt.Sprintf("insert %s", k), ok)
		values[k] = v
	}

	departed, ok := nw.GetNode("node_3")
	check("node_3 exists", ok)
	ok, _ = nw.RemoveNode("node_3")
	check("node_3 leaves", ok)

	for k, v := range values {
		val, found, _ := nw.Lookup(k)
		check(fmt.Sprintf("lookup %s still resolves", k), found && val == v)
	}
	check("node_3's local store is empty", departed.LocalStore().Len() == 0)

	referenced := false
	for _, n := range nw.Nodes() {
		if n.Name() == "node_3" {
			referenced = true
		}
	}
	check("node_3 no longer registered in the network", !referenced)
}

func main() {
	buildAndLookupChord()
	updateOverwritesPastry()
	deleteThenLookup()
	joinMigrationChord()
	leavePreservationPastry()
	fmt.Println("all scenarios passed")
}
