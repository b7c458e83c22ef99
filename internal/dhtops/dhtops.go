// Package dhtops implements the data-plane operations that are
// identical across Chord and Pastry once the overlay has resolved which
// node owns a key: insert/lookup/update/delete. Rather than duplicate
// that logic in both protocol packages (or force them through a common
// base-class hierarchy Go doesn't have), each op is written once here
// against a small interface that chord.Node and pastry.Node both satisfy
// by composition.
package dhtops

import (
	"dhtcompare/internal/ring"
	"dhtcompare/internal/store"
)

// Owner is a node that can serve local reads/writes once the overlay has
// determined it is responsible for a key.
type Owner interface {
	LocalStore() *store.Store
}

// Router resolves which node in the overlay is responsible for a key and
// hashes raw string keys into its identifier space. Chord's
// find_successor and Pastry's route both satisfy this shape. Router
// embeds Owner so the issuing node (r itself) can be compared against
// the resolved owner to account for the final delivery hop.
type Router interface {
	Owner
	Space() ring.Space
	FindSuccessor(id ring.ID) (Owner, int)
}

// deliveryHops adds the final-delivery hop when the resolved owner is a
// different node than the one that issued the operation.
func deliveryHops(r Router, owner Owner) int {
	if owner == Owner(r) {
		return 0
	}
	return 1
}

// Insert hashes key, routes to its owner, and stores (key, value) there.
func Insert(r Router, key, value string) (bool, int) {
	id := r.Space().HashID(key)
	owner, hops := r.FindSuccessor(id)
	if owner == nil {
		return false, hops
	}
	hops += deliveryHops(r, owner)
	owner.LocalStore().Put(store.Resource{ID: id, Key: key, Value: value})
	return true, hops
}

// Lookup hashes key, routes to its owner, and returns the stored value
// if present.
func Lookup(r Router, key string) (string, bool, int) {
	id := r.Space().HashID(key)
	owner, hops := r.FindSuccessor(id)
	if owner == nil {
		return "", false, hops
	}
	hops += deliveryHops(r, owner)
	res, ok := owner.LocalStore().Get(id)
	if !ok {
		return "", false, hops
	}
	return res.Value, true, hops
}

// Update hashes key, routes to its owner, and overwrites the stored
// value if the key is already present. It reports success=false without
// modifying the store if the key is absent.
func Update(r Router, key, value string) (bool, int) {
	id := r.Space().HashID(key)
	owner, hops := r.FindSuccessor(id)
	if owner == nil {
		return false, hops
	}
	hops += deliveryHops(r, owner)
	if _, ok := owner.LocalStore().Get(id); !ok {
		return false, hops
	}
	owner.LocalStore().Put(store.Resource{ID: id, Key: key, Value: value})
	return true, hops
}

// Delete hashes key, routes to its owner, and removes the stored value
// if present.
func Delete(r Router, key string) (bool, int) {
	id := r.Space().HashID(key)
	owner, hops := r.FindSuccessor(id)
	if owner == nil {
		return false, hops
	}
	hops += deliveryHops(r, owner)
	return owner.LocalStore().Delete(id), hops
}
