package store

import (
	"github.com/dgraph-io/ristretto/v2"
)

// negativeCache remembers object ids that were recently looked up and
// found absent, so a repeated Has/Get for the same missing oid (the
// access pattern upload-pack's have/want negotiation produces constantly,
// probing ancestors that were never fetched) skips the SQL lookup on the
// objects table entirely. Modeled on modules/zeta/backend/odb.go, which keeps a
// metaLRU *ristretto.Cache[string, any] alongside its primary
// cache; ristretto's probabilistic admission is exactly what the main
// Cache in cache.go argues against for item data, but is the right fit
// here since a false-negative-cache-miss just costs one extra query, and
// the TinyLFU admission policy gives this exactly what a hand-rolled LRU
// would cost more code for: frequency-aware retention of the oids that
// get re-probed the most.
type negativeCache struct {
	rc *ristretto.Cache[string, struct{}]
}

func newNegativeCache() *negativeCache {
	rc, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: 100000,
		MaxCost:     100000,
		BufferItems: 64,
	})
	if err != nil {
		// ristretto.NewCache only fails on invalid Config values above;
		// the literal above is valid, so this is unreachable in practice.
		return nil
	}
	return &negativeCache{rc: rc}
}

// markAbsent records that oid does not exist in the store.
func (n *negativeCache) markAbsent(oid string) {
	if n == nil {
		return
	}
	n.rc.Set(oid, struct{}{}, 1)
}

// isKnownAbsent reports whether oid was recently recorded as absent.
func (n *negativeCache) isKnownAbsent(oid string) bool {
	if n == nil {
		return false
	}
	_, ok := n.rc.Get(oid)
	return ok
}

// forget clears any negative entry for oid, called whenever oid is
// actually written so a stale absence never shadows a real write.
func (n *negativeCache) forget(oid string) {
	if n == nil {
		return
	}
	n.rc.Del(oid)
}

func (n *negativeCache) close() {
	if n == nil {
		return
	}
	n.rc.Close()
}
