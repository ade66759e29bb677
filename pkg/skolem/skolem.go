// Package skolem implements the Skolem Registry (spec.md §4.4): a
// deterministic function from (fnName, argument-tuple) to a synthetic
// node/edge id, used by pkg/compiler to mint identities for CONSTRUCT
// and ADD elements that are not bound to an input variable.
//
// Two rules — in the same view, in different views, or across separate
// evaluations of the same rule — that synthesize the same logical entity
// from the same (fnName, args) must agree on its id, or joins across
// synthesized entities would fail (spec.md §3, invariant 2 in §8). The
// registry achieves this without any persisted counter state: ids are a
// pure hash of their inputs, so materialized Skolem ids are stable
// across process restarts (spec.md §6).
package skolem

import (
	"hash/fnv"
	"strconv"
	"sync"
)

// reservedBit is forced into every minted id so Skolem ids never collide
// with user-supplied (base-graph) ids, which are expected to stay below
// 1<<63.
const reservedBit = uint64(1) << 63

// Registry interns (fnName, args) tuples into stable synthetic ids.
// Safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	cache map[string]uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{cache: make(map[string]uint64)}
}

// Intern returns the id for (fn, args), minting one deterministically on
// first use. Calling Intern twice with equal fn and args (by value)
// always returns the same id — this is invariant 2 in spec.md §8.
func (r *Registry) Intern(fn string, args []string) uint64 {
	key := canonicalKey(fn, args)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.cache[key]; ok {
		return id
	}
	id := hashID(key)
	r.cache[key] = id
	return id
}

// canonicalKey builds an unambiguous string encoding of (fn, args) —
// length-prefixing each component so that, e.g., fn="ab",args=["c"] and
// fn="a",args=["bc"] never collide.
func canonicalKey(fn string, args []string) string {
	buf := make([]byte, 0, len(fn)+8*(len(args)+1))
	buf = appendLenPrefixed(buf, fn)
	for _, a := range args {
		buf = appendLenPrefixed(buf, a)
	}
	return string(buf)
}

func appendLenPrefixed(buf []byte, s string) []byte {
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, ':')
	buf = append(buf, s...)
	buf = append(buf, ';')
	return buf
}

// hashID computes a deterministic 64-bit id from key via FNV-1a, with
// the top bit forced to 1 so the result is disjoint from base-graph ids.
func hashID(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key)) // hash.Hash64.Write never errors
	return h.Sum64() | reservedBit
}

// IsSkolemID reports whether id falls in the reserved Skolem range.
func IsSkolemID(id uint64) bool {
	return id&reservedBit != 0
}
