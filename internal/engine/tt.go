package engine

import (
	"sync"

	"github.com/freeeve/pgn/v3"
)

// Bound classifies a transposition table score.
type Bound uint8

const (
	BoundNone Bound = iota
	BoundExact
	BoundLower
	BoundUpper
)

// TTEntry is one transposition table slot.
type TTEntry struct {
	Key   uint64
	Move  pgn.Mv
	Value Value
	Depth Depth
	Bound Bound
	Gen   uint8
}

const ttShards = 256

// TranspositionTable is a fixed-size shared hash table. Entries are guarded
// by a shard mutex so concurrent workers can probe and store safely.
type TranspositionTable struct {
	entries []TTEntry
	locks   [ttShards]sync.Mutex
	gen     uint8
}

// NewTranspositionTable allocates a table of roughly sizeMB megabytes.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB <= 0 {
		sizeMB = 16
	}
	n := sizeMB * 1024 * 1024 / 32
	// Round down to a power of two so the index is a mask
	size := 1
	for size*2 <= n {
		size *= 2
	}
	return &TranspositionTable{entries: make([]TTEntry, size)}
}

// NewGeneration marks the start of a new search for replacement decisions.
func (tt *TranspositionTable) NewGeneration() {
	tt.gen++
}

// Clear wipes the table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
}

func (tt *TranspositionTable) index(key uint64) int {
	return int(key & uint64(len(tt.entries)-1))
}

// Probe looks up key and reports whether a usable entry was found.
func (tt *TranspositionTable) Probe(key uint64) (TTEntry, bool) {
	i := tt.index(key)
	lock := &tt.locks[i%ttShards]
	lock.Lock()
	e := tt.entries[i]
	lock.Unlock()
	if e.Bound == BoundNone || e.Key != key {
		return TTEntry{}, false
	}
	return e, true
}

// Store saves an entry, preferring deeper searches and fresher generations.
func (tt *TranspositionTable) Store(key uint64, mv pgn.Mv, v Value, d Depth, b Bound) {
	i := tt.index(key)
	lock := &tt.locks[i%ttShards]
	lock.Lock()
	defer lock.Unlock()
	old := tt.entries[i]
	if old.Bound != BoundNone && old.Key == key && old.Depth > d && old.Gen == tt.gen {
		return // keep the deeper result from this search
	}
	if old.Bound != BoundNone && old.Key != key && old.Gen == tt.gen && old.Depth > d+2*OnePly {
		return // don't evict a much deeper entry over an index collision
	}
	tt.entries[i] = TTEntry{Key: key, Move: mv, Value: v, Depth: d, Bound: b, Gen: tt.gen}
}
