package pool

import (
	"sync"
	"sync/atomic"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/parsearch/internal/engine"
)

// MaxSplitPointsPerWorker bounds how deep a single worker's split-point
// stack can grow. Splitting beyond it falls back to sequential search.
const MaxSplitPointsPerWorker = 8

// SplitPoint describes one parallel search sub-problem: the node inputs
// copied at creation, the shared mutable best-so-far result, and the
// bookkeeping that tells the master when all slaves have retired.
//
// A SplitPoint lives inside its master's fixed-size stack, so its lifetime
// is exactly the master's Split call frame at that depth. While slavesMask
// holds any bit besides the master's, the record must not be popped.
type SplitPoint struct {
	master *Worker
	parent *SplitPoint

	// Inputs, fixed once Split publishes the record. Alpha is the
	// exception: slaves raise it under mu as the best value improves.
	Pos        *engine.Position
	SS         any // search stack frame; opaque to the pool
	MP         any // shared move picker; opaque to the pool
	Alpha      engine.Value
	Beta       engine.Value
	Depth      engine.Depth
	ThreatMove pgn.Mv
	NodeType   engine.NodeType

	mu         sync.Mutex
	slavesMask atomic.Uint64
	cutoff     atomic.Bool

	// Results, guarded by mu.
	BestValue engine.Value
	BestMove  pgn.Mv
	MoveCount int
	Nodes     int64
}

// Lock acquires the split point's mutex. The search body holds it while
// picking moves and publishing results.
func (sp *SplitPoint) Lock() { sp.mu.Lock() }

// Unlock releases the split point's mutex.
func (sp *SplitPoint) Unlock() { sp.mu.Unlock() }

// Master returns the worker that created this split point.
func (sp *SplitPoint) Master() *Worker { return sp.master }

// Parent returns the split point that was the master's active split point
// when this one was created, or nil at the root of the chain.
func (sp *SplitPoint) Parent() *SplitPoint { return sp.parent }

// SlavesMask returns the bitmask of workers currently booked on this split
// point. The master's bit stays set for the whole lifetime of the record.
func (sp *SplitPoint) SlavesMask() uint64 { return sp.slavesMask.Load() }

// Cutoff reports whether a beta cut-off has been recorded here. Reads are
// deliberately unsynchronised with the result fields; a stale false costs
// at most a bounded burst of extra work.
func (sp *SplitPoint) Cutoff() bool { return sp.cutoff.Load() }

// SetCutoff records a beta cut-off. Monotone: never cleared while live.
func (sp *SplitPoint) SetCutoff() { sp.cutoff.Store(true) }

// onlyMasterLeft reports whether every slave has retired.
func (sp *SplitPoint) onlyMasterLeft() bool {
	return sp.slavesMask.Load() == 1<<uint(sp.master.Idx)
}
