package pool

import (
	"sync/atomic"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/parsearch/internal/engine"
)

// Signals are the control flags the search polls. All of them are cleared
// together at the start of a search. Stop, StopOnPonderhit and
// FailedLowAtRoot are only ever set afterwards, so readers may observe them
// late without harm; FirstRootMove is rewritten for every root move.
type Signals struct {
	Stop            atomic.Bool
	StopOnPonderhit atomic.Bool
	FirstRootMove   atomic.Bool
	FailedLowAtRoot atomic.Bool
}

func (s *Signals) clear() {
	s.Stop.Store(false)
	s.StopOnPonderhit.Store(false)
	s.FirstRootMove.Store(false)
	s.FailedLowAtRoot.Store(false)
}

// Limits carries the "go" command constraints for one search.
type Limits struct {
	WTime     int // ms remaining on white's clock
	BTime     int // ms remaining on black's clock
	WInc      int // white increment per move, ms
	BInc      int // black increment per move, ms
	MoveTime  int // exact ms for this move
	MovesToGo int
	Depth     int // plies
	Nodes     int64
	Mate      int
	Infinite  bool
	Ponder    bool
}

// UseTimeManagement reports whether the search must watch the clock rather
// than run to a fixed depth, node count or external stop.
func (l Limits) UseTimeManagement() bool {
	return l.MoveTime == 0 && l.Depth == 0 && l.Nodes == 0 &&
		l.Mate == 0 && !l.Infinite && !l.Ponder &&
		(l.WTime != 0 || l.BTime != 0)
}

// RootMove is one legal move at the root with its running score and PV.
type RootMove struct {
	Move      pgn.Mv
	Score     engine.Value
	PrevScore engine.Value
	PV        []pgn.Mv
}
