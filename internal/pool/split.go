package pool

import (
	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/parsearch/internal/engine"
)

// Split distributes the remaining moves of master's current node across the
// available workers. It publishes a SplitPoint on master's stack, books
// every eligible slave, then sends the master through the generic idle loop
// to help with its own share; it returns once every slave has retired, with
// the aggregated best value (bestMove is updated through the pointer).
//
// With fake set, or when no slave is available, the split is degenerate:
// the master still searches its share through the split point, which keeps
// the search stack shape uniform.
//
// If master's split stack is full the function refuses to split and returns
// bestValue unchanged; the caller continues sequentially.
func (p *Pool) Split(master *Worker, pos *engine.Position, ss any,
	alpha, beta, bestValue engine.Value, bestMove *pgn.Mv,
	depth engine.Depth, threatMove pgn.Mv, moveCount int,
	mp any, nodeType engine.NodeType, fake bool) engine.Value {

	if !master.searching.Load() {
		panic("pool: Split called on a worker that is not searching")
	}
	if bestValue > alpha || alpha >= beta {
		panic("pool: Split called with inconsistent bounds")
	}

	if int(master.splitPointsSize.Load()) >= MaxSplitPointsPerWorker {
		return bestValue
	}

	// Pick the next slot on the master's split stack. It is filled and the
	// slaves are booked under both locks so no other master can allocate
	// the same worker concurrently.
	sp := &master.splitPoints[master.splitPointsSize.Load()]

	p.mu.Lock()
	sp.mu.Lock()

	sp.master = master
	sp.parent = master.activeSplitPoint.Load()
	sp.Pos = pos
	sp.SS = ss
	sp.MP = mp
	sp.Alpha = alpha
	sp.Beta = beta
	sp.Depth = depth
	sp.ThreatMove = threatMove
	sp.NodeType = nodeType
	sp.BestValue = bestValue
	sp.BestMove = *bestMove
	sp.MoveCount = moveCount
	sp.Nodes = 0
	sp.cutoff.Store(false)
	sp.slavesMask.Store(1 << uint(master.Idx))

	master.activeSplitPoint.Store(sp)

	slaves := 0
	if !fake {
		for _, w := range p.workers {
			if w == master || !w.AvailableTo(master) {
				continue
			}
			sp.slavesMask.Or(1 << uint(w.Idx))
			w.activeSplitPoint.Store(sp)
			w.searching.Store(true) // this is what pops w out of idleLoop
			w.Notify()              // could be sleeping

			slaves++
			if slaves+1 >= p.maxThreadsPerSplitPoint { // count the master
				break
			}
		}
	}

	master.splitPointsSize.Add(1)

	sp.mu.Unlock()
	p.mu.Unlock()

	// Everything is set up. The master enters the generic idle loop and,
	// finding its searching flag set, immediately works its own share of
	// the split point. It returns when the slaves mask has collapsed back
	// to the master's bit.
	master.idleLoop(sp)

	// All slaves have retired; their result stores are visible because
	// each slave's last act on the split point was under its mutex, which
	// we take again here.
	p.mu.Lock()
	sp.mu.Lock()

	master.searching.Store(true)
	master.splitPointsSize.Add(-1)
	master.activeSplitPoint.Store(sp.parent)
	pos.AddNodes(sp.Nodes)
	*bestMove = sp.BestMove
	best := sp.BestValue

	sp.mu.Unlock()
	p.mu.Unlock()

	return best
}
