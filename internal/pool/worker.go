package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type workerKind int

const (
	kindGeneric workerKind = iota
	kindMain
	kindTimer
)

// Worker is a host goroutine parked on a condition variable while idle.
// The three kinds (generic, main, timer) share the same record and differ
// only in which idle loop their goroutine runs; the split protocol always
// drives the generic loop on a master regardless of kind.
type Worker struct {
	pool *Pool

	// Idx is the worker's insertion index in the pool and its bit in every
	// slaves mask. The timer worker carries -1 and never joins a mask.
	Idx int

	kind workerKind

	mu   sync.Mutex
	cond *sync.Cond

	searching atomic.Bool
	exitFlag  atomic.Bool

	maxPly atomic.Int32
	nodes  atomic.Int64

	// splitPoints is written only by the owning worker; splitPointsSize is
	// snapshot-read by peers deciding availability.
	splitPoints      [MaxSplitPointsPerWorker]SplitPoint
	splitPointsSize  atomic.Int32
	activeSplitPoint atomic.Pointer[SplitPoint]

	// thinking is meaningful on the main worker only, guarded by mu. It is
	// distinct from searching: thinking is "the controller told us to go",
	// searching is "this worker is executing search code right now".
	thinking bool

	// msec is meaningful on the timer worker only: the check interval in
	// milliseconds, 0 to sleep unbounded. Single writer, latency tolerant.
	msec atomic.Int64

	done chan struct{}
}

func newWorker(p *Pool, idx int, kind workerKind) *Worker {
	w := &Worker{pool: p, Idx: idx, kind: kind, done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// start launches the host goroutine, which immediately parks in its kind's
// idle loop.
func (w *Worker) start() {
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)
	switch w.kind {
	case kindTimer:
		w.timerIdleLoop()
	case kindMain:
		w.mainIdleLoop()
	default:
		w.idleLoop(nil)
	}
}

// destroy flags the worker for exit, wakes it and joins the goroutine. The
// search must already be finished.
func (w *Worker) destroy() {
	w.exitFlag.Store(true)
	w.Notify()
	<-w.done
}

// Notify wakes the worker if it is parked. Taking the worker's mutex around
// the signal is what closes the lost-wake-up window: the sleeper re-checks
// its predicate holding the same mutex before it waits.
func (w *Worker) Notify() {
	w.mu.Lock()
	// Broadcast rather than signal: the worker's own park and an external
	// WaitUntil caller can share the condition variable.
	w.cond.Broadcast()
	w.mu.Unlock()
}

// WaitUntil parks the caller on this worker's condition variable until the
// flag turns true. The flag is set by another party who then calls Notify.
func (w *Worker) WaitUntil(b *atomic.Bool) {
	w.mu.Lock()
	for !b.Load() {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// Searching reports whether the worker is currently executing search code.
func (w *Worker) Searching() bool { return w.searching.Load() }

// ActiveSplitPoint returns the deepest split point the worker participates
// in, or nil.
func (w *Worker) ActiveSplitPoint() *SplitPoint { return w.activeSplitPoint.Load() }

// Nodes returns the number of nodes this worker has searched.
func (w *Worker) Nodes() int64 { return w.nodes.Load() }

// AddNodes adds n to the worker's node counter.
func (w *Worker) AddNodes(n int64) { w.nodes.Add(n) }

// MaxPly returns the deepest ply this worker has reached.
func (w *Worker) MaxPly() int { return int(w.maxPly.Load()) }

// UpdateMaxPly raises the deepest-ply marker.
func (w *Worker) UpdateMaxPly(ply int) {
	for {
		cur := w.maxPly.Load()
		if int32(ply) <= cur || w.maxPly.CompareAndSwap(cur, int32(ply)) {
			return
		}
	}
}

// CutoffOccurred walks the active split point's parent chain looking for a
// recorded beta cut-off. No locking: stale false reads just mean one extra
// node is searched before the worker notices.
func (w *Worker) CutoffOccurred() bool {
	for sp := w.activeSplitPoint.Load(); sp != nil; sp = sp.parent {
		if sp.cutoff.Load() {
			return true
		}
	}
	return false
}

// AvailableTo reports whether this worker can be booked as a slave for
// master. An idle worker with no split points of its own helps anyone;
// a worker that masters live split points only helps the workers currently
// slaving at the top of its stack (the helpful master rule), which keeps it
// off subtrees that could block on itself.
func (w *Worker) AvailableTo(master *Worker) bool {
	if w.searching.Load() {
		return false
	}

	// Snapshot the size so a concurrent pop cannot push the index read out
	// of bounds under us.
	size := w.splitPointsSize.Load()

	return size == 0 ||
		w.splitPoints[size-1].slavesMask.Load()&(1<<uint(master.Idx)) != 0
}

// idleLoop is the generic worker loop. thisSP is non-nil only when called
// from Split on the master, in which case the loop also returns once every
// slave of thisSP has retired.
func (w *Worker) idleLoop(thisSP *SplitPoint) {
	p := w.pool

	for {
		// Park until booked. Masters also leave the park when their split
		// point drains while they were waiting.
		for !w.searching.Load() && !w.exitFlag.Load() {
			if w.exitFlag.Load() {
				return
			}
			if thisSP != nil && thisSP.onlyMasterLeft() {
				break
			}
			if !p.sleepWhileIdle.Load() {
				runtime.Gosched()
				continue
			}
			w.mu.Lock()
			// Retest under the mutex: a master may have booked us and sent
			// its notify between our predicate check and this point.
			if !w.searching.Load() && !w.exitFlag.Load() &&
				!(thisSP != nil && thisSP.onlyMasterLeft()) {
				w.cond.Wait()
			}
			w.mu.Unlock()
		}

		if w.exitFlag.Load() {
			return
		}

		if w.searching.Load() {
			p.mu.Lock()
			sp := w.activeSplitPoint.Load()
			p.mu.Unlock()

			p.searchSplitPoint(w, sp)

			// Retire from the split point. The result stores the body made
			// and this bookkeeping are all under the split-point mutex, so
			// the master reads them coherently in the join phase.
			sp.mu.Lock()
			w.searching.Store(false)
			if w != sp.master {
				sp.slavesMask.And(^(uint64(1) << uint(w.Idx)))
				// Wake the master if we were the last slave and it is
				// parked waiting for the split point to drain.
				if sp.onlyMasterLeft() && !sp.master.searching.Load() {
					sp.master.Notify()
				}
			}
			sp.mu.Unlock()
		}

		// Master exit: all slaves retired from our split point.
		if thisSP != nil && thisSP.onlyMasterLeft() {
			thisSP.mu.Lock()
			finished := thisSP.onlyMasterLeft() // retest under lock
			thisSP.mu.Unlock()
			if finished {
				return
			}
		}
	}
}

// mainIdleLoop parks the main worker between searches. When a search
// completes it flips thinking back to false and signals the pool's think
// condition, which is what releases a controller blocked in
// WaitForThinkFinished.
func (w *Worker) mainIdleLoop() {
	p := w.pool

	for {
		w.mu.Lock()
		for !w.thinking && !w.exitFlag.Load() {
			p.thinkCond.Signal() // wake a controller waiting for us
			w.cond.Wait()
		}
		w.mu.Unlock()

		if w.exitFlag.Load() {
			return
		}

		w.searching.Store(true)
		if p.think != nil {
			p.think()
		}
		w.searching.Store(false)

		// Search done: flip thinking back and release any controller
		// blocked in WaitForThinkFinished.
		w.mu.Lock()
		w.thinking = false
		p.thinkCond.Signal()
		w.mu.Unlock()
	}
}

// timerIdleLoop waits msec milliseconds (or unbounded while disabled) and
// calls the external time check. SetTimerInterval rearms it via Notify.
func (w *Worker) timerIdleLoop() {
	for !w.exitFlag.Load() {
		w.mu.Lock()
		if !w.exitFlag.Load() {
			if msec := w.msec.Load(); msec > 0 {
				t := time.AfterFunc(time.Duration(msec)*time.Millisecond, w.Notify)
				w.cond.Wait()
				t.Stop()
			} else {
				w.cond.Wait()
			}
		}
		w.mu.Unlock()

		if w.msec.Load() != 0 && w.pool.checkTime != nil {
			w.pool.checkTime()
		}
	}
}
