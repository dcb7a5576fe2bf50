package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/parsearch/internal/engine"
)

// MaxWorkers is the hard cap on pool size: worker indices double as bits in
// the 64-bit slaves masks.
const MaxWorkers = 64

// OptionSource supplies integer configuration values by UCI option name.
type OptionSource interface {
	Int(name string) int
}

// Config wires the pool to its external collaborators. Think runs one
// top-level search on the root position; SearchSplitPoint performs one
// worker's share of a split point; CheckTime may set Signals.Stop.
type Config struct {
	Logger           zerolog.Logger
	Options          OptionSource
	Think            func()
	SearchSplitPoint func(*Worker, *SplitPoint)
	CheckTime        func()
}

// Pool coordinates the workers of one search process. Index 0 is the main
// worker; the timer worker lives outside the index space. Only one search
// is active at a time.
type Pool struct {
	log zerolog.Logger

	options   OptionSource
	think     func()
	checkTime func()

	// searchSplitPoint is the search-body hook run by the generic idle
	// loop whenever a worker is booked on a split point.
	searchSplitPoint func(*Worker, *SplitPoint)

	// mu serialises split creation and pool resize (the spec's M_P).
	mu      sync.Mutex
	workers []*Worker
	timer   *Worker

	// thinkCond is signalled by the main worker as it parks. It is bound
	// to the main worker's mutex, not mu: the predicate it guards
	// (main.thinking) lives under that mutex.
	thinkCond *sync.Cond

	sleepWhileIdle          atomic.Bool
	maxThreadsPerSplitPoint int
	minimumSplitDepth       engine.Depth

	// Shared state of the current search, owned by the controller between
	// WaitForThinkFinished and StartThinking, by the search afterwards.
	Signals     Signals
	Limits      Limits
	RootPos     *engine.Position
	RootMoves   []*RootMove
	SearchStart time.Time
}

// New returns an unstarted pool. Call Init before anything else; worker
// construction allocates engine-wide state that must not run at package
// init time.
func New(cfg Config) *Pool {
	return &Pool{
		log:              cfg.Logger,
		options:          cfg.Options,
		think:            cfg.Think,
		searchSplitPoint: cfg.SearchSplitPoint,
		checkTime:        cfg.CheckTime,
	}
}

// Init creates the timer and main workers and applies the configured
// options, which may grow the pool further.
func (p *Pool) Init() {
	p.sleepWhileIdle.Store(true)

	p.timer = newWorker(p, -1, kindTimer)
	p.timer.start()

	main := newWorker(p, 0, kindMain)
	p.thinkCond = sync.NewCond(&main.mu)
	p.workers = append(p.workers, main)
	main.start()

	p.ReadUCIOptions()

	p.log.Info().Int("workers", len(p.workers)).Msg("worker pool started")
}

// Exit joins every worker. The timer goes first because the time check
// reads pool state.
func (p *Pool) Exit() {
	if p.timer == nil {
		return
	}
	p.timer.destroy()
	p.timer = nil

	for _, w := range p.workers {
		w.destroy()
	}
	p.workers = nil

	p.log.Info().Msg("worker pool stopped")
}

// ReadUCIOptions refreshes the split tuning parameters and resizes the pool
// to the requested worker count. Precondition: no search in flight.
func (p *Pool) ReadUCIOptions() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maxThreadsPerSplitPoint = p.options.Int("Max Threads per Split Point")
	if p.maxThreadsPerSplitPoint < 2 {
		p.maxThreadsPerSplitPoint = 2
	}
	p.minimumSplitDepth = engine.Depth(p.options.Int("Min Split Depth")) * engine.OnePly

	requested := p.options.Int("Threads")
	if requested < 1 {
		requested = 1
	}
	if requested > MaxWorkers {
		requested = MaxWorkers
	}

	for len(p.workers) < requested {
		w := newWorker(p, len(p.workers), kindGeneric)
		p.workers = append(p.workers, w)
		w.start()
	}
	for len(p.workers) > requested {
		last := p.workers[len(p.workers)-1]
		p.workers = p.workers[:len(p.workers)-1]
		last.destroy()
	}
}

// Size returns the current worker count (excluding the timer).
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Worker returns the worker at index i.
func (p *Pool) Worker(i int) *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers[i]
}

// Main returns the main worker.
func (p *Pool) Main() *Worker {
	return p.Worker(0)
}

// Timer returns the timer worker.
func (p *Pool) Timer() *Worker { return p.timer }

// SetTimerInterval sets the time-check period in milliseconds (0 disables)
// and rearms the timer worker.
func (p *Pool) SetTimerInterval(msec int64) {
	p.timer.msec.Store(msec)
	p.timer.Notify()
}

// SetSleepWhileIdle switches parked workers between sleeping on their
// condition variables and hot-spinning.
func (p *Pool) SetSleepWhileIdle(sleep bool) {
	p.sleepWhileIdle.Store(sleep)
}

// MinimumSplitDepth returns the smallest remaining depth worth splitting.
func (p *Pool) MinimumSplitDepth() engine.Depth {
	return p.minimumSplitDepth
}

// SlaveAvailable reports whether any worker could currently be booked as a
// slave for master. Advisory: taken without the pool lock, so the answer
// may be stale by the time Split runs.
func (p *Pool) SlaveAvailable(master *Worker) bool {
	for _, w := range p.workers {
		if w != master && w.AvailableTo(master) {
			return true
		}
	}
	return false
}

// NodesSearched sums the node counters of every worker for the current
// search.
func (p *Pool) NodesSearched() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.nodes.Load()
	}
	return n
}

// Elapsed returns the time since the current search started.
func (p *Pool) Elapsed() time.Duration {
	return time.Since(p.SearchStart)
}

// WaitForThinkFinished blocks until the main worker has parked, i.e. any
// search in flight has fully completed.
func (p *Pool) WaitForThinkFinished() {
	m := p.Main()
	m.mu.Lock()
	for m.thinking {
		p.thinkCond.Wait()
	}
	m.mu.Unlock()
}

// StartThinking hands a new search to the main worker and returns as soon
// as it has been woken. Any previous search is drained first.
func (p *Pool) StartThinking(pos *engine.Position, limits Limits, searchMoves []pgn.Mv) {
	if len(p.workers) == 0 {
		panic("pool: StartThinking before Init")
	}
	p.WaitForThinkFinished()

	p.SearchStart = time.Now() // as early as possible

	p.Signals.clear()

	pos.ResetNodes()
	for _, w := range p.workers {
		w.nodes.Store(0)
		w.maxPly.Store(0)
	}
	p.RootPos = pos
	p.Limits = limits
	p.RootMoves = p.RootMoves[:0]
	for _, mv := range pos.LegalMoves() {
		if len(searchMoves) == 0 || containsMove(searchMoves, mv) {
			p.RootMoves = append(p.RootMoves, &RootMove{
				Move:      mv,
				Score:     -engine.ValueInfinite,
				PrevScore: -engine.ValueInfinite,
			})
		}
	}

	m := p.Main()
	m.mu.Lock()
	m.thinking = true
	m.mu.Unlock()
	m.Notify()
}

func containsMove(moves []pgn.Mv, mv pgn.Mv) bool {
	for _, m := range moves {
		if m == mv {
			return true
		}
	}
	return false
}
