package search

import (
	"sync/atomic"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/parsearch/internal/book"
	"github.com/freeeve/parsearch/internal/engine"
	"github.com/freeeve/parsearch/internal/pool"
)

const (
	maxStackPly = engine.MaxPly + 4

	// Move flag values used by the move generator.
	flagEnPassant = 2
	flagCastle    = 4

	// Timer resolution while a search is running, in milliseconds.
	timerResolutionMs = 5
)

// Info is one iteration's result, reported to the protocol layer.
type Info struct {
	Depth int
	Score engine.Value
	Nodes int64
	Time  time.Duration
	PV    []pgn.Mv
}

// Config wires a Searcher to its collaborators.
type Config struct {
	Logger     zerolog.Logger
	Options    pool.OptionSource
	HashMB     int
	Book       *book.Book // optional opening book
	OnInfo     func(Info)
	OnBestMove func(best, ponder pgn.Mv)
}

// Searcher owns the worker pool and runs the iterative-deepening search on
// it. It installs itself as the pool's Think / SearchSplitPoint / CheckTime
// collaborator.
type Searcher struct {
	log  zerolog.Logger
	p    *pool.Pool
	tt   *engine.TranspositionTable
	book *book.Book

	onInfo     func(Info)
	onBestMove func(best, ponder pgn.Mv)

	bookEnabled atomic.Bool

	// allocated is this move's time budget when managing the clock.
	allocated atomic.Int64 // ms
}

// NewSearcher builds the searcher and its pool. Call Pool().Init() to spin
// up the workers.
func NewSearcher(cfg Config) *Searcher {
	if cfg.HashMB == 0 {
		cfg.HashMB = 64
	}
	s := &Searcher{
		log:        cfg.Logger,
		tt:         engine.NewTranspositionTable(cfg.HashMB),
		book:       cfg.Book,
		onInfo:     cfg.OnInfo,
		onBestMove: cfg.OnBestMove,
	}
	s.bookEnabled.Store(true)
	s.p = pool.New(pool.Config{
		Logger:           cfg.Logger,
		Options:          cfg.Options,
		Think:            s.Think,
		SearchSplitPoint: s.SearchSplitPoint,
		CheckTime:        s.CheckTime,
	})
	return s
}

// SetBookEnabled toggles opening book probes.
func (s *Searcher) SetBookEnabled(enabled bool) {
	s.bookEnabled.Store(enabled)
}

// Pool returns the worker pool this searcher drives.
func (s *Searcher) Pool() *pool.Pool { return s.p }

// TT returns the shared transposition table.
func (s *Searcher) TT() *engine.TranspositionTable { return s.tt }

// ResizeTT replaces the transposition table. Precondition: no search in
// flight.
func (s *Searcher) ResizeTT(sizeMB int) {
	s.tt = engine.NewTranspositionTable(sizeMB)
}

// Think runs one top-level search on the pool's root position. It executes
// on the main worker and returns when the search is finished or stopped.
func (s *Searcher) Think() {
	p := s.p
	pos := p.RootPos
	started := time.Now()

	best, ponder := pgn.Mv{}, pgn.Mv{}
	defer func() {
		p.SetTimerInterval(0)

		// In infinite or ponder mode the protocol forbids printing the
		// best move before the stop arrives.
		if (p.Limits.Infinite || p.Limits.Ponder) && !p.Signals.Stop.Load() {
			p.Main().WaitUntil(&p.Signals.Stop)
		}

		s.log.Info().
			Int64("nodes", p.NodesSearched()).
			Dur("time", time.Since(started)).
			Str("best", engine.MoveToUCI(best)).
			Msg("search finished")
		if s.onBestMove != nil {
			s.onBestMove(best, ponder)
		}
	}()

	if len(p.RootMoves) == 0 {
		s.log.Info().Str("fen", pos.FEN()).Msg("no legal root moves")
		return
	}
	best = p.RootMoves[0].Move

	if s.book != nil && s.bookEnabled.Load() {
		if mv, ok := s.book.Probe(pos); ok {
			s.log.Debug().Str("move", engine.MoveToUCI(mv)).Msg("book hit")
			best, ponder = mv, pgn.Mv{}
			return
		}
	}

	s.tt.NewGeneration()
	s.allocated.Store(s.allocateTime())
	p.SetTimerInterval(timerResolutionMs)

	maxDepth := p.Limits.Depth
	if maxDepth <= 0 || maxDepth > engine.MaxPly {
		maxDepth = engine.MaxPly
	}

	w := p.Main()
	ss := newStack()

	for depth := 1; depth <= maxDepth; depth++ {
		if p.Signals.Stop.Load() {
			break
		}

		v := s.searchRoot(w, pos, ss, engine.Depth(depth)*engine.OnePly)

		if p.Signals.Stop.Load() {
			break // partial iteration, keep the previous result
		}

		sortRootMoves(p.RootMoves)
		for _, rm := range p.RootMoves {
			rm.PrevScore = rm.Score
		}
		best = p.RootMoves[0].Move
		pv := s.extractPV(pos, best)
		if len(pv) > 1 {
			ponder = pv[1]
		}

		if s.onInfo != nil {
			s.onInfo(Info{
				Depth: depth,
				Score: v,
				Nodes: p.NodesSearched(),
				Time:  time.Since(started),
				PV:    pv,
			})
		}

		// With over half the budget gone a new iteration will not finish.
		if p.Limits.UseTimeManagement() &&
			p.Elapsed() > time.Duration(s.allocated.Load())*time.Millisecond/2 {
			break
		}
		if engine.IsMateValue(v) {
			break
		}
	}
}

// searchRoot searches every root move at the given depth and records the
// scores on the pool's root move list.
func (s *Searcher) searchRoot(w *pool.Worker, pos *engine.Position, ss []Stack, depth engine.Depth) engine.Value {
	p := s.p
	alpha, beta := -engine.ValueInfinite, engine.ValueInfinite
	best := -engine.ValueInfinite

	for i, rm := range p.RootMoves {
		p.Signals.FirstRootMove.Store(i == 0)

		child, err := pos.Do(rm.Move)
		if err != nil {
			continue
		}
		ss[0].CurrentMove = rm.Move

		v := -s.search(w, child, ss, 1, -beta, -alpha, depth-engine.OnePly, engine.NodePV)

		if p.Signals.Stop.Load() {
			return best
		}

		rm.Score = v
		if v > best {
			best = v
			if v > alpha {
				alpha = v
			}
		}
		if i == 0 && v < alpha {
			p.Signals.FailedLowAtRoot.Store(true)
		}
	}
	return best
}

// search is the recursive alpha-beta body. Interior nodes with enough
// remaining depth hand their sibling moves to the pool via Split.
func (s *Searcher) search(w *pool.Worker, pos *engine.Position, ss []Stack, ply int,
	alpha, beta engine.Value, depth engine.Depth, nt engine.NodeType) engine.Value {

	p := s.p
	w.AddNodes(1)
	w.UpdateMaxPly(ply)

	if p.Signals.Stop.Load() || w.CutoffOccurred() {
		return engine.ValueZero // discarded by the aborted caller
	}
	if ply >= engine.MaxPly {
		return engine.Evaluate(pos)
	}

	// Mate distance pruning
	if a := engine.MatedIn(ply); a > alpha {
		alpha = a
	}
	if b := engine.MateIn(ply + 1); b < beta {
		beta = b
	}
	if alpha >= beta {
		return alpha
	}

	if depth < engine.OnePly {
		return s.qsearch(w, pos, ply, alpha, beta)
	}

	key := pos.Key()
	var ttMove pgn.Mv
	if e, ok := s.tt.Probe(key); ok {
		ttMove = e.Move
		if nt != engine.NodePV && e.Depth >= depth {
			switch e.Bound {
			case engine.BoundExact:
				return e.Value
			case engine.BoundLower:
				if e.Value >= beta {
					return e.Value
				}
			case engine.BoundUpper:
				if e.Value <= alpha {
					return e.Value
				}
			}
		}
	}

	inCheck := pos.InCheck()
	mp := NewMovePicker(pos, ttMove)
	origAlpha := alpha
	bestValue := -engine.ValueInfinite
	var bestMove pgn.Mv
	moveCount := 0

	for {
		mv, ok := mp.NextMove()
		if !ok {
			break
		}
		moveCount++

		child, err := pos.Do(mv)
		if err != nil {
			continue
		}
		ss[ply].CurrentMove = mv

		childNT := engine.NodeNonPV
		if nt != engine.NodeNonPV && moveCount == 1 {
			childNT = engine.NodePV
		}
		v := -s.search(w, child, ss, ply+1, -beta, -alpha, depth-engine.OnePly, childNT)

		if p.Signals.Stop.Load() || w.CutoffOccurred() {
			return engine.ValueZero
		}

		if v > bestValue {
			bestValue = v
			bestMove = mv
			if v > alpha {
				alpha = v
			}
			if v >= beta {
				break
			}
		}

		// Young brothers wait: the first move has been searched
		// sequentially, the rest can be shared out.
		if depth >= p.MinimumSplitDepth() &&
			mp.Remaining() > 0 &&
			p.SlaveAvailable(w) {
			bestValue = p.Split(w, pos, &ss[ply], alpha, beta, bestValue,
				&bestMove, depth, pgn.Mv{}, moveCount, mp, nt, false)
			break
		}
	}

	if moveCount == 0 {
		if inCheck {
			return engine.MatedIn(ply)
		}
		return engine.ValueDraw
	}

	if !p.Signals.Stop.Load() {
		bound := engine.BoundUpper
		switch {
		case bestValue >= beta:
			bound = engine.BoundLower
		case bestValue > origAlpha:
			bound = engine.BoundExact
		}
		s.tt.Store(key, bestMove, bestValue, depth, bound)
	}
	return bestValue
}

// qsearch resolves captures so the static eval is not taken in the middle
// of an exchange.
func (s *Searcher) qsearch(w *pool.Worker, pos *engine.Position, ply int,
	alpha, beta engine.Value) engine.Value {

	w.AddNodes(1)
	w.UpdateMaxPly(ply)

	if s.p.Signals.Stop.Load() || w.CutoffOccurred() {
		return engine.ValueZero
	}
	if ply >= engine.MaxPly {
		return engine.Evaluate(pos)
	}

	standPat := engine.Evaluate(pos)
	if standPat >= beta {
		return standPat
	}
	if standPat > alpha {
		alpha = standPat
	}

	best := standPat
	for _, mv := range pos.LegalMoves() {
		if pos.PieceAt(uint8(mv.To)) == 0 && mv.Flags != flagEnPassant {
			continue
		}
		child, err := pos.Do(mv)
		if err != nil {
			continue
		}
		v := -s.qsearch(w, child, ply+1, -beta, -alpha)
		if v > best {
			best = v
			if v > alpha {
				alpha = v
			}
			if v >= beta {
				break
			}
		}
	}
	return best
}

// SearchSplitPoint performs one worker's share of a split point: pick moves
// off the shared picker until it runs dry, a beta cut-off lands, or the
// search is stopped. Runs inside the generic idle loop on both the master
// and every booked slave.
func (s *Searcher) SearchSplitPoint(w *pool.Worker, sp *pool.SplitPoint) {
	p := s.p
	frame := sp.SS.(*Stack)
	mp := sp.MP.(*MovePicker)
	pos := sp.Pos
	ply := frame.Ply + 1

	nodesBefore := w.Nodes()

	// Frames below the split are private to this worker.
	ss := newStack()
	if ply < len(ss) {
		ss[ply-1] = *frame
		ss[ply-1].SP = sp
	}

	for {
		if p.Signals.Stop.Load() || w.CutoffOccurred() {
			break
		}

		sp.Lock()
		if sp.BestValue >= sp.Beta || sp.Cutoff() {
			sp.Unlock()
			break
		}
		mv, ok := mp.NextMove()
		if !ok {
			sp.Unlock()
			break
		}
		sp.MoveCount++
		alpha := sp.Alpha
		sp.Unlock()

		child, err := pos.Do(mv)
		if err != nil {
			continue
		}
		ss[ply-1].CurrentMove = mv

		v := -s.search(w, child, ss, ply, -sp.Beta, -alpha,
			sp.Depth-engine.OnePly, engine.NodeNonPV)

		if p.Signals.Stop.Load() || w.CutoffOccurred() {
			break
		}

		sp.Lock()
		if v > sp.BestValue {
			sp.BestValue = v
			sp.BestMove = mv
			if v > sp.Alpha {
				sp.Alpha = v
			}
			if v >= sp.Beta {
				sp.SetCutoff()
			}
		}
		sp.Unlock()
	}

	sp.Lock()
	sp.Nodes += w.Nodes() - nodesBefore
	sp.Unlock()
}

// CheckTime runs on the timer worker every few milliseconds while a search
// is active. It raises the stop signal when the move's budget is spent.
func (s *Searcher) CheckTime() {
	p := s.p
	if p.Limits.Infinite {
		return
	}

	stop := false
	elapsed := p.Elapsed()

	if p.Limits.MoveTime > 0 &&
		elapsed >= time.Duration(p.Limits.MoveTime)*time.Millisecond {
		stop = true
	}
	if p.Limits.UseTimeManagement() &&
		elapsed >= time.Duration(s.allocated.Load())*time.Millisecond {
		stop = true
	}
	if p.Limits.Nodes > 0 && p.NodesSearched() >= p.Limits.Nodes {
		stop = true
	}

	if stop {
		if p.Limits.Ponder {
			// While pondering we may not stop outright; remember to stop
			// the moment the ponder hit arrives.
			p.Signals.StopOnPonderhit.Store(true)
			return
		}
		p.Signals.Stop.Store(true)
		p.Main().Notify()
	}
}

// allocateTime returns this move's time budget in milliseconds.
func (s *Searcher) allocateTime() int64 {
	p := s.p
	if !p.Limits.UseTimeManagement() {
		return 0
	}
	remaining, inc := p.Limits.WTime, p.Limits.WInc
	if !p.RootPos.WhiteToMove() {
		remaining, inc = p.Limits.BTime, p.Limits.BInc
	}
	movesToGo := p.Limits.MovesToGo
	if movesToGo <= 0 {
		movesToGo = 30
	}
	budget := remaining/movesToGo + inc/2
	if budget > remaining-50 {
		budget = remaining - 50
	}
	if budget < 1 {
		budget = 1
	}
	return int64(budget)
}

// extractPV rebuilds the principal variation by walking the transposition
// table from the root.
func (s *Searcher) extractPV(pos *engine.Position, first pgn.Mv) []pgn.Mv {
	pv := []pgn.Mv{first}
	seen := map[uint64]bool{pos.Key(): true}

	cur, err := pos.Do(first)
	if err != nil {
		return pv
	}
	for len(pv) < engine.MaxPly {
		key := cur.Key()
		if seen[key] {
			break // repetition in the table walk
		}
		seen[key] = true
		e, ok := s.tt.Probe(key)
		if !ok || e.Bound != engine.BoundExact {
			break
		}
		legal := false
		for _, mv := range cur.LegalMoves() {
			if mv == e.Move {
				legal = true
				break
			}
		}
		if !legal {
			break
		}
		pv = append(pv, e.Move)
		cur, err = cur.Do(e.Move)
		if err != nil {
			break
		}
	}
	return pv
}

func sortRootMoves(rms []*pool.RootMove) {
	// Stable insertion keeps earlier (already better ordered) moves in
	// front on equal scores.
	for i := 1; i < len(rms); i++ {
		for j := i; j > 0 && rms[j].Score > rms[j-1].Score; j-- {
			rms[j], rms[j-1] = rms[j-1], rms[j]
		}
	}
}
