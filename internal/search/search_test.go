package search

import (
	"testing"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/parsearch/internal/engine"
	"github.com/freeeve/parsearch/internal/pool"
)

type stubOptions struct {
	threads    int
	splitDepth int
	perSplit   int
}

func (o *stubOptions) Int(name string) int {
	switch name {
	case "Threads":
		return o.threads
	case "Min Split Depth":
		return o.splitDepth
	case "Max Threads per Split Point":
		return o.perSplit
	}
	return 0
}

type harness struct {
	s     *Searcher
	infos []Info
	best  chan pgn.Mv
}

func newHarness(t *testing.T, threads, splitDepth int) *harness {
	t.Helper()
	h := &harness{best: make(chan pgn.Mv, 4)}
	h.s = NewSearcher(Config{
		Logger:  zerolog.Nop(),
		Options: &stubOptions{threads: threads, splitDepth: splitDepth, perSplit: 5},
		HashMB:  16,
		OnInfo: func(info Info) {
			h.infos = append(h.infos, info)
		},
		OnBestMove: func(best, ponder pgn.Mv) {
			h.best <- best
		},
	})
	h.s.Pool().Init()
	t.Cleanup(h.s.Pool().Exit)
	return h
}

func (h *harness) searchToDepth(t *testing.T, fen string, depth int) pgn.Mv {
	t.Helper()
	pos, err := engine.NewPositionFEN(fen)
	if err != nil {
		t.Fatalf("NewPositionFEN: %v", err)
	}
	h.s.Pool().StartThinking(pos, pool.Limits{Depth: depth}, nil)
	h.s.Pool().WaitForThinkFinished()
	select {
	case mv := <-h.best:
		return mv
	case <-time.After(30 * time.Second):
		t.Fatal("no best move reported")
		return pgn.Mv{}
	}
}

const backRankMateFEN = "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1"

func TestFindsMateInOne(t *testing.T) {
	h := newHarness(t, 1, 4)
	best := h.searchToDepth(t, backRankMateFEN, 3)
	if got := engine.MoveToUCI(best); got != "a1a8" {
		t.Fatalf("best move = %s, want a1a8", got)
	}
	last := h.infos[len(h.infos)-1]
	if !engine.IsMateValue(last.Score) || last.Score < 0 {
		t.Errorf("final score = %d, want a winning mate score", last.Score)
	}
}

func TestParallelSearchFindsMate(t *testing.T) {
	h := newHarness(t, 4, 1) // split aggressively
	best := h.searchToDepth(t, backRankMateFEN, 4)
	if got := engine.MoveToUCI(best); got != "a1a8" {
		t.Fatalf("best move with 4 workers = %s, want a1a8", got)
	}
	if n := h.s.Pool().NodesSearched(); n == 0 {
		t.Error("no nodes counted across workers")
	}
}

func TestRecapturesObviousHangingPiece(t *testing.T) {
	// Black queen en prise on d5, white to move: take it.
	h := newHarness(t, 1, 4)
	best := h.searchToDepth(t, "k7/8/8/3q4/4P3/8/8/K7 w - - 0 1", 4)
	if got := engine.MoveToUCI(best); got != "e4d5" {
		t.Fatalf("best move = %s, want e4d5", got)
	}
}

func TestInfoDepthsIncrease(t *testing.T) {
	h := newHarness(t, 1, 4)
	h.searchToDepth(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 4)
	if len(h.infos) == 0 {
		t.Fatal("no info lines reported")
	}
	for i := 1; i < len(h.infos); i++ {
		if h.infos[i].Depth <= h.infos[i-1].Depth {
			t.Errorf("info depth did not increase: %d then %d",
				h.infos[i-1].Depth, h.infos[i].Depth)
		}
	}
}

func TestStopSignalEndsInfiniteSearch(t *testing.T) {
	h := newHarness(t, 1, 4)
	p := h.s.Pool()

	pos := engine.NewPosition()
	p.StartThinking(pos, pool.Limits{Infinite: true}, nil)

	time.Sleep(50 * time.Millisecond)
	p.Signals.Stop.Store(true)
	p.Main().Notify()

	done := make(chan struct{})
	go func() {
		p.WaitForThinkFinished()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("infinite search did not stop on signal")
	}

	select {
	case <-h.best:
	case <-time.After(time.Second):
		t.Fatal("stopped search reported no best move")
	}
}

func TestStalematePositionReportsNoMove(t *testing.T) {
	h := newHarness(t, 1, 4)
	// Black to move, stalemated
	best := h.searchToDepth(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", 3)
	if best != (pgn.Mv{}) {
		t.Fatalf("stalemate returned move %s", engine.MoveToUCI(best))
	}
}

func TestCheckTimeMoveTime(t *testing.T) {
	h := newHarness(t, 1, 4)
	p := h.s.Pool()

	p.Limits = pool.Limits{MoveTime: 10}
	p.SearchStart = time.Now().Add(-time.Second)
	h.s.CheckTime()
	if !p.Signals.Stop.Load() {
		t.Fatal("CheckTime did not stop an overrun movetime search")
	}

	p.Signals.Stop.Store(false)
	p.Limits = pool.Limits{MoveTime: 10_000}
	p.SearchStart = time.Now()
	h.s.CheckTime()
	if p.Signals.Stop.Load() {
		t.Fatal("CheckTime stopped a search well inside its budget")
	}
}

func TestAllocateTimeStaysWithinClock(t *testing.T) {
	h := newHarness(t, 1, 4)
	p := h.s.Pool()
	p.RootPos = engine.NewPosition()

	p.Limits = pool.Limits{WTime: 60_000, WInc: 1000}
	got := h.s.allocateTime()
	if got <= 0 || got >= 60_000 {
		t.Fatalf("allocated %dms from a 60s clock", got)
	}

	p.Limits = pool.Limits{WTime: 80}
	got = h.s.allocateTime()
	if got <= 0 || got > 80 {
		t.Fatalf("allocated %dms from an 80ms clock", got)
	}
}

func TestMovePickerTTMoveFirst(t *testing.T) {
	pos := engine.NewPosition()
	legal := pos.LegalMoves()
	ttMove := legal[len(legal)-1]

	mp := NewMovePicker(pos, ttMove)
	first, ok := mp.NextMove()
	if !ok {
		t.Fatal("picker empty on the starting position")
	}
	if first != ttMove {
		t.Errorf("first move = %s, want tt move %s",
			engine.MoveToUCI(first), engine.MoveToUCI(ttMove))
	}

	count := 1
	for {
		if _, ok := mp.NextMove(); !ok {
			break
		}
		count++
	}
	if count != len(legal) {
		t.Errorf("picker handed out %d moves, want %d", count, len(legal))
	}
}

func TestMovePickerCapturesBeforeQuiets(t *testing.T) {
	// White pawn e4 can take the d5 queen; plenty of quiet moves exist.
	pos, err := engine.NewPositionFEN("k7/8/8/3q4/4P3/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	mp := NewMovePicker(pos, pgn.Mv{})
	first, ok := mp.NextMove()
	if !ok {
		t.Fatal("picker empty")
	}
	if got := engine.MoveToUCI(first); got != "e4d5" {
		t.Errorf("first move = %s, want the capture e4d5", got)
	}
}
