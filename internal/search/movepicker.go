package search

import (
	"sort"
	"sync"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/parsearch/internal/engine"
)

// MovePicker hands out the moves of one node in a good-first order: the
// transposition table move, then captures by victim value, then the rest.
// A single picker is shared by every worker slaving at a split point, so
// NextMove serialises internally.
type MovePicker struct {
	mu    sync.Mutex
	moves []scoredMove
	cur   int
}

type scoredMove struct {
	move  pgn.Mv
	score engine.Value
}

// NewMovePicker builds a picker over the legal moves of pos.
func NewMovePicker(pos *engine.Position, ttMove pgn.Mv) *MovePicker {
	legal := pos.LegalMoves()
	moves := make([]scoredMove, 0, len(legal))
	for _, mv := range legal {
		var score engine.Value
		if mv == ttMove {
			score = engine.ValueInfinite
		} else if victim := pos.PieceAt(uint8(mv.To)); victim != 0 {
			score = 1000 + engine.PieceValue(victim)
		} else if mv.Flags == flagEnPassant {
			score = 1100
		}
		moves = append(moves, scoredMove{move: mv, score: score})
	}
	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].score > moves[j].score
	})
	return &MovePicker{moves: moves}
}

// NextMove returns the next move to search, or ok=false when exhausted.
func (mp *MovePicker) NextMove() (pgn.Mv, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.cur >= len(mp.moves) {
		return pgn.Mv{}, false
	}
	mv := mp.moves[mp.cur].move
	mp.cur++
	return mv, true
}

// Remaining returns how many moves have not been handed out yet.
func (mp *MovePicker) Remaining() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.moves) - mp.cur
}
