package engine

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"

	"github.com/freeeve/pgn/v3"
)

// Position wraps a game state with the counters the search needs. The
// underlying state is immutable once constructed; making a move produces a
// fresh Position via the packed encoding, so concurrent readers never see a
// half-applied move.
type Position struct {
	gs     *pgn.GameState
	packed pgn.PackedPosition
	nodes  atomic.Int64
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	gs := pgn.NewStartingPosition()
	return &Position{gs: gs, packed: gs.Pack()}
}

// NewPositionFEN parses a FEN string into a Position.
func NewPositionFEN(fen string) (*Position, error) {
	gs, err := pgn.NewGame(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return &Position{gs: gs, packed: gs.Pack()}, nil
}

// Clone returns an independent copy sharing no mutable state. The node
// counter starts at zero.
func (p *Position) Clone() *Position {
	gs := p.packed.Unpack()
	return &Position{gs: gs, packed: p.packed}
}

// Do applies mv to a copy of the position and returns the child position.
func (p *Position) Do(mv pgn.Mv) (*Position, error) {
	child := p.packed.Unpack()
	if child == nil {
		return nil, fmt.Errorf("unpack position")
	}
	if err := pgn.ApplyMove(child, mv); err != nil {
		return nil, fmt.Errorf("apply move %s: %w", MoveToUCI(mv), err)
	}
	return &Position{gs: child, packed: child.Pack()}, nil
}

// LegalMoves generates all legal moves in the position.
func (p *Position) LegalMoves() []pgn.Mv {
	return pgn.GenerateLegalMoves(p.gs)
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.gs.IsInCheck()
}

// FEN returns the position in FEN notation.
func (p *Position) FEN() string {
	return p.gs.ToFEN()
}

// WhiteToMove reports whether white is to move.
func (p *Position) WhiteToMove() bool {
	return !strings.Contains(p.FEN(), " b ")
}

// Packed returns the packed encoding, usable as a map key.
func (p *Position) Packed() pgn.PackedPosition {
	return p.packed
}

// PieceAt returns the piece character on sq (0 if empty).
func (p *Position) PieceAt(sq uint8) byte {
	return byte(p.gs.PieceAt(pgn.Square(sq)))
}

// Key returns a 64-bit hash of the position for the transposition table.
func (p *Position) Key() uint64 {
	h := fnv.New64a()
	h.Write(p.packed[:])
	return h.Sum64()
}

// Nodes returns the number of nodes searched from this position.
func (p *Position) Nodes() int64 {
	return p.nodes.Load()
}

// AddNodes adds n to the searched-node counter.
func (p *Position) AddNodes(n int64) {
	p.nodes.Add(n)
}

// ResetNodes clears the searched-node counter.
func (p *Position) ResetNodes() {
	p.nodes.Store(0)
}
