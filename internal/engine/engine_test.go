package engine

import (
	"testing"

	"github.com/freeeve/pgn/v3"
)

func TestPositionStartposRoundTrip(t *testing.T) {
	pos := NewPosition()
	if got := len(pos.LegalMoves()); got != 20 {
		t.Fatalf("starting position has %d legal moves, want 20", got)
	}
	if !pos.WhiteToMove() {
		t.Error("white not to move in starting position")
	}
	if pos.InCheck() {
		t.Error("starting position reported in check")
	}

	fen := pos.FEN()
	again, err := NewPositionFEN(fen)
	if err != nil {
		t.Fatalf("NewPositionFEN(%q): %v", fen, err)
	}
	if again.Packed() != pos.Packed() {
		t.Error("FEN round trip changed the packed position")
	}
}

func TestPositionDoIsCopyOnWrite(t *testing.T) {
	pos := NewPosition()
	mv, err := MoveFromUCI(pos, "e2e4")
	if err != nil {
		t.Fatalf("MoveFromUCI: %v", err)
	}
	child, err := pos.Do(mv)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if child.WhiteToMove() {
		t.Error("side to move unchanged after a move")
	}
	if pos.Packed() == child.Packed() {
		t.Error("child shares the parent's packed position")
	}
	// Parent unchanged
	if got := len(pos.LegalMoves()); got != 20 {
		t.Errorf("parent position mutated: %d legal moves", got)
	}
}

func TestMoveUCIRoundTrip(t *testing.T) {
	pos := NewPosition()
	for _, mv := range pos.LegalMoves() {
		s := MoveToUCI(mv)
		back, err := MoveFromUCI(pos, s)
		if err != nil {
			t.Errorf("MoveFromUCI(%q): %v", s, err)
			continue
		}
		if back != mv {
			t.Errorf("round trip %q: got %+v want %+v", s, back, mv)
		}
	}
}

func TestMoveFromUCIRejectsGarbage(t *testing.T) {
	pos := NewPosition()
	for _, s := range []string{"", "e2", "z2e4", "e2e9", "e2e4x", "e7e5"} {
		if _, err := MoveFromUCI(pos, s); err == nil {
			t.Errorf("MoveFromUCI(%q) accepted", s)
		}
	}
}

func TestEvaluateStartposBalanced(t *testing.T) {
	pos := NewPosition()
	if v := Evaluate(pos); v != 0 {
		t.Errorf("starting position evaluates to %d, want 0", v)
	}
}

func TestEvaluateMaterialEdge(t *testing.T) {
	// White up a rook
	pos, err := NewPositionFEN("k7/8/8/8/8/8/8/R3K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if v := Evaluate(pos); v < 400 {
		t.Errorf("rook-up position evaluates to %d for white", v)
	}
	// Same position from black's perspective
	pos2, err := NewPositionFEN("k7/8/8/8/8/8/8/R3K3 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if v := Evaluate(pos2); v > -400 {
		t.Errorf("rook-down side evaluates to %d", v)
	}
}

func TestMateValueHelpers(t *testing.T) {
	if MateIn(3) != ValueMate-3 {
		t.Error("MateIn(3)")
	}
	if MatedIn(3) != -ValueMate+3 {
		t.Error("MatedIn(3)")
	}
	for _, v := range []Value{MateIn(1), MateIn(50), MatedIn(1), MatedIn(50)} {
		if !IsMateValue(v) {
			t.Errorf("IsMateValue(%d) = false", v)
		}
	}
	for _, v := range []Value{0, 100, -250, ValueMate - MaxPly - 1} {
		if IsMateValue(v) {
			t.Errorf("IsMateValue(%d) = true", v)
		}
	}
}

func TestTranspositionTable(t *testing.T) {
	tt := NewTranspositionTable(1)

	key := uint64(0xdeadbeefcafe)
	mv := pgn.Mv{From: 12, To: 28}
	tt.Store(key, mv, 123, 4*OnePly, BoundExact)

	e, ok := tt.Probe(key)
	if !ok {
		t.Fatal("stored entry not found")
	}
	if e.Value != 123 || e.Move != mv || e.Bound != BoundExact || e.Depth != 4*OnePly {
		t.Errorf("probe returned %+v", e)
	}

	if _, ok := tt.Probe(key + 1); ok {
		t.Error("probe hit on a different key")
	}

	// A shallower store on the same key in the same generation must not
	// clobber the deeper entry.
	tt.Store(key, pgn.Mv{}, 50, 2*OnePly, BoundUpper)
	e, ok = tt.Probe(key)
	if !ok || e.Value != 123 {
		t.Errorf("shallower store replaced deeper entry: %+v", e)
	}

	// A deeper store must replace it.
	tt.Store(key, mv, 77, 6*OnePly, BoundLower)
	e, ok = tt.Probe(key)
	if !ok || e.Value != 77 {
		t.Errorf("deeper store did not replace: %+v", e)
	}

	tt.Clear()
	if _, ok := tt.Probe(key); ok {
		t.Error("probe hit after Clear")
	}
}

func TestPositionKeysDiffer(t *testing.T) {
	pos := NewPosition()
	seen := map[uint64]string{}
	for _, mv := range pos.LegalMoves() {
		child, err := pos.Do(mv)
		if err != nil {
			t.Fatalf("Do(%s): %v", MoveToUCI(mv), err)
		}
		key := child.Key()
		if prev, dup := seen[key]; dup {
			t.Errorf("key collision between %s and %s", prev, MoveToUCI(mv))
		}
		seen[key] = MoveToUCI(mv)
	}
}
