package book

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/freeeve/parsearch/internal/engine"
)

func TestBookWriteReadProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.pbk")

	start := engine.NewPosition()

	e4, err := engine.MoveFromUCI(start, "e2e4")
	if err != nil {
		t.Fatal(err)
	}
	d4, err := engine.MoveFromUCI(start, "d2d4")
	if err != nil {
		t.Fatal(err)
	}

	after, err := start.Do(e4)
	if err != nil {
		t.Fatal(err)
	}
	e5, err := engine.MoveFromUCI(after, "e7e5")
	if err != nil {
		t.Fatal(err)
	}

	w := NewWriter()
	w.Add(start, e4, 200)
	w.Add(start, d4, 100)
	w.Add(after, e5, 50)

	if err := w.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2 positions", b.Len())
	}

	// Heaviest move wins at the start position.
	mv, ok := b.Probe(start)
	if !ok {
		t.Fatal("start position not found in book")
	}
	if got := engine.MoveToUCI(mv); got != "e2e4" {
		t.Errorf("probe = %s, want e2e4", got)
	}

	mv, ok = b.Probe(after)
	if !ok {
		t.Fatal("1.e4 position not found in book")
	}
	if got := engine.MoveToUCI(mv); got != "e7e5" {
		t.Errorf("probe after e4 = %s, want e7e5", got)
	}

	// A position never added misses.
	afterD4, err := start.Do(d4)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Probe(afterD4); ok {
		t.Error("probe hit on a position not in the book")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pbk")
	if err := os.WriteFile(path, []byte("not a book at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("Open accepted a garbage file")
	}
	if _, err := Open(filepath.Join(dir, "missing.pbk")); err == nil {
		t.Fatal("Open accepted a missing file")
	}
}
