package uciproto

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// syncBuffer makes bytes.Buffer safe for the searcher goroutines that
// print info lines while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runScript(t *testing.T, script string) string {
	t.Helper()
	srv := NewServer(Config{Logger: zerolog.Nop(), HashMB: 8})
	var out syncBuffer
	if err := srv.Run(strings.NewReader(script), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestUCIHandshake(t *testing.T) {
	out := runScript(t, "uci\nisready\nquit\n")

	for _, want := range []string{
		"id name parsearch",
		"option name Threads type spin",
		"option name Min Split Depth type spin",
		"option name Max Threads per Split Point type spin",
		"option name Hash type spin",
		"uciok",
		"readyok",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGoDepthProducesBestMove(t *testing.T) {
	srv := NewServer(Config{Logger: zerolog.Nop(), HashMB: 8})
	var out syncBuffer
	srv.out = &out

	srv.execute("position fen 6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1")
	srv.execute("go depth 3")
	srv.s.Pool().WaitForThinkFinished()
	srv.Close()

	if !strings.Contains(out.String(), "bestmove a1a8") {
		t.Errorf("output missing mate move:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "info depth") {
		t.Errorf("output missing info lines:\n%s", out.String())
	}
}

func TestPositionWithMoves(t *testing.T) {
	srv := NewServer(Config{Logger: zerolog.Nop(), HashMB: 8})
	var out syncBuffer
	srv.out = &out

	srv.execute("position startpos moves e2e4 e7e5")
	srv.execute("go depth 2")
	srv.s.Pool().WaitForThinkFinished()
	srv.Close()

	if !strings.Contains(out.String(), "bestmove ") {
		t.Errorf("no best move after position with moves:\n%s", out.String())
	}
}

func TestSetOptionThreads(t *testing.T) {
	srv := NewServer(Config{Logger: zerolog.Nop(), HashMB: 8})
	defer srv.Close()

	if err := srv.SetOption("Threads", "4"); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if got := srv.s.Pool().Size(); got != 4 {
		t.Errorf("pool size = %d after Threads=4", got)
	}
	if err := srv.SetOption("Threads", "1"); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if got := srv.s.Pool().Size(); got != 1 {
		t.Errorf("pool size = %d after Threads=1", got)
	}
}

func TestOptionsRegistry(t *testing.T) {
	opts := NewOptions()
	opts.AddSpin("Threads", 1, 1, 64, nil)
	opts.AddCheck("Ponder", true, nil)
	opts.AddString("Book File", "", nil)

	if got := opts.Int("Threads"); got != 1 {
		t.Errorf("default Threads = %d", got)
	}

	// Clamped to range
	if err := opts.Set("Threads", "9999"); err != nil {
		t.Fatal(err)
	}
	if got := opts.Int("Threads"); got != 64 {
		t.Errorf("Threads after over-max set = %d, want 64", got)
	}

	// Case-insensitive names
	if err := opts.Set("threads", "8"); err != nil {
		t.Fatal(err)
	}
	if got := opts.Int("THREADS"); got != 8 {
		t.Errorf("case-insensitive lookup = %d, want 8", got)
	}

	if err := opts.Set("No Such Option", "1"); err == nil {
		t.Error("Set accepted an unknown option")
	}

	if err := opts.Set("Threads", "banana"); err == nil {
		t.Error("Set accepted a non-integer spin value")
	}

	fired := false
	opts.AddSpin("Hash", 64, 1, 4096, func(o *Option) { fired = true })
	if err := opts.Set("Hash", "128"); err != nil {
		t.Fatal(err)
	}
	if !fired {
		t.Error("OnChange hook did not fire")
	}
}

func TestParseSetOption(t *testing.T) {
	tests := []struct {
		args  []string
		name  string
		value string
	}{
		{[]string{"name", "Threads", "value", "4"}, "Threads", "4"},
		{[]string{"name", "Min", "Split", "Depth", "value", "6"}, "Min Split Depth", "6"},
		{[]string{"name", "Ponder", "value", "false"}, "Ponder", "false"},
	}
	for _, tt := range tests {
		name, value := parseSetOption(tt.args)
		if name != tt.name || value != tt.value {
			t.Errorf("parseSetOption(%v) = %q, %q; want %q, %q",
				tt.args, name, value, tt.name, tt.value)
		}
	}
}

func TestFormatScore(t *testing.T) {
	if got := formatScore(123); got != "cp 123" {
		t.Errorf("formatScore(123) = %q", got)
	}
	if got := formatScore(-50); got != "cp -50" {
		t.Errorf("formatScore(-50) = %q", got)
	}
	// Mate in 3 plies = mate in 2 moves
	if got := formatScore(29997); got != "mate 2" {
		t.Errorf("formatScore(mate in 3 plies) = %q", got)
	}
	if got := formatScore(-29997); got != "mate -2" {
		t.Errorf("formatScore(mated in 3 plies) = %q", got)
	}
}
