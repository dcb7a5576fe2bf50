package search

import (
	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/parsearch/internal/pool"
)

// Stack is one frame of per-ply search state. A slave joining a split point
// allocates its own frames below the split and links back to the shared
// split point through SP.
type Stack struct {
	Ply         int
	CurrentMove pgn.Mv
	Killers     [2]pgn.Mv
	SP          *pool.SplitPoint
}

func newStack() []Stack {
	ss := make([]Stack, maxStackPly)
	for i := range ss {
		ss[i].Ply = i
	}
	return ss
}
