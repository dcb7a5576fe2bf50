// mkbook builds a compressed opening book from a PGN file: every position
// up to the configured depth contributes the moves actually played, with
// weights from how often each was chosen.
package main

import (
	"flag"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/parsearch/internal/book"
	"github.com/freeeve/parsearch/internal/logx"
)

func main() {
	var (
		pgnPath  = flag.String("pgn", "", "input PGN file")
		outPath  = flag.String("out", "book.pbk", "output book file")
		maxDepth = flag.Int("max-depth", 16, "book depth in plies")
		minCount = flag.Int("min-count", 2, "minimum times a move must occur")
	)
	flag.Parse()

	logger := logx.NewLogger()
	if *pgnPath == "" {
		logger.Fatal().Msg("-pgn is required")
	}

	type lineMove struct {
		key pgn.PackedPosition
		mv  pgn.Mv
	}
	counts := make(map[lineMove]int)

	parser := pgn.Games(*pgnPath)
	games := 0
	for game := range parser.Games {
		pos := pgn.NewStartingPosition()
		for depth, mv := range game.Moves {
			if depth >= *maxDepth {
				break
			}
			counts[lineMove{key: pos.Pack(), mv: mv}]++
			if err := pgn.ApplyMove(pos, mv); err != nil {
				break
			}
		}
		games++
		if games%10000 == 0 {
			logger.Info().Int("games", games).Int("lines", len(counts)).Msg("parsing")
		}
	}
	if err := parser.Err(); err != nil {
		logger.Fatal().Err(err).Msg("parse pgn")
	}

	w := book.NewWriter()
	kept := 0
	for lm, n := range counts {
		if n < *minCount {
			continue
		}
		weight := n
		if weight > 255 {
			weight = 255
		}
		w.AddPacked(lm.key, lm.mv, uint8(weight))
		kept++
	}

	if err := w.WriteFile(*outPath); err != nil {
		logger.Fatal().Err(err).Msg("write book")
	}
	logger.Info().
		Int("games", games).
		Int("moves", kept).
		Str("out", *outPath).
		Msg("book written")
}
