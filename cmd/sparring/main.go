// sparring plays fixed-depth games between parsearch and an external UCI
// engine, several games at a time, and reports the score.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/freeeve/pgn/v3"
	"github.com/freeeve/uci"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/parsearch/internal/engine"
	"github.com/freeeve/parsearch/internal/logx"
	"github.com/freeeve/parsearch/internal/pool"
	"github.com/freeeve/parsearch/internal/search"
)

func main() {
	var (
		enginePath  = flag.String("engine", "", "path to the opponent UCI engine")
		games       = flag.Int("games", 2, "number of games to play")
		depth       = flag.Int("depth", 6, "search depth for both sides, plies")
		threads     = flag.Int("threads", 4, "parsearch worker count")
		concurrency = flag.Int("concurrency", 1, "games in flight at once")
		maxMoves    = flag.Int("max-moves", 200, "adjudicate as draw after this many moves")
	)
	flag.Parse()

	logger := logx.NewLogger()
	if *enginePath == "" {
		logger.Fatal().Msg("-engine is required")
	}

	var wins, draws, losses atomic.Int64

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)
	for i := 0; i < *games; i++ {
		gameID := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			// Alternate colors between games
			weAreWhite := gameID%2 == 0
			result, err := playGame(logger.With().Int("game", gameID).Logger(),
				*enginePath, *depth, *threads, *maxMoves, weAreWhite)
			if err != nil {
				return fmt.Errorf("game %d: %w", gameID, err)
			}
			switch result {
			case 1:
				wins.Add(1)
			case 0:
				draws.Add(1)
			case -1:
				losses.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("sparring aborted")
	}

	logger.Info().
		Int64("wins", wins.Load()).
		Int64("draws", draws.Load()).
		Int64("losses", losses.Load()).
		Msg("sparring complete")
}

// playGame runs one game and returns +1/0/-1 from parsearch's perspective.
func playGame(log zerolog.Logger, enginePath string, depth, threads, maxMoves int, weAreWhite bool) (int, error) {
	opp, err := uci.NewEngine(enginePath)
	if err != nil {
		return 0, fmt.Errorf("start opponent: %w", err)
	}
	defer opp.Close()
	if err := opp.SetOptions(uci.Options{
		Hash:    128,
		Threads: 1,
		MultiPV: 1,
		Ponder:  false,
		OwnBook: false,
	}); err != nil {
		return 0, fmt.Errorf("opponent options: %w", err)
	}

	opts := fixedOptions{threads: threads, splitDepth: 4, perSplit: 5}
	bestCh := make(chan pgn.Mv, 1)
	s := search.NewSearcher(search.Config{
		Logger:  log,
		Options: opts,
		HashMB:  128,
		OnBestMove: func(best, ponder pgn.Mv) {
			bestCh <- best
		},
	})
	s.Pool().Init()
	defer s.Pool().Exit()

	pos := engine.NewPosition()
	for move := 0; move < maxMoves*2; move++ {
		legal := pos.LegalMoves()
		if len(legal) == 0 {
			if !pos.InCheck() {
				return 0, nil // stalemate
			}
			// Side to move is mated
			loserIsWhite := pos.WhiteToMove()
			if loserIsWhite == weAreWhite {
				return -1, nil
			}
			return 1, nil
		}

		ourMove := pos.WhiteToMove() == weAreWhite
		var mv pgn.Mv
		if ourMove {
			s.Pool().StartThinking(pos, pool.Limits{Depth: depth}, nil)
			s.Pool().WaitForThinkFinished()
			mv = <-bestCh
		} else {
			if err := opp.SetFEN(pos.FEN()); err != nil {
				return 0, fmt.Errorf("set fen: %w", err)
			}
			results, err := opp.GoDepth(depth, uci.HighestDepthOnly)
			if err != nil {
				return 0, fmt.Errorf("opponent search: %w", err)
			}
			mv, err = engine.MoveFromUCI(pos, strings.TrimSpace(results.BestMove))
			if err != nil {
				return 0, fmt.Errorf("opponent move: %w", err)
			}
		}

		next, err := pos.Do(mv)
		if err != nil {
			return 0, fmt.Errorf("apply %s: %w", engine.MoveToUCI(mv), err)
		}
		pos = next
	}

	log.Info().Msg("move limit reached, adjudicating draw")
	return 0, nil
}

// fixedOptions satisfies pool.OptionSource with constant values.
type fixedOptions struct {
	threads    int
	splitDepth int
	perSplit   int
}

func (o fixedOptions) Int(name string) int {
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
