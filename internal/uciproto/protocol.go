// Package uciproto speaks the UCI text protocol on a reader/writer pair and
// drives the searcher from it.
package uciproto

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/parsearch/internal/book"
	"github.com/freeeve/parsearch/internal/engine"
	"github.com/freeeve/parsearch/internal/pool"
	"github.com/freeeve/parsearch/internal/search"
)

const (
	engineName   = "parsearch"
	engineAuthor = "the parsearch authors"
)

// Config configures a protocol server.
type Config struct {
	Logger   zerolog.Logger
	HashMB   int
	BookPath string // optional; enables OwnBook when readable
}

// Server owns the option registry, the searcher and its pool, and runs the
// command loop.
type Server struct {
	log  zerolog.Logger
	opts *Options
	s    *search.Searcher

	outMu sync.Mutex
	out   io.Writer

	pos *engine.Position
}

// NewServer builds the option registry and the searcher, and spins up the
// worker pool.
func NewServer(cfg Config) *Server {
	srv := &Server{
		log:  cfg.Logger,
		opts: NewOptions(),
		pos:  engine.NewPosition(),
	}

	var bk *book.Book
	if cfg.BookPath != "" {
		var err error
		bk, err = book.Open(cfg.BookPath)
		if err != nil {
			cfg.Logger.Warn().Err(err).Str("path", cfg.BookPath).Msg("book disabled")
		} else {
			cfg.Logger.Info().Int("positions", bk.Len()).Msg("opening book loaded")
		}
	}

	srv.s = search.NewSearcher(search.Config{
		Logger:     cfg.Logger,
		Options:    srv.opts,
		HashMB:     cfg.HashMB,
		Book:       bk,
		OnInfo:     srv.printInfo,
		OnBestMove: srv.printBestMove,
	})
	p := srv.s.Pool()

	poolChanged := func(*Option) {
		p.WaitForThinkFinished()
		p.ReadUCIOptions()
	}
	srv.opts.AddSpin("Threads", 1, 1, pool.MaxWorkers, poolChanged)
	srv.opts.AddSpin("Min Split Depth", 4, 0, 12, poolChanged)
	srv.opts.AddSpin("Max Threads per Split Point", 5, 2, 8, poolChanged)
	srv.opts.AddSpin("Hash", 64, 1, 4096, func(o *Option) {
		p.WaitForThinkFinished()
		srv.s.ResizeTT(srv.opts.Int("Hash"))
	})
	srv.opts.AddCheck("Use Sleeping Threads", true, func(o *Option) {
		p.SetSleepWhileIdle(srv.opts.Bool("Use Sleeping Threads"))
	})
	srv.opts.AddCheck("OwnBook", bk != nil, func(o *Option) {
		srv.s.SetBookEnabled(srv.opts.Bool("OwnBook"))
	})
	srv.opts.AddCheck("Ponder", true, nil)

	p.Init()
	return srv
}

// SetOption programmatically applies an option, as setoption would.
func (srv *Server) SetOption(name, value string) error {
	return srv.opts.Set(name, value)
}

// Searcher exposes the underlying searcher, mainly for embedding the
// engine in another program.
func (srv *Server) Searcher() *search.Searcher { return srv.s }

// Close drains any running search and tears down the pool. Safe to call
// more than once.
func (srv *Server) Close() {
	p := srv.s.Pool()
	if p.Size() == 0 {
		return
	}
	p.Signals.Stop.Store(true)
	p.Main().Notify()
	p.WaitForThinkFinished()
	p.Exit()
}

// Run reads commands from r until quit or EOF, writing replies to w.
func (srv *Server) Run(r io.Reader, w io.Writer) error {
	srv.out = w

	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		if !srv.execute(line) {
			break
		}
	}
	srv.Close()
	return scan.Err()
}

// execute handles one command line; it returns false on quit.
func (srv *Server) execute(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	p := srv.s.Pool()

	switch cmd {
	case "uci":
		srv.send("id name " + engineName)
		srv.send("id author " + engineAuthor)
		for _, l := range srv.opts.Announce() {
			srv.send(l)
		}
		srv.send("uciok")

	case "isready":
		srv.send("readyok")

	case "setoption":
		name, value := parseSetOption(args)
		if err := srv.opts.Set(name, value); err != nil {
			srv.log.Warn().Err(err).Msg("setoption")
		}

	case "ucinewgame":
		p.WaitForThinkFinished()
		srv.s.TT().Clear()

	case "position":
		if err := srv.setPosition(args); err != nil {
			srv.log.Warn().Err(err).Msg("position")
		}

	case "go":
		limits, searchMoves := srv.parseGo(args)
		p.StartThinking(srv.pos, limits, searchMoves)

	case "stop":
		p.Signals.Stop.Store(true)
		p.Main().Notify()

	case "ponderhit":
		if p.Signals.StopOnPonderhit.Load() {
			p.Signals.Stop.Store(true)
		}
		p.Limits.Ponder = false
		p.Main().Notify()

	case "quit":
		p.Signals.Stop.Store(true)
		p.Main().Notify()
		return false

	default:
		srv.log.Debug().Str("cmd", cmd).Msg("unknown command")
	}
	return true
}

func (srv *Server) send(line string) {
	srv.outMu.Lock()
	defer srv.outMu.Unlock()
	fmt.Fprintln(srv.out, line)
}

func (srv *Server) printInfo(info search.Info) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "info depth %d score %s nodes %d time %d",
		info.Depth, formatScore(info.Score), info.Nodes,
		info.Time.Milliseconds())
	if ms := info.Time.Milliseconds(); ms > 0 {
		fmt.Fprintf(&sb, " nps %d", info.Nodes*1000/ms)
	}
	if len(info.PV) > 0 {
		sb.WriteString(" pv")
		for _, mv := range info.PV {
			sb.WriteString(" ")
			sb.WriteString(engine.MoveToUCI(mv))
		}
	}
	srv.send(sb.String())
}

func (srv *Server) printBestMove(best, ponder pgn.Mv) {
	line := "bestmove " + engine.MoveToUCI(best)
	if ponder != (pgn.Mv{}) {
		line += " ponder " + engine.MoveToUCI(ponder)
	}
	srv.send(line)
}

// formatScore renders a score in UCI terms: centipawns, or moves to mate.
func formatScore(v engine.Value) string {
	if engine.IsMateValue(v) {
		plies := int(engine.ValueMate - v)
		if v < 0 {
			plies = -int(engine.ValueMate + v)
		}
		// Round plies to full moves, away from zero
		moves := (plies + 1) / 2
		if plies < 0 {
			moves = (plies - 1) / 2
		}
		return fmt.Sprintf("mate %d", moves)
	}
	return fmt.Sprintf("cp %d", int(v))
}

func parseSetOption(args []string) (name, value string) {
	var names, values []string
	target := &names
	for _, a := range args {
		switch a {
		case "name":
			target = &names
		case "value":
			target = &values
		default:
			*target = append(*target, a)
		}
	}
	return strings.Join(names, " "), strings.Join(values, " ")
}

// setPosition handles "position [startpos | fen <fen>] [moves ...]".
func (srv *Server) setPosition(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("position needs startpos or fen")
	}

	var pos *engine.Position
	var moveIdx int
	switch args[0] {
	case "startpos":
		pos = engine.NewPosition()
		moveIdx = 1
	case "fen":
		fenEnd := len(args)
		for i, a := range args {
			if a == "moves" {
				fenEnd = i
				break
			}
		}
		var err error
		pos, err = engine.NewPositionFEN(strings.Join(args[1:fenEnd], " "))
		if err != nil {
			return err
		}
		moveIdx = fenEnd
	default:
		return fmt.Errorf("position: unknown form %q", args[0])
	}

	if moveIdx < len(args) && args[moveIdx] == "moves" {
		for _, ms := range args[moveIdx+1:] {
			mv, err := engine.MoveFromUCI(pos, ms)
			if err != nil {
				return err
			}
			next, err := pos.Do(mv)
			if err != nil {
				return err
			}
			pos = next
		}
	}

	srv.pos = pos
	return nil
}

// parseGo handles the "go" command arguments.
func (srv *Server) parseGo(args []string) (pool.Limits, []pgn.Mv) {
	var limits pool.Limits
	var searchMoves []pgn.Mv

	intArg := func(i int) int {
		if i+1 >= len(args) {
			return 0
		}
		n, _ := strconv.Atoi(args[i+1])
		return n
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "wtime":
			limits.WTime = intArg(i)
		case "btime":
			limits.BTime = intArg(i)
		case "winc":
			limits.WInc = intArg(i)
		case "binc":
			limits.BInc = intArg(i)
		case "movestogo":
			limits.MovesToGo = intArg(i)
		case "depth":
			limits.Depth = intArg(i)
		case "nodes":
			limits.Nodes = int64(intArg(i))
		case "mate":
			limits.Mate = intArg(i)
		case "movetime":
			limits.MoveTime = intArg(i)
		case "infinite":
			limits.Infinite = true
		case "ponder":
			limits.Ponder = true
		case "searchmoves":
			for _, ms := range args[i+1:] {
				mv, err := engine.MoveFromUCI(srv.pos, ms)
				if err == nil {
					searchMoves = append(searchMoves, mv)
				}
			}
			i = len(args)
		}
	}
	return limits, searchMoves
}
