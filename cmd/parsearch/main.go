package main

import (
	"flag"
	"os"
	"strconv"

	"github.com/freeeve/parsearch/internal/logx"
	"github.com/freeeve/parsearch/internal/uciproto"
)

func main() {
	var (
		threads  = flag.Int("threads", 1, "number of search workers")
		hashMB   = flag.Int("hash", 64, "transposition table size in MB")
		bookPath = flag.String("book", "", "path to opening book file (empty = disabled)")
	)
	flag.Parse()

	logger := logx.NewLogger()

	srv := uciproto.NewServer(uciproto.Config{
		Logger:   logger,
		HashMB:   *hashMB,
		BookPath: *bookPath,
	})
	if *threads > 1 {
		if err := srv.SetOption("Threads", strconv.Itoa(*threads)); err != nil {
			logger.Fatal().Err(err).Msg("set threads")
		}
	}

	logger.Info().Int("threads", *threads).Int("hash_mb", *hashMB).Msg("engine ready")

	if err := srv.Run(os.Stdin, os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("protocol loop")
	}
}
