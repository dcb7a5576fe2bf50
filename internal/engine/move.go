package engine

import (
	"fmt"

	"github.com/freeeve/pgn/v3"
)

const (
	moveFiles = "abcdefgh"
	moveRanks = "12345678"
)

// MoveToUCI converts a move to UCI notation (e.g. "e2e4", "e7e8q").
func MoveToUCI(mv pgn.Mv) string {
	s := string(moveFiles[mv.From%8]) + string(moveRanks[mv.From/8]) +
		string(moveFiles[mv.To%8]) + string(moveRanks[mv.To/8])
	switch mv.Promo {
	case pgn.PromoQueen:
		s += "q"
	case pgn.PromoRook:
		s += "r"
	case pgn.PromoBishop:
		s += "b"
	case pgn.PromoKnight:
		s += "n"
	}
	return s
}

// MoveFromUCI finds the legal move in pos matching a UCI move string.
func MoveFromUCI(pos *Position, s string) (pgn.Mv, error) {
	if len(s) < 4 {
		return pgn.Mv{}, fmt.Errorf("uci move too short: %q", s)
	}
	fromFile := int(s[0] - 'a')
	fromRank := int(s[1] - '1')
	toFile := int(s[2] - 'a')
	toRank := int(s[3] - '1')
	if fromFile < 0 || fromFile > 7 || fromRank < 0 || fromRank > 7 ||
		toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return pgn.Mv{}, fmt.Errorf("invalid square in uci move %q", s)
	}
	from := uint8(fromRank*8 + fromFile)
	to := uint8(toRank*8 + toFile)

	var promo uint8
	if len(s) >= 5 {
		switch s[4] {
		case 'q':
			promo = uint8(pgn.PromoQueen)
		case 'r':
			promo = uint8(pgn.PromoRook)
		case 'b':
			promo = uint8(pgn.PromoBishop)
		case 'n':
			promo = uint8(pgn.PromoKnight)
		default:
			return pgn.Mv{}, fmt.Errorf("invalid promotion in uci move %q", s)
		}
	}

	for _, mv := range pos.LegalMoves() {
		if mv.From == pgn.Square(from) && mv.To == pgn.Square(to) && uint8(mv.Promo) == promo {
			return mv, nil
		}
	}
	return pgn.Mv{}, fmt.Errorf("illegal move %q in position %s", s, pos.FEN())
}
