package engine

// Material values in centipawns.
var pieceValue = map[byte]Value{
	'P': 100, 'N': 320, 'B': 330, 'R': 500, 'Q': 900,
	'p': -100, 'n': -320, 'b': -330, 'r': -500, 'q': -900,
}

// Piece-square bonuses from white's perspective, a1 = square 0. Black uses
// the vertically mirrored square.
var pawnPST = [64]Value{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, -20, -20, 10, 10, 5,
	5, -5, -10, 0, 0, -10, -5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, 5, 10, 25, 25, 10, 5, 5,
	10, 10, 20, 30, 30, 20, 10, 10,
	50, 50, 50, 50, 50, 50, 50, 50,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]Value{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopPST = [64]Value{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var kingPST = [64]Value{
	20, 30, 10, 0, 0, 10, 30, 20,
	20, 20, 0, 0, 0, 0, 20, 20,
	-10, -20, -20, -20, -20, -20, -20, -10,
	-20, -30, -30, -40, -40, -30, -30, -20,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
}

// PieceValue returns the absolute material value of a piece character.
func PieceValue(piece byte) Value {
	v := pieceValue[piece]
	if v < 0 {
		return -v
	}
	return v
}

// Evaluate returns a static evaluation from the side to move's perspective.
func Evaluate(pos *Position) Value {
	var score Value // white POV
	for sq := uint8(0); sq < 64; sq++ {
		piece := pos.PieceAt(sq)
		if piece == 0 {
			continue
		}
		score += pieceValue[piece]
		mirror := sq ^ 56
		switch piece {
		case 'P':
			score += pawnPST[sq]
		case 'p':
			score -= pawnPST[mirror]
		case 'N':
			score += knightPST[sq]
		case 'n':
			score -= knightPST[mirror]
		case 'B':
			score += bishopPST[sq]
		case 'b':
			score -= bishopPST[mirror]
		case 'K':
			score += kingPST[sq]
		case 'k':
			score -= kingPST[mirror]
		}
	}
	if pos.WhiteToMove() {
		return score
	}
	return -score
}
