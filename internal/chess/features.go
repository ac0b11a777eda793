package chess

import nchess "github.com/corentings/chess/v2"

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

// Material is the weighted piece balance from the side to move's perspective.
func Material(b *Board) int {
	stm := b.pos.Turn()
	board := b.pos.Board()
	total := 0
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			value := pieceValues[piece.Type()]
			if piece.Color() == stm {
				total += value
			} else {
				total -= value
			}
		}
	}
	return total
}

func Mobility(b *Board) int { return len(b.LegalMoves()) }
