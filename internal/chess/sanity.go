package chess

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"
)

var (
	knightSteps   = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps     = [][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookRays      = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopRays    = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	castleCorners = []struct {
		color nchess.Color
		side  nchess.Side
		king  nchess.Square
		rook  nchess.Square
	}{
		{nchess.White, nchess.KingSide, nchess.E1, nchess.H1},
		{nchess.White, nchess.QueenSide, nchess.E1, nchess.A1},
		{nchess.Black, nchess.KingSide, nchess.E8, nchess.H8},
		{nchess.Black, nchess.QueenSide, nchess.E8, nchess.A8},
	}
)

// checkSanity rejects decoded positions no legal game can reach: missing or extra
// kings, pawns on a back rank, castling rights without the pieces on their home
// squares, and a side to move that could capture the enemy king.
func checkSanity(pos *nchess.Position) error {
	board := pos.Board()
	kings := map[nchess.Color][]nchess.Square{}
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		p := board.Piece(sq)
		switch p.Type() {
		case nchess.King:
			kings[p.Color()] = append(kings[p.Color()], sq)
		case nchess.Pawn:
			if r := sq.Rank(); r == nchess.Rank1 || r == nchess.Rank8 {
				return fmt.Errorf("pawn on %s", sq)
			}
		}
	}
	for _, c := range []nchess.Color{nchess.White, nchess.Black} {
		if n := len(kings[c]); n != 1 {
			return fmt.Errorf("%s has %d kings", c.Name(), n)
		}
	}

	rights := pos.CastleRights()
	for _, cc := range castleCorners {
		if !rights.CanCastle(cc.color, cc.side) {
			continue
		}
		if board.Piece(cc.king) != nchess.NewPiece(nchess.King, cc.color) ||
			board.Piece(cc.rook) != nchess.NewPiece(nchess.Rook, cc.color) {
			return fmt.Errorf("castling rights %s without king and rook at home", rights)
		}
	}

	mover := pos.Turn()
	if attacked(board, kings[mover.Other()][0], mover) {
		return fmt.Errorf("%s to move but %s is in check", mover.Name(), mover.Other().Name())
	}
	return nil
}

func offset(sq nchess.Square, df, dr int) (nchess.Square, bool) {
	f, r := int(sq.File())+df, int(sq.Rank())+dr
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(f), nchess.Rank(r)), true
}

// attacked reports whether any piece of color by attacks sq.
func attacked(board *nchess.Board, sq nchess.Square, by nchess.Color) bool {
	hits := func(steps [][2]int, pt nchess.PieceType) bool {
		for _, s := range steps {
			if to, ok := offset(sq, s[0], s[1]); ok && board.Piece(to) == nchess.NewPiece(pt, by) {
				return true
			}
		}
		return false
	}
	if hits(knightSteps, nchess.Knight) || hits(kingSteps, nchess.King) {
		return true
	}

	pawnRank := -1
	if by == nchess.Black {
		pawnRank = 1
	}
	if hits([][2]int{{-1, pawnRank}, {1, pawnRank}}, nchess.Pawn) {
		return true
	}

	slides := func(rays [][2]int, pt nchess.PieceType) bool {
		for _, ray := range rays {
			to, ok := offset(sq, ray[0], ray[1])
			for ok {
				p := board.Piece(to)
				if p != nchess.NoPiece {
					if p == nchess.NewPiece(pt, by) || p == nchess.NewPiece(nchess.Queen, by) {
						return true
					}
					break
				}
				to, ok = offset(to, ray[0], ray[1])
			}
		}
		return false
	}
	return slides(rookRays, nchess.Rook) || slides(bishopRays, nchess.Bishop)
}
