package chess

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
)

var ErrInvalidPosition = errors.New("invalid position")

// decodeMu guards FEN decoding in the rules library, which reuses a package-level
// rank buffer.
var decodeMu sync.Mutex

// Board is a legality-aware view of one FEN.
type Board struct {
	pos *nchess.Position
}

func ParseBoard(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty fen", ErrInvalidPosition)
	}
	pos, err := decodePosition(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	if pos == nil || pos.Board() == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPosition, fen)
	}
	if err := checkSanity(pos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return &Board{pos: pos}, nil
}

func decodePosition(fen string) (*nchess.Position, error) {
	decodeMu.Lock()
	defer decodeMu.Unlock()
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(opt).Position(), nil
}

// LegalMoves lists legal moves in UCI notation, in generator order.
func (b *Board) LegalMoves() []string {
	valid := b.pos.ValidMoves()
	out := make([]string, 0, len(valid))
	for _, mv := range valid {
		out = append(out, mv.String())
	}
	return out
}
