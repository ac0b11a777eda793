// Package synth renders an analyzed position as a two-turn chat example.
package synth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/position-analyzer/internal/chess"
	"github.com/park285/position-analyzer/internal/domain"
)

var ErrNoBestMove = errors.New("ranking has no best move")

const promptTemplate = `You are an expert chess player. Here is the position in FEN format:
%s

Legal moves: %s

Position analysis:
- Game phase: %s
- Material advantage: %+d
- Mobility (legal moves): %d
- Top moves with evaluations: %s

Select the best move. Keep your thinking brief, then output your chosen move.
Format:
<think>brief analysis</think>
<uci_move>your_move</uci_move>`

const responseTemplate = `<think>Best move %s with eval %+dcp. Material %+d, mobility %d.</think><uci_move>%s</uci_move>`

// Synthesize is deterministic for identical inputs.
func Synthesize(board *chess.Board, fen, phase string, moves domain.Ranking) (domain.TrainingExample, error) {
	if board == nil {
		return domain.TrainingExample{}, errors.New("nil board")
	}
	best, ok := moves.Best()
	if !ok {
		return domain.TrainingExample{}, ErrNoBestMove
	}

	legal := board.LegalMoves()
	material := chess.Material(board)
	mobility := len(legal)

	prompt := fmt.Sprintf(promptTemplate,
		fen,
		strings.Join(legal, " "),
		phase,
		material,
		mobility,
		FormatRanking(moves))
	response := fmt.Sprintf(responseTemplate, best.Move, best.EvalCP, material, mobility, best.Move)

	return domain.TrainingExample{Messages: []domain.Message{
		{Role: "user", Content: prompt},
		{Role: "assistant", Content: response},
	}}, nil
}

// FormatRanking renders "move:eval" segments joined by " | ", placeholders included.
func FormatRanking(moves domain.Ranking) string {
	reported := moves.Reported()
	parts := make([]string, 0, len(reported))
	for _, m := range reported {
		parts = append(parts, fmt.Sprintf("%s:%d", m.Move, m.EvalCP))
	}
	return strings.Join(parts, " | ")
}
