package synth

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/park285/position-analyzer/internal/chess"
	"github.com/park285/position-analyzer/internal/domain"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func ranking(moves ...domain.RankedMove) domain.Ranking {
	r := domain.NewRanking()
	copy(r, moves)
	return r
}

func TestSynthesizeStartPosition(t *testing.T) {
	b, err := chess.ParseBoard(startFEN)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	ex, err := Synthesize(b, startFEN, "opening", ranking(domain.RankedMove{Move: "e2e4", EvalCP: 30}))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(ex.Messages) != 2 || ex.Messages[0].Role != "user" || ex.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", ex.Messages)
	}
	user := ex.Messages[0].Content
	for _, want := range []string{
		"Here is the position in FEN format:\n" + startFEN + "\n",
		"- Game phase: opening\n",
		"- Material advantage: +0\n",
		"- Mobility (legal moves): 20\n",
		"- Top moves with evaluations: e2e4:30\n",
		"<uci_move>your_move</uci_move>",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
	want := "<think>Best move e2e4 with eval +30cp. Material +0, mobility 20.</think><uci_move>e2e4</uci_move>"
	if ex.Messages[1].Content != want {
		t.Fatalf("response = %q", ex.Messages[1].Content)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	b, _ := chess.ParseBoard(startFEN)
	r := ranking(
		domain.RankedMove{Move: "e2e4", EvalCP: 30},
		domain.RankedMove{},
		domain.RankedMove{Move: "g1f3", EvalCP: -5},
	)
	a, err := Synthesize(b, startFEN, "opening", r)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	c, _ := Synthesize(b, startFEN, "opening", r)
	ja, _ := json.Marshal(a)
	jc, _ := json.Marshal(c)
	if string(ja) != string(jc) {
		t.Fatalf("outputs differ:\n%s\n%s", ja, jc)
	}
	if !strings.Contains(a.Messages[0].Content, "e2e4:30 | :0 | g1f3:-5\n") {
		t.Fatalf("placeholder segment missing:\n%s", a.Messages[0].Content)
	}
}

func TestSynthesizeFallsBackWhenRankOneEmpty(t *testing.T) {
	b, _ := chess.ParseBoard(startFEN)
	ex, err := Synthesize(b, startFEN, "opening", ranking(domain.RankedMove{}, domain.RankedMove{Move: "d2d4", EvalCP: -12}))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(ex.Messages[1].Content, "<uci_move>d2d4</uci_move>") || !strings.Contains(ex.Messages[1].Content, "-12cp") {
		t.Fatalf("response = %q", ex.Messages[1].Content)
	}
}

func TestSynthesizeRejectsEmptyRanking(t *testing.T) {
	b, _ := chess.ParseBoard(startFEN)
	if _, err := Synthesize(b, startFEN, "opening", domain.NewRanking()); !errors.Is(err, ErrNoBestMove) {
		t.Fatalf("err = %v, want ErrNoBestMove", err)
	}
	if _, err := Synthesize(b, startFEN, "opening", nil); !errors.Is(err, ErrNoBestMove) {
		t.Fatalf("nil ranking err = %v", err)
	}
}

func TestSynthesizeNegativeMaterial(t *testing.T) {
	fen := "4k3/8/8/8/8/8/4P3/R3K3 b - - 0 1"
	b, err := chess.ParseBoard(fen)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	ex, err := Synthesize(b, fen, "endgame", ranking(domain.RankedMove{Move: "e8d7", EvalCP: -10000}))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(ex.Messages[0].Content, "- Material advantage: -6\n") {
		t.Fatalf("prompt:\n%s", ex.Messages[0].Content)
	}
	if !strings.Contains(ex.Messages[1].Content, "eval -10000cp. Material -6") {
		t.Fatalf("response = %q", ex.Messages[1].Content)
	}
}
