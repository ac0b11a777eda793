package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/park285/position-analyzer/internal/domain"
)

type positionRecord struct {
	FEN   *string `json:"fen"`
	Phase *string `json:"phase"`
}

// LoadPositions decodes one position per line. Lines that are not valid UTF-8 or
// not a JSON object with string fen and phase fields are skipped and only counted
// in skipped. Line length is unbounded.
func LoadPositions(r io.Reader) (positions []domain.Position, skipped int, err error) {
	br := bufio.NewReader(r)
	for {
		line, rerr := br.ReadBytes('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return positions, skipped, fmt.Errorf("read positions: %w", rerr)
		}
		if len(line) > 0 {
			line = bytes.TrimSuffix(bytes.TrimSuffix(line, []byte("\n")), []byte("\r"))
			if pos, ok := decodePosition(line); ok {
				positions = append(positions, pos)
			} else {
				skipped++
			}
		}
		if rerr != nil {
			return positions, skipped, nil
		}
	}
}

func decodePosition(line []byte) (domain.Position, bool) {
	if !utf8.Valid(line) {
		return domain.Position{}, false
	}
	var rec positionRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return domain.Position{}, false
	}
	if rec.FEN == nil || rec.Phase == nil {
		return domain.Position{}, false
	}
	return domain.Position{FEN: *rec.FEN, Phase: *rec.Phase}, true
}

func LoadFile(path string) ([]domain.Position, int, error) {
	rc, err := OpenInput(path)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()
	return LoadPositions(rc)
}
