package analyzerbuilder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/position-analyzer/internal/chess/uci"
	"github.com/park285/position-analyzer/internal/chess/uci/ucitest"
	"github.com/park285/position-analyzer/internal/config"
	"github.com/park285/position-analyzer/internal/dataset"
	"github.com/park285/position-analyzer/internal/runstore"
)

const input = `{"fen":"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1","phase":"opening"}
{"fen":"not-a-fen","phase":"opening"}
garbage
{"fen":"4k3/8/8/8/8/8/4P3/R3K3 w - - 0 1","phase":"endgame"}
`

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "positions.jsonl")
	if err := os.WriteFile(path, []byte(input), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestRunWritesDatasetAndPublishes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	dir := t.TempDir()
	cfg := &config.AppConfig{
		InputPath:        writeInput(t, dir),
		OutputPath:       filepath.Join(dir, "train.jsonl.zst"),
		EnginePath:       "fake",
		Depth:            7,
		Workers:          2,
		ProgressInterval: time.Hour,
		RedisURL:         "redis://" + mr.Addr() + "/0",
		StatusAddr:       "127.0.0.1:0",
	}
	positions, skipped, err := dataset.LoadFile(cfg.InputPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(positions) != 3 || skipped != 1 {
		t.Fatalf("positions=%d skipped=%d", len(positions), skipped)
	}

	l := &ucitest.ScriptLauncher{Script: ucitest.Lines("info depth 7 multipv 1 score cp 30 pv e2e4", "bestmove e2e4")}
	var console strings.Builder
	d, err := New(context.Background(), cfg, len(positions), nil, WithLauncher(l), WithConsole(&console))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snap, err := d.Run(context.Background(), positions)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if snap.Processed != 3 || snap.Errors != 1 || snap.Written != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !strings.Contains(console.String(), "3/3") {
		t.Fatalf("final progress line missing: %q", console.String())
	}
	if got := mr.HGet(runstore.RunKey(d.RunID), "state"); got != "done" {
		t.Fatalf("redis state = %q", got)
	}

	rc, err := dataset.OpenInput(cfg.OutputPath)
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}
	defer rc.Close()
	var lines int
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		if !strings.Contains(sc.Text(), `"role":"assistant"`) {
			t.Fatalf("line = %s", sc.Text())
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("output lines = %d", lines)
	}
}

func TestNewMissingEngineBinary(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.AppConfig{InputPath: "in", OutputPath: filepath.Join(dir, "out.jsonl"), EnginePath: filepath.Join(dir, "stockfish"), Depth: 7, Workers: 1, ProgressInterval: time.Second}
	if _, err := New(context.Background(), cfg, 0, nil); !errors.Is(err, uci.ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}

func TestNewUnwritableOutput(t *testing.T) {
	cfg := &config.AppConfig{OutputPath: filepath.Join(t.TempDir(), "missing", "out.jsonl"), Depth: 7, Workers: 1, ProgressInterval: time.Second}
	if _, err := New(context.Background(), cfg, 0, nil, WithLauncher(&ucitest.ScriptLauncher{})); err == nil {
		t.Fatalf("expected error creating output in a missing directory")
	}
}

func TestRunLaunchFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.AppConfig{InputPath: writeInput(t, dir), OutputPath: filepath.Join(dir, "out.jsonl"), Depth: 7, Workers: 1, ProgressInterval: time.Hour}
	l := &ucitest.ScriptLauncher{LaunchErr: errors.New("permission denied")}
	d, err := New(context.Background(), cfg, 1, nil, WithLauncher(l), WithConsole(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	positions, _, _ := dataset.LoadFile(cfg.InputPath)
	if _, err := d.Run(context.Background(), positions); !errors.Is(err, uci.ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}
