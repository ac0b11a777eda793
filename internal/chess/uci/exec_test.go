package uci_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/park285/position-analyzer/internal/chess/uci"
	"github.com/park285/position-analyzer/internal/domain"
)

// writeEngine installs a shell script that consumes the three commands of one
// analysis and then runs body.
func writeEngine(t *testing.T, body string) uci.ExecLauncher {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell engine requires /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("shell engine requires /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	script := "#!/bin/sh\nread uci\nread position\nread go\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write engine: %v", err)
	}
	l := uci.ExecLauncher{BinaryPath: path}
	if err := l.CheckBinary(); err != nil {
		t.Fatalf("CheckBinary: %v", err)
	}
	return l
}

func TestExecEngineBestMoveThenKill(t *testing.T) {
	l := writeEngine(t, `echo "info depth 5 multipv 1 score cp 30 pv e2e4"
echo "info depth 5 multipv 2 score cp 10 pv d2d4"
echo "bestmove e2e4"
exec sleep 30`)
	engine := uci.NewEngine(l, uci.Options{})

	started := time.Now()
	ranking, err := engine.Analyze(context.Background(), startFEN, 5)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 10*time.Second {
		t.Fatalf("Analyze waited for the engine to exit: %v", elapsed)
	}
	if ranking[0] != (domain.RankedMove{Move: "e2e4", EvalCP: 30}) || ranking[1] != (domain.RankedMove{Move: "d2d4", EvalCP: 10}) {
		t.Fatalf("ranking = %v", ranking)
	}
	if !ranking[2].IsEmpty() {
		t.Fatalf("rank 3 should be a placeholder: %v", ranking)
	}
}

func TestExecEngineExitsWithoutAnalysis(t *testing.T) {
	l := writeEngine(t, "exit 0")
	engine := uci.NewEngine(l, uci.Options{})

	_, err := engine.Analyze(context.Background(), startFEN, 5)
	if !errors.Is(err, uci.ErrNoAnalysis) {
		t.Fatalf("err = %v, want ErrNoAnalysis", err)
	}
}

func TestExecEngineHangEndsAtTimeout(t *testing.T) {
	l := writeEngine(t, "exec sleep 30")
	engine := uci.NewEngine(l, uci.Options{Timeout: 200 * time.Millisecond})

	started := time.Now()
	_, err := engine.Analyze(context.Background(), startFEN, 5)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(started); elapsed > 10*time.Second {
		t.Fatalf("hung engine was not killed: %v", elapsed)
	}
}
