package uci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ErrLaunch marks an engine binary that could not be started.
var ErrLaunch = errors.New("launch engine")

// Process is one running engine with its standard streams.
type Process interface {
	Stdin() io.Writer
	Stdout() io.Reader
	// Kill stops the process and releases its resources. It must be safe to call once
	// on every exit path.
	Kill() error
}

type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

type ExecLauncher struct {
	BinaryPath string
	// Stderr receives the engine's diagnostics; nil discards them.
	Stderr io.Writer
}

// CheckBinary verifies the engine binary exists before any position is scheduled.
func (l ExecLauncher) CheckBinary() error {
	if l.BinaryPath == "" {
		return fmt.Errorf("%w: binary path required", ErrLaunch)
	}
	if _, err := os.Stat(l.BinaryPath); err != nil {
		return fmt.Errorf("%w: stockfish binary check: %v", ErrLaunch, err)
	}
	return nil
}

func (l ExecLauncher) Launch(ctx context.Context) (Process, error) {
	cmd := exec.CommandContext(ctx, l.BinaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create stdin pipe: %v", ErrLaunch, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: create stdout pipe: %v", ErrLaunch, err)
	}
	if l.Stderr != nil {
		cmd.Stderr = l.Stderr
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("%w: start engine: %v", ErrLaunch, err)
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }

func (p *execProcess) Kill() error {
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	// exit status after a kill is always non-zero; only report wait failures unrelated to it
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
