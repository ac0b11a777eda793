// Package ucitest provides a scripted stand-in for an engine process.
package ucitest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/park285/position-analyzer/internal/chess/uci"
)

// Script returns the stdout lines for a position. It sees the FEN from the
// "position fen" command and the full command transcript.
type Script func(fen string, commands []string) []string

type ScriptLauncher struct {
	Script Script
	// LaunchErr makes every Launch fail.
	LaunchErr error
	// Hang keeps stdout open after the script until the process is killed.
	Hang bool

	launched atomic.Int64
	killed   atomic.Int64

	mu          sync.Mutex
	transcripts [][]string
}

func (l *ScriptLauncher) Launch(ctx context.Context) (uci.Process, error) {
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.launched.Add(1)
	return &process{launcher: l, done: make(chan struct{})}, nil
}

func (l *ScriptLauncher) Launched() int64 { return l.launched.Load() }

func (l *ScriptLauncher) Killed() int64 { return l.killed.Load() }

// Transcripts returns the commands each process received, in kill order.
func (l *ScriptLauncher) Transcripts() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]string(nil), l.transcripts...)
}

// Lines builds a script that ignores the position.
func Lines(lines ...string) Script {
	return func(string, []string) []string { return lines }
}

type process struct {
	launcher *ScriptLauncher

	mu     sync.Mutex
	stdin  bytes.Buffer
	stdout io.Reader
	killed bool
	done   chan struct{}
}

func (p *process) Stdin() io.Writer { return writerFunc(p.write) }

func (p *process) Stdout() io.Reader { return readerFunc(p.read) }

func (p *process) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return errors.New("ucitest: process killed twice")
	}
	p.killed = true
	close(p.done)
	p.launcher.killed.Add(1)
	p.launcher.mu.Lock()
	p.launcher.transcripts = append(p.launcher.transcripts, commands(p.stdin.String()))
	p.launcher.mu.Unlock()
	return nil
}

func (p *process) write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return 0, io.ErrClosedPipe
	}
	return p.stdin.Write(b)
}

// read renders the script on first use; the session writes all commands before reading.
func (p *process) read(b []byte) (int, error) {
	p.mu.Lock()
	if p.stdout == nil {
		cmds := commands(p.stdin.String())
		var out []string
		if p.launcher.Script != nil {
			out = p.launcher.Script(fenOf(cmds), cmds)
		}
		text := strings.Join(out, "\n")
		if text != "" {
			text += "\n"
		}
		p.stdout = strings.NewReader(text)
	}
	n, err := p.stdout.Read(b)
	p.mu.Unlock()
	if errors.Is(err, io.EOF) && p.launcher.Hang {
		<-p.done
	}
	return n, err
}

func commands(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func fenOf(cmds []string) string {
	for _, c := range cmds {
		if rest, ok := strings.CutPrefix(c, "position fen "); ok {
			return rest
		}
	}
	return ""
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(b []byte) (int, error) { return f(b) }
