package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/position-analyzer/internal/domain"
	"go.uber.org/zap"
)

// ErrNoAnalysis is returned when the engine finished without a usable info line.
var ErrNoAnalysis = errors.New("engine returned no ranked moves")

const mateValue = 10000

type Options struct {
	// Timeout bounds one analysis; zero waits for bestmove indefinitely.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Engine starts a fresh engine process for every analysis.
type Engine struct {
	launcher Launcher
	timeout  time.Duration
	logger   *zap.Logger
}

func NewEngine(launcher Launcher, opt Options) *Engine {
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{launcher: launcher, timeout: opt.Timeout, logger: logger}
}

// Analyze runs "go depth <depth> multipv 5" on fen and returns the final ranking.
func (e *Engine) Analyze(ctx context.Context, fen string, depth int) (domain.Ranking, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	session, err := Open(ctx, e.launcher)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.logger.Debug("engine close", zap.Error(cerr))
		}
	}()

	ranking, err := session.Search(ctx, SearchRequest{FEN: fen, Depth: depth, MultiPV: domain.MultiPV})
	if err != nil {
		return nil, err
	}
	if ranking.Empty() {
		return nil, ErrNoAnalysis
	}
	return ranking, nil
}

type Session struct {
	proc   Process
	stdout *bufio.Reader

	mu     sync.Mutex
	closed bool
}

// Open launches a process and wraps it in a Session. Callers must Close it.
func Open(ctx context.Context, launcher Launcher) (*Session, error) {
	proc, err := launcher.Launch(ctx)
	if err != nil {
		if !errors.Is(err, ErrLaunch) {
			err = fmt.Errorf("%w: %v", ErrLaunch, err)
		}
		return nil, err
	}
	return &Session{proc: proc, stdout: bufio.NewReader(proc.Stdout())}, nil
}

type SearchRequest struct {
	FEN     string
	Depth   int
	MultiPV int
}

// Search sends the handshake, the position and the go command, then reads info lines
// until bestmove or end of output.
func (s *Session) Search(ctx context.Context, req SearchRequest) (domain.Ranking, error) {
	multipv := req.MultiPV
	if multipv <= 0 {
		multipv = domain.MultiPV
	}
	if req.Depth <= 0 {
		return nil, fmt.Errorf("depth must be > 0: %d", req.Depth)
	}

	if err := s.send("uci\n"); err != nil {
		return nil, fmt.Errorf("send uci: %w", err)
	}
	if err := s.send(buildPositionCommand(req.FEN)); err != nil {
		return nil, fmt.Errorf("send position: %w", err)
	}
	goCmd := strings.Join(buildGoTokens(req.Depth, multipv), " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return nil, fmt.Errorf("send go: %w", err)
	}

	acc := newAccumulator(multipv)
	for {
		line, err := s.readLine(ctx)
		if errors.Is(err, io.EOF) {
			if line != "" && !isBestMove(line) {
				acc.add(line)
			}
			return acc.ranking, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line: %w", err)
		}
		if isBestMove(line) {
			return acc.ranking, nil
		}
		acc.add(line)
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.proc.Kill()
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	_, err := io.WriteString(s.proc.Stdin(), msg)
	return err
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

func buildPositionCommand(fen string) string {
	var sb strings.Builder
	sb.WriteString("position fen ")
	sb.WriteString(strings.TrimSpace(fen))
	sb.WriteString("\n")
	return sb.String()
}

func buildGoTokens(depth, multipv int) []string {
	return []string{"go", "depth", strconv.Itoa(depth), "multipv", strconv.Itoa(multipv)}
}

func isBestMove(line string) bool {
	return strings.HasPrefix(line, "bestmove")
}

// accumulator keeps the deepest line seen for every multipv index.
type accumulator struct {
	ranking domain.Ranking
	depths  []int
}

func newAccumulator(n int) *accumulator {
	return &accumulator{ranking: make(domain.Ranking, n), depths: make([]int, n)}
}

func (a *accumulator) add(line string) {
	info, ok := ParseInfo(line)
	if !ok {
		return
	}
	if info.MultiPV < 1 || info.MultiPV > len(a.ranking) {
		return
	}
	i := info.MultiPV - 1
	if !a.ranking[i].IsEmpty() && info.Depth < a.depths[i] {
		return
	}
	a.ranking[i] = domain.RankedMove{Move: info.Move, EvalCP: info.EvalCP}
	a.depths[i] = info.Depth
}

// Info is the part of an engine "info" line the analyzer cares about.
type Info struct {
	Depth   int
	MultiPV int
	Score   string
	EvalCP  int32
	Move    string
}

// ParseInfo accepts a line iff its fields contain depth, multipv and score. Values are
// read from the tokens right after each label; the move is the first token after pv.
func ParseInfo(line string) (Info, bool) {
	parts := strings.Fields(line)
	depthIdx, multipvIdx, scoreIdx, pvIdx := -1, -1, -1, -1
	for i, p := range parts {
		switch p {
		case "depth":
			if depthIdx < 0 {
				depthIdx = i
			}
		case "multipv":
			if multipvIdx < 0 {
				multipvIdx = i
			}
		case "score":
			if scoreIdx < 0 {
				scoreIdx = i
			}
		case "pv":
			if pvIdx < 0 {
				pvIdx = i
			}
		}
	}
	if depthIdx < 0 || multipvIdx < 0 || scoreIdx < 0 {
		return Info{}, false
	}
	if pvIdx < 0 || pvIdx+1 >= len(parts) || scoreIdx+2 >= len(parts) {
		return Info{}, false
	}

	info := Info{
		Score: parts[scoreIdx+1],
		Move:  parts[pvIdx+1],
	}
	if depthIdx+1 < len(parts) {
		info.Depth, _ = strconv.Atoi(parts[depthIdx+1])
	}
	if multipvIdx+1 < len(parts) {
		if v, err := strconv.Atoi(parts[multipvIdx+1]); err == nil {
			info.MultiPV = v
		}
	}
	info.EvalCP = scoreToCentipawns(info.Score, parts[scoreIdx+2])
	return info, true
}

func scoreToCentipawns(kind, raw string) int32 {
	switch kind {
	case "cp":
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return 0
		}
		return int32(v)
	case "mate":
		v, _ := strconv.Atoi(raw)
		if v > 0 {
			return mateValue
		}
		return -mateValue
	default:
		return 0
	}
}
