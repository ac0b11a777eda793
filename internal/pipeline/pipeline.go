// Package pipeline fans positions out to engine workers and folds their outcomes
// into the output sink and run counters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/park285/position-analyzer/internal/chess"
	"github.com/park285/position-analyzer/internal/chess/uci"
	"github.com/park285/position-analyzer/internal/domain"
	"github.com/park285/position-analyzer/internal/stats"
	"github.com/park285/position-analyzer/internal/synth"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Analyzer returns the engine's ranked lines for one position.
type Analyzer interface {
	Analyze(ctx context.Context, fen string, depth int) (domain.Ranking, error)
}

// Sink receives successful examples. Implementations must tolerate concurrent calls.
type Sink interface {
	Write(ex domain.TrainingExample) error
}

type Config struct {
	Workers int
	Depth   int
}

type Runner struct {
	analyzer Analyzer
	sink     Sink
	stats    *stats.Counters
	cfg      Config
	logger   *zap.Logger
}

func NewRunner(analyzer Analyzer, sink Sink, counters *stats.Counters, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{analyzer: analyzer, sink: sink, stats: counters, cfg: cfg, logger: logger}
}

func (r *Runner) Workers() int { return r.cfg.Workers }

type outcome struct {
	pos     domain.Position
	example *domain.TrainingExample
	reason  stats.Reason
	err     error
}

// Run processes every position once. It only returns an error for failures that
// make the rest of the batch pointless, such as an engine that cannot be launched.
func (r *Runner) Run(ctx context.Context, positions []domain.Position) error {
	r.logger.Info("pipeline started", zap.Int("positions", len(positions)), zap.Int("workers", r.cfg.Workers), zap.Int("depth", r.cfg.Depth))
	defer r.logger.Info("pipeline finished")

	g, ctx := errgroup.WithContext(ctx)

	jobs := make(chan domain.Position, 128)
	results := make(chan outcome, 128)

	g.Go(func() error {
		defer close(jobs)
		for _, pos := range positions {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case jobs <- pos:
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return r.work(ctx, jobs, results)
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	g.Go(func() error {
		r.aggregate(results)
		return nil
	})

	return g.Wait()
}

func (r *Runner) work(ctx context.Context, jobs <-chan domain.Position, results chan<- outcome) error {
	for pos := range jobs {
		res := r.process(ctx, pos)
		if errors.Is(res.err, uci.ErrLaunch) {
			return res.err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case results <- res:
		}
	}
	return nil
}

// process walks one position through parse, analyze and synthesize.
func (r *Runner) process(ctx context.Context, pos domain.Position) outcome {
	board, err := chess.ParseBoard(pos.FEN)
	if err != nil {
		return outcome{pos: pos, reason: stats.ReasonInvalidPosition, err: err}
	}

	ranking, err := r.analyzer.Analyze(ctx, pos.FEN, r.cfg.Depth)
	switch {
	case errors.Is(err, uci.ErrLaunch):
		return outcome{pos: pos, reason: stats.ReasonAnalysisFailed, err: err}
	case errors.Is(err, uci.ErrNoAnalysis):
		return outcome{pos: pos, reason: stats.ReasonAnalysisEmpty, err: err}
	case err != nil:
		return outcome{pos: pos, reason: stats.ReasonAnalysisFailed, err: fmt.Errorf("analyze: %w", err)}
	case ranking.Empty():
		return outcome{pos: pos, reason: stats.ReasonAnalysisEmpty, err: uci.ErrNoAnalysis}
	}

	ex, err := synth.Synthesize(board, pos.FEN, pos.Phase, ranking)
	if err != nil {
		return outcome{pos: pos, reason: stats.ReasonSynthesis, err: err}
	}
	return outcome{pos: pos, example: &ex}
}

func (r *Runner) aggregate(results <-chan outcome) {
	for res := range results {
		if res.err != nil {
			r.stats.Failed(res.reason)
			r.logger.Debug("position failed",
				zap.String("fen", res.pos.FEN),
				zap.String("reason", string(res.reason)),
				zap.Error(res.err))
			continue
		}
		if err := r.sink.Write(*res.example); err != nil {
			r.logger.Warn("drop output line", zap.String("fen", res.pos.FEN), zap.Error(err))
			r.stats.Succeeded(false)
			continue
		}
		r.stats.Succeeded(true)
	}
}
