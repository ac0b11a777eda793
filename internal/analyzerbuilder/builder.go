package analyzerbuilder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/position-analyzer/internal/chess/uci"
	"github.com/park285/position-analyzer/internal/config"
	"github.com/park285/position-analyzer/internal/dataset"
	"github.com/park285/position-analyzer/internal/domain"
	"github.com/park285/position-analyzer/internal/pipeline"
	"github.com/park285/position-analyzer/internal/progress"
	"github.com/park285/position-analyzer/internal/runstore"
	"github.com/park285/position-analyzer/internal/stats"
	"github.com/park285/position-analyzer/internal/statushttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	RunID    string
	Config   *config.AppConfig
	Runner   *pipeline.Runner
	Stats    *stats.Counters
	Tracker  *progress.Tracker
	Status   *statushttp.Server
	Ledger   *runstore.PostgresLedger
	Redis    *redis.Client
	Logger   *zap.Logger
	output   io.WriteCloser
	statusLn net.Listener
}

type Option func(*options)

type options struct {
	launcher uci.Launcher
	console  io.Writer
}

// WithLauncher replaces the exec-based engine launcher.
func WithLauncher(l uci.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithConsole redirects the progress lines (stderr by default).
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// New wires every component for one batch of total positions. Any error is a setup
// failure and the caller should exit.
func New(ctx context.Context, cfg *config.AppConfig, total int, logger *zap.Logger, opts ...Option) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{console: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	if o.launcher == nil {
		launcher := uci.ExecLauncher{BinaryPath: cfg.EnginePath}
		if err := launcher.CheckBinary(); err != nil {
			return nil, err
		}
		o.launcher = launcher
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	d := &Deps{RunID: runID, Config: cfg, Logger: logger, Stats: stats.New(total)}

	out, err := dataset.CreateOutput(cfg.OutputPath)
	if err != nil {
		return nil, err
	}
	d.output = out

	engine := uci.NewEngine(o.launcher, uci.Options{Timeout: cfg.EngineTimeout, Logger: logger})
	d.Runner = pipeline.NewRunner(engine, dataset.NewSink(out), d.Stats,
		pipeline.Config{Workers: cfg.Workers, Depth: cfg.Depth}, logger)

	var publishers []progress.Publisher
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := runstore.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		d.Redis = rdb
		publishers = append(publishers, runstore.NewRedisPublisher(rdb, runID, map[string]string{
			"input":  cfg.InputPath,
			"output": cfg.OutputPath,
			"depth":  fmt.Sprint(cfg.Depth),
		}))
	}
	d.Tracker = progress.NewTracker(d.Stats, o.console, cfg.ProgressInterval, logger, publishers...)

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		ledger, err := runstore.NewPostgresLedger(ctx, cfg.DatabaseURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init run ledger: %w", err)
		}
		d.Ledger = ledger
	}

	if strings.TrimSpace(cfg.StatusAddr) != "" {
		ln, err := net.Listen("tcp", cfg.StatusAddr)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("listen status: %w", err)
		}
		d.statusLn = ln
		d.Status = statushttp.NewServer(runID, d.Stats, logger)
	}

	return d, nil
}

// Run executes the batch and records the outcome. The returned error is fatal
// for the process; per-position failures only show up in the snapshot.
func (d *Deps) Run(ctx context.Context, positions []domain.Position) (stats.Snapshot, error) {
	started := time.Now()
	cfg := d.Config

	if d.Status != nil {
		go func() {
			if err := d.Status.Serve(d.statusLn); err != nil {
				d.Logger.Warn("status server stopped", zap.Error(err))
			}
		}()
	}

	trackCtx, stopTracker := context.WithCancel(ctx)
	trackDone := make(chan struct{})
	go func() {
		defer close(trackDone)
		d.Tracker.Run(trackCtx)
	}()

	runErr := d.Runner.Run(ctx, positions)
	stopTracker()
	<-trackDone

	snap := d.Stats.Snapshot()
	if d.Ledger != nil {
		rec := runstore.RunRecord{
			RunID:      d.RunID,
			InputPath:  cfg.InputPath,
			OutputPath: cfg.OutputPath,
			EnginePath: cfg.EnginePath,
			Depth:      cfg.Depth,
			Workers:    d.Runner.Workers(),
			Stats:      snap,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if runErr != nil {
			rec.Failure = runErr.Error()
		}
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := d.Ledger.SaveRun(saveCtx, rec); err != nil {
			d.Logger.Warn("save run ledger", zap.Error(err))
		}
		cancel()
	}
	return snap, runErr
}

// Close flushes the output and releases external connections.
func (d *Deps) Close() error {
	var errs []error
	if d.Status != nil {
		errs = append(errs, d.Status.Shutdown())
	}
	if d.statusLn != nil {
		// already closed when Serve was running
		_ = d.statusLn.Close()
	}
	if d.output != nil {
		errs = append(errs, d.output.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.Ledger != nil {
		errs = append(errs, d.Ledger.Close())
	}
	return errors.Join(errs...)
}
