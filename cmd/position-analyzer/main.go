package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/park285/position-analyzer/internal/analyzerbuilder"
	appcfg "github.com/park285/position-analyzer/internal/config"
	"github.com/park285/position-analyzer/internal/dataset"
	"github.com/park285/position-analyzer/internal/obslog"
	"github.com/park285/position-analyzer/internal/stats"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		return 1
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Error("config error", zap.Error(err))
		return 1
	}
	if err := cfg.ApplyArgs(args); err != nil {
		if errors.Is(err, appcfg.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		logger.Error("argument error", zap.Error(err))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("config error", zap.Error(err))
		return 1
	}

	logger.Info("reading positions", zap.String("input", cfg.InputPath))
	positions, skipped, err := dataset.LoadFile(cfg.InputPath)
	if err != nil {
		logger.Error("load positions", zap.Error(err))
		return 1
	}
	logger.Info("loaded positions", zap.Int("positions", len(positions)), zap.Int("skipped_lines", skipped))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := analyzerbuilder.New(ctx, cfg, len(positions), logger)
	if err != nil {
		logger.Error("init error", zap.Error(err))
		return 1
	}
	logger = deps.Logger
	logger.Info("starting analysis",
		zap.String("output", cfg.OutputPath),
		zap.String("engine", cfg.EnginePath),
		zap.Int("depth", cfg.Depth),
		zap.Int("workers", deps.Runner.Workers()))

	snap, runErr := deps.Run(ctx, positions)
	if err := deps.Close(); err != nil {
		logger.Warn("close", zap.Error(err))
	}

	fields := []zap.Field{zap.Int64("processed", snap.Processed), zap.Int64("written", snap.Written), zap.Int64("errors", snap.Errors)}
	for _, r := range stats.Reasons {
		fields = append(fields, zap.Int64("errors_"+string(r), snap.ByReason[r]))
	}
	logger.Info("analysis complete", fields...)

	if runErr != nil {
		logger.Error("run aborted", zap.Error(runErr))
		return 1
	}
	fmt.Printf("\nDone! Errors: %d\n", snap.Errors)
	fmt.Printf("Training data written to: %s\n", cfg.OutputPath)
	return 0
}
