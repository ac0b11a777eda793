package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger; console goes to stderr so stdout stays free for the summary.
var (
	globalLogger *zap.Logger = zap.NewNop()
)

// L returns the global logger.
func L() *zap.Logger { return globalLogger }

type settings struct {
	level      zapcore.Level
	format     string
	console    bool
	toFile     bool
	filePath   string
	showCaller bool
}

func settingsFromEnv() settings {
	s := settings{
		level:      parseLevel(os.Getenv("LOG_LEVEL")),
		format:     normalizeFormat(os.Getenv("LOG_FORMAT")),
		console:    envFlag("LOG_TO_CONSOLE", true),
		toFile:     envFlag("LOG_TO_FILE", false),
		filePath:   strings.TrimSpace(os.Getenv("LOG_FILE")),
		showCaller: envFlag("LOG_CALLER", false),
	}
	if s.filePath == "" {
		s.filePath = filepath.Join("logs", "position-analyzer.log")
	}
	// legacy lines always carry the caller
	if s.format == "legacy" {
		s.showCaller = true
	}
	return s
}

// InitFromEnv builds the global zap logger from LOG_* variables.
func InitFromEnv() error {
	s := settingsFromEnv()
	enc := encoderFor(s.format)

	var cores []zapcore.Core
	if s.console {
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), s.level))
	}
	if s.toFile {
		f, err := openLogFile(s.filePath)
		if err != nil {
			return err
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(f), s.level))
	}

	if len(cores) == 0 {
		globalLogger = zap.NewNop()
		return nil
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if s.showCaller {
		opts = append(opts, zap.AddCaller())
	}
	globalLogger = zap.New(zapcore.NewTee(cores...), opts...)
	return nil
}

// Sync flushes buffered entries; errors from syncing terminals are ignored.
func Sync() { _ = globalLogger.Sync() }

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func envFlag(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

// parseLevel falls back to info for anything zap does not recognise.
func parseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func normalizeFormat(s string) string {
	switch format := strings.ToLower(strings.TrimSpace(s)); format {
	case "json", "console":
		return format
	default:
		return "legacy"
	}
}

func encoderFor(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	switch format {
	case "json":
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	case "console":
		return zapcore.NewConsoleEncoder(cfg)
	default:
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}
}
