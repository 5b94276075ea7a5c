// internal/logger/logger.go
//
// Structured JSON logger (Zap + Lumberjack).
//
// Context
// -------
// The migration engine writes lifecycle and per-run events to one JSON log
// per day under `<root>/logs/migrate-YYYY-MM-DD.log`.  When running in an
// interactive TTY we tee the same events, colorized, to stdout so operators
// can watch a run live.  Rotation, compression, and retention are handled
// by Lumberjack; no external log-rotate job is required.  Runs are bursty
// rather than continuous, so retention is generous: an operator auditing a
// migration a month later should still find the per-row skip reasons.
//
// Usage
// -----
//
//	log, err := logger.New(cfg.Paths.Root, runningInTTY(), verbose)
//	if err != nil { … }
//	log.Infow("run started", "run_id", runID, "tenant", tenant)
//
// Notes
// -----
// • Zap core uses ISO-8601 timestamps and lowercase levels.
// • Errors are written to the same sink via `ErrorOutput`.
// • Oxford commas, two spaces after periods.
package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a *zap.SugaredLogger that writes JSON to
// /logs/migrate-YYYY-MM-DD.log.  When tee == true, a colored console core
// is also attached; verbose == true lowers both cores to debug so per-row
// decisions (skip reasons, rewrite pairs) land in the log.  The logger is
// installed as the process-wide default via zap.ReplaceGlobals.
func New(rootDir string, tee, verbose bool) (*zap.SugaredLogger, error) {
	logDir := filepath.Join(rootDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	fileName := "migrate-" + time.Now().Format("2006-01-02") + ".log"
	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, fileName),
		MaxSize:    100, // MB; one large tenant import fits in a single file
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	jsonCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(fileSink),
		level,
	)

	var cores []zapcore.Core
	cores = append(cores, jsonCore)

	if tee {
		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(os.Stdout),
			level,
		)
		cores = append(cores, consoleCore)
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.ErrorOutput(zapcore.AddSync(fileSink)),
	).Sugar()

	// Make this the global logger so zap.L() works everywhere after startup.
	zap.ReplaceGlobals(z.Desugar())

	z.Infow("logger online", "tee", tee, "level", level.String())
	return z, nil
}
