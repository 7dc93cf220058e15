// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - stdout or stderr output, optionally teed to the OpenTelemetry log bridge
//   - context field injection (trace_id, ingest run, request, file path)
//   - redaction of sensitive fields such as API keys
//   - per-level sampling (errors are never sampled)
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "folder processed", zap.Int("chunks", n))
//
// Library packages that only need a plain *zap.Logger receive
// logger.Underlying().
//
// Tests observe output with NewTestLogger:
//
//	tl := logging.NewTestLogger()
//	doWork(tl.Logger)
//	tl.AssertLogged(t, zapcore.WarnLevel, "skipping")
package logging
