package tflplan

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with planner-specific fields.
// Field names are the same across all stages.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs to
// stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSubgraph adds a subgraph index field to the logger.
func (l *Logger) WithSubgraph(index int) *Logger {
	return &Logger{
		Logger: l.Logger.With("subgraph", index),
	}
}

// WithInput adds the input size to the logger.
func (l *Logger) WithInput(size int) *Logger {
	return &Logger{
		Logger: l.Logger.With("input_bytes", size),
	}
}

// LogStage logs the end of one pipeline stage.
func (l *Logger) LogStage(ctx context.Context, stage string, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "stage failed",
			"stage", stage,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "stage completed",
			"stage", stage,
			"elapsed", elapsed,
		)
	}
}

// LogPlan logs the layout chosen for one subgraph.
func (l *Logger) LogPlan(ctx context.Context, tensors int, arenas []int64, naive int64) {
	var total int64
	for _, size := range arenas {
		total += size
	}
	l.InfoContext(ctx, "subgraph planned",
		"tensors", tensors,
		"arenas", arenas,
		"arena_bytes", total,
		"naive_bytes", naive,
		"saved_bytes", naive-total,
	)
}

// LogRun logs the outcome of a whole planning run.
func (l *Logger) LogRun(ctx context.Context, subgraphs, outputBytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "planning failed",
			"subgraphs", subgraphs,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "planning completed",
			"subgraphs", subgraphs,
			"output_bytes", outputBytes,
		)
	}
}
