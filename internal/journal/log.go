package journal

import (
	"context"

	"go.uber.org/zap"
)

// Log writes the journal to the structured log only.
type Log struct {
	logger *zap.Logger
}

// NewLog constructs a Log journal.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("journal")}
}

// StartRun implements Writer.
func (l *Log) StartRun(_ context.Context, run Run) error {
	l.logger.Info("run started", zap.String("run_id", run.ID), zap.String("job", run.Job))
	return nil
}

// Record implements Writer.
func (l *Log) Record(_ context.Context, entry Entry) error {
	fields := []zap.Field{
		zap.String("run_id", entry.RunID),
		zap.String("key", entry.Key),
		zap.String("outcome", string(entry.Outcome)),
	}
	if entry.Reason != "" {
		fields = append(fields, zap.String("reason", entry.Reason))
	}
	if entry.RowID != "" {
		fields = append(fields, zap.String("row_id", entry.RowID))
	}
	if entry.Ambiguous {
		fields = append(fields, zap.Bool("ambiguous", true))
	}
	l.logger.Debug("record outcome", fields...)
	return nil
}

// FinishRun implements Writer.
func (l *Log) FinishRun(_ context.Context, run Run) error {
	counts := make(map[string]int, len(run.Counts))
	for outcome, n := range run.Counts {
		counts[string(outcome)] = n
	}
	l.logger.Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("job", run.Job),
		zap.String("status", string(run.Status)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
		zap.Any("counts", counts),
		zap.String("error", run.Error),
	)
	return nil
}
