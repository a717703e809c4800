package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder tracks one run against a Writer. Writer failures are logged and swallowed: the
// journal never changes the outcome of a sync.
type Recorder struct {
	writer Writer
	logger *zap.Logger
	run    Run
	now    func() time.Time
}

// Begin opens a run for job.
func Begin(ctx context.Context, writer Writer, job string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		writer: writer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	r.run = Run{
		ID:        uuid.NewString(),
		Job:       job,
		Status:    StatusRunning,
		StartedAt: r.now(),
		Counts:    make(map[Outcome]int),
	}
	if writer != nil {
		if err := writer.StartRun(ctx, r.run); err != nil {
			r.logger.Warn("journal start failed", zap.String("run_id", r.run.ID), zap.Error(err))
		}
	}
	return r
}

// RunID returns the id of the open run.
func (r *Recorder) RunID() string {
	return r.run.ID
}

// Record counts entry and forwards it to the writer.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	entry.RunID = r.run.ID
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = r.now()
	}
	r.run.Counts[entry.Outcome]++
	if r.writer == nil {
		return
	}
	if err := r.writer.Record(ctx, entry); err != nil {
		r.logger.Warn("journal record failed", zap.String("run_id", r.run.ID), zap.String("key", entry.Key), zap.Error(err))
	}
}

// Finish closes the run. A non-nil runErr marks it failed.
func (r *Recorder) Finish(ctx context.Context, runErr error) Run {
	r.run.FinishedAt = r.now()
	r.run.Status = StatusSucceeded
	if runErr != nil {
		r.run.Status = StatusFailed
		r.run.Error = runErr.Error()
	}
	if r.writer != nil {
		if err := r.writer.FinishRun(ctx, r.run); err != nil {
			r.logger.Warn("journal finish failed", zap.String("run_id", r.run.ID), zap.Error(err))
		}
	}
	return copyRun(r.run)
}
