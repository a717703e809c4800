package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string
}

// Reporter forwards per-record failures to Sentry. The zero value and a Reporter built without a
// DSN only count as disabled; Capture is then a no-op.
type Reporter struct {
	enabled bool
	logger  *zap.Logger
}

// NewReporter initialises the Sentry client when cfg.DSN is set.
func NewReporter(cfg SentryConfig, logger *zap.Logger) (*Reporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DSN == "" {
		logger.Debug("sentry dsn not configured, error reporting disabled")
		return &Reporter{logger: logger}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		ServerName:  cfg.ServerName,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	logger.Info("sentry initialised", zap.String("environment", cfg.Environment))
	return &Reporter{enabled: true, logger: logger}, nil
}

// Enabled reports whether events are sent.
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// Capture reports err with tags attached to its own scope.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if err == nil || !r.Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events.
func (r *Reporter) Flush(timeout time.Duration) {
	if !r.Enabled() {
		return
	}
	if !sentry.Flush(timeout) {
		r.logger.Warn("sentry flush timed out", zap.Duration("timeout", timeout))
	}
}
