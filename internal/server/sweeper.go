package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

var _ cron.Logger = cronLogger{}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

// newSweeper schedules the idle-session sweep. The returned cron is not
// started. Overlapping runs are skipped.
func newSweeper(ctx context.Context, schedule string, sweep func(context.Context) []string, logger *slog.Logger) (*cron.Cron, error) {
	cl := cronLogger{logger: logger.With("component", "sweeper")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err := c.AddFunc(schedule, func() {
		if closed := sweep(ctx); len(closed) > 0 {
			logger.Debug("swept sessions", "ids", closed)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return c, nil
}
