package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the AQI refresh job on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler that runs job on spec. Runs never overlap:
// a tick that fires while the previous run is still going is skipped.
func NewScheduler(ctx context.Context, spec string, job *RefreshJob, logger zerolog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := c.AddFunc(spec, func() {
		job.Run(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid aqi schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: c, entryID: id, logger: logger}, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().
		Time("next_run", s.cron.Entry(s.entryID).Next).
		Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out with a job still running")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
