// Package jobs runs background work on a cron schedule. Today that is the
// sweep that expires pending offers nobody answered in time.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const offerExpiryJob = "expire_offers"

// OfferExpirer is satisfied by service.OfferService.
type OfferExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Recorder receives job outcomes; middleware.Metrics implements it.
type Recorder interface {
	RecordOffersExpired(n int)
	RecordJobRun(job string, success bool)
}

// Scheduler wraps a cron instance. Panics in a job are recovered and a job
// still running when its next tick arrives is skipped, so a slow sweep can
// never pile up.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// AddOfferExpiry schedules the expiry sweep. spec is any robfig/cron
// expression, e.g. "@every 5m" or "*/10 * * * *". Each run gets timeout to
// finish.
func (s *Scheduler) AddOfferExpiry(spec string, offers OfferExpirer, rec Recorder, timeout time.Duration) error {
	run := ExpireOffers(offers, rec, s.logger, timeout)
	if _, err := s.cron.AddFunc(spec, func() { run(context.Background()) }); err != nil {
		return fmt.Errorf("jobs: scheduling %s with %q: %w", offerExpiryJob, spec, err)
	}
	s.logger.Info("job scheduled", slog.String("job", offerExpiryJob), slog.String("schedule", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs: waiting for running jobs: %w", ctx.Err())
	}
}

// ExpireOffers returns one run of the sweep. It is exported so the CLI can
// trigger a sweep by hand.
func ExpireOffers(offers OfferExpirer, rec Recorder, logger *slog.Logger, timeout time.Duration) func(context.Context) {
	return func(parent context.Context) {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		start := time.Now()
		n, err := offers.ExpireOverdue(ctx)
		if rec != nil {
			rec.RecordOffersExpired(n)
			rec.RecordJobRun(offerExpiryJob, err == nil)
		}
		if err != nil {
			logger.Error("offer expiry sweep failed",
				slog.Int("expired", n),
				slog.String("error", err.Error()),
			)
			return
		}
		logger.Debug("offer expiry sweep finished",
			slog.Int("expired", n),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
