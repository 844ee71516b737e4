// Package scheduler runs execution generation on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/model"
)

// DefaultSpec runs shortly after local midnight.
const DefaultSpec = "5 0 * * *"

// Generator materializes executions for a date.
type Generator interface {
	Generate(ctx context.Context, date model.Date) (*chore.GenerateResult, error)
}

type Config struct {
	// Spec is a standard five-field cron expression.
	Spec     string
	Location *time.Location
	// CatchUpDays is how many past days Start regenerates, so a server that
	// was down over midnight does not miss them.
	CatchUpDays int
}

// Scheduler manages the daily generation job.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	gen     Generator
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger
	entry   cron.EntryID
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	// OnGenerated, when set, is called after each run that created executions.
	OnGenerated func(*chore.GenerateResult)
}

func New(gen Generator, c clock.Clock, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(cfg.Location)),
		gen:    gen,
		clock:  c,
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the job, catches up on recent days and starts the cron
// loop. It is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	id, err := s.cron.AddFunc(s.cfg.Spec, func() {
		if _, err := s.RunNow(s.ctx); err != nil {
			s.logger.Error("scheduled generation", "error", err)
		}
	})
	if err != nil {
		s.cancel()
		return fmt.Errorf("invalid cron expression %q: %w", s.cfg.Spec, err)
	}
	s.entry = id

	today := clock.Today(s.clock, s.cfg.Location)
	for d := today.AddDays(-s.cfg.CatchUpDays); !d.After(today); d = d.AddDays(1) {
		if _, err := s.run(s.ctx, d); err != nil {
			s.logger.Error("catch-up generation", "date", d.String(), "error", err)
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "spec", s.cfg.Spec, "next_run", s.cron.Entry(id).Next)
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	<-done.Done()
	s.cancel()
}

// RunNow generates executions for today.
func (s *Scheduler) RunNow(ctx context.Context) (*chore.GenerateResult, error) {
	return s.run(ctx, clock.Today(s.clock, s.cfg.Location))
}

// NextRun returns the next scheduled run, or the zero time when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) run(ctx context.Context, date model.Date) (*chore.GenerateResult, error) {
	res, err := s.gen.Generate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", date, err)
	}

	for _, f := range res.Failures {
		s.logger.Warn("definition not generated", "date", date.String(), "definition_id", f.DefinitionID, "error", f.Message)
	}
	s.logger.Info("generated executions", "date", date.String(), "count", res.GeneratedCount, "failures", len(res.Failures))

	if res.GeneratedCount > 0 && s.OnGenerated != nil {
		s.OnGenerated(res)
	}
	return res, nil
}
