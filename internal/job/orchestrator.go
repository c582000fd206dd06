package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-alerts/internal/alerts"
	"github.com/dvloznov/finance-alerts/internal/clock"
	"github.com/dvloznov/finance-alerts/internal/config"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

// Orchestrator runs one alerting job invocation end to end. Per-user
// evaluation fans out over a fixed-size worker pool; one user's failure
// never touches another's.
type Orchestrator struct {
	repo repository.Store
	eval alerts.Evaluator
	disp *alerts.Dispatcher
	clk  clock.Clock
	log  zerolog.Logger

	workers       int
	recentWindow  time.Duration
	historyWindow time.Duration

	archiver ReportArchiver
}

// New builds an orchestrator from the engine configuration.
func New(repo repository.Store, cfg config.EngineConfig, clk clock.Clock, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		repo: repo,
		eval: alerts.Evaluator{
			Thresholds:        cfg.BudgetThresholds,
			GoalLookahead:     time.Duration(cfg.GoalLookaheadDays) * 24 * time.Hour,
			AnomalyMultiplier: cfg.AnomalyMultiplier,
			AnomalyMinHistory: cfg.AnomalyMinHistory,
		},
		disp:          alerts.NewDispatcher(repo, log),
		clk:           clk,
		log:           log,
		workers:       cfg.Workers,
		recentWindow:  time.Duration(cfg.RecentWindowHours) * time.Hour,
		historyWindow: time.Duration(cfg.AnomalyHistoryDays) * 24 * time.Hour,
	}
}

// WithArchiver attaches a run-report archiver. Archival failures are
// logged, never fatal.
func (o *Orchestrator) WithArchiver(a ReportArchiver) *Orchestrator {
	o.archiver = a
	return o
}

type userOutcome struct {
	userID string
	result userResult
	err    error
}

// Run executes one job invocation. The returned error is non-nil only
// when the user population itself could not be fetched; individual user
// failures land in the report.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: o.clk.Now(),
	}

	var users []string
	if err := readRetry(ctx, func() error {
		var err error
		users, err = o.repo.ListActiveUsers(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("Run: listing active users: %w", err)
	}
	report.TotalUsers = len(users)

	o.log.Info().
		Str("run_id", report.RunID).
		Int("users", len(users)).
		Int("workers", o.workers).
		Msg("Starting alert run")

	jobs := make(chan string)
	results := make(chan userOutcome)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				var res userResult
				err := runSupervised(o.log, userID, func() error {
					var perr error
					res, perr = o.processUser(ctx, userID)
					return perr
				})
				results <- userOutcome{userID: userID, result: res, err: err}
			}
		}()
	}

	// Feed users until done or cancelled; in-flight evaluations are
	// allowed to finish either way.
	go func() {
		defer close(jobs)
		for _, userID := range users {
			select {
			case jobs <- userID:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	processed := 0
	for outcome := range results {
		processed++
		if outcome.err != nil {
			report.Failed++
			report.Failures = append(report.Failures, UserFailure{
				UserID: outcome.userID,
				Error:  outcome.err.Error(),
			})
			o.log.Error().
				Err(outcome.err).
				Str("user_id", outcome.userID).
				Msg("User evaluation failed")
			continue
		}
		report.Succeeded++
		report.NotificationsCreated += outcome.result.created
		report.NotificationsSkipped += outcome.result.skipped
	}
	report.Unprocessed = report.TotalUsers - processed
	report.FinishedAt = o.clk.Now()

	o.log.Info().
		Str("run_id", report.RunID).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("unprocessed", report.Unprocessed).
		Int("created", report.NotificationsCreated).
		Int("skipped", report.NotificationsSkipped).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Alert run finished")

	if o.archiver != nil {
		if err := o.archiver.Archive(ctx, report); err != nil {
			o.log.Error().Err(err).Str("run_id", report.RunID).Msg("Failed to archive run report")
		}
	}

	return report, nil
}
