package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/streakmatch/repositories"
	"github.com/Dosada05/streakmatch/services"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

const (
	retryBatchSize = 100
	jobTimeout     = 30 * time.Second
)

type Config struct {
	OutcomeRetryInterval time.Duration
	LiveSweepInterval    time.Duration
}

// OutcomeWorker runs the background jobs: applying outcomes whose score update
// failed, and moving started matches with an opponent to live.
type OutcomeWorker struct {
	scheduler gocron.Scheduler
	ledger    services.ScoreLedger
	matches   repositories.MatchRepository
	notifier  services.Notifier
	clock     clockwork.Clock
	cfg       Config
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewOutcomeWorker(
	cfg Config,
	ledger services.ScoreLedger,
	matches repositories.MatchRepository,
	notifier services.Notifier,
	clock clockwork.Clock,
	logger *slog.Logger,
) (*OutcomeWorker, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &OutcomeWorker{
		scheduler: scheduler,
		ledger:    ledger,
		matches:   matches,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Start registers the jobs and starts the scheduler. Jobs stop when ctx is done
// or Shutdown is called.
func (w *OutcomeWorker) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if w.cfg.OutcomeRetryInterval > 0 {
		_, err := w.scheduler.NewJob(
			gocron.DurationJob(w.cfg.OutcomeRetryInterval),
			gocron.NewTask(func() { w.RetryOutcomes(w.ctx) }),
			gocron.WithName("outcome-retry"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule outcome retry job: %w", err)
		}
	}
	if w.cfg.LiveSweepInterval > 0 {
		_, err := w.scheduler.NewJob(
			gocron.DurationJob(w.cfg.LiveSweepInterval),
			gocron.NewTask(func() { w.PromoteLive(w.ctx) }),
			gocron.WithName("match-live-sweep"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule live sweep job: %w", err)
		}
	}

	w.scheduler.Start()
	w.logger.Info("background jobs started",
		slog.Duration("outcome_retry_interval", w.cfg.OutcomeRetryInterval),
		slog.Duration("live_sweep_interval", w.cfg.LiveSweepInterval))
	return nil
}

func (w *OutcomeWorker) Shutdown() error {
	if w.cancel != nil {
		w.cancel()
	}
	return w.scheduler.Shutdown()
}

// RetryOutcomes applies pending outcomes once.
func (w *OutcomeWorker) RetryOutcomes(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	applied, err := w.ledger.RetryPending(ctx, retryBatchSize)
	if err != nil {
		w.logger.Error("outcome retry run failed", slog.Any("error", err))
	}
	if applied > 0 {
		w.logger.Info("outcome retry run finished", slog.Int("applied", applied))
	}
	return applied
}

// PromoteLive marks started matches that have an opponent as live.
func (w *OutcomeWorker) PromoteLive(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	n, err := w.matches.PromoteStarted(ctx, w.clock.Now())
	if err != nil {
		w.logger.Error("live sweep failed", slog.Any("error", err))
		return 0
	}
	if n > 0 {
		w.logger.Info("matches moved to live", slog.Int64("count", n))
		// Cached feeds still list them as scheduled.
		w.notifier.Publish(services.EventMatchesLive, map[string]int64{"count": n})
	}
	return n
}
