package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/content-alchemy/internal/metrics"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage"
)

// Runner отправляет сводку не чаще раза в календарный день.
// Отметка last_digest_date ставится после успешной отправки.
type Runner struct {
	store     storage.Storage
	builder   *Builder
	sender    Sender
	validator *schedule.Validator
	logger    *slog.Logger
}

// NewRunner создает Runner.
func NewRunner(store storage.Storage, builder *Builder, sender Sender, validator *schedule.Validator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, builder: builder, sender: sender, validator: validator, logger: logger}
}

// RunOnce отправляет сегодняшнюю сводку. false означает, что сводка
// уже была отправлена сегодня или получателей нет.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("read settings: %w", err)
	}
	today := r.validator.Today().Format(schedule.DateLayout)
	if settings.LastDigestDate == today {
		r.logger.Debug("digest already sent", "date", today)
		return false, nil
	}
	if len(settings.DigestRecipients) == 0 {
		r.logger.Debug("digest has no recipients")
		return false, nil
	}

	d, err := r.builder.Build(ctx)
	if err != nil {
		return false, err
	}
	if err := r.sender.Send(ctx, settings.DigestRecipients, d); err != nil {
		return false, fmt.Errorf("send digest: %w", err)
	}
	metrics.DigestsSent.Inc()

	err = r.store.RunInTx(ctx, func(tx storage.Tx) error {
		st, err := tx.GetSettings(ctx)
		if err != nil {
			return err
		}
		st.LastDigestDate = today
		return tx.SaveSettings(ctx, st)
	})
	if err != nil {
		return true, fmt.Errorf("mark digest sent: %w", err)
	}
	r.logger.Info("digest sent", "date", today, "recipients", len(settings.DigestRecipients))
	return true, nil
}

// Scheduler периодически вызывает Runner.RunOnce.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *slog.Logger
}

// NewScheduler создает планировщик. interval <= 0 отключает его.
func NewScheduler(runner *Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Start запускает проверку сразу и затем каждые interval.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("digest scheduler disabled")
		close(s.doneCh)
		return
	}

	ticker := time.NewTicker(s.interval)
	s.logger.Info("digest scheduler started", "interval", s.interval)

	go func() {
		defer close(s.doneCh)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-s.stopCh:
				s.logger.Info("digest scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("digest scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop останавливает планировщик и ждет завершения текущей проверки.
// Вызывается после Start.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.doneCh
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.runner.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled digest failed", "error", err)
	}
}
