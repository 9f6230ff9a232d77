package automation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// UserLister returns every user that owns rules.
type UserLister interface {
	ListUsers(ctx context.Context) ([]int64, error)
}

// Scheduler evaluates schedule rules once a minute. Without it, schedule
// rules only fire when a device event happens to arrive in their minute.
type Scheduler struct {
	mu        sync.Mutex
	cron      *cron.Cron
	users     UserLister
	evaluator *Evaluator
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewScheduler(users UserLister, evaluator *Evaluator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		users:     users,
		evaluator: evaluator,
		logger:    logger.With("component", "automation_scheduler"),
	}
}

// Start begins ticking at the top of every minute.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc("* * * * *", func() { s.Tick(s.ctx) }); err != nil {
		s.cancel()
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("schedule evaluation started")
	return nil
}

// Stop halts the ticker, cancels a running tick and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

// Tick evaluates schedule rules for every user once.
func (s *Scheduler) Tick(ctx context.Context) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.logger.Error("list rule owners", "error", err)
		return
	}
	for _, uid := range users {
		if ctx.Err() != nil {
			return
		}
		firings, err := s.evaluator.ProcessSchedule(ctx, uid)
		if err != nil {
			s.logger.Warn("evaluate schedule rules", "user_id", uid, "error", err)
			continue
		}
		if len(firings) > 0 {
			s.logger.Info("schedule rules fired", "user_id", uid, "count", len(firings))
		}
	}
}
