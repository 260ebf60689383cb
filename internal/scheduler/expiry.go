// Package scheduler runs the optional job that expires reservations whose
// expiry date has passed.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stwalsh4118/parcela/internal/logger"
)

// DefaultSchedule runs the reconciliation every 15 minutes.
const DefaultSchedule = "*/15 * * * *"

// Reconciler moves overdue open reservations to expired and returns how many changed.
type Reconciler interface {
	ReconcileExpired(ctx context.Context) (int, error)
}

// ExpiryScheduler triggers a Reconciler on a cron schedule.
type ExpiryScheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
	timeout    time.Duration
	log        *logger.Logger

	mu      sync.Mutex
	running bool
}

// NewExpiryScheduler accepts a standard 5-field or a seconds-first 6-field expression.
func NewExpiryScheduler(r Reconciler, schedule string, log *logger.Logger) *ExpiryScheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &ExpiryScheduler{
		cron:       cron.New(cron.WithSeconds()),
		reconciler: r,
		schedule:   withSeconds(schedule),
		timeout:    time.Minute,
		log:        log.Named("expiry-scheduler"),
	}
}

func withSeconds(expr string) string {
	if len(strings.Fields(expr)) == 5 {
		return "0 " + expr
	}
	return expr
}

// Start registers the job and starts the cron loop.
func (s *ExpiryScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("Expiry reconciliation failed", err, nil)
		}
	}); err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.log.Info("Expiry scheduler started", map[string]interface{}{"schedule": s.schedule})
	return nil
}

// Stop waits for a running job to finish.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("Expiry scheduler stopped", nil)
}

// RunOnce performs a single reconciliation pass.
func (s *ExpiryScheduler) RunOnce(ctx context.Context) (int, error) {
	n, err := s.reconciler.ReconcileExpired(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.log.Info("Expired overdue reservations", map[string]interface{}{"count": n})
	}
	return n, nil
}
