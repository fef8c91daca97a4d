package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/pkg/logger"
)

// Scheduler triggers newsletter generation once per week at the configured
// weekday and hour. It runs as a periodic worker: each iteration checks
// whether the trigger moment for the current week has passed and whether
// this replica already generated for it.
type Scheduler struct {
	service *Service
	weekday time.Weekday
	hour    int

	mu      sync.Mutex
	lastRun time.Time
}

// NewScheduler creates the weekly scheduler.
func NewScheduler(service *Service, weekday, hour int) *Scheduler {
	return &Scheduler{
		service: service,
		weekday: time.Weekday(weekday % 7),
		hour:    hour,
	}
}

// Name implements worker.Worker.
func (s *Scheduler) Name() string { return "newsletter-scheduler" }

// Run implements worker.Worker.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.service.now().In(s.service.location)
	trigger := s.triggerMoment(now)

	if now.Before(trigger) {
		return nil
	}

	s.mu.Lock()
	alreadyRan := !s.lastRun.Before(trigger)
	s.mu.Unlock()
	if alreadyRan {
		return nil
	}

	logger.Info("scheduled newsletter generation triggered",
		zap.Time("trigger", trigger),
	)

	if _, err := s.service.GenerateNewsletter(ctx, "schedule"); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()
	return nil
}

// triggerMoment resolves this week's generation moment: the most recent
// configured weekday at the configured hour, at or before now.
func (s *Scheduler) triggerMoment(now time.Time) time.Time {
	daysSince := (int(now.Weekday()) - int(s.weekday) + 7) % 7
	day := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location()).
		AddDate(0, 0, -daysSince)

	if daysSince == 0 && now.Before(day) {
		day = day.AddDate(0, 0, -7)
	}
	return day
}
