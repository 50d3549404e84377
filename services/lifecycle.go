package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/padelhub/match-system/metrics"
	"github.com/padelhub/match-system/models"
	"github.com/padelhub/match-system/repositories"
)

// CancellationWindow is how long before the scheduled start an under-filled
// match is cancelled.
const CancellationWindow = 24 * time.Hour

// ShouldCancel is the pure cancellation rule: an under-filled, non-terminal
// match is cancelled once now reaches scheduledStart - 24h. Defined once and
// called both from the read path and from the periodic sweep.
func ShouldCancel(match *models.Match, now time.Time) bool {
	if match.Status.Terminal() {
		return false
	}
	if match.IsFull() {
		return false
	}
	return !now.Before(match.StartTime.Add(-CancellationWindow))
}

// LifecycleService applies time-driven status transitions. Cancellation is
// lazily evaluated: every read that returns match data goes through
// ReconcileMatch first, so a stale Open match past its threshold is never
// presented to a caller.
type LifecycleService struct {
	matchRepo repositories.MatchRepository
	notifier  NotificationDispatcher
	clock     Clock
	logger    *slog.Logger
}

func NewLifecycleService(
	matchRepo repositories.MatchRepository,
	notifier NotificationDispatcher,
	clock Clock,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		matchRepo: matchRepo,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
	}
}

// ReconcileMatch checks the cancellation rule and, when it fires, applies
// the transition through a conditional update. The update is keyed on the
// current non-terminal status, so of any number of concurrent readers only
// one flips the row and sends the creator notification.
func (s *LifecycleService) ReconcileMatch(ctx context.Context, match *models.Match) (*models.Match, error) {
	if !ShouldCancel(match, s.clock.Now()) {
		return match, nil
	}

	applied, err := s.matchRepo.UpdateStatus(ctx, match.ID,
		[]models.MatchStatus{models.MatchStatusOpen, models.MatchStatusFull},
		models.MatchStatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel match %d: %w", match.ID, err)
	}

	match.Status = models.MatchStatusCancelled
	if !applied {
		// Кто-то другой уже отменил матч; уведомление уже отправлено.
		return match, nil
	}

	metrics.MatchesCancelled.Inc()
	s.logger.Info("match cancelled",
		slog.Int("match_id", match.ID),
		slog.Int("roster_size", match.RosterSize()),
		slog.Int("players_needed", match.PlayersNeeded))

	s.notifier.Notify(ctx, models.NotificationMatchCancelled, match, match.CreatorID, map[string]string{
		"reason": "insufficient players 24h before start",
	})
	s.notifier.BroadcastMatch(match)
	return match, nil
}

// SweepCancellations proactively cancels every due match, so creators hear
// about it without anyone reading the match first. The read path does the
// same reconciliation, this just makes notification delivery prompt.
func (s *LifecycleService) SweepCancellations(ctx context.Context) error {
	cutoff := s.clock.Now().Add(CancellationWindow)
	due, err := s.matchRepo.ListDueForCancellation(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list matches due for cancellation: %w", err)
	}

	var sweepErr error
	for _, match := range due {
		if _, err := s.ReconcileMatch(ctx, match); err != nil {
			s.logger.Error("sweep: failed to reconcile match",
				slog.Int("match_id", match.ID), slog.Any("error", err))
			sweepErr = errors.Join(sweepErr, err)
		}
	}
	return sweepErr
}
