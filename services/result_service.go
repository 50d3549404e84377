package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/padelhub/match-system/metrics"
	"github.com/padelhub/match-system/models"
	"github.com/padelhub/match-system/repositories"
	"github.com/padelhub/match-system/scoring"
)

type SubmitResultInput struct {
	Set1   models.SetScore  `json:"set1"`
	Set2   models.SetScore  `json:"set2"`
	Set3   *models.SetScore `json:"set3,omitempty"`
	Winner models.TeamSlot  `json:"winner"`
}

// ResultService accepts a submitted score, completes the match, and fans the
// completed-match event out to the medal engine and the stats ledger. The
// primary state change (score acceptance) succeeds or fails synchronously;
// the fan-out is best-effort.
type ResultService struct {
	matchRepo repositories.MatchRepository
	medals    *MedalService
	stats     *StatsService
	lifecycle *LifecycleService
	notifier  NotificationDispatcher
	clock     Clock
	logger    *slog.Logger
}

func NewResultService(
	matchRepo repositories.MatchRepository,
	medals *MedalService,
	stats *StatsService,
	lifecycle *LifecycleService,
	notifier NotificationDispatcher,
	clock Clock,
	logger *slog.Logger,
) *ResultService {
	return &ResultService{
		matchRepo: matchRepo,
		medals:    medals,
		stats:     stats,
		lifecycle: lifecycle,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
	}
}

func (s *ResultService) SubmitResult(ctx context.Context, matchID, userID int, input SubmitResultInput) (*models.Match, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		match, err := s.matchRepo.GetByID(ctx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return nil, ErrMatchNotFound
			}
			return nil, err
		}
		match, err = s.lifecycle.ReconcileMatch(ctx, match)
		if err != nil {
			return nil, err
		}

		if _, ok := match.TeamOf(userID); !ok {
			return nil, ErrNotMatchParticipant
		}
		if match.Score != nil || match.Status == models.MatchStatusCompleted {
			return nil, ErrResultAlreadyRecorded
		}
		// Счёт принимается только для заполненного матча после его начала.
		if match.Status != models.MatchStatusFull || s.clock.Now().Before(match.StartTime) {
			return nil, ErrMatchNotReadyForResult
		}

		score := models.Score{
			Set1:       input.Set1,
			Set2:       input.Set2,
			Set3:       input.Set3,
			Winner:     input.Winner,
			RecordedBy: userID,
			RecordedAt: s.clock.Now(),
		}
		if err := scoring.Validate(score); err != nil {
			metrics.ResultsRejected.Inc()
			return nil, fmt.Errorf("%w: %w", ErrInvalidScore, err)
		}

		match.Score = &score
		match.Status = models.MatchStatusCompleted

		if err := s.matchRepo.SetResult(ctx, match); err != nil {
			if errors.Is(err, repositories.ErrMatchVersionConflict) {
				continue // перечитать и проверить заново (возможно, счёт уже внесён)
			}
			return nil, fmt.Errorf("failed to persist result: %w", err)
		}

		metrics.MatchesCompleted.Inc()
		s.logger.Info("result recorded",
			slog.Int("match_id", match.ID),
			slog.Int("recorded_by", userID),
			slog.String("winner", string(score.Winner)))

		s.applyCompletedMatch(ctx, match)

		for _, participantID := range match.Roster() {
			if participantID == userID {
				s.notifier.Notify(ctx, models.NotificationResultConfirmed, match, participantID, nil)
				continue
			}
			s.notifier.Notify(ctx, models.NotificationResultAdded, match, participantID, map[string]string{
				"recorded_by": fmt.Sprintf("%d", userID),
			})
		}
		s.notifier.BroadcastMatch(match)
		return match, nil
	}
	return nil, ErrConcurrentModification
}

// applyCompletedMatch credits medals and stats for every participant, one
// goroutine per participant. Failures are logged, never surfaced: the score
// is already accepted. The applied-results guard keeps retries from
// double-crediting a (match, user) pair.
func (s *ResultService) applyCompletedMatch(ctx context.Context, match *models.Match) {
	g, gCtx := errgroup.WithContext(ctx)
	for _, participantID := range match.Roster() {
		participantID := participantID
		g.Go(func() error {
			first, err := s.stats.MarkResultApplied(gCtx, match.ID, participantID)
			if err != nil {
				return fmt.Errorf("guard check for user %d: %w", participantID, err)
			}
			if !first {
				return nil
			}
			if err := s.stats.ApplyCompletedMatch(gCtx, participantID, match); err != nil {
				return fmt.Errorf("stats for user %d: %w", participantID, err)
			}
			if err := s.medals.ApplyCompletedMatch(gCtx, participantID, match); err != nil {
				return fmt.Errorf("medals for user %d: %w", participantID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to apply completed match",
			slog.Int("match_id", match.ID), slog.Any("error", err))
	}
}
