package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/padelhub/match-system/metrics"
	"github.com/padelhub/match-system/models"
	"github.com/padelhub/match-system/repositories"
	"github.com/padelhub/match-system/storage"
)

// maxConflictRetries bounds the optimistic-concurrency retry loop on
// roster mutations.
const maxConflictRetries = 3

type CreateMatchInput struct {
	Title         string            `json:"title"`
	Location      string            `json:"location"`
	Level         models.MatchLevel `json:"level"`
	AgeRange      *string           `json:"age_range,omitempty"`
	StartTime     string            `json:"start_time"`
	PlayersNeeded int               `json:"players_needed"`
}

type MatchService interface {
	Create(ctx context.Context, creatorID int, input CreateMatchInput) (*models.Match, error)
	GetByID(ctx context.Context, id int) (*models.Match, error)
	List(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error)
	Join(ctx context.Context, matchID, userID int, team models.TeamSlot, position int) (*models.Match, error)
	Leave(ctx context.Context, matchID, userID int) (*models.Match, error)
}

type matchService struct {
	matchRepo repositories.MatchRepository
	userRepo  repositories.UserRepository
	lifecycle *LifecycleService
	notifier  NotificationDispatcher
	uploader  storage.FileUploader
	clock     Clock
	logger    *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	lifecycle *LifecycleService,
	notifier NotificationDispatcher,
	uploader storage.FileUploader,
	clock Clock,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo: matchRepo,
		userRepo:  userRepo,
		lifecycle: lifecycle,
		notifier:  notifier,
		uploader:  uploader,
		clock:     clock,
		logger:    logger,
	}
}

func (s *matchService) Create(ctx context.Context, creatorID int, input CreateMatchInput) (*models.Match, error) {
	startTime, err := parseStartTime(input.StartTime)
	if err != nil {
		return nil, err
	}

	match := &models.Match{
		Title:         input.Title,
		Location:      input.Location,
		Level:         input.Level,
		AgeRange:      input.AgeRange,
		StartTime:     startTime,
		PlayersNeeded: input.PlayersNeeded,
		CreatorID:     creatorID,
		Team1:         []int{},
		Team2:         []int{},
		Status:        models.MatchStatusOpen,
	}
	if err := s.validateNewMatch(match); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(ctx, creatorID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to check creator: %w", err)
	}

	// Создатель автоматически занимает первую позицию в team1.
	if err := match.AddToTeam(creatorID, models.TeamOne); err != nil {
		return nil, fmt.Errorf("failed to seat creator: %w", err)
	}

	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	metrics.MatchesCreated.Inc()
	s.logger.Info("match created",
		slog.Int("match_id", match.ID),
		slog.Int("creator_id", creatorID),
		slog.Time("start_time", match.StartTime))

	s.populateParticipants(ctx, match)
	return match, nil
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	// Нормализация при чтении: просроченный матч отменяется до выдачи.
	match, err = s.lifecycle.ReconcileMatch(ctx, match)
	if err != nil {
		return nil, err
	}

	s.populateParticipants(ctx, match)
	return match, nil
}

func (s *matchService) List(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListUpcoming(ctx, filter)
	if err != nil {
		return nil, err
	}

	visible := make([]*models.Match, 0, len(matches))
	for _, match := range matches {
		reconciled, err := s.lifecycle.ReconcileMatch(ctx, match)
		if err != nil {
			return nil, err
		}
		visible = append(visible, reconciled)
	}
	return visible, nil
}

func (s *matchService) Join(ctx context.Context, matchID, userID int, team models.TeamSlot, position int) (*models.Match, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		match, err := s.loadReconciled(ctx, matchID)
		if err != nil {
			return nil, err
		}

		switch match.Status {
		case models.MatchStatusOpen:
			// ok
		case models.MatchStatusFull:
			return nil, ErrMatchFull
		default:
			return nil, ErrMatchNotJoinable
		}

		if err := match.AddToTeamAt(userID, team, position); err != nil {
			return nil, mapRosterError(err)
		}

		becameFull := match.IsFull()
		if becameFull {
			match.Status = models.MatchStatusFull
		}

		if err := s.matchRepo.UpdateRoster(ctx, match); err != nil {
			if errors.Is(err, repositories.ErrMatchVersionConflict) {
				continue // кто-то успел раньше, перечитываем и пробуем снова
			}
			return nil, fmt.Errorf("failed to persist join: %w", err)
		}

		if becameFull {
			s.logger.Info("match full", slog.Int("match_id", match.ID))
			for _, participantID := range match.Roster() {
				s.notifier.Notify(ctx, models.NotificationMatchFull, match, participantID, nil)
			}
			// Создателю сразу напоминаем внести результат после игры.
			s.notifier.Notify(ctx, models.NotificationAddResult, match, match.CreatorID, map[string]string{
				"hint": "submit the set scores once the match has been played",
			})
		}
		s.notifier.BroadcastMatch(match)
		s.populateParticipants(ctx, match)
		return match, nil
	}
	return nil, ErrConcurrentModification
}

func (s *matchService) Leave(ctx context.Context, matchID, userID int) (*models.Match, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		match, err := s.loadReconciled(ctx, matchID)
		if err != nil {
			return nil, err
		}

		// A cancelled or completed match is never resurrected; leaving one
		// is a no-op.
		if match.Status.Terminal() {
			return match, nil
		}

		if removed := match.RemoveFromRoster(userID); !removed {
			return match, nil
		}

		if match.Status == models.MatchStatusFull && !match.IsFull() {
			match.Status = models.MatchStatusOpen
		}

		if err := s.matchRepo.UpdateRoster(ctx, match); err != nil {
			if errors.Is(err, repositories.ErrMatchVersionConflict) {
				continue
			}
			return nil, fmt.Errorf("failed to persist leave: %w", err)
		}

		s.notifier.BroadcastMatch(match)
		s.populateParticipants(ctx, match)
		return match, nil
	}
	return nil, ErrConcurrentModification
}

func (s *matchService) loadReconciled(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return s.lifecycle.ReconcileMatch(ctx, match)
}

func (s *matchService) validateNewMatch(match *models.Match) error {
	if match.Title == "" {
		return ErrTitleRequired
	}
	switch match.Level {
	case models.LevelBeginner, models.LevelIntermediate, models.LevelAdvanced:
	default:
		return ErrInvalidLevel
	}
	if match.PlayersNeeded < 2 || match.PlayersNeeded > 2*models.TeamSlotCapacity {
		return ErrInvalidCapacity
	}
	if !match.StartTime.After(s.clock.Now()) {
		return ErrStartTimeInPast
	}
	return nil
}

// populateParticipants обогащает матч данными игроков; ошибка не фатальна.
func (s *matchService) populateParticipants(ctx context.Context, match *models.Match) {
	users, err := s.userRepo.ListByIDs(ctx, match.Roster())
	if err != nil {
		s.logger.Warn("failed to load match participants",
			slog.Int("match_id", match.ID), slog.Any("error", err))
		return
	}
	participants := make([]models.User, 0, len(users))
	for _, user := range users {
		user.PasswordHash = ""
		populateUserAvatarURL(user, s.uploader)
		participants = append(participants, *user)
		if user.ID == match.CreatorID {
			creator := *user
			match.Creator = &creator
		}
	}
	match.Participants = participants
}

func mapRosterError(err error) error {
	switch {
	case errors.Is(err, models.ErrTeamSlotFull):
		return ErrTeamFull
	case errors.Is(err, models.ErrRosterFull):
		return ErrMatchFull
	case errors.Is(err, models.ErrAlreadyInRoster):
		return ErrAlreadyJoined
	case errors.Is(err, models.ErrInvalidTeamSlot):
		return fmt.Errorf("%w: team must be team1 or team2", ErrValidationFailed)
	default:
		return err
	}
}
