package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/padelhub/match-system/metrics"
	"github.com/padelhub/match-system/models"
	"github.com/padelhub/match-system/repositories"
	"github.com/padelhub/match-system/storage"
)

const (
	morningEndHour = 9
	nightStartHour = 22
)

// UserMedal pairs a catalog entry with the user's progress toward it.
type UserMedal struct {
	Medal    models.MedalDefinition    `json:"medal"`
	Progress *models.UserMedalProgress `json:"progress,omitempty"`
}

// MedalService drives the achievement progress state machine. Evaluation is
// serialized per user with a keyed mutex so overlapping completed matches
// cannot lose streak or unique-player updates.
type MedalService struct {
	medalRepo repositories.MedalRepository
	uploader  storage.FileUploader
	clock     Clock
	logger    *slog.Logger

	mu        sync.Mutex
	userLocks map[int]*sync.Mutex
}

func NewMedalService(
	medalRepo repositories.MedalRepository,
	uploader storage.FileUploader,
	clock Clock,
	logger *slog.Logger,
) *MedalService {
	return &MedalService{
		medalRepo: medalRepo,
		uploader:  uploader,
		clock:     clock,
		logger:    logger,
		userLocks: make(map[int]*sync.Mutex),
	}
}

// SyncCatalog upserts the static catalog into the medals table at startup.
func (s *MedalService) SyncCatalog(ctx context.Context) error {
	for _, def := range DefaultCatalog() {
		if err := s.medalRepo.UpsertDefinition(ctx, &def); err != nil {
			return fmt.Errorf("failed to sync medal %s: %w", def.Code, err)
		}
	}
	return nil
}

func (s *MedalService) ListCatalog(ctx context.Context) ([]*models.MedalDefinition, error) {
	defs, err := s.medalRepo.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		populateMedalIconURL(def, s.uploader)
	}
	return defs, nil
}

// ListUserMedals returns the full catalog with the user's progress joined
// in; medals never evaluated for the user carry a nil progress.
func (s *MedalService) ListUserMedals(ctx context.Context, userID int) ([]UserMedal, error) {
	defs, err := s.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	progressList, err := s.medalRepo.ListProgressByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*models.UserMedalProgress, len(progressList))
	for _, progress := range progressList {
		byCode[progress.MedalCode] = progress
	}

	result := make([]UserMedal, 0, len(defs))
	for _, def := range defs {
		result = append(result, UserMedal{Medal: *def, Progress: byCode[def.Code]})
	}
	return result, nil
}

// ApplyCompletedMatch evaluates every not-yet-unlocked medal for one
// participant of a completed match. Unlocked medals are skipped: the latch
// is one-way and re-evaluation is an idempotent no-op.
func (s *MedalService) ApplyCompletedMatch(ctx context.Context, userID int, match *models.Match) error {
	if match.Score == nil {
		return fmt.Errorf("match %d has no score", match.ID)
	}

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	defs, err := s.medalRepo.ListDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load medal catalog: %w", err)
	}

	team, _ := match.TeamOf(userID)
	won := team == match.Score.Winner

	for _, def := range defs {
		progress, err := s.medalRepo.GetProgress(ctx, userID, def.Code)
		if err != nil {
			return err
		}
		if progress == nil {
			// Прогресс создаётся лениво при первой оценке.
			progress = &models.UserMedalProgress{UserID: userID, MedalCode: def.Code}
		}
		if progress.Unlocked {
			continue
		}

		if err := applyRequirement(def.Requirement, progress, userID, match, won); err != nil {
			return fmt.Errorf("medal %s: %w", def.Code, err)
		}

		if progress.Progress >= def.Requirement.Target() {
			progress.Unlocked = true
			now := s.clock.Now()
			progress.UnlockedAt = &now
			metrics.MedalsUnlocked.Inc()
			s.logger.Info("medal unlocked",
				slog.Int("user_id", userID),
				slog.String("medal", def.Code))
		}
		progress.LastUpdated = s.clock.Now()

		if err := s.medalRepo.UpsertProgress(ctx, progress); err != nil {
			return err
		}
	}
	return nil
}

// applyRequirement is the single exhaustive dispatch over the requirement
// variants; an unknown variant is an error, not a silent skip.
func applyRequirement(
	req models.MedalRequirement,
	progress *models.UserMedalProgress,
	userID int,
	match *models.Match,
	won bool,
) error {
	switch r := req.(type) {
	case models.MatchesPlayedRequirement:
		progress.Progress++

	case models.WinsRequirement:
		if won {
			progress.Progress++
		}

	case models.WinStreakRequirement:
		// Progress is the best streak ever observed, not the current one.
		if won {
			progress.CurrentStreak++
			if progress.CurrentStreak > progress.Progress {
				progress.Progress = progress.CurrentStreak
			}
		} else {
			progress.CurrentStreak = 0
		}

	case models.UniquePlayersRequirement:
		for _, id := range match.Roster() {
			if id == userID || progress.SeenOpponent(id) {
				continue
			}
			progress.OpponentIDs = append(progress.OpponentIDs, id)
		}
		progress.Progress = len(progress.OpponentIDs)

	case models.TimeOfDayRequirement:
		hour := match.StartTime.Hour()
		switch r.Period {
		case models.PeriodMorning:
			if hour < morningEndHour {
				progress.Progress = 1
			}
		case models.PeriodNight:
			if hour >= nightStartHour {
				progress.Progress = 1
			}
		}

	case models.WeekendMatchesRequirement:
		weekday := match.StartTime.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			progress.Progress++
		}

	default:
		return fmt.Errorf("%w: %T", repositories.ErrUnknownRequirement, req)
	}
	return nil
}

func (s *MedalService) lockFor(userID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}
