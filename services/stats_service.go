package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/padelhub/match-system/cache"
	"github.com/padelhub/match-system/models"
	"github.com/padelhub/match-system/repositories"
)

// StatsService accrues the per-player ledger from completed matches and
// serves the points ranking. The redis sorted set is a cache of the
// postgres ledger; when it is unavailable the ranking falls back to SQL.
type StatsService struct {
	statsRepo   repositories.StatsRepository
	userRepo    repositories.UserRepository
	leaderboard *cache.Leaderboard
	logger      *slog.Logger
}

func NewStatsService(
	statsRepo repositories.StatsRepository,
	userRepo repositories.UserRepository,
	leaderboard *cache.Leaderboard,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		statsRepo:   statsRepo,
		userRepo:    userRepo,
		leaderboard: leaderboard,
		logger:      logger,
	}
}

// MarkResultApplied exposes the per-(match, user) idempotency guard.
func (s *StatsService) MarkResultApplied(ctx context.Context, matchID, userID int) (bool, error) {
	return s.statsRepo.MarkResultApplied(ctx, matchID, userID)
}

func (s *StatsService) ApplyCompletedMatch(ctx context.Context, userID int, match *models.Match) error {
	if match.Score == nil {
		return fmt.Errorf("match %d has no score", match.ID)
	}
	team, ok := match.TeamOf(userID)
	if !ok {
		return fmt.Errorf("user %d is not on match %d roster", userID, match.ID)
	}
	won := team == match.Score.Winner

	stats, err := s.statsRepo.ApplyResult(ctx, userID, won)
	if err != nil {
		return err
	}

	// Ранжирование живет в кэше поверх БД; его отказ не откатывает начисление.
	if err := s.leaderboard.SetPoints(ctx, userID, stats.Points); err != nil {
		s.logger.Warn("failed to update leaderboard cache",
			slog.Int("user_id", userID), slog.Any("error", err))
	}
	return nil
}

func (s *StatsService) GetPlayerStats(ctx context.Context, userID int) (*models.PlayerStats, error) {
	stats, err := s.statsRepo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrStatsNotFound) {
			// Игрок без завершённых матчей получает пустой леджер, это не ошибка.
			return &models.PlayerStats{UserID: userID}, nil
		}
		return nil, err
	}
	return stats, nil
}

func (s *StatsService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	entries, err := s.leaderboard.Top(ctx, limit)
	if err != nil {
		s.logger.Warn("leaderboard cache unavailable, falling back to sql", slog.Any("error", err))
		return s.leaderboardFromSQL(ctx, limit)
	}
	if len(entries) == 0 {
		// Пустой кэш после рестарта redis: перечитываем из БД.
		return s.leaderboardFromSQL(ctx, limit)
	}

	result := make([]models.LeaderboardEntry, 0, len(entries))
	for i, entry := range entries {
		result = append(result, models.LeaderboardEntry{
			Rank:   i + 1,
			UserID: entry.UserID,
			Points: entry.Points,
		})
	}
	s.populateNicknames(ctx, result)
	return result, nil
}

func (s *StatsService) leaderboardFromSQL(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	top, err := s.statsRepo.TopByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}
	result := make([]models.LeaderboardEntry, 0, len(top))
	for i, stats := range top {
		result = append(result, models.LeaderboardEntry{
			Rank:   i + 1,
			UserID: stats.UserID,
			Points: stats.Points,
		})
	}
	s.populateNicknames(ctx, result)
	return result, nil
}

func (s *StatsService) populateNicknames(ctx context.Context, entries []models.LeaderboardEntry) {
	ids := make([]int, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.UserID)
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to load leaderboard nicknames", slog.Any("error", err))
		return
	}
	byID := make(map[int]string, len(users))
	for _, user := range users {
		byID[user.ID] = user.Nickname
	}
	for i := range entries {
		entries[i].Nickname = byID[entries[i].UserID]
	}
}
