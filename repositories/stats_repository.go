package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/padelhub/match-system/models"
)

var ErrStatsNotFound = errors.New("player stats not found")

type StatsRepository interface {
	// MarkResultApplied records that a completed match has been credited to a
	// user. The first call per (match, user) returns true; retries return
	// false, which is the idempotency guard against double-crediting.
	MarkResultApplied(ctx context.Context, matchID, userID int) (bool, error)
	// ApplyResult accrues one completed match in a single atomic statement.
	// The arithmetic mirrors models.PlayerStats.ApplyOutcome.
	ApplyResult(ctx context.Context, userID int, won bool) (*models.PlayerStats, error)
	GetByUser(ctx context.Context, userID int) (*models.PlayerStats, error)
	TopByPoints(ctx context.Context, limit int) ([]*models.PlayerStats, error)
}

type postgresStatsRepository struct {
	db *sql.DB
}

func NewPostgresStatsRepository(db *sql.DB) StatsRepository {
	return &postgresStatsRepository{db: db}
}

func (r *postgresStatsRepository) MarkResultApplied(ctx context.Context, matchID, userID int) (bool, error) {
	query := `
		INSERT INTO applied_results (match_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (match_id, user_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, matchID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark result applied (%d, %d): %w", matchID, userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *postgresStatsRepository) ApplyResult(ctx context.Context, userID int, won bool) (*models.PlayerStats, error) {
	var pointsDelta, winsDelta, lossesDelta int
	if won {
		pointsDelta, winsDelta = models.PointsPerWin, 1
	} else {
		pointsDelta, lossesDelta = models.PointsPerLoss, 1
	}

	// Однократный UPSERT: блокировка строки сериализует параллельные матчи
	// одного игрока.
	query := `
		INSERT INTO player_stats
			(user_id, points, matches_played, wins, losses, current_streak, best_streak, updated_at)
		VALUES ($1, $2, 1, $3, $4, $3, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			points = player_stats.points + $2,
			matches_played = player_stats.matches_played + 1,
			wins = player_stats.wins + $3,
			losses = player_stats.losses + $4,
			current_streak = CASE WHEN $3 = 1 THEN player_stats.current_streak + 1 ELSE 0 END,
			best_streak = GREATEST(player_stats.best_streak,
				CASE WHEN $3 = 1 THEN player_stats.current_streak + 1 ELSE player_stats.best_streak END),
			updated_at = now()
		RETURNING user_id, points, matches_played, wins, losses, current_streak, best_streak, updated_at`

	stats := &models.PlayerStats{}
	err := r.db.QueryRowContext(ctx, query, userID, pointsDelta, winsDelta, lossesDelta).Scan(
		&stats.UserID,
		&stats.Points,
		&stats.MatchesPlayed,
		&stats.Wins,
		&stats.Losses,
		&stats.CurrentStreak,
		&stats.BestStreak,
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to apply result for user %d: %w", userID, err)
	}
	return stats, nil
}

func (r *postgresStatsRepository) GetByUser(ctx context.Context, userID int) (*models.PlayerStats, error) {
	query := `
		SELECT user_id, points, matches_played, wins, losses, current_streak, best_streak, updated_at
		FROM player_stats
		WHERE user_id = $1`

	stats := &models.PlayerStats{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID,
		&stats.Points,
		&stats.MatchesPlayed,
		&stats.Wins,
		&stats.Losses,
		&stats.CurrentStreak,
		&stats.BestStreak,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatsNotFound
		}
		return nil, fmt.Errorf("failed to scan stats for user %d: %w", userID, err)
	}
	return stats, nil
}

func (r *postgresStatsRepository) TopByPoints(ctx context.Context, limit int) ([]*models.PlayerStats, error) {
	query := `
		SELECT user_id, points, matches_played, wins, losses, current_streak, best_streak, updated_at
		FROM player_stats
		ORDER BY points DESC, wins DESC, user_id ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top stats: %w", err)
	}
	defer rows.Close()

	list := make([]*models.PlayerStats, 0, limit)
	for rows.Next() {
		stats := &models.PlayerStats{}
		if scanErr := rows.Scan(
			&stats.UserID,
			&stats.Points,
			&stats.MatchesPlayed,
			&stats.Wins,
			&stats.Losses,
			&stats.CurrentStreak,
			&stats.BestStreak,
			&stats.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", scanErr)
		}
		list = append(list, stats)
	}
	return list, rows.Err()
}
