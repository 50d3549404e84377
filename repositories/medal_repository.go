package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/padelhub/match-system/models"
)

var (
	ErrMedalNotFound      = errors.New("medal not found")
	ErrUnknownRequirement = errors.New("unknown medal requirement kind")
)

type MedalRepository interface {
	// UpsertDefinition syncs one catalog entry into the medals table.
	UpsertDefinition(ctx context.Context, def *models.MedalDefinition) error
	ListDefinitions(ctx context.Context) ([]*models.MedalDefinition, error)
	// GetProgress returns nil (no error) when the pair has no row yet;
	// progress rows are created lazily on first evaluation.
	GetProgress(ctx context.Context, userID int, medalCode string) (*models.UserMedalProgress, error)
	UpsertProgress(ctx context.Context, progress *models.UserMedalProgress) error
	ListProgressByUser(ctx context.Context, userID int) ([]*models.UserMedalProgress, error)
}

type postgresMedalRepository struct {
	db *sql.DB
}

func NewPostgresMedalRepository(db *sql.DB) MedalRepository {
	return &postgresMedalRepository{db: db}
}

func (r *postgresMedalRepository) UpsertDefinition(ctx context.Context, def *models.MedalDefinition) error {
	kind, value, period, err := encodeRequirement(def.Requirement)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO medals (code, name, description, icon_key, requirement_kind, requirement_value, requirement_period)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			requirement_kind = EXCLUDED.requirement_kind,
			requirement_value = EXCLUDED.requirement_value,
			requirement_period = EXCLUDED.requirement_period`

	_, err = r.db.ExecContext(ctx, query, def.Code, def.Name, def.Description, def.IconKey, kind, value, period)
	if err != nil {
		return fmt.Errorf("failed to upsert medal %s: %w", def.Code, err)
	}
	return nil
}

func (r *postgresMedalRepository) ListDefinitions(ctx context.Context) ([]*models.MedalDefinition, error) {
	query := `
		SELECT code, name, description, icon_key, requirement_kind, requirement_value, requirement_period
		FROM medals
		ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query medals: %w", err)
	}
	defer rows.Close()

	defs := make([]*models.MedalDefinition, 0)
	for rows.Next() {
		def := &models.MedalDefinition{}
		var kind string
		var value int
		var period *string
		if scanErr := rows.Scan(&def.Code, &def.Name, &def.Description, &def.IconKey, &kind, &value, &period); scanErr != nil {
			return nil, fmt.Errorf("failed to scan medal row: %w", scanErr)
		}
		requirement, decodeErr := decodeRequirement(kind, value, period)
		if decodeErr != nil {
			return nil, fmt.Errorf("medal %s: %w", def.Code, decodeErr)
		}
		def.Requirement = requirement
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *postgresMedalRepository) GetProgress(ctx context.Context, userID int, medalCode string) (*models.UserMedalProgress, error) {
	query := `
		SELECT user_id, medal_code, progress, unlocked, unlocked_at, current_streak, opponent_ids, last_updated
		FROM user_medal_progress
		WHERE user_id = $1 AND medal_code = $2`

	progress := &models.UserMedalProgress{}
	var opponents pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, userID, medalCode).Scan(
		&progress.UserID,
		&progress.MedalCode,
		&progress.Progress,
		&progress.Unlocked,
		&progress.UnlockedAt,
		&progress.CurrentStreak,
		&opponents,
		&progress.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan medal progress (%d, %s): %w", userID, medalCode, err)
	}
	progress.OpponentIDs = fromIntArray(opponents)
	return progress, nil
}

func (r *postgresMedalRepository) UpsertProgress(ctx context.Context, progress *models.UserMedalProgress) error {
	query := `
		INSERT INTO user_medal_progress
			(user_id, medal_code, progress, unlocked, unlocked_at, current_streak, opponent_ids, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, medal_code) DO UPDATE SET
			progress = EXCLUDED.progress,
			unlocked = user_medal_progress.unlocked OR EXCLUDED.unlocked,
			unlocked_at = coalesce(user_medal_progress.unlocked_at, EXCLUDED.unlocked_at),
			current_streak = EXCLUDED.current_streak,
			opponent_ids = EXCLUDED.opponent_ids,
			last_updated = EXCLUDED.last_updated`

	_, err := r.db.ExecContext(ctx, query,
		progress.UserID,
		progress.MedalCode,
		progress.Progress,
		progress.Unlocked,
		progress.UnlockedAt,
		progress.CurrentStreak,
		intArray(progress.OpponentIDs),
		progress.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert medal progress (%d, %s): %w", progress.UserID, progress.MedalCode, err)
	}
	return nil
}

func (r *postgresMedalRepository) ListProgressByUser(ctx context.Context, userID int) ([]*models.UserMedalProgress, error) {
	query := `
		SELECT user_id, medal_code, progress, unlocked, unlocked_at, current_streak, opponent_ids, last_updated
		FROM user_medal_progress
		WHERE user_id = $1
		ORDER BY medal_code`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query medal progress for user %d: %w", userID, err)
	}
	defer rows.Close()

	list := make([]*models.UserMedalProgress, 0)
	for rows.Next() {
		progress := &models.UserMedalProgress{}
		var opponents pq.Int64Array
		if scanErr := rows.Scan(
			&progress.UserID,
			&progress.MedalCode,
			&progress.Progress,
			&progress.Unlocked,
			&progress.UnlockedAt,
			&progress.CurrentStreak,
			&opponents,
			&progress.LastUpdated,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan medal progress row: %w", scanErr)
		}
		progress.OpponentIDs = fromIntArray(opponents)
		list = append(list, progress)
	}
	return list, rows.Err()
}

// Требование медали хранится в трёх колонках: вид, целевое значение и
// (только для time_of_day) период.
func encodeRequirement(req models.MedalRequirement) (kind string, value int, period *string, err error) {
	if req == nil {
		return "", 0, nil, ErrUnknownRequirement
	}
	if tod, ok := req.(models.TimeOfDayRequirement); ok {
		p := string(tod.Period)
		return string(req.Kind()), req.Target(), &p, nil
	}
	return string(req.Kind()), req.Target(), nil, nil
}

func decodeRequirement(kind string, value int, period *string) (models.MedalRequirement, error) {
	switch models.RequirementKind(kind) {
	case models.RequirementMatchesPlayed:
		return models.MatchesPlayedRequirement{Count: value}, nil
	case models.RequirementWins:
		return models.WinsRequirement{Count: value}, nil
	case models.RequirementWinStreak:
		return models.WinStreakRequirement{Length: value}, nil
	case models.RequirementUniquePlayers:
		return models.UniquePlayersRequirement{Count: value}, nil
	case models.RequirementTimeOfDay:
		if period == nil {
			return nil, fmt.Errorf("%w: time_of_day without period", ErrUnknownRequirement)
		}
		return models.TimeOfDayRequirement{Period: models.DayPeriod(*period)}, nil
	case models.RequirementWeekendMatches:
		return models.WeekendMatchesRequirement{Count: value}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequirement, kind)
	}
}
