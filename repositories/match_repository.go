package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/padelhub/match-system/models"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchVersionConflict signals that the row changed since it was read.
	// Callers re-read and retry the operation.
	ErrMatchVersionConflict = errors.New("match was modified concurrently")
)

// MatchFilter ограничивает выборку ListUpcoming.
type MatchFilter struct {
	Level  *models.MatchLevel
	Status *models.MatchStatus
	Limit  int
	Offset int
}

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListUpcoming(ctx context.Context, filter MatchFilter) ([]*models.Match, error)
	// ListDueForCancellation returns non-terminal, under-filled matches whose
	// start time is at or before the given cutoff.
	ListDueForCancellation(ctx context.Context, cutoff time.Time) ([]*models.Match, error)
	// UpdateRoster writes teams and status guarded by the version column.
	// Returns ErrMatchVersionConflict if another writer got there first.
	UpdateRoster(ctx context.Context, match *models.Match) error
	// UpdateStatus performs a conditional status transition and reports
	// whether this call applied it. A false return with nil error means some
	// other caller already moved the match out of the `from` set.
	UpdateStatus(ctx context.Context, id int, from []models.MatchStatus, to models.MatchStatus) (bool, error)
	// SetResult stores the score and flips the match to completed, guarded by
	// the version column.
	SetResult(ctx context.Context, match *models.Match) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, title, location, level, age_range, start_time, players_needed,
	creator_id, team1, team2, status, score, version, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches
			(title, location, level, age_range, start_time, players_needed, creator_id, team1, team2, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, version, created_at`

	err := r.db.QueryRowContext(ctx, query,
		match.Title,
		match.Location,
		match.Level,
		match.AgeRange,
		match.StartTime,
		match.PlayersNeeded,
		match.CreatorID,
		intArray(match.Team1),
		intArray(match.Team2),
		match.Status,
	).Scan(&match.ID, &match.Version, &match.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListUpcoming(ctx context.Context, filter MatchFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE status NOT IN ('cancelled', 'completed')`)

	args := []interface{}{}
	placeholderIndex := 1

	if filter.Level != nil {
		queryBuilder.WriteString(" AND level = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *filter.Level)
		placeholderIndex++
	}
	if filter.Status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *filter.Status)
		placeholderIndex++
	}

	queryBuilder.WriteString(" ORDER BY start_time ASC, id ASC")

	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, filter.Limit)
		placeholderIndex++
	}
	if filter.Offset > 0 {
		queryBuilder.WriteString(" OFFSET $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, filter.Offset)
	}

	return r.queryMatches(ctx, queryBuilder.String(), args...)
}

func (r *postgresMatchRepository) ListDueForCancellation(ctx context.Context, cutoff time.Time) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE status NOT IN ('cancelled', 'completed')
		  AND start_time <= $1
		  AND coalesce(array_length(team1, 1), 0) + coalesce(array_length(team2, 1), 0) < players_needed
		ORDER BY start_time ASC`
	return r.queryMatches(ctx, query, cutoff)
}

func (r *postgresMatchRepository) UpdateRoster(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches
		SET team1 = $1, team2 = $2, status = $3, version = version + 1
		WHERE id = $4 AND version = $5`

	result, err := r.db.ExecContext(ctx, query,
		intArray(match.Team1),
		intArray(match.Team2),
		match.Status,
		match.ID,
		match.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update roster for match %d: %w", match.ID, err)
	}
	if err := checkAffectedRows(result, ErrMatchVersionConflict); err != nil {
		return err
	}
	match.Version++
	return nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, id int, from []models.MatchStatus, to models.MatchStatus) (bool, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	query := `
		UPDATE matches
		SET status = $1, version = version + 1
		WHERE id = $2 AND status = ANY($3)`

	result, err := r.db.ExecContext(ctx, query, to, id, pq.Array(statuses))
	if err != nil {
		return false, fmt.Errorf("failed to update status for match %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *postgresMatchRepository) SetResult(ctx context.Context, match *models.Match) error {
	scoreJSON, err := json.Marshal(match.Score)
	if err != nil {
		return fmt.Errorf("failed to marshal score for match %d: %w", match.ID, err)
	}

	query := `
		UPDATE matches
		SET score = $1, status = $2, version = version + 1
		WHERE id = $3 AND version = $4 AND score IS NULL`

	result, err := r.db.ExecContext(ctx, query, scoreJSON, match.Status, match.ID, match.Version)
	if err != nil {
		return fmt.Errorf("failed to set result for match %d: %w", match.ID, err)
	}
	if err := checkAffectedRows(result, ErrMatchVersionConflict); err != nil {
		return err
	}
	match.Version++
	return nil
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(row rowScanner) (*models.Match, error) {
	match := &models.Match{}
	var team1, team2 pq.Int64Array
	var scoreJSON []byte

	err := row.Scan(
		&match.ID,
		&match.Title,
		&match.Location,
		&match.Level,
		&match.AgeRange,
		&match.StartTime,
		&match.PlayersNeeded,
		&match.CreatorID,
		&team1,
		&team2,
		&match.Status,
		&scoreJSON,
		&match.Version,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	match.Team1 = fromIntArray(team1)
	match.Team2 = fromIntArray(team2)

	if len(scoreJSON) > 0 {
		score := &models.Score{}
		if unmarshalErr := json.Unmarshal(scoreJSON, score); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to unmarshal score for match %d: %w", match.ID, unmarshalErr)
		}
		match.Score = score
	}
	return match, nil
}

func intArray(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		arr[i] = int64(id)
	}
	return arr
}

func fromIntArray(arr pq.Int64Array) []int {
	ids := make([]int, len(arr))
	for i, id := range arr {
		ids[i] = int(id)
	}
	return ids
}
