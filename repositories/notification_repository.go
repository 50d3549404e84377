package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/padelhub/match-system/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID, limit int) ([]*models.Notification, error)
	// MarkRead is scoped by recipient so users cannot ack each other's rows.
	MarkRead(ctx context.Context, id string, recipientID int) error
}

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	payloadJSON, err := json.Marshal(notification.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	query := `
		INSERT INTO notifications (id, kind, match_id, match_title, recipient_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err = r.db.QueryRowContext(ctx, query,
		notification.ID,
		notification.Kind,
		notification.MatchID,
		notification.MatchTitle,
		notification.RecipientID,
		payloadJSON,
	).Scan(&notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *postgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, kind, match_id, match_title, recipient_id, payload, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for user %d: %w", recipientID, err)
	}
	defer rows.Close()

	list := make([]*models.Notification, 0)
	for rows.Next() {
		n := &models.Notification{}
		var payloadJSON []byte
		if scanErr := rows.Scan(&n.ID, &n.Kind, &n.MatchID, &n.MatchTitle, &n.RecipientID, &payloadJSON, &n.Read, &n.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", scanErr)
		}
		if len(payloadJSON) > 0 {
			if unmarshalErr := json.Unmarshal(payloadJSON, &n.Payload); unmarshalErr != nil {
				return nil, fmt.Errorf("failed to unmarshal notification payload %s: %w", n.ID, unmarshalErr)
			}
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, id string, recipientID int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return checkAffectedRows(result, ErrNotificationNotFound)
}
