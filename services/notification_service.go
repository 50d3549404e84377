package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/padelhub/match-system/live"
	"github.com/padelhub/match-system/models"
	"github.com/padelhub/match-system/repositories"
)

// NotificationDispatcher is the fire-and-forget contract the lifecycle and
// result services emit events through. A delivery failure never rolls back
// the state change that triggered it.
type NotificationDispatcher interface {
	Notify(ctx context.Context, kind models.NotificationKind, match *models.Match, recipientID int, payload map[string]string)
	BroadcastMatch(match *models.Match)
}

type NotificationService struct {
	repo   repositories.NotificationRepository
	hub    *live.Hub
	logger *slog.Logger
}

func NewNotificationService(repo repositories.NotificationRepository, hub *live.Hub, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, hub: hub, logger: logger}
}

// Notify persists the notification and pushes it into the match room.
// Errors are logged and swallowed: dispatch is best-effort by contract.
func (s *NotificationService) Notify(ctx context.Context, kind models.NotificationKind, match *models.Match, recipientID int, payload map[string]string) {
	notification := &models.Notification{
		ID:          uuid.NewString(),
		Kind:        kind,
		MatchID:     match.ID,
		MatchTitle:  match.Title,
		RecipientID: recipientID,
		Payload:     payload,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Error("failed to persist notification",
			slog.String("kind", string(kind)),
			slog.Int("match_id", match.ID),
			slog.Int("recipient_id", recipientID),
			slog.Any("error", err))
		return
	}

	s.hub.BroadcastToRoom(live.MatchRoom(match.ID), live.Message{
		Type:    live.MessageNotification,
		Payload: notification,
		RoomID:  live.MatchRoom(match.ID),
	})
}

// BroadcastMatch pushes the current match state to its room, used after
// roster and result changes.
func (s *NotificationService) BroadcastMatch(match *models.Match) {
	s.hub.BroadcastToRoom(live.MatchRoom(match.ID), live.Message{
		Type:    live.MessageMatchUpdated,
		Payload: match,
		RoomID:  live.MatchRoom(match.ID),
	})
}

func (s *NotificationService) ListForUser(ctx context.Context, userID, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByRecipient(ctx, userID, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, id string, userID int) error {
	return s.repo.MarkRead(ctx, id, userID)
}
