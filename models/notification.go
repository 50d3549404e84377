package models

import "time"

type NotificationKind string

const (
	NotificationMatchFull       NotificationKind = "match_full"
	NotificationResultAdded     NotificationKind = "result_added"
	NotificationResultConfirmed NotificationKind = "result_confirmed"
	NotificationAddResult       NotificationKind = "add_result"
	NotificationMatchCancelled  NotificationKind = "match_cancelled"
)

type Notification struct {
	ID          string            `json:"id"`
	Kind        NotificationKind  `json:"kind"`
	MatchID     int               `json:"match_id"`
	MatchTitle  string            `json:"match_title"`
	RecipientID int               `json:"recipient_id"`
	Payload     map[string]string `json:"payload,omitempty"`
	Read        bool              `json:"read"`
	CreatedAt   time.Time         `json:"created_at"`
}
