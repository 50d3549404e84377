package services

import (
	"fmt"
	"time"

	"github.com/padelhub/match-system/models"
	"github.com/padelhub/match-system/storage"
)

func parseStartTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: start_time is required", ErrValidationFailed)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start_time must be RFC3339", ErrValidationFailed)
	}
	return t, nil
}

func populateUserAvatarURL(user *models.User, uploader storage.FileUploader) {
	if user == nil || user.AvatarKey == nil || *user.AvatarKey == "" || uploader == nil {
		return
	}
	url := uploader.GetPublicURL(*user.AvatarKey)
	if url != "" {
		user.AvatarURL = &url
	}
}

func populateMedalIconURL(def *models.MedalDefinition, uploader storage.FileUploader) {
	if def == nil || def.IconKey == nil || *def.IconKey == "" || uploader == nil {
		return
	}
	url := uploader.GetPublicURL(*def.IconKey)
	if url != "" {
		def.IconURL = &url
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
