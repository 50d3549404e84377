package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурсы не найдены
	ErrMatchNotFound = errors.New("match not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrMedalNotFound = errors.New("medal not found")

	// Ошибки валидации
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidScore     = errors.New("submitted score is invalid")
	ErrTitleRequired    = errors.New("match title is required")
	ErrInvalidLevel     = errors.New("invalid match level")
	ErrInvalidCapacity  = errors.New("players needed must be between 2 and 4")
	ErrStartTimeInPast  = errors.New("match start time must be in the future")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrNicknameRequired = errors.New("nickname is required")

	// Ошибки вместимости
	ErrTeamFull  = errors.New("chosen team slot already has two players")
	ErrMatchFull = errors.New("match roster is already full")

	// Ошибки членства
	ErrAlreadyJoined       = errors.New("user has already joined this match")
	ErrNotMatchParticipant = errors.New("user is not a participant of this match")

	// Ошибки состояния матча
	ErrMatchNotJoinable       = errors.New("match is no longer open for joining")
	ErrMatchNotReadyForResult = errors.New("match is not ready for a result")
	ErrResultAlreadyRecorded  = errors.New("match result has already been recorded")

	// Конкурентный доступ: повторные попытки исчерпаны
	ErrConcurrentModification = errors.New("match was modified concurrently, please retry")

	// Аутентификация
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrNicknameTaken          = errors.New("nickname is already taken")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
)
