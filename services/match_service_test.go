package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelhub/match-system/models"
)

type matchServiceFixture struct {
	service   MatchService
	matchRepo *fakeMatchRepo
	userRepo  *fakeUserRepo
	notifier  *recorderNotifier
	clock     *fakeClock
}

func newMatchServiceFixture(t *testing.T, userIDs ...int) *matchServiceFixture {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	matchRepo := newFakeMatchRepo()
	userRepo := newFakeUserRepo(userIDs...)
	notifier := &recorderNotifier{}
	lifecycle := NewLifecycleService(matchRepo, notifier, clock, newTestLogger())
	service := NewMatchService(matchRepo, userRepo, lifecycle, notifier, nil, clock, newTestLogger())
	return &matchServiceFixture{
		service:   service,
		matchRepo: matchRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		clock:     clock,
	}
}

func (f *matchServiceFixture) createMatch(t *testing.T, creatorID int) *models.Match {
	t.Helper()
	match, err := f.service.Create(context.Background(), creatorID, CreateMatchInput{
		Title:         "evening doubles",
		Location:      "center court",
		Level:         models.LevelIntermediate,
		StartTime:     f.clock.Now().Add(48 * time.Hour).Format(time.RFC3339),
		PlayersNeeded: 4,
	})
	require.NoError(t, err)
	return match
}

func TestCreateMatchSeatsCreator(t *testing.T) {
	f := newMatchServiceFixture(t, 10)
	match := f.createMatch(t, 10)

	assert.Equal(t, models.MatchStatusOpen, match.Status)
	assert.Equal(t, []int{10}, match.Team1)
	assert.Empty(t, match.Team2)
	require.NotNil(t, match.Creator)
	assert.Equal(t, 10, match.Creator.ID)
}

func TestCreateMatchValidation(t *testing.T) {
	f := newMatchServiceFixture(t, 10)
	ctx := context.Background()
	future := f.clock.Now().Add(48 * time.Hour).Format(time.RFC3339)

	cases := []struct {
		name    string
		input   CreateMatchInput
		wantErr error
	}{
		{
			"missing title",
			CreateMatchInput{Level: models.LevelBeginner, StartTime: future, PlayersNeeded: 4},
			ErrTitleRequired,
		},
		{
			"unknown level",
			CreateMatchInput{Title: "t", Level: "pro", StartTime: future, PlayersNeeded: 4},
			ErrInvalidLevel,
		},
		{
			"capacity too small",
			CreateMatchInput{Title: "t", Level: models.LevelBeginner, StartTime: future, PlayersNeeded: 1},
			ErrInvalidCapacity,
		},
		{
			"capacity too large",
			CreateMatchInput{Title: "t", Level: models.LevelBeginner, StartTime: future, PlayersNeeded: 5},
			ErrInvalidCapacity,
		},
		{
			"start time in the past",
			CreateMatchInput{
				Title: "t", Level: models.LevelBeginner,
				StartTime:     f.clock.Now().Add(-time.Hour).Format(time.RFC3339),
				PlayersNeeded: 4,
			},
			ErrStartTimeInPast,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Create(ctx, 10, tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestJoinFillsMatchAndNotifies(t *testing.T) {
	f := newMatchServiceFixture(t, 10, 11, 12, 13)
	ctx := context.Background()
	match := f.createMatch(t, 10)

	_, err := f.service.Join(ctx, match.ID, 11, models.TeamOne, models.TeamSlotCapacity)
	require.NoError(t, err)
	_, err = f.service.Join(ctx, match.ID, 12, models.TeamTwo, models.TeamSlotCapacity)
	require.NoError(t, err)

	updated, err := f.service.Join(ctx, match.ID, 13, models.TeamTwo, models.TeamSlotCapacity)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusFull, updated.Status)
	assert.ElementsMatch(t, []int{10, 11, 12, 13}, updated.Roster())

	// Каждый участник получает match_full, создатель дополнительно add_result.
	full := f.notifier.byKind(models.NotificationMatchFull)
	recipients := make([]int, 0, len(full))
	for _, n := range full {
		recipients = append(recipients, n.RecipientID)
	}
	assert.ElementsMatch(t, []int{10, 11, 12, 13}, recipients)

	addResult := f.notifier.byKind(models.NotificationAddResult)
	require.Len(t, addResult, 1)
	assert.Equal(t, 10, addResult[0].RecipientID)
}

func TestJoinRejectsDuplicateAndOverflow(t *testing.T) {
	f := newMatchServiceFixture(t, 10, 11, 12, 13, 14)
	ctx := context.Background()
	match := f.createMatch(t, 10)

	_, err := f.service.Join(ctx, match.ID, 10, models.TeamTwo, models.TeamSlotCapacity)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, err = f.service.Join(ctx, match.ID, 11, models.TeamOne, models.TeamSlotCapacity)
	require.NoError(t, err)
	_, err = f.service.Join(ctx, match.ID, 12, models.TeamOne, models.TeamSlotCapacity)
	assert.ErrorIs(t, err, ErrTeamFull)

	_, err = f.service.Join(ctx, match.ID, 12, models.TeamTwo, models.TeamSlotCapacity)
	require.NoError(t, err)
	_, err = f.service.Join(ctx, match.ID, 13, models.TeamTwo, models.TeamSlotCapacity)
	require.NoError(t, err)

	_, err = f.service.Join(ctx, match.ID, 14, models.TeamTwo, models.TeamSlotCapacity)
	assert.ErrorIs(t, err, ErrMatchFull)
}

func TestJoinRetriesOnVersionConflict(t *testing.T) {
	f := newMatchServiceFixture(t, 10, 11)
	ctx := context.Background()
	match := f.createMatch(t, 10)

	f.matchRepo.conflictsLeft = 1
	updated, err := f.service.Join(ctx, match.ID, 11, models.TeamTwo, models.TeamSlotCapacity)
	require.NoError(t, err)
	assert.Contains(t, updated.Team2, 11)
}

func TestJoinGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newMatchServiceFixture(t, 10, 11)
	ctx := context.Background()
	match := f.createMatch(t, 10)

	f.matchRepo.conflictsLeft = maxConflictRetries
	_, err := f.service.Join(ctx, match.ID, 11, models.TeamTwo, models.TeamSlotCapacity)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestJoinUnknownMatchAndUser(t *testing.T) {
	f := newMatchServiceFixture(t, 10)
	ctx := context.Background()
	match := f.createMatch(t, 10)

	_, err := f.service.Join(ctx, 999, 10, models.TeamOne, models.TeamSlotCapacity)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = f.service.Join(ctx, match.ID, 999, models.TeamOne, models.TeamSlotCapacity)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLeaveReopensFullMatch(t *testing.T) {
	f := newMatchServiceFixture(t, 10, 11, 12, 13)
	ctx := context.Background()
	match := f.createMatch(t, 10)

	for _, id := range []int{11, 12, 13} {
		team := models.TeamTwo
		if id == 11 {
			team = models.TeamOne
		}
		_, err := f.service.Join(ctx, match.ID, id, team, models.TeamSlotCapacity)
		require.NoError(t, err)
	}

	updated, err := f.service.Leave(ctx, match.ID, 13)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusOpen, updated.Status)
	assert.NotContains(t, updated.Roster(), 13)
}

func TestLeaveIsNoOpForAbsentPlayer(t *testing.T) {
	f := newMatchServiceFixture(t, 10, 11)
	ctx := context.Background()
	match := f.createMatch(t, 10)

	before, err := f.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)

	updated, err := f.service.Leave(ctx, match.ID, 11)
	require.NoError(t, err)
	assert.Equal(t, before.Roster(), updated.Roster())
	assert.Equal(t, before.Version, updated.Version)
}

func TestLeaveOnTerminalMatchIsNoOp(t *testing.T) {
	f := newMatchServiceFixture(t, 10)
	ctx := context.Background()
	match := f.createMatch(t, 10)

	applied, err := f.matchRepo.UpdateStatus(ctx, match.ID,
		[]models.MatchStatus{models.MatchStatusOpen}, models.MatchStatusCancelled)
	require.NoError(t, err)
	require.True(t, applied)

	updated, err := f.service.Leave(ctx, match.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCancelled, updated.Status)
	assert.Contains(t, updated.Roster(), 10)
}

func TestGetByIDReconcilesStaleMatch(t *testing.T) {
	f := newMatchServiceFixture(t, 10)
	match := f.createMatch(t, 10)

	// Порог отмены пройден, матч так и не набрался.
	f.clock.Set(f.clock.Now().Add(30 * time.Hour))

	got, err := f.service.GetByID(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCancelled, got.Status)
}
