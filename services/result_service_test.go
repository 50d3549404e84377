package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelhub/match-system/cache"
	"github.com/padelhub/match-system/models"
)

type resultServiceFixture struct {
	matches   *matchServiceFixture
	service   *ResultService
	medalRepo *fakeMedalRepo
	statsRepo *fakeStatsRepo
}

func newResultServiceFixture(t *testing.T) *resultServiceFixture {
	t.Helper()
	matches := newMatchServiceFixture(t, 10, 11, 12, 13, 99)
	medalRepo := newFakeMedalRepo(DefaultCatalog()...)
	statsRepo := newFakeStatsRepo()
	lifecycle := NewLifecycleService(matches.matchRepo, matches.notifier, matches.clock, newTestLogger())
	medals := NewMedalService(medalRepo, nil, matches.clock, newTestLogger())
	// Redis по этому адресу не слушает: сервис обязан переживать отказ кэша.
	stats := NewStatsService(statsRepo, matches.userRepo,
		cache.NewLeaderboard(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})),
		newTestLogger())
	service := NewResultService(matches.matchRepo, medals, stats, lifecycle, matches.notifier, matches.clock, newTestLogger())
	return &resultServiceFixture{
		matches:   matches,
		service:   service,
		medalRepo: medalRepo,
		statsRepo: statsRepo,
	}
}

// startedMatch creates a filled match and advances the clock past its start.
func (f *resultServiceFixture) startedMatch(t *testing.T) *models.Match {
	t.Helper()
	ctx := context.Background()
	match := f.matches.createMatch(t, 10)
	_, err := f.matches.service.Join(ctx, match.ID, 11, models.TeamOne, models.TeamSlotCapacity)
	require.NoError(t, err)
	_, err = f.matches.service.Join(ctx, match.ID, 12, models.TeamTwo, models.TeamSlotCapacity)
	require.NoError(t, err)
	_, err = f.matches.service.Join(ctx, match.ID, 13, models.TeamTwo, models.TeamSlotCapacity)
	require.NoError(t, err)

	f.matches.clock.Set(match.StartTime.Add(2 * time.Hour))
	return match
}

func straightSetsWin() SubmitResultInput {
	return SubmitResultInput{
		Set1:   models.SetScore{Team1: 6, Team2: 4},
		Set2:   models.SetScore{Team1: 7, Team2: 5},
		Winner: models.TeamOne,
	}
}

func TestSubmitResultCompletesMatch(t *testing.T) {
	f := newResultServiceFixture(t)
	ctx := context.Background()
	match := f.startedMatch(t)

	completed, err := f.service.SubmitResult(ctx, match.ID, 11, straightSetsWin())
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, completed.Status)
	require.NotNil(t, completed.Score)
	assert.Equal(t, models.TeamOne, completed.Score.Winner)
	assert.Equal(t, 11, completed.Score.RecordedBy)

	// Леджер начислен каждому участнику ровно один раз.
	for _, id := range []int{10, 11} {
		stats, err := f.statsRepo.GetByUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Wins, "user %d", id)
		assert.Equal(t, models.PointsPerWin, stats.Points, "user %d", id)
	}
	for _, id := range []int{12, 13} {
		stats, err := f.statsRepo.GetByUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Losses, "user %d", id)
		assert.Equal(t, models.PointsPerLoss, stats.Points, "user %d", id)
	}

	confirmed := f.matches.notifier.byKind(models.NotificationResultConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, 11, confirmed[0].RecipientID)

	added := f.matches.notifier.byKind(models.NotificationResultAdded)
	recipients := make([]int, 0, len(added))
	for _, n := range added {
		recipients = append(recipients, n.RecipientID)
	}
	assert.ElementsMatch(t, []int{10, 12, 13}, recipients)
}

func TestSubmitResultIsWriteOnce(t *testing.T) {
	f := newResultServiceFixture(t)
	ctx := context.Background()
	match := f.startedMatch(t)

	_, err := f.service.SubmitResult(ctx, match.ID, 11, straightSetsWin())
	require.NoError(t, err)

	_, err = f.service.SubmitResult(ctx, match.ID, 12, straightSetsWin())
	assert.ErrorIs(t, err, ErrResultAlreadyRecorded)

	// Повтор не привёл к двойному начислению.
	stats, err := f.statsRepo.GetByUser(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MatchesPlayed)
}

func TestSubmitResultRequiresParticipant(t *testing.T) {
	f := newResultServiceFixture(t)
	match := f.startedMatch(t)

	_, err := f.service.SubmitResult(context.Background(), match.ID, 99, straightSetsWin())
	assert.ErrorIs(t, err, ErrNotMatchParticipant)
}

func TestSubmitResultRequiresFullStartedMatch(t *testing.T) {
	f := newResultServiceFixture(t)
	ctx := context.Background()

	t.Run("match not yet full", func(t *testing.T) {
		match := f.matches.createMatch(t, 10)
		_, err := f.service.SubmitResult(ctx, match.ID, 10, straightSetsWin())
		assert.ErrorIs(t, err, ErrMatchNotReadyForResult)
	})

	t.Run("match not yet started", func(t *testing.T) {
		match := f.matches.createMatch(t, 10)
		for _, id := range []int{11, 12, 13} {
			team := models.TeamTwo
			if id == 11 {
				team = models.TeamOne
			}
			_, err := f.matches.service.Join(ctx, match.ID, id, team, models.TeamSlotCapacity)
			require.NoError(t, err)
		}
		_, err := f.service.SubmitResult(ctx, match.ID, 10, straightSetsWin())
		assert.ErrorIs(t, err, ErrMatchNotReadyForResult)
	})
}

func TestSubmitResultRejectsInvalidScore(t *testing.T) {
	f := newResultServiceFixture(t)
	ctx := context.Background()
	match := f.startedMatch(t)

	input := straightSetsWin()
	input.Winner = models.TeamTwo // объявленный победитель без большинства сетов
	_, err := f.service.SubmitResult(ctx, match.ID, 11, input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidScore)

	// Отклонённый счёт ничего не меняет.
	stored, err := f.matches.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusFull, stored.Status)
	assert.Nil(t, stored.Score)
}

func TestSubmitResultCreditsMedals(t *testing.T) {
	f := newResultServiceFixture(t)
	ctx := context.Background()
	match := f.startedMatch(t)

	_, err := f.service.SubmitResult(ctx, match.ID, 10, straightSetsWin())
	require.NoError(t, err)

	// "Первый матч" открывается каждому участнику сразу.
	for _, id := range []int{10, 11, 12, 13} {
		progress, err := f.medalRepo.GetProgress(ctx, id, "first-serve")
		require.NoError(t, err)
		require.NotNil(t, progress, "user %d", id)
		assert.True(t, progress.Unlocked, "user %d", id)
	}

	// "Первая победа" достается только победившей паре.
	for _, id := range []int{10, 11} {
		progress, err := f.medalRepo.GetProgress(ctx, id, "first-win")
		require.NoError(t, err)
		require.NotNil(t, progress)
		assert.True(t, progress.Unlocked, "user %d", id)
	}
	for _, id := range []int{12, 13} {
		progress, err := f.medalRepo.GetProgress(ctx, id, "first-win")
		require.NoError(t, err)
		require.NotNil(t, progress)
		assert.False(t, progress.Unlocked, "user %d", id)
	}
}
