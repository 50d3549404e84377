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

func newStatsFixture(t *testing.T) (*StatsService, *fakeStatsRepo, *fakeUserRepo) {
	t.Helper()
	statsRepo := newFakeStatsRepo()
	userRepo := newFakeUserRepo(1, 2, 3, 4)
	// Недоступный redis: сервис должен отвечать из postgres-леджера.
	leaderboard := cache.NewLeaderboard(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	return NewStatsService(statsRepo, userRepo, leaderboard, newTestLogger()), statsRepo, userRepo
}

func TestApplyCompletedMatchAccruesLedger(t *testing.T) {
	service, statsRepo, _ := newStatsFixture(t)
	ctx := context.Background()

	match := completedDoubles(1, []int{1, 2}, []int{3, 4}, models.TeamOne, time.Now())

	require.NoError(t, service.ApplyCompletedMatch(ctx, 1, match))
	require.NoError(t, service.ApplyCompletedMatch(ctx, 3, match))

	winner, err := statsRepo.GetByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 1, winner.CurrentStreak)
	assert.Equal(t, models.PointsPerWin, winner.Points)

	loser, err := statsRepo.GetByUser(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, loser.Losses)
	assert.Equal(t, 0, loser.CurrentStreak)
	assert.Equal(t, models.PointsPerLoss, loser.Points)
}

func TestApplyCompletedMatchRejectsNonParticipant(t *testing.T) {
	service, _, _ := newStatsFixture(t)
	match := completedDoubles(1, []int{1, 2}, []int{3, 4}, models.TeamOne, time.Now())

	assert.Error(t, service.ApplyCompletedMatch(context.Background(), 99, match))
}

func TestMarkResultAppliedGuardsDoubleCredit(t *testing.T) {
	service, _, _ := newStatsFixture(t)
	ctx := context.Background()

	first, err := service.MarkResultApplied(ctx, 7, 1)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := service.MarkResultApplied(ctx, 7, 1)
	require.NoError(t, err)
	assert.False(t, again)

	// Другой матч того же игрока считается отдельной парой.
	other, err := service.MarkResultApplied(ctx, 8, 1)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestGetPlayerStatsReturnsEmptyLedger(t *testing.T) {
	service, _, _ := newStatsFixture(t)

	stats, err := service.GetPlayerStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UserID)
	assert.Zero(t, stats.MatchesPlayed)
	assert.Zero(t, stats.Points)
}

func TestLeaderboardFallsBackToSQL(t *testing.T) {
	service, statsRepo, _ := newStatsFixture(t)
	ctx := context.Background()

	match := completedDoubles(1, []int{1, 2}, []int{3, 4}, models.TeamOne, time.Now())
	for _, id := range []int{1, 2, 3, 4} {
		require.NoError(t, service.ApplyCompletedMatch(ctx, id, match))
	}

	entries, err := service.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	for i, entry := range entries {
		assert.Equal(t, i+1, entry.Rank)
		assert.NotEmpty(t, entry.Nickname)
	}

	stats, err := statsRepo.GetByUser(ctx, entries[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, stats.Points, entries[0].Points)
}
