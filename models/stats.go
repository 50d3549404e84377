package models

import "time"

// Points awarded for a completed match.
const (
	PointsPerWin  = 3
	PointsPerLoss = 1
)

// PlayerStats is the per-player ledger accrued from completed matches.
// Counters are never decremented.
type PlayerStats struct {
	UserID        int       `json:"user_id"`
	Points        int       `json:"points"`
	MatchesPlayed int       `json:"matches_played"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ApplyOutcome accrues one completed match. The postgres repository applies
// the same arithmetic in a single UPSERT statement; this method is the
// reference semantics.
func (s *PlayerStats) ApplyOutcome(won bool) {
	s.MatchesPlayed++
	if won {
		s.Points += PointsPerWin
		s.Wins++
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
		return
	}
	s.Points += PointsPerLoss
	s.Losses++
	s.CurrentStreak = 0
}

// LeaderboardEntry is one row of the points ranking.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int    `json:"user_id"`
	Nickname string `json:"nickname,omitempty"`
	Points   int    `json:"points"`
}
