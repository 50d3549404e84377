package models

import "time"

// RequirementKind перечисляет виды требований медалей.
type RequirementKind string

const (
	RequirementMatchesPlayed  RequirementKind = "matches_played"
	RequirementWins           RequirementKind = "wins"
	RequirementWinStreak      RequirementKind = "win_streak"
	RequirementUniquePlayers  RequirementKind = "unique_players"
	RequirementTimeOfDay      RequirementKind = "time_of_day"
	RequirementWeekendMatches RequirementKind = "weekend_matches"
)

type DayPeriod string

const (
	PeriodMorning DayPeriod = "morning"
	PeriodNight   DayPeriod = "night"
)

// MedalRequirement is the tagged variant over the six requirement kinds.
// Each concrete requirement carries only the fields it needs; the engine
// switches over the concrete types and treats an unknown type as an error.
type MedalRequirement interface {
	Kind() RequirementKind
	// Target is the progress value at which the medal unlocks.
	Target() int
}

type MatchesPlayedRequirement struct {
	Count int `json:"count"`
}

func (r MatchesPlayedRequirement) Kind() RequirementKind { return RequirementMatchesPlayed }
func (r MatchesPlayedRequirement) Target() int           { return r.Count }

type WinsRequirement struct {
	Count int `json:"count"`
}

func (r WinsRequirement) Kind() RequirementKind { return RequirementWins }
func (r WinsRequirement) Target() int           { return r.Count }

type WinStreakRequirement struct {
	Length int `json:"length"`
}

func (r WinStreakRequirement) Kind() RequirementKind { return RequirementWinStreak }
func (r WinStreakRequirement) Target() int           { return r.Length }

type UniquePlayersRequirement struct {
	Count int `json:"count"`
}

func (r UniquePlayersRequirement) Kind() RequirementKind { return RequirementUniquePlayers }
func (r UniquePlayersRequirement) Target() int           { return r.Count }

// TimeOfDayRequirement unlocks after a single match in the given period:
// morning is a local start hour before 9, night is 22 or later.
type TimeOfDayRequirement struct {
	Period DayPeriod `json:"period"`
}

func (r TimeOfDayRequirement) Kind() RequirementKind { return RequirementTimeOfDay }
func (r TimeOfDayRequirement) Target() int           { return 1 }

type WeekendMatchesRequirement struct {
	Count int `json:"count"`
}

func (r WeekendMatchesRequirement) Kind() RequirementKind { return RequirementWeekendMatches }
func (r WeekendMatchesRequirement) Target() int           { return r.Count }

// MedalDefinition is one entry of the static medal catalog.
type MedalDefinition struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	IconKey     *string          `json:"-"`
	IconURL     *string          `json:"icon_url,omitempty"`
	Requirement MedalRequirement `json:"requirement"`
}

// UserMedalProgress tracks one (user, medal) pair. Unlocked is a one-way
// latch: once set the row is never re-evaluated. CurrentStreak and
// OpponentIDs are auxiliary counters for the streak and unique-players
// requirement kinds.
type UserMedalProgress struct {
	UserID        int        `json:"user_id"`
	MedalCode     string     `json:"medal_code"`
	Progress      int        `json:"progress"`
	Unlocked      bool       `json:"unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
	CurrentStreak int        `json:"-"`
	OpponentIDs   []int      `json:"-"`
	LastUpdated   time.Time  `json:"last_updated"`
}

// SeenOpponent reports whether the given player id is already accumulated.
func (p *UserMedalProgress) SeenOpponent(id int) bool {
	for _, seen := range p.OpponentIDs {
		if seen == id {
			return true
		}
	}
	return false
}
