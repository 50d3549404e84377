package models

import (
	"errors"
	"time"
)

// MatchStatus представляет статусы матча, соответствующие ENUM в БД.
type MatchStatus string

const (
	MatchStatusOpen      MatchStatus = "open"
	MatchStatusFull      MatchStatus = "full"
	MatchStatusCancelled MatchStatus = "cancelled"
	MatchStatusCompleted MatchStatus = "completed"
)

func (s MatchStatus) Terminal() bool {
	return s == MatchStatusCancelled || s == MatchStatusCompleted
}

type MatchLevel string

const (
	LevelBeginner     MatchLevel = "beginner"
	LevelIntermediate MatchLevel = "intermediate"
	LevelAdvanced     MatchLevel = "advanced"
)

// TeamSlot задает одну из двух именованных половин состава матча.
type TeamSlot string

const (
	TeamOne TeamSlot = "team1"
	TeamTwo TeamSlot = "team2"
)

func (t TeamSlot) Valid() bool {
	return t == TeamOne || t == TeamTwo
}

// Opposite returns the other team slot.
func (t TeamSlot) Opposite() TeamSlot {
	if t == TeamOne {
		return TeamTwo
	}
	return TeamOne
}

// TeamSlotCapacity задает максимум игроков в одной команде (парный матч).
const TeamSlotCapacity = 2

var (
	ErrTeamSlotFull    = errors.New("team slot already holds two players")
	ErrAlreadyInRoster = errors.New("player is already in the match roster")
	ErrRosterFull      = errors.New("match roster is full")
	ErrInvalidTeamSlot = errors.New("invalid team slot")
)

// Match is the aggregate for one pickup doubles match. All roster mutation
// goes through AddToTeam/RemoveFromRoster so the invariants (slot size,
// disjoint slots, roster bounded by PlayersNeeded) hold at every call site.
type Match struct {
	ID            int         `json:"id"`
	Title         string      `json:"title"`
	Location      string      `json:"location"`
	Level         MatchLevel  `json:"level"`
	AgeRange      *string     `json:"age_range,omitempty"`
	StartTime     time.Time   `json:"start_time"`
	PlayersNeeded int         `json:"players_needed"`
	CreatorID     int         `json:"creator_id"`
	Team1         []int       `json:"team1"`
	Team2         []int       `json:"team2"`
	Status        MatchStatus `json:"status"`
	Score         *Score      `json:"score,omitempty"`
	Version       int         `json:"-"`
	CreatedAt     time.Time   `json:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Creator      *User  `json:"creator,omitempty"`
	Participants []User `json:"participants,omitempty"`
}

// Roster returns all participant ids, team1 first.
func (m *Match) Roster() []int {
	roster := make([]int, 0, len(m.Team1)+len(m.Team2))
	roster = append(roster, m.Team1...)
	roster = append(roster, m.Team2...)
	return roster
}

func (m *Match) RosterSize() int {
	return len(m.Team1) + len(m.Team2)
}

func (m *Match) IsFull() bool {
	return m.RosterSize() >= m.PlayersNeeded
}

// TeamOf reports which team slot holds the given player, if any.
func (m *Match) TeamOf(userID int) (TeamSlot, bool) {
	for _, id := range m.Team1 {
		if id == userID {
			return TeamOne, true
		}
	}
	for _, id := range m.Team2 {
		if id == userID {
			return TeamTwo, true
		}
	}
	return "", false
}

// AddToTeam seats a player in the next free position of the given slot,
// re-checking the aggregate invariants: no duplicate membership, slot
// capacity 2, roster capacity PlayersNeeded.
func (m *Match) AddToTeam(userID int, slot TeamSlot) error {
	return m.AddToTeamAt(userID, slot, TeamSlotCapacity)
}

// AddToTeamAt seats a player at the requested position within the slot;
// a position past the current tail appends.
func (m *Match) AddToTeamAt(userID int, slot TeamSlot, position int) error {
	if !slot.Valid() {
		return ErrInvalidTeamSlot
	}
	if _, ok := m.TeamOf(userID); ok {
		return ErrAlreadyInRoster
	}
	if m.RosterSize() >= m.PlayersNeeded {
		return ErrRosterFull
	}
	team := m.team(slot)
	if len(*team) >= TeamSlotCapacity {
		return ErrTeamSlotFull
	}
	if position < 0 {
		position = 0
	}
	if position > len(*team) {
		position = len(*team)
	}
	*team = append(*team, 0)
	copy((*team)[position+1:], (*team)[position:])
	(*team)[position] = userID
	return nil
}

// RemoveFromRoster removes the player from whichever slot holds them.
// Removing an absent player is a no-op, not an error.
func (m *Match) RemoveFromRoster(userID int) bool {
	slot, ok := m.TeamOf(userID)
	if !ok {
		return false
	}
	team := m.team(slot)
	filtered := (*team)[:0]
	for _, id := range *team {
		if id != userID {
			filtered = append(filtered, id)
		}
	}
	*team = filtered
	return true
}

func (m *Match) team(slot TeamSlot) *[]int {
	if slot == TeamOne {
		return &m.Team1
	}
	return &m.Team2
}
