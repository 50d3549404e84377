package models

import "time"

// SetScore holds the games won by each team in one set.
type SetScore struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

// NotPlayed reports the 0-0 marker used for a third set that never happened.
func (s SetScore) NotPlayed() bool {
	return s.Team1 == 0 && s.Team2 == 0
}

// Score is a submitted match result. Two sets are mandatory, the third is
// optional (a 0-0 third set counts as not played). A score is write-once:
// once accepted it is never retracted or edited.
type Score struct {
	Set1       SetScore  `json:"set1"`
	Set2       SetScore  `json:"set2"`
	Set3       *SetScore `json:"set3,omitempty"`
	Winner     TeamSlot  `json:"winner"`
	RecordedBy int       `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Sets returns the played sets in order, skipping an unplayed third set.
func (s Score) Sets() []SetScore {
	sets := []SetScore{s.Set1, s.Set2}
	if s.Set3 != nil && !s.Set3.NotPlayed() {
		sets = append(sets, *s.Set3)
	}
	return sets
}
