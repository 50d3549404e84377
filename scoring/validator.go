// Package scoring validates submitted set scores against padel rules and
// determines the match winner. It is pure: no repositories, no clock.
package scoring

import (
	"errors"
	"fmt"

	"github.com/padelhub/match-system/models"
)

var (
	ErrNegativeGames = errors.New("game count cannot be negative")
	ErrInvalidSet    = errors.New("set score is not a valid set result")
	ErrNoMajority    = errors.New("declared winner did not win the majority of sets")
)

// IsValidSet reports whether (a, b) is a finishable set result: a standard
// win at six games with a margin of at least two, or a tie-break set won
// 7-6 or 7-5. Anything else (7-4, 8-6, unfinished sets) is rejected.
func IsValidSet(a, b int) bool {
	if a < 0 || b < 0 {
		return false
	}
	if b > a {
		a, b = b, a
	}
	if a == 6 && a-b >= 2 {
		return true
	}
	if a == 7 && (b == 5 || b == 6) {
		return true
	}
	return false
}

// Validate checks every played set and verifies the declared winner holds a
// strict majority of the played sets. Rejection is all-or-nothing: an
// invalid score is never partially accepted.
func Validate(score models.Score) error {
	if err := validateSets(score); err != nil {
		return err
	}
	if !score.Winner.Valid() {
		return fmt.Errorf("%w: unknown winner %q", ErrNoMajority, score.Winner)
	}
	winner, err := DetermineWinner(score)
	if err != nil {
		return err
	}
	if winner != score.Winner {
		return fmt.Errorf("%w: declared %s", ErrNoMajority, score.Winner)
	}
	return nil
}

// DetermineWinner recomputes the winner from set counts alone, used both
// for validating a declared winner and for consistency checks. A set left
// at 0-0 counts toward neither side.
func DetermineWinner(score models.Score) (models.TeamSlot, error) {
	if err := validateSets(score); err != nil {
		return "", err
	}
	var team1, team2 int
	for _, set := range score.Sets() {
		if set.Team1 > set.Team2 {
			team1++
		} else {
			team2++
		}
	}
	switch {
	case team1 >= 2:
		return models.TeamOne, nil
	case team2 >= 2:
		return models.TeamTwo, nil
	default:
		return "", ErrNoMajority
	}
}

func validateSets(score models.Score) error {
	for i, set := range score.Sets() {
		if set.Team1 < 0 || set.Team2 < 0 {
			return fmt.Errorf("%w: set %d", ErrNegativeGames, i+1)
		}
		if !IsValidSet(set.Team1, set.Team2) {
			return fmt.Errorf("%w: set %d (%d-%d)", ErrInvalidSet, i+1, set.Team1, set.Team2)
		}
	}
	return nil
}
