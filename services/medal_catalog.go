package services

import (
	"github.com/gosimple/slug"

	"github.com/padelhub/match-system/models"
)

// DefaultCatalog is the static medal catalog. Codes are derived from the
// display name, so renames need a migration.
func DefaultCatalog() []models.MedalDefinition {
	return []models.MedalDefinition{
		medal("First Serve", "Play your first match.",
			models.MatchesPlayedRequirement{Count: 1}),
		medal("Regular", "Play 10 matches.",
			models.MatchesPlayedRequirement{Count: 10}),
		medal("Court Veteran", "Play 50 matches.",
			models.MatchesPlayedRequirement{Count: 50}),
		medal("First Win", "Win your first match.",
			models.WinsRequirement{Count: 1}),
		medal("Champion", "Win 25 matches.",
			models.WinsRequirement{Count: 25}),
		medal("On Fire", "Win 3 matches in a row.",
			models.WinStreakRequirement{Length: 3}),
		medal("Unstoppable", "Win 7 matches in a row.",
			models.WinStreakRequirement{Length: 7}),
		medal("Social Player", "Share a court with 10 different players.",
			models.UniquePlayersRequirement{Count: 10}),
		medal("Early Bird", "Play a match that starts before 9:00.",
			models.TimeOfDayRequirement{Period: models.PeriodMorning}),
		medal("Night Owl", "Play a match that starts at 22:00 or later.",
			models.TimeOfDayRequirement{Period: models.PeriodNight}),
		medal("Weekend Warrior", "Play 5 matches on weekends.",
			models.WeekendMatchesRequirement{Count: 5}),
	}
}

func medal(name, description string, req models.MedalRequirement) models.MedalDefinition {
	return models.MedalDefinition{
		Code:        slug.Make(name),
		Name:        name,
		Description: description,
		Requirement: req,
	}
}
