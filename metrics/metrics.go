// Package metrics exposes prometheus counters for the match lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchsystem_matches_created_total",
		Help: "Number of matches created.",
	})
	MatchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchsystem_matches_completed_total",
		Help: "Number of matches completed with an accepted result.",
	})
	MatchesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchsystem_matches_cancelled_total",
		Help: "Number of matches auto-cancelled for lack of players.",
	})
	ResultsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchsystem_results_rejected_total",
		Help: "Number of submitted scores rejected by validation.",
	})
	MedalsUnlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchsystem_medals_unlocked_total",
		Help: "Number of medals unlocked across all players.",
	})
)
