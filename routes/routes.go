package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/padelhub/match-system/handlers"
	"github.com/padelhub/match-system/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	matchHandler *handlers.MatchHandler,
	medalHandler *handlers.MedalHandler,
	statsHandler *handlers.StatsHandler,
	notificationHandler *handlers.NotificationHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Post("/users/signup", authHandler.SignUp)
	router.Post("/users/signin", authHandler.SignIn)

	router.Route("/matches", func(r chi.Router) {
		// Публичные маршруты для просмотра матчей
		r.Get("/", matchHandler.ListMatches)
		r.Get("/{matchID}", matchHandler.GetMatch)

		// Защищенные маршруты: создание матча и участие в нём
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", matchHandler.CreateMatch)
			r.Post("/{matchID}/join", matchHandler.JoinMatch)
			r.Post("/{matchID}/leave", matchHandler.LeaveMatch)
			r.Post("/{matchID}/result", matchHandler.SubmitResult)
		})
	})

	router.Route("/users", func(r chi.Router) {
		r.Get("/{userID}", userHandler.GetUser)
		r.Get("/{userID}/medals", medalHandler.ListUserMedals)
		r.Get("/{userID}/stats", statsHandler.GetPlayerStats)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{userID}/avatar", userHandler.UploadAvatar)
		})
	})

	router.Get("/medals", medalHandler.ListCatalog)
	router.Get("/leaderboard", statsHandler.Leaderboard)

	router.Route("/notifications", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", notificationHandler.ListMine)
		r.Patch("/{notificationID}/read", notificationHandler.MarkRead)
	})

	router.Get("/ws/matches/{matchID}", webSocketHandler.ServeWs)

	router.Handle("/metrics", promhttp.Handler())
}
