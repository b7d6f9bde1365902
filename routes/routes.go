package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/songclash/songclash/handlers"
	"github.com/songclash/songclash/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Session    *handlers.SessionHandler
	Tournament *handlers.TournamentHandler
	Vote       *handlers.VoteHandler
	Playback   *handlers.PlaybackHandler
	Search     *handlers.SearchHandler
	Stream     *handlers.StreamHandler
}

func Setup(router *chi.Mux, h Handlers, jwtSecret string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Player-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	router.Post("/auth/signup", h.Auth.SignUp)
	router.Post("/auth/signin", h.Auth.SignIn)

	router.Get("/search", h.Search.Search)

	router.Route("/sessions", func(r chi.Router) {
		// Account-holder routes: creating and administering sessions.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Post("/", h.Session.Create)
			r.Delete("/{sessionID}", h.Session.Delete)
			r.Post("/{sessionID}/archive", h.Session.Archive)
			r.Delete("/{sessionID}/players/{playerID}", h.Session.Kick)
		})

		r.Get("/{sessionID}", h.Session.Get)
		r.Get("/{sessionID}/state", h.Session.State)
		r.Get("/{sessionID}/stream", h.Stream.Serve)

		// Joining is open; a token only matters for claiming the owner seat.
		r.With(middleware.OptionalAuthenticate(jwtSecret)).
			Post("/{sessionID}/players", h.Session.Join)

		// Gameplay routes identify the caller by the X-Player-ID header.
		r.Post("/{sessionID}/tournaments", h.Tournament.NewRound)
		r.Post("/{sessionID}/tournaments/category", h.Tournament.SubmitCategory)
		r.Post("/{sessionID}/tournaments/songs", h.Tournament.SubmitSong)
		r.Post("/{sessionID}/tournaments/start", h.Tournament.Start)

		r.Post("/{sessionID}/matches/{matchID}/votes", h.Vote.CastVote)
		r.Post("/{sessionID}/matches/{matchID}/playback/start", h.Playback.Start)
		r.Post("/{sessionID}/matches/{matchID}/playback/stop", h.Playback.Stop)
	})
}
