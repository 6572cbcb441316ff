package routes

import (
	"log/slog"
	"net/http"

	_ "github.com/Dosada05/streakmatch/docs"
	"github.com/Dosada05/streakmatch/handlers"
	"github.com/Dosada05/streakmatch/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	Auth           *middleware.Authenticator
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	matchHandler *handlers.MatchHandler,
	meHandler *handlers.MeHandler,
	feedHandler *handlers.FeedHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(opts.Auth.Authenticate)

		r.Route("/matches", func(r chi.Router) {
			r.Post("/", matchHandler.CreateMatch)
			r.Route("/{matchID}", func(r chi.Router) {
				r.Get("/", matchHandler.GetMatch)
				r.Patch("/", matchHandler.EditMatch)
				r.Get("/can-edit", matchHandler.CanEdit)
				r.Post("/join", matchHandler.Join)
				r.Post("/leave", matchHandler.Leave)
				r.Post("/result", matchHandler.SubmitResult)
				r.Post("/proof", matchHandler.UploadProof)
			})
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/active-match", meHandler.ActiveMatch)
			r.Get("/score", meHandler.Score)
			r.Put("/profile", meHandler.UpdateProfile)
		})

		r.Get("/feed", feedHandler.GetFeed)
	})

	router.Route("/ws", func(r chi.Router) {
		r.Use(opts.Auth.Authenticate)
		r.Get("/", webSocketHandler.ServeUser)
		r.Get("/matches/{matchID}", webSocketHandler.ServeMatch)
	})
}
