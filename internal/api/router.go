package api

import (
	"net/http"
	"time"

	"prep_arena/internal/api/handler"
	"prep_arena/internal/app/service"
	"prep_arena/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	problemService *service.ProblemService,
	contestService *service.ContestService,
	submissionService *service.SubmissionService,
	ratingService *service.RatingService,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies the bearer token when present and puts the claims in the
	// request context; per-route middleware decides whether to require them.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService)
		v1.Group(func(publicAuth chi.Router) {
			authHandler.RegisterRoutes(publicAuth)
		})
		v1.Group(func(protectedAuth chi.Router) {
			authHandler.RegisterProtectedRoutes(protectedAuth)
		})

		problemHandler := handler.NewProblemHandler(problemService)
		v1.Route("/problems", problemHandler.RegisterRoutes)

		contestHandler := handler.NewContestHandler(contestService, ratingService)
		v1.Route("/contests", contestHandler.RegisterRoutes)

		submissionHandler := handler.NewSubmissionHandler(submissionService)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)
	})

	return r
}
