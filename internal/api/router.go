package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"

	"codearena/internal/api/handler"
	"codearena/internal/app/service"
	"codearena/internal/common/security"
)

func NewRouter(
	tokens *security.TokenManager,
	authService *service.AuthService,
	problemService *service.ProblemService,
	submissionService *service.SubmissionService,
	contestService *service.ContestService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	// Submissions block on the judging pipeline, so the request budget has to
	// exceed the poller's wait budget.
	r.Use(chiMiddleware.Timeout(90 * time.Second))

	// Verifies the Authorization bearer token and puts claims in context;
	// enforcement happens in middleware.Authenticator on protected groups.
	r.Use(jwtauth.Verifier(tokens.Auth()))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 Routes
	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService)
		v1.Group(func(publicAuth chi.Router) {
			authHandler.RegisterRoutes(publicAuth)
		})

		problemHandler := handler.NewProblemHandler(problemService)
		v1.Route("/problems", problemHandler.RegisterRoutes)

		submissionHandler := handler.NewSubmissionHandler(submissionService)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)

		contestHandler := handler.NewContestHandler(contestService)
		v1.Route("/contests", contestHandler.RegisterRoutes)
	})

	return r
}
