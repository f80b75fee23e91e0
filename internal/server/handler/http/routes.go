package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/middleware"
)

// RouterOptions configures the cross-cutting middleware of the router.
type RouterOptions struct {
	// AllowedOrigins get their origin echoed with credentials allowed.
	AllowedOrigins []string
	// CORSMaxAge is the preflight cache lifetime in seconds.
	CORSMaxAge int
	// LoginRequests per LoginWindow are allowed per client IP on the
	// credential endpoints; 0 disables the limit.
	LoginRequests int
	LoginWindow   time.Duration
}

// NewRouter constructs the HTTP handler serving the API.
//
// Routes:
//
//	POST   /api/auth/register  → authHandler.Register (rate limited)
//	POST   /api/auth/login     → authHandler.Login (rate limited)
//	POST   /api/auth/logout    → authHandler.Logout
//	GET    /api/user           → authHandler.CurrentUser
//	GET    /api/logs           → logHandler.Get
//	POST   /api/logs           → logHandler.Post
//	PUT    /api/logs?id=       → logHandler.Put
//	DELETE /api/logs?id=       → logHandler.Delete
//
// Every route except register and login requires a bearer credential.
func NewRouter(
	authHandler *AuthHandler,
	logHandler *LogHandler,
	authenticator middleware.Authenticator,
	opts RouterOptions,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.CORS(opts.AllowedOrigins, opts.CORSMaxAge))
	r.Use(middleware.Preflight)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	limit := func(next http.Handler) http.Handler { return next }
	if opts.LoginRequests > 0 && opts.LoginWindow > 0 {
		limit = httprate.Limit(opts.LoginRequests, opts.LoginWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(tooManyRequests),
		)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Use(chiMiddleware.AllowContentType("application/json"))
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
			})
			r.With(middleware.BearerAuth(authenticator, logger)).Post("/logout", authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(authenticator, logger))

			r.Get("/user", authHandler.CurrentUser)

			r.Get("/logs", logHandler.Get)
			r.Put("/logs", logHandler.Put)
			r.Delete("/logs", logHandler.Delete)
			r.Post("/logs", logHandler.Post)
		})
	})

	return r
}
