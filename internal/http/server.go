package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/services"
	appweb "spendwise/web"
)

// Accounts is the account surface the handlers drive.
type Accounts interface {
	Register(ctx context.Context, username, password string) (core.User, error)
	Authenticate(ctx context.Context, username, password string) (core.User, error)
	StartSession(ctx context.Context, u core.User) (services.SessionToken, error)
	ResolveSession(ctx context.Context, token string) (core.User, *services.SessionToken, error)
	EndSession(ctx context.Context, token string) error
	ChangeUsername(ctx context.Context, newUsername string) (core.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	DeleteAccount(ctx context.Context, password string) error
}

// Expenses creates and deletes the signed-in user's expenses.
type Expenses interface {
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Delete(ctx context.Context, id int64) error
}

// Insights reads aggregates over the signed-in user's expenses.
type Insights interface {
	Dashboard(ctx context.Context, today core.Date) (services.Dashboard, error)
	Forecast(ctx context.Context) (core.Forecast, bool, error)
}

// Store is the slice of storage the operational endpoints touch.
type Store interface {
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Config holds the HTTP-level settings.
type Config struct {
	Addr           string
	SecureCookies  bool
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Deps are the collaborators NewServer wires into handlers.
type Deps struct {
	Accounts Accounts
	Expenses Expenses
	Insights Insights
	Store    Store
	Logger   *log.Logger

	// CacheStats reports the insights cache; optional.
	CacheStats func() cache.Stats
	// PurgeCache empties the insights cache after a database reset; optional.
	PurgeCache func()
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	cfg       Config
	accounts  Accounts
	expenses  Expenses
	insights  Insights
	store     Store
	logger    *log.Logger
	slog      *log.StructuredLogger
	templates map[string]*template.Template
	now       func() time.Time
	started   time.Time

	cacheStats  func() cache.Stats
	purgeCache  func()
	detector    *security.Detector
	trace       *trace.Middleware
	credLimiter *ratelimit.Limiter
	apiLimiter  *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	tmpl, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	detector := security.NewDetector()
	s := &Server{
		cfg:         cfg,
		accounts:    deps.Accounts,
		expenses:    deps.Expenses,
		insights:    deps.Insights,
		store:       deps.Store,
		logger:      logger.WithComponent(log.ComponentHTTP),
		slog:        log.NewStructuredLogger(logger),
		templates:   tmpl,
		now:         now,
		started:     now(),
		cacheStats:  deps.CacheStats,
		purgeCache:  deps.PurgeCache,
		detector:    detector,
		trace:       trace.NewMiddleware(logger.WithComponent(log.ComponentHTTP), detector.ExtractClientIP),
		credLimiter: ratelimit.NewLimiter(ratelimit.CredentialConfig()),
		apiLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.trace.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mountResetRoute(r, s)

	r.Group(func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}
		r.Use(s.loadSession)

		// Anonymous pages; signed-in users are sent home.
		r.Group(func(r chi.Router) {
			r.Use(s.redirectIfAuthenticated)
			r.Get("/register", s.handleRegisterForm)
			r.Get("/login", s.handleLoginForm)
			r.With(s.limitCredentials).Post("/register", s.handleRegister)
			r.With(s.limitCredentials).Post("/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Use(security.NoStore)
			r.Get("/logout", s.handleLogout)
			r.Get("/", s.handleIndex)
			r.Get("/add", s.handleAddForm)
			r.Post("/add", s.handleAdd)
			r.Get("/delete/{id}", s.handleDelete)
			r.Get("/predict", s.handlePredict)
			r.Get("/profile", s.handleProfile)
			r.Post("/profile", s.handleProfileUpdate)
			r.With(s.limitCredentials).Post("/delete-account", s.handleDeleteAccount)
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   s.cfg.CORSOrigins,
				AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
				AllowedHeaders:   []string{"Content-Type", trace.RequestIDHeader},
				AllowCredentials: true,
				MaxAge:           300,
			}))
			r.Use(s.apiLimiter.Middleware(s.detector.ExtractClientIP, s.apiRateLimited))
			r.Use(s.requireAPIUser)
			r.Post("/add", s.handleAPIAdd)
		})
	})

	r.NotFound(s.handleNotFound)
	return r
}

// Shutdown stops the limiters and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.credLimiter.Stop()
		s.apiLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}
