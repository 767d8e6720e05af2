// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every store, service, and handler is built
// here and nowhere else. Handlers receive services, services receive
// repository interfaces, and only this package knows that the concrete
// repository is a sqlstore.DB.
//
// ROUTES:
//
//	GET    /healthz, /readyz, /metrics
//	GET    /uploads/*                         local storage only
//	GET    /auth/google/login, /auth/google/callback   when configured
//
//	POST   /api/auth/register, /api/auth/login         rate limited
//	GET    /api/products, /api/products/{id}, /api/users/{id}
//
//	everything else under /api requires a token; /api/admin also
//	requires the admin flag.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/agrilink/internal/auth"
	"github.com/sakif/agrilink/internal/config"
	"github.com/sakif/agrilink/internal/handler"
	"github.com/sakif/agrilink/internal/jobs"
	"github.com/sakif/agrilink/internal/middleware"
	"github.com/sakif/agrilink/internal/repository/sqlstore"
	"github.com/sakif/agrilink/internal/service"
	"github.com/sakif/agrilink/internal/storage"
)

const (
	shutdownTimeout    = 30 * time.Second
	expiryRunTimeout   = time.Minute
	limiterSweepPeriod = time.Minute

	// localUploadPrefix is where the local store's files are served.
	localUploadPrefix = "/uploads"
)

// Server represents the HTTP server and everything it owns: the database
// pool, the job scheduler, and the tracer. Shutdown releases all of them.
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sqlstore.DB
	files   storage.Store
	router  *chi.Mux
	handler http.Handler

	metrics   *middleware.Metrics
	limiter   *middleware.RateLimiter
	scheduler *jobs.Scheduler
	offers    *service.OfferService

	stopTracing func(context.Context) error
	stopSweeper context.CancelFunc
}

// New opens the database and object store named by cfg and wires the
// router. The schema must already be migrated.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	files, err := openStorage(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	stopTracing, err := setupTracing(ctx, cfg.OTelEndpoint)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	s, err := build(cfg, logger, db, files)
	if err != nil {
		stopTracing(ctx)
		db.Close()
		return nil, err
	}
	s.stopTracing = stopTracing
	return s, nil
}

// openStorage picks S3 when a bucket is configured and the local upload
// directory otherwise.
func openStorage(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.S3.Bucket != "" {
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PublicURL:       cfg.S3.PublicURL,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
		})
	}
	return storage.NewLocal(cfg.UploadDir, localUploadPrefix)
}

// build wires services, handlers and the scheduler around an open store.
// Tests call it directly with a temp database.
func build(cfg config.Config, logger *slog.Logger, db *sqlstore.DB, files storage.Store) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		files:       files,
		router:      chi.NewRouter(),
		metrics:     middleware.NewMetrics(),
		limiter:     middleware.NewRateLimiter(cfg.AuthRatePerMinute, logger),
		scheduler:   jobs.NewScheduler(logger),
		stopTracing: func(context.Context) error { return nil },
	}

	// === SERVICES ===
	notifier := service.NewNotificationService(db, logger)
	s.offers = service.NewOfferService(db, notifier, cfg.OfferTTL, logger)
	uploads := service.NewUploadService(files, cfg.UploadMaxBytes, logger)
	svc := services{
		auth:         service.NewAuthService(db, tokens, auth.NewPasswordService(), logger),
		profiles:     service.NewProfileService(db, logger),
		products:     service.NewProductService(db, logger),
		uploads:      uploads,
		verification: service.NewVerificationService(db, uploads, notifier, logger),
		chat:         service.NewChatService(db, notifier, logger),
		offers:       s.offers,
		notifier:     notifier,
		dashboard:    service.NewDashboardService(db),
	}

	var google *auth.OAuthProvider
	if cfg.Google.Enabled() {
		google = auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	}

	s.routes(tokens, google, svc)
	s.handler = otelhttp.NewHandler(s.router, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				return false
			}
			return true
		}),
	)

	if err := s.scheduler.AddOfferExpiry(cfg.OfferExpirySchedule, s.offers, s.metrics, expiryRunTimeout); err != nil {
		return nil, err
	}
	return s, nil
}

type services struct {
	auth         *service.AuthService
	profiles     *service.ProfileService
	products     *service.ProductService
	uploads      *service.UploadService
	verification *service.VerificationService
	chat         *service.ChatService
	offers       *service.OfferService
	notifier     *service.NotificationService
	dashboard    *service.DashboardService
}

// routes registers middleware and handlers.
//
// MIDDLEWARE ORDER MATTERS: RequestID runs first so the logger can print
// it, and Recoverer sits inside Logger so a panic is still logged as a 500.
func (s *Server) routes(tokens *auth.TokenService, google *auth.OAuthProvider, svc services) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metrics.Instrument)

	health := handler.NewHealthHandler(s.db, s.logger)
	r.Get("/healthz", health.HandleLive)
	r.Get("/readyz", health.HandleReady)
	r.Handle("/metrics", s.metrics.Handler())

	if local, ok := s.files.(*storage.Local); ok {
		fs := http.FileServer(http.Dir(local.Dir()))
		r.Handle(localUploadPrefix+"/*", http.StripPrefix(localUploadPrefix+"/", fs))
	}

	authH := handler.NewAuthHandler(svc.auth, tokens, google, s.logger)
	profileH := handler.NewProfileHandler(svc.profiles, s.logger)
	productH := handler.NewProductHandler(svc.products, s.logger)
	uploadH := handler.NewUploadHandler(svc.uploads, s.logger)
	verificationH := handler.NewVerificationHandler(svc.verification, s.logger)
	chatH := handler.NewChatHandler(svc.chat, s.logger)
	offerH := handler.NewOfferHandler(svc.offers, s.logger)
	notificationH := handler.NewNotificationHandler(svc.notifier, s.logger)
	dashboardH := handler.NewDashboardHandler(svc.dashboard, s.logger)

	if authH.GoogleEnabled() {
		r.Get("/auth/google/login", authH.HandleGoogleLogin)
		r.Get("/auth/google/callback", authH.HandleGoogleCallback)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Handler)
			r.Post("/auth/register", authH.HandleRegister)
			r.Post("/auth/login", authH.HandleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/products", productH.HandleList)
			r.Get("/products/{id}", productH.HandleGet)
			r.Get("/users/{id}", profileH.HandleGetPublic)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/auth/me", authH.HandleMe)
			r.Post("/auth/password", authH.HandleChangePassword)

			r.Get("/profile", profileH.HandleGet)
			r.Put("/profile", profileH.HandleUpdate)

			r.Post("/products", productH.HandleCreate)
			r.Put("/products/{id}", productH.HandleUpdate)
			r.Delete("/products/{id}", productH.HandleDelete)

			r.Post("/uploads", uploadH.HandleUpload)

			r.Get("/verification", verificationH.HandleStatus)
			r.Get("/verification/documents", verificationH.HandleListDocuments)
			r.Post("/verification/documents", verificationH.HandleAddDocument)
			r.Post("/verification/submit", verificationH.HandleSubmit)

			r.Get("/conversations", chatH.HandleList)
			r.Post("/conversations", chatH.HandleStart)
			r.Get("/conversations/{id}/messages", chatH.HandleMessages)
			r.Post("/conversations/{id}/messages", chatH.HandleSend)
			r.Post("/conversations/{id}/read", chatH.HandleMarkRead)
			r.Post("/conversations/{id}/offers", offerH.HandleCreate)

			r.Get("/offers", offerH.HandleList)
			r.Get("/offers/{id}", offerH.HandleGet)
			r.Patch("/offers/{id}", offerH.HandleUpdateStatus)

			r.Get("/notifications", notificationH.HandleList)
			r.Get("/notifications/unread-count", notificationH.HandleUnreadCount)
			r.Post("/notifications/read-all", notificationH.HandleMarkAllRead)
			r.Post("/notifications/{id}/read", notificationH.HandleMarkRead)

			r.Get("/dashboard", dashboardH.HandleSummary)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/verifications", verificationH.HandleListPending)
				r.Post("/verifications/{userID}/approve", verificationH.HandleApprove)
				r.Post("/verifications/{userID}/reject", verificationH.HandleReject)
				r.Post("/verifications/{userID}/contact", verificationH.HandleContact)
			})
		})
	})
}

// Handler is the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the background jobs and serves until SIGINT or SIGTERM, then
// shuts down gracefully.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.stopSweeper = cancel
	go s.limiter.Run(sweepCtx, limiterSweepPeriod)
	s.scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("dbDriver", s.cfg.DBDriver),
			slog.String("storage", storageKind(s.files)),
			slog.Bool("googleSignIn", s.cfg.Google.Enabled()),
			slog.Bool("tracing", s.cfg.OTelEndpoint != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	if err := s.Close(ctx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	if serveErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return serveErr
}

// Close stops the scheduler and the limiter sweeper, flushes traces and
// closes the database. It does not stop an HTTP listener.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if err := s.scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	if err := s.stopTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping tracer: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}

func storageKind(st storage.Store) string {
	switch st.(type) {
	case *storage.Local:
		return "local"
	case *storage.S3:
		return "s3"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", st), "*")
}
