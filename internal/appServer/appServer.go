package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/civicportal/config"
	"github.com/ds124wfegd/civicportal/internal/notification"
	"github.com/ds124wfegd/civicportal/internal/service"
	"github.com/ds124wfegd/civicportal/internal/transport"
	"github.com/ds124wfegd/civicportal/internal/transport/middleware"
	"github.com/ds124wfegd/civicportal/internal/worker"
	"github.com/ds124wfegd/civicportal/pkg/tracing"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// App is the wired application: HTTP handler plus background workers.
type App struct {
	Handler http.Handler

	promotionWorker    *worker.PromotionWorker
	notificationWorker *worker.NotificationWorker
	rateLimiter        *middleware.RateLimiter
	tracing            *tracing.Provider
	closers            []func() error
	redisClient        *goredis.Client
	log                logrus.FieldLogger
}

// NewLogger builds the JSON logrus logger used everywhere in the app.
func NewLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// Build wires storage, locking, messaging and services. Callers must Close
// the returned App.
func Build(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*App, error) {
	app := &App{log: logger}

	repos, err := openStore(cfg, logger, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	locker, err := newLocker(cfg, logger, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	decisionQueue, err := newQueue(cfg, logger, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.tracing = tp
	tracer := tp.Tracer()

	var publisher *service.DecisionPublisher
	if decisionQueue != nil {
		publisher = service.NewDecisionPublisher(decisionQueue, logger)
		app.notificationWorker = worker.NewNotificationWorker(decisionQueue, notification.NewLogNotifier(logger), logger)
	}

	// Initialize services
	catalogService := service.NewCatalogService(repos.Catalog, logger)
	if err := catalogService.Seed(ctx, cfg.Catalog.Resources, cfg.Catalog.Venues); err != nil {
		app.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	admissionService := service.NewAdmissionService(catalogService, repos.Registrations, locker, publisher,
		service.AdmissionConfig{
			MaxPartySize: cfg.Booking.MaxPartySize,
			AutoPromote:  cfg.Booking.AutoPromote,
		}, logger, tracer)
	bookingService := service.NewBookingService(catalogService, repos.Bookings, locker, publisher, logger, tracer)

	if cfg.Booking.AutoPromote && cfg.Worker.PromotionInterval > 0 {
		app.promotionWorker = worker.NewPromotionWorker(catalogService, admissionService, cfg.Worker.PromotionInterval, logger)
	}

	if cfg.RateLimit.Enabled {
		app.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	if cfg.Server.Mode == "release" || cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.InitRoutes(
		transport.NewRegistrationHandler(admissionService),
		transport.NewBookingHandler(bookingService, catalogService),
		transport.NewCatalogHandler(catalogService),
		logger,
		transport.RouterConfig{
			RequestTimeout: cfg.Server.RequestTimeout,
			RateLimiter:    app.rateLimiter,
			AppVersion:     cfg.Server.AppVersion,
		},
	)

	app.Handler = cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
	}).Handler(router)

	return app, nil
}

// StartWorkers runs the background workers until ctx is done.
func (a *App) StartWorkers(ctx context.Context) {
	if a.promotionWorker != nil {
		go a.promotionWorker.Start(ctx)
	}
	if a.notificationWorker != nil {
		go func() {
			if err := a.notificationWorker.Start(ctx); err != nil {
				a.log.WithError(err).Error("Notification worker failed")
			}
		}()
	}
	if a.rateLimiter != nil {
		go a.rateLimiter.Run(ctx)
	}
}

func (a *App) Close() error {
	var errs []error

	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.tracing.Shutdown(ctx))
		cancel()
	}
	// reverse order of acquisition
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// NewServer runs the HTTP server until SIGINT or SIGTERM.
func NewServer(cfg *config.Config) error {
	logger := NewLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		cancel()
		if err := app.Close(); err != nil {
			logger.WithError(err).Error("Failed to release resources")
		}
	}()

	app.StartWorkers(ctx)

	srv := new(Server)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Run(cfg, app.Handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":   cfg.ServerAddress(),
		"store":  cfg.Store.Driver,
		"lock":   cfg.Lock.Driver,
		"notify": cfg.Notify.Driver,
	}).Info("App started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("App shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error occurred on server shutting down")
	}
	return nil
}
