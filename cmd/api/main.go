package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"confbooking/internal/config"
	"confbooking/internal/database"
	"confbooking/internal/domain"
	"confbooking/internal/events"
	"confbooking/internal/lock"
	"confbooking/internal/middleware"
	"confbooking/internal/modules/audit"
	"confbooking/internal/modules/booking"
	"confbooking/internal/modules/reference"
	jwtsvc "confbooking/internal/pkg/jwt"
	"confbooking/internal/pkg/logger"
	"confbooking/internal/pkg/response"
	"confbooking/internal/repository"
	"confbooking/internal/scheduler"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(ctx, cfg, db)

	var sched *scheduler.Scheduler
	if cfg.Booking.SchedulerEnabled {
		sched, err = scheduler.New(app.bookings, cfg.Booking.CompletionSpec, cfg.Booking.Location(), time.Minute)
		if err != nil {
			logger.Error("scheduler setup failed", "error", err)
			os.Exit(1)
		}
		sched.Start()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if sched != nil {
		sched.Stop()
	}
	app.close()
	logger.Info("server stopped gracefully")
}

type app struct {
	router   *gin.Engine
	bookings *booking.Service
	closers  []func()
}

func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
}

func newApp(ctx context.Context, cfg *config.Config, db *gorm.DB) *app {
	a := &app{}

	bookingRepo := repository.NewBookingRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	refRepo := repository.NewReferenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	recorder := audit.NewRecorder(auditRepo)

	opts := []booking.Option{booking.WithLocation(cfg.Booking.Location())}
	if cfg.RabbitMQ.URL != "" {
		opts = append(opts, booking.WithEvents(events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Timeout)))
	} else {
		opts = append(opts, booking.WithEvents(events.Nop{}))
	}
	if client := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); client != nil {
		opts = append(opts, booking.WithLocker(lock.NewRedisRoomLocker(client, cfg.Redis.LockTTL, cfg.Redis.LockWait)))
		a.closers = append(a.closers, func() { _ = client.Close() })
		logger.Info("redis room lock enabled", "addr", cfg.Redis.Addr)
	} else {
		if cfg.Redis.Addr != "" {
			logger.Warn("redis unreachable, room lock disabled", "addr", cfg.Redis.Addr)
		}
		opts = append(opts, booking.WithLocker(lock.Nop{}))
	}

	a.bookings = booking.NewService(bookingRepo, roomRepo, refRepo, recorder, opts...)
	resolver := reference.NewResolver(refRepo, roomRepo)

	bookingHandler := booking.NewHandler(a.bookings)
	referenceHandler := reference.NewHandler(resolver)
	auditHandler := audit.NewHandler(recorder)

	j := jwtsvc.New(cfg.JWT.Secret, cfg.JWT.TTL)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ErrorLogger(),
		middleware.RequestLogger(),
		middleware.CORS(cfg.CORS.Origins),
	)

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	protected := v1.Group("/")
	protected.Use(middleware.JWTAuth(j), middleware.RequireRole(domain.RoleAdmin, domain.RoleStaff))
	{
		bookingHandler.RegisterRoutes(protected)
		referenceHandler.RegisterRoutes(protected)
	}

	admin := v1.Group("/")
	admin.Use(middleware.JWTAuth(j), middleware.AdminOnly())
	{
		auditHandler.RegisterRoutes(admin)
	}

	a.router = r
	return a
}
