package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/booking"
	"github.com/chachabrian/wheelster-backend/internal/config"
	"github.com/chachabrian/wheelster-backend/internal/database"
	"github.com/chachabrian/wheelster-backend/internal/gateway"
	"github.com/chachabrian/wheelster-backend/internal/handlers"
	"github.com/chachabrian/wheelster-backend/internal/logger"
	"github.com/chachabrian/wheelster-backend/internal/middleware"
	"github.com/chachabrian/wheelster-backend/internal/notify"
	"github.com/chachabrian/wheelster-backend/internal/repository"
	"github.com/chachabrian/wheelster-backend/internal/services"
	"github.com/chachabrian/wheelster-backend/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zlog *zap.Logger) error {
	db, err := database.InitDB(cfg.DB, !cfg.IsProduction())
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := services.InitRedis(ctx, cfg.RedisURL, zlog)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// RabbitMQ is optional; without it events only reach websocket clients.
	events := services.FanoutPublisher{rdb}
	if cfg.AMQPURL != "" {
		mq, err := services.NewRabbitMQ(ctx, cfg.AMQPURL, zlog)
		if err != nil {
			return err
		}
		defer mq.Close()
		events = append(events, mq)
	}

	fcm, err := services.InitFirebase(ctx, cfg.Firebase.CredentialsPath, zlog)
	if err != nil {
		zlog.Warn("Firebase initialization failed, push notifications disabled", zap.Error(err))
		fcm = nil
	}

	var gw booking.PaymentGateway = gateway.Disabled{}
	if cfg.Payment.StripeSecretKey != "" {
		stripe, err := gateway.NewStripe(gateway.StripeConfig{
			SecretKey: cfg.Payment.StripeSecretKey,
			Currency:  cfg.Payment.Currency,
			Timeout:   cfg.Payment.GatewayTimeout,
		}, zlog)
		if err != nil {
			return err
		}
		gw = stripe
	} else {
		zlog.Warn("STRIPE_SECRET_KEY not set, card payments disabled")
	}

	hub := services.NewHub(zlog)
	go hub.Run(ctx)
	go rdb.SubscribeBookingUpdates(ctx, hub.DeliverEvent)

	users := repository.NewUserStore(db)
	notifier := notify.NewSender(users, notify.Channels{
		Email:    utils.NewMailer(cfg.SMTP),
		SMS:      utils.NewSMSClient(cfg.SMS),
		Push:     fcm,
		Realtime: hub,
	}, zlog)
	defer notifier.Wait()

	engine := booking.NewService(booking.Deps{
		Store:    repository.NewBookingStore(db),
		Users:    users,
		Vehicles: repository.NewVehicleStore(db, rdb),
		Gateway:  gw,
		Notifier: notifier,
		Events:   events,
		Locker:   rdb,
		Log:      zlog,
	}, booking.Config{
		MinimumCharge:     cfg.Payment.MinimumCharge,
		DefaultRefundRate: cfg.Booking.DefaultRefundRate,
		GatewayTimeout:    cfg.Payment.GatewayTimeout,
		LockTTL:           cfg.Booking.LockTTL,
	})

	sweeper := booking.NewSweeper(engine, booking.SweeperConfig{
		Interval:    cfg.Booking.SweepInterval,
		GraceWindow: cfg.Booking.GraceWindow,
	})
	go sweeper.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics(), middleware.RequestLogger(zlog))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.Routes{
		Engine:    engine,
		Users:     users,
		Hub:       hub,
		JWTSecret: cfg.JWTSecret,
		Checks: map[string]handlers.HealthCheck{
			"database": sqlDB.PingContext,
			"redis":    rdb.Ping,
		},
	}.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
