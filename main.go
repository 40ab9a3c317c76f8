package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ms-darshan/internal/analytics"
	analytics_api "ms-darshan/internal/analytics/api"
	"ms-darshan/internal/auth"
	"ms-darshan/internal/config"
	"ms-darshan/internal/crowd/crowd_api"
	crowd_db "ms-darshan/internal/crowd/db"
	crowd "ms-darshan/internal/crowd/service"
	"ms-darshan/internal/database"
	"ms-darshan/internal/database/migrations"
	"ms-darshan/internal/kafka"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/prediction"
	"ms-darshan/internal/prediction/prediction_api"
	"ms-darshan/internal/queue"
	"ms-darshan/internal/ratelimit"
	slot_db "ms-darshan/internal/slots/db"
	slots "ms-darshan/internal/slots/service"
	"ms-darshan/internal/slots/slot_api"
	sos_db "ms-darshan/internal/sos/db"
	sos "ms-darshan/internal/sos/service"
	"ms-darshan/internal/sos/sos_api"
	"ms-darshan/internal/sse"
	ticket_db "ms-darshan/internal/tickets/db"
	"ms-darshan/internal/tickets/qr"
	tickets "ms-darshan/internal/tickets/service"
	"ms-darshan/internal/tickets/ticket_api"
	"ms-darshan/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

var startedAt = time.Now()

// publishers holds the event sinks handed to services. They stay nil interfaces
// when Kafka is disabled so services skip publishing.
type publishers struct {
	tickets tickets.EventPublisher
	slots   slots.EventPublisher
	sos     sos.EventPublisher
	crowd   crowd.EventPublisher
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Darshan backend initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("APP", err.Error())
	}
	log.Info("APP", "✅ Darshan backend shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("APP", "Verifying database connections")
	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, log)
		if err := runner.MigrateUp(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// queue cache and rate limiting degrade gracefully
		log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s: %v", cfg.Redis.Addr, err))
	} else {
		log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
	}

	var pubs publishers
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		pubs = publishers{tickets: producer, slots: producer, sos: producer, crowd: producer}
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, domain events will not be published")
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth verifier: %w", err)
	}
	guards := auth.NewGuards(verifier, cfg.Auth.AdminRole, log)
	live := sse.NewEmitter()

	slotStore := &slot_db.DB{Bun: bunDB}
	ticketStore := &ticket_db.DB{Bun: bunDB}
	crowdStore := &crowd_db.DB{Bun: bunDB}

	slotService := slots.NewSlotService(slotStore, pubs.slots, cfg.Booking, log)
	queueStatus := queue.NewStatusService(ticketStore, rdb, cfg.QueueCache.TTL, cfg.Booking.ServiceMinutesPerHead, log)
	ticketService := tickets.NewTicketService(ticketStore, qr.NewQRGenerator(cfg.QR.SecretKey), pubs.tickets, queueStatus, cfg.Booking, log)
	crowdService := crowd.NewCrowdService(crowdStore, pubs.crowd, live, cfg.Booking, log)
	sosService := sos.NewSOSService(&sos_db.DB{Bun: bunDB}, pubs.sos, live, log)
	analyticsService := analytics.NewService(analytics.NewDB(bunDB), rdb, cfg.Analytics.CacheTTL, cfg.Booking, log)

	predictor := prediction.NewHTTPPredictor(cfg.Prediction)
	gateway := prediction.NewGateway(predictor, crowdService, cfg.Prediction.FallbackWindow, log)

	var sosLimit func(http.Handler) http.Handler
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware)
	if cfg.RateLimit.Enabled {
		general := ratelimit.NewLimiter(rdb, "api", cfg.RateLimit.Window, cfg.RateLimit.Max, ratelimit.GeneralMessage, log)
		r.Use(general.Middleware)
		sosLimit = ratelimit.NewLimiter(rdb, "sos", cfg.RateLimit.SOSWindow, cfg.RateLimit.SOSMax, ratelimit.SOSMessage, log).Middleware
	}

	r.Get("/health", healthHandler)
	slot_api.NewHandler(slotService, log).RegisterRoutes(r, guards)
	ticket_api.NewHandler(ticketService, queueStatus, log).RegisterRoutes(r, guards)
	crowd_api.NewHandler(crowdService, gateway, live, log).RegisterRoutes(r, guards)
	prediction_api.NewHandler(gateway, log).RegisterRoutes(r, guards)
	sos_api.NewHandler(sosService, live, sosLimit, log).RegisterRoutes(r, guards)
	analytics_api.NewHandler(analyticsService, log).RegisterRoutes(r, guards)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteFail(w, http.StatusNotFound, "Route not found")
	})
	log.Info("ROUTER", "Routes registered under /api/queue, /api/tickets, /api/crowd, /api/prediction, /api/sos, /api/analytics")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP", fmt.Sprintf("🚀 Darshan backend running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Prediction.RefreshEnabled {
		job := prediction.NewRefreshJob(predictor, crowdService, cfg.Booking.TempleIDs, cfg.Prediction.RefreshInterval, log)
		g.Go(func() error { return job.Run(gctx) })
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CrowdSamples, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Run(gctx, func(ctx context.Context, m kafkago.Message) error {
				return crowdService.IngestSample(ctx, m.Value)
			})
		})
	}

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	return g.Wait()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Temple Management API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(startedAt).Seconds(),
	})
}
