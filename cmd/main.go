package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/bike-rental/billing-service/internal/api"
	"github.com/akylbek/bike-rental/billing-service/internal/config"
	"github.com/akylbek/bike-rental/billing-service/internal/events"
	"github.com/akylbek/bike-rental/billing-service/internal/gateway"
	"github.com/akylbek/bike-rental/billing-service/internal/handlers"
	"github.com/akylbek/bike-rental/billing-service/internal/integration"
	"github.com/akylbek/bike-rental/billing-service/internal/interfaces"
	"github.com/akylbek/bike-rental/billing-service/internal/lock"
	"github.com/akylbek/bike-rental/billing-service/internal/notifier"
	"github.com/akylbek/bike-rental/billing-service/internal/repository"
	"github.com/akylbek/bike-rental/billing-service/internal/service"
	"github.com/akylbek/bike-rental/billing-service/internal/telemetry"
)

const consumerGroupID = "billing-service"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("billing-service", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Billing Service", zap.String("store", cfg.StoreDriver))

	// Charge store
	repo, closeRepo := openRepository(cfg)
	defer closeRepo()

	// Outbound HTTP collaborators
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	directory := integration.NewCyclistClient(cfg.CiclistaServiceURL, httpClient)
	mercadoPago := gateway.NewMercadoPagoClient(cfg.MPBaseURL, cfg.MPAccessToken, cfg.MPPayerEmail, httpClient)

	emailNotifier, err := notifier.NewEmailNotifier(
		notifier.NewSMTPDialer(cfg.MailServer, cfg.MailPort, cfg.MailUsername, cfg.MailPassword),
		cfg.MailFrom,
		1,
	)
	if err != nil {
		telemetry.Logger.Fatal("Failed to initialize email notifier", zap.Error(err))
	}

	opts := []service.Option{service.WithLockTTL(cfg.LockTTL, 10*cfg.LockTTL)}

	// Connect to Redis
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			redisOpts = &redis.Options{Addr: cfg.RedisURL}
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		opts = append(opts, service.WithLocker(lock.NewRedisLocker(redisClient, telemetry.Logger)))
	}

	// Connect to Kafka
	var kafkaReader *kafka.Reader
	if len(cfg.KafkaBrokers) > 0 {
		kafkaWriter := &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        events.TopicChargeStateChanged,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		}
		defer kafkaWriter.Close()
		opts = append(opts, service.WithPublisher(events.NewKafkaPublisher(kafkaWriter)))

		kafkaReader = kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   events.TopicChargeRequested,
			GroupID: consumerGroupID,
		})
		defer kafkaReader.Close()
	}

	billing := service.NewBillingManager(repo, directory, mercadoPago, telemetry.Logger, opts...)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if kafkaReader != nil {
		go billing.ConsumeChargeRequests(ctx, kafkaReader)
	}

	// Connect to NATS
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Drain()

		if _, err := handlers.NewQueueTrigger(billing, 10*cfg.LockTTL).Subscribe(nc); err != nil {
			telemetry.Logger.Fatal("Failed to subscribe to queue trigger", zap.Error(err))
		}
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(billing, mercadoPago, emailNotifier)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Setup gRPC health server
	healthServer := api.NewHealthServer()
	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		telemetry.Logger.Fatal("Failed to listen for gRPC", zap.Error(err))
	}

	// Start servers in goroutines
	go func() {
		telemetry.Logger.Info("gRPC health server starting", zap.String("port", cfg.GRPCPort))
		if err := healthServer.Server.Serve(grpcListener); err != nil {
			telemetry.Logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	go func() {
		telemetry.Logger.Info("Billing Service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	healthServer.MarkServing()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	healthServer.Shutdown()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}

func openRepository(cfg *config.Config) (interfaces.ChargeRepository, func()) {
	if cfg.StoreDriver == config.StoreDriverBolt {
		repo, err := repository.NewBoltChargeRepository(cfg.BoltPath)
		if err != nil {
			telemetry.Logger.Fatal("Failed to open bolt store", zap.Error(err))
		}
		return repo, func() { repo.Close() }
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)

	repo := repository.NewChargeRepository(db)
	if err := repo.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	return repo, func() { db.Close() }
}
