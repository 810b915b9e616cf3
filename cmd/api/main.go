/**
 * @description
 * This is the main entry point for the Bitcoin Efectivo API server. It is
 * responsible for initializing all components: configuration, the account and
 * ledger store (Postgres when configured, in-memory otherwise), the rate
 * limiter (Redis when configured), the RabbitMQ event producer, the
 * settlement worker, and the HTTP server. It wires everything together and
 * runs until interrupted.
 *
 * @dependencies
 * - log, net/http, os/signal: Standard Go libraries.
 * - github.com/jackc/pgx/v5/pgxpool: PostgreSQL connection pool.
 * - github.com/redis/go-redis/v9: Redis client for distributed rate limiting.
 * - internal/api, internal/app, internal/auth, internal/config,
 *   internal/ratelimit, internal/store, pkg/rabbitmq: Service components.
 */

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/druidalabs/be/internal/api"
	"github.com/druidalabs/be/internal/app"
	"github.com/druidalabs/be/internal/auth"
	"github.com/druidalabs/be/internal/config"
	"github.com/druidalabs/be/internal/ratelimit"
	"github.com/druidalabs/be/internal/store"
	"github.com/druidalabs/be/pkg/rabbitmq"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting bitcoin-efectivo api\" port=%s", cfg.ServerPort)

	// Store: Postgres when configured, otherwise the in-process store the
	// original deployment ran on.
	var repository store.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
		}
		poolConfig.MaxConns = 50
		poolConfig.MinConns = 5
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute

		dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
		}
		defer dbpool.Close()

		pg := store.NewPostgresRepository(dbpool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"schema setup failed\" err=%v", err)
		}
		repository = pg
		log.Println("level=info component=bootstrap msg=\"database connected\"")
	} else {
		log.Println("level=warn component=bootstrap msg=\"no DATABASE_URL; using in-memory store\"")
		repository = store.NewMemoryRepository()
	}

	// Rate limiter: Redis when configured so replicas share one budget,
	// otherwise per-process fixed windows.
	var limiter ratelimit.Limiter
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"redis url parse failed\" err=%v", parseErr)
		}
		redisClient := redis.NewClient(redisOptions)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr := redisClient.Ping(pingCtx).Err()
		cancelPing()
		if pingErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory rate limiting\" err=%v", pingErr)
			redisClient.Close()
			memLimiter := ratelimit.NewMemoryLimiter()
			defer memLimiter.Stop()
			limiter = memLimiter
		} else {
			defer redisClient.Close()
			limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RedisRateLimitPrefix)
			log.Println("level=info component=bootstrap msg=\"redis connected\"")
		}
	} else {
		memLimiter := ratelimit.NewMemoryLimiter()
		defer memLimiter.Stop()
		limiter = memLimiter
	}

	// Event producer; the broker being down never blocks transfers.
	var producer rabbitmq.Publisher = &rabbitmq.NopProducer{}
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		} else {
			defer eventProducer.Close()
			producer = eventProducer
			log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		}
	}

	authority := auth.NewAuthority(cfg.JWTSecret)

	settler := app.NewSettler(repository, producer, app.SettlementDelay)
	defer settler.Stop()

	service := app.NewService(repository, settler, limiter, producer)
	handlers := api.NewHandlers(service, authority)
	router := api.Routes(handlers, authority, repository, limiter, cfg.CORSOrigin)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// Run the server in the background and block on the shutdown signal.
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=bootstrap msg=\"server failed\" err=%v", err)
		}
	}()
	log.Printf("level=info component=bootstrap msg=\"api listening\" addr=%s", server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("level=info component=bootstrap msg=\"shutting down\"")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=bootstrap msg=\"shutdown failed\" err=%v", err)
	}
}
