package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/config"
	"github.com/coredesk/coredesk-gateway/internal/server"
	"github.com/coredesk/coredesk-gateway/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Redis is the distributed counter backend. Rate limiting fails open, so
	// a missing Redis at boot degrades to local counters instead of exiting.
	redis, err := storage.NewRedis(
		cfg.Redis.GetRedisAddr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		log.Printf("WARNING: Redis unavailable, rate limiting degrades to per-instance counters: %v", err)
		redis = nil
	} else {
		defer redis.Close()
		log.Println("Connected to Redis successfully")
	}

	// The budget path fails closed, so Postgres is required
	postgres, err := storage.NewPostgres(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Connected to Postgres successfully")

	srv, err := server.New(cfg, redis, postgres)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
