package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"traffic-telemetry-api/config"
	"traffic-telemetry-api/database"
	"traffic-telemetry-api/handlers"
	"traffic-telemetry-api/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Bring the schema up to date before serving
	migrator, err := database.NewMigrator(cfg.Database.GetURL())
	if err != nil {
		log.Fatalf("Failed to init migrations: %v", err)
	}
	if err := migrator.Up(); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	if err := migrator.Close(); err != nil {
		log.Printf("Failed to close migrator: %v", err)
	}

	// Connect to database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis only feeds the live websocket, so the API runs without it
	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, live feed disabled: %v", err)
	}
	defer cache.Close()

	svc := handlers.NewServices(db.Gorm, cfg.JWT, cache)
	seeded, err := svc.Thresholds.EnsureDefault(ctx)
	if err != nil {
		log.Fatalf("Failed to seed threshold: %v", err)
	}
	if seeded {
		log.Printf("Seeded default classification threshold")
	}

	router := handlers.SetupRouter(svc, cfg.CORS)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
