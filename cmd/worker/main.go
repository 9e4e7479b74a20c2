// Copyright 2025 Certen Protocol
//
// Worker service entrypoint: pulls transition-proof tasks off the
// distributed queue, proves them with pkg/proofsystem, and persists
// accepted proofs back into the Validity Prover's block-state store.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/zkpayments/rollup-core/pkg/config"
	"github.com/zkpayments/rollup-core/pkg/database"
	"github.com/zkpayments/rollup-core/pkg/metrics"
	"github.com/zkpayments/rollup-core/pkg/proofsystem"
	"github.com/zkpayments/rollup-core/pkg/queue"
	"github.com/zkpayments/rollup-core/pkg/validityprover"
	"github.com/zkpayments/rollup-core/pkg/worker"
)

func main() {
	workerID := flag.String("id", "", "this worker's unique identity (defaults to VALIDATOR_ID)")
	devMode := flag.Bool("dev", false, "skip required-field validation for local development")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ load config: %v", err)
	}
	if *devMode {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatalf("❌ invalid configuration: %v", err)
		}
	} else if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ invalid configuration: %v", err)
	}

	id := *workerID
	if id == "" {
		id = cfg.ValidatorID
	}

	dbClient, err := database.NewClient(cfg, database.WithLogger(log.New(log.Writer(), "[DB] ", log.LstdFlags)))
	if err != nil {
		log.Fatalf("❌ connect database: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.MigrateUp(context.Background()); err != nil {
		log.Printf("⚠️  migrations: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	transitionQueue := queue.NewTransitionQueue(rdb, 5*time.Minute)

	store := validityprover.NewPostgresStore(dbClient.DB())
	sm := validityprover.NewStateMachine(store)

	proverKeys := proofsystem.NewProverKeys(cfg.DataDir)
	zkProver := worker.NewZKProver(proofsystem.NewProver(proverKeys))

	registry := proofsystem.NewRegistry(cfg.VerifierKeysDir)
	zkVerifier := worker.NewZKVerifier(proofsystem.NewVerifier(registry), sm)

	loader := worker.NewStoreWitnessLoader(store)

	metricsReg := prometheus.NewRegistry()
	m := metrics.New(metricsReg, "worker")

	w, err := worker.New(transitionQueue, loader, zkProver, zkVerifier, &worker.Config{
		WorkerID:          id,
		PollInterval:      cfg.WorkerPollInterval,
		HeartbeatInterval: cfg.WorkerPollInterval / 2,
		Logger:            log.New(log.Writer(), "[Worker] ", log.LstdFlags),
		Metrics:           m,
	})
	if err != nil {
		log.Fatalf("❌ wire worker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	httpServer := &http.Server{Addr: cfg.HealthAddr, Handler: m.HTTPMiddleware(mux)}
	go func() {
		log.Printf("🚀 worker %s health endpoint on %s", id, cfg.HealthAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ http server: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler(metricsReg))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("📈 worker %s metrics listening on %s", id, cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ metrics server: %v", err)
		}
	}()
	log.Printf("✅ worker %s ready", id)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("⚠️  shutting down worker %s", id)
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ graceful shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ metrics server shutdown: %v", err)
	}
}
