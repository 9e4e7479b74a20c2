// Copyright 2025 Certen Protocol
//
// Store Vault service entrypoint: serves the encrypted, access-controlled
// object/log storage surface the Client SDK depends on for key backup,
// transfer history and payment memos.
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

	"github.com/zkpayments/rollup-core/pkg/config"
	"github.com/zkpayments/rollup-core/pkg/database"
	"github.com/zkpayments/rollup-core/pkg/metrics"
	"github.com/zkpayments/rollup-core/pkg/storevault"
)

func main() {
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

	dbClient, err := database.NewClient(cfg, database.WithLogger(log.New(log.Writer(), "[DB] ", log.LstdFlags)))
	if err != nil {
		log.Fatalf("❌ connect database: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.MigrateUp(context.Background()); err != nil {
		log.Printf("⚠️  migrations: %v", err)
	}

	metricsReg := prometheus.NewRegistry()
	m := metrics.New(metricsReg, "store_vault")

	store := storevault.NewPostgresStore(dbClient)
	handlers := storevault.NewHandlers(store, log.New(log.Writer(), "[StoreVault] ", log.LstdFlags), cfg.Debug)

	mux := http.NewServeMux()
	mux.HandleFunc("/save_user_data", handlers.HandleSaveUserData)
	mux.HandleFunc("/get_user_data", handlers.HandleGetUserData)
	mux.HandleFunc("/save_data_batch", handlers.HandleSaveDataBatch)
	mux.HandleFunc("/get_data_sequence", handlers.HandleGetDataSequence)
	mux.HandleFunc("/health", handlers.HandleHealthCheck)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: m.HTTPMiddleware(mux)}
	go func() {
		log.Printf("🚀 store vault listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ http server: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler(metricsReg))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("📈 store vault metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ metrics server: %v", err)
		}
	}()
	log.Printf("✅ store vault ready (network=%s)", cfg.NetworkName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("⚠️  shutting down store vault")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ graceful shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ metrics server shutdown: %v", err)
	}
}
