// Copyright 2025 Certen Protocol
//
// Validity Prover service entrypoint: tails L1/L2 events via pkg/observer,
// builds block witnesses via validityprover.Coordinator, and serves the
// read-query surface the Client SDK and Withdrawal Server depend on.
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

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zkpayments/rollup-core/pkg/config"
	"github.com/zkpayments/rollup-core/pkg/contracts"
	"github.com/zkpayments/rollup-core/pkg/database"
	"github.com/zkpayments/rollup-core/pkg/ethereum"
	"github.com/zkpayments/rollup-core/pkg/merkle"
	"github.com/zkpayments/rollup-core/pkg/metrics"
	"github.com/zkpayments/rollup-core/pkg/observer"
	"github.com/zkpayments/rollup-core/pkg/poseidon"
	"github.com/zkpayments/rollup-core/pkg/queue"
	"github.com/zkpayments/rollup-core/pkg/validityprover"

	"github.com/redis/go-redis/v9"
)

const (
	accountTreeDepth = 32
	blockTreeDepth   = 32
	depositTreeDepth = 32
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

	ethClient, err := ethereum.NewClient(cfg.EthereumURL, cfg.EthChainID)
	if err != nil {
		log.Fatalf("❌ connect to ethereum: %v", err)
	}
	rollup, err := contracts.NewRollupContract(ethClient, ethcommon.HexToAddress(cfg.RollupContractAddress), cfg.EthPrivateKey, 3_000_000)
	if err != nil {
		log.Fatalf("❌ wire rollup contract: %v", err)
	}

	leafStore := merkle.NewPostgresLeafHistoryStore(dbClient.DB())
	accountTree, err := merkle.NewIndexedTree("account_tree", accountTreeDepth, poseidon.Hash, leafStore)
	if err != nil {
		log.Fatalf("❌ open account tree: %v", err)
	}
	blockTree, err := merkle.NewIncrementalTree("block_tree", blockTreeDepth, poseidon.Hash, make([]byte, 32), leafStore)
	if err != nil {
		log.Fatalf("❌ open block tree: %v", err)
	}
	depositTree, err := merkle.NewIncrementalTree("deposit_tree", depositTreeDepth, poseidon.Hash, make([]byte, 32), leafStore)
	if err != nil {
		log.Fatalf("❌ open deposit tree: %v", err)
	}

	metricsReg := prometheus.NewRegistry()
	m := metrics.New(metricsReg, "validity_prover")

	store := validityprover.NewPostgresStore(dbClient.DB())
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	transitionQueue := queue.NewTransitionQueue(rdb, 5*time.Minute)

	coordinator, err := validityprover.NewCoordinator(store, &validityprover.Config{
		AccountTree: accountTree,
		BlockTree:   blockTree,
		DepositTree: depositTree,
		Enqueuer:    transitionQueue,
		Logger:      log.New(log.Writer(), "[ValidityProver] ", log.LstdFlags),
	})
	if err != nil {
		log.Fatalf("❌ wire coordinator: %v", err)
	}

	elector := validityprover.NewLeaderElector(rdb, "certen:validity-prover:leader", 15*time.Second)

	checkpointStore := validityprover.NewWitnessingCheckpointStore(
		observer.NewPostgresCheckpointStore(dbClient.DB()),
		coordinator,
		nil,
		m,
	)
	observerCfg := observer.DefaultConfig()
	observerCfg.Metrics = m
	obs, err := observer.New(checkpointStore, map[observer.EventType]observer.EventFetcher{
		observer.EventDeposited:          &contracts.DepositedFetcher{Rollup: rollup},
		observer.EventDepositLeafInserted: &contracts.DepositLeafInsertedFetcher{Rollup: rollup},
		observer.EventBlockPosted:        &contracts.BlockPostedFetcher{Rollup: rollup},
	}, observerCfg)
	if err != nil {
		log.Fatalf("❌ wire observer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runAsLeader(ctx, elector, obs)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthy, _ := obs.Healthy()
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: m.HTTPMiddleware(mux)}
	go func() {
		log.Printf("🚀 validity prover listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ http server: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler(metricsReg))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("📈 validity prover metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ metrics server: %v", err)
		}
	}()
	log.Printf("✅ validity prover ready (network=%s)", cfg.NetworkName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("⚠️  shutting down validity prover")
	cancel()
	_ = obs.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ graceful shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ metrics server shutdown: %v", err)
	}
}

// runAsLeader only runs the observer while this instance holds the
// distributed leader lock, so only one process ever builds block witnesses
// at a time; followers park here answering nothing until they win an
// election.
func runAsLeader(ctx context.Context, elector *validityprover.LeaderElector, obs *observer.Observer) {
	elector.Run(ctx,
		func() {
			log.Println("✅ acquired validity prover leadership")
			if err := obs.Start(ctx); err != nil {
				log.Printf("❌ start observer: %v", err)
			}
		},
		func() {
			log.Println("⚠️  lost validity prover leadership")
			_ = obs.Stop()
		},
	)
}
