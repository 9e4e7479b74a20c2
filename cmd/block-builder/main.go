// Copyright 2025 Certen Protocol
//
// Block Builder service entrypoint: wires the registration and
// non-registration Builders, their HTTP surface, the deposit-check job,
// and posts finished blocks to the rollup contract.
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
	"github.com/redis/go-redis/v9"

	"github.com/zkpayments/rollup-core/pkg/blockbuilder"
	"github.com/zkpayments/rollup-core/pkg/config"
	"github.com/zkpayments/rollup-core/pkg/contracts"
	"github.com/zkpayments/rollup-core/pkg/database"
	"github.com/zkpayments/rollup-core/pkg/ethereum"
	"github.com/zkpayments/rollup-core/pkg/metrics"
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

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()

	metricsReg := prometheus.NewRegistry()
	m := metrics.New(metricsReg, "block_builder")

	keys := blockbuilder.NewKeyStore()

	builders := make(map[blockbuilder.Kind]*blockbuilder.Builder)
	for kind, tag := range map[blockbuilder.Kind]uint8{
		blockbuilder.KindRegistration:    0,
		blockbuilder.KindNonRegistration: 1,
	} {
		sm := blockbuilder.NewKindStateMachine(kind)
		queue := blockbuilder.NewRequestQueue(kind, blockbuilder.DefaultConfig().MaxTxsPerBlock*4)
		nonces := blockbuilder.NewRedisNonceManager(rdb, "certen:nonce:"+string(kind), rollup)
		poster := blockbuilder.NewPoster(kind, sm, nonces, &contracts.BlockBuilderPoster{
			Rollup:          rollup,
			RegistrationTag: tag,
			NonRegTag:       tag,
		})
		builderCfg := blockbuilder.DefaultConfig()
		builderCfg.Metrics = m
		builders[kind] = blockbuilder.NewBuilder(kind, builderCfg, sm, queue, poster, 32, keys.Lookup, 1)
	}

	handlers := blockbuilder.NewHandlers(builders, nil, nil, keys, log.New(log.Writer(), "[BlockBuilder] ", log.LstdFlags), cfg.Debug)

	mux := http.NewServeMux()
	mux.HandleFunc("/quote_fee", handlers.HandleQuoteFee)
	mux.HandleFunc("/tx_request", handlers.HandleTxRequest)
	mux.HandleFunc("/query_proposal", handlers.HandleQueryProposal)
	mux.HandleFunc("/post_signature", handlers.HandlePostSignature)
	mux.HandleFunc("/health", handlers.HandleHealthCheck)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for kind, builder := range builders {
		go runBuilderLoop(ctx, kind, builder)
	}

	depositJob := blockbuilder.NewDepositCheckJob(rollup, builders[blockbuilder.KindNonRegistration], cfg.DepositCheckEvery)
	depositJob.Start(ctx)
	defer depositJob.Stop()

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: m.HTTPMiddleware(mux)}
	go func() {
		log.Printf("🚀 block builder listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ http server: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler(metricsReg))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("📈 block builder metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ metrics server: %v", err)
		}
	}()
	log.Printf("✅ block builder ready (network=%s)", cfg.NetworkName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("⚠️  shutting down block builder")
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

// runBuilderLoop drives one kind's AcceptingTxs->Post cycle continuously.
// A failed cycle already backs off internally (Builder.RunCycle), so the
// loop simply restarts immediately on either outcome.
func runBuilderLoop(ctx context.Context, kind blockbuilder.Kind, builder *blockbuilder.Builder) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := builder.RunCycle(ctx); err != nil && ctx.Err() == nil {
			log.Printf("⚠️  builder %s: cycle error: %v", kind, err)
		}
	}
}
