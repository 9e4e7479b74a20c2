// Copyright 2025 Certen Protocol
//
// Withdrawal Server entrypoint: verifies single-withdrawal proofs,
// validates fees against a sender's own Store Vault transfer history,
// persists requests, and runs the background aggregator that chains,
// wraps and relays batches on-chain.
package main

import (
	"context"
	"flag"
	"log"
	"math/big"
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
	"github.com/zkpayments/rollup-core/pkg/metrics"
	"github.com/zkpayments/rollup-core/pkg/proofsystem"
	"github.com/zkpayments/rollup-core/pkg/storevault"
	"github.com/zkpayments/rollup-core/pkg/withdrawal"
)

func main() {
	withdrawalContractAddr := flag.String("withdrawal-contract", os.Getenv("WITHDRAWAL_CONTRACT_ADDRESS"), "withdrawal contract address")
	wrapperURL := flag.String("wrapper-url", os.Getenv("WRAPPER_SERVICE_URL"), "base URL of the wrapper-proof service")
	feeBeneficiary := flag.String("fee-beneficiary", os.Getenv("FEE_BENEFICIARY"), "pubkey that receives withdrawal/claim fees")
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
	withdrawalContract, err := contracts.NewWithdrawalContract(ethClient, ethcommon.HexToAddress(*withdrawalContractAddr), cfg.EthPrivateKey, 3_000_000)
	if err != nil {
		log.Fatalf("❌ wire withdrawal contract: %v", err)
	}

	metricsReg := prometheus.NewRegistry()
	m := metrics.New(metricsReg, "withdrawal_server")

	registry := proofsystem.NewRegistry(cfg.VerifierKeysDir)
	verifier := proofsystem.NewVerifier(registry)

	repo := withdrawal.NewPostgresRepository(dbClient)

	storeVault := storevault.NewPostgresStore(dbClient)
	resolver := withdrawal.NewStoreVaultTransferResolver(storeVault)
	fees := withdrawal.NewStaticFeeSchedule(map[uint32]*big.Int{}, big.NewInt(int64(cfg.QuotedFee)))

	server := withdrawal.NewServer(repo, verifier, resolver, fees, withdrawal.Config{
		FeeBeneficiary: *feeBeneficiary,
	})
	handlers := withdrawal.NewHandlers(server, fees, log.New(log.Writer(), "[Withdrawal] ", log.LstdFlags), cfg.Debug)

	aggregatorCfg := withdrawal.DefaultAggregatorConfig()
	aggregatorCfg.Metrics = m
	aggregator := withdrawal.NewAggregator(repo, withdrawal.Sha256HashChainer{}, withdrawal.NewWrapperClient(*wrapperURL, 30*time.Second), withdrawalContract, aggregatorCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	aggregator.Start(ctx)
	defer aggregator.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/request_withdrawal", handlers.HandleRequestWithdrawal)
	mux.HandleFunc("/get_withdrawal_info", handlers.HandleGetWithdrawalInfo)
	mux.HandleFunc("/withdrawal_fee", handlers.HandleWithdrawalFee)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: m.HTTPMiddleware(mux)}
	go func() {
		log.Printf("🚀 withdrawal server listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ http server: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler(metricsReg))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("📈 withdrawal server metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ metrics server: %v", err)
		}
	}()
	log.Printf("✅ withdrawal server ready (network=%s)", cfg.NetworkName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("⚠️  shutting down withdrawal server")
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
