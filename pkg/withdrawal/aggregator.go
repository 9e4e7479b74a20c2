// Copyright 2025 Certen Protocol
//
// Aggregator is the background job that pulls Requested withdrawals,
// chains them into a single aggregate proof, wraps it through two wrapper
// circuits, and relays the result on-chain, per spec.md §4.7 step 5.
// Grounded on pkg/batch/collector.go's pull-and-close-batch shape and
// pkg/batch/scheduler.go's mu/stopCh/doneCh/timer background-loop idiom
// (already reused a third time for pkg/blockbuilder.DepositCheckJob).

package withdrawal

import (
	"context"
	"log"
	"sync"
	"time"
)

// HashChainProcessor chains a batch of verified withdrawals' single proofs
// into one hash-chain aggregate proof.
type HashChainProcessor interface {
	ChainProofs(ctx context.Context, records []Record) ([]byte, error)
}

// WrapperProver wraps a chained aggregate proof through the two wrapper
// circuits spec.md §6.1 treats as opaque proof systems.
type WrapperProver interface {
	WrapProof(ctx context.Context, chained []byte) ([]byte, error)
}

// OnChainRelayer submits a wrapped aggregate proof on-chain. needClaim
// reports whether the relay requires recipients to separately invoke
// claim_withdrawals (spec.md §4.7 step 5).
type OnChainRelayer interface {
	RelayWithdrawals(ctx context.Context, wrapped []byte, records []Record) (needClaim bool, err error)
}

// Metrics records aggregator relay outcomes. A nil Metrics on
// AggregatorConfig is a valid no-op.
type Metrics interface {
	RecordWithdrawalRelay(outcome string)
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	MaxBatch int           // N in spec.md §4.7 step 5
	Interval time.Duration // poll interval between aggregation attempts
	Logger   *log.Logger
	Metrics  Metrics
}

// DefaultAggregatorConfig returns sane defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		MaxBatch: 32,
		Interval: 30 * time.Second,
		Logger:   log.New(log.Writer(), "[WithdrawalAggregator] ", log.LstdFlags),
	}
}

// Aggregator runs the background relay loop.
type Aggregator struct {
	repo    Repository
	chainer HashChainProcessor
	wrapper WrapperProver
	relayer OnChainRelayer
	cfg     AggregatorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewAggregator wires an Aggregator from its dependencies.
func NewAggregator(repo Repository, chainer HashChainProcessor, wrapper WrapperProver, relayer OnChainRelayer, cfg AggregatorConfig) *Aggregator {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultAggregatorConfig().MaxBatch
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultAggregatorConfig().Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = DefaultAggregatorConfig().Logger
	}
	return &Aggregator{repo: repo, chainer: chainer, wrapper: wrapper, relayer: relayer, cfg: cfg}
}

// Start begins the background relay loop. It is a no-op if already running.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.run(ctx)
}

// Stop halts the background relay loop and waits for it to exit. It is a
// no-op if not running.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	stopCh := a.stopCh
	doneCh := a.doneCh
	a.running = false
	a.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (a *Aggregator) run(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.RelayOnce(ctx); err != nil {
				a.cfg.Logger.Printf("relay cycle failed: %v", err)
			}
		}
	}
}

// RelayOnce pulls up to MaxBatch Requested withdrawals and attempts to
// chain, wrap, and relay them on-chain, applying the resulting status
// transitions. It returns nil when there is nothing to do.
func (a *Aggregator) RelayOnce(ctx context.Context) error {
	records, err := a.repo.ListRequested(ctx, a.cfg.MaxBatch)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	chained, err := a.chainer.ChainProofs(ctx, records)
	if err != nil {
		a.failAll(ctx, records, StatusRequested)
		a.recordRelay("chain_failed")
		return err
	}

	wrapped, err := a.wrapper.WrapProof(ctx, chained)
	if err != nil {
		a.failAll(ctx, records, StatusRequested)
		a.recordRelay("wrap_failed")
		return err
	}

	a.transitionAll(ctx, records, StatusRequested, StatusRelayed)

	needClaim, err := a.relayer.RelayWithdrawals(ctx, wrapped, records)
	if err != nil {
		a.failAll(ctx, records, StatusRelayed)
		a.recordRelay("relay_failed")
		return err
	}

	final := StatusSuccess
	if needClaim {
		final = StatusNeedClaim
	}
	a.transitionAll(ctx, records, StatusRelayed, final)
	a.recordRelay(string(final))
	return nil
}

func (a *Aggregator) recordRelay(outcome string) {
	if a.cfg.Metrics != nil {
		a.cfg.Metrics.RecordWithdrawalRelay(outcome)
	}
}

func (a *Aggregator) transitionAll(ctx context.Context, records []Record, from, to Status) {
	for _, rec := range records {
		if err := a.repo.UpdateStatus(ctx, rec.UUID, to); err != nil {
			a.cfg.Logger.Printf("transition %s %s -> %s failed: %v", rec.UUID, from, to, err)
		}
	}
}

func (a *Aggregator) failAll(ctx context.Context, records []Record, from Status) {
	a.transitionAll(ctx, records, from, StatusFailed)
}
