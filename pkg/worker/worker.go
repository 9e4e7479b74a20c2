// Copyright 2025 Certen Protocol
//
// Worker - a single thread performing assign -> prove -> complete, per
// spec.md §4.4. Workers are pure compute and stateless between tasks;
// crashing is always safe because the coordinator (pkg/validityprover) and
// the queue (pkg/queue) own all durable state. Loop shape grounded on
// pkg/batch/processor.go's ProcessPendingBatches scheduler-tick idiom,
// generalized from a batch-anchoring poll to a generic assign/prove/complete
// cycle.

package worker

import (
	"context"
	"fmt"
	"log"
	"time"
)

// TaskKind distinguishes which of the worker protocol's prove operations a
// task requires.
type TaskKind string

const (
	KindTransition       TaskKind = "prove_transition"
	KindSingleWithdrawal TaskKind = "prove_single_withdrawal"
	KindSingleClaim      TaskKind = "prove_single_claim"
	KindChainProof       TaskKind = "chain_withdrawal_or_claim_proof"
	KindWrapProof        TaskKind = "wrap_proof"
)

// Task is one unit of work assigned to a worker.
type Task struct {
	Kind        TaskKind
	BlockNumber uint64 // meaningful for KindTransition; zero otherwise
	Payload     []byte // opaque witness/proof bytes the Prover needs
}

// Queue is the subset of pkg/queue's TransitionQueue a worker needs,
// narrowed to an interface so this package does not import redis directly.
type Queue interface {
	Assign(ctx context.Context, workerID string) (blockNumber uint64, ok bool, err error)
	Heartbeat(ctx context.Context, workerID string, blockNumber uint64) error
	Complete(ctx context.Context, workerID string, blockNumber uint64) error
	RequeueFailed(ctx context.Context, blockNumber uint64) error
}

// WitnessLoader fetches the inputs a prover needs for a given block:
// witness(b) and proof(b-1), per spec.md §4.3's worker protocol.
type WitnessLoader interface {
	LoadWitness(ctx context.Context, blockNumber uint64) ([]byte, error)
	LoadPreviousProof(ctx context.Context, blockNumber uint64) ([]byte, error)
}

// Prover produces a transition proof from a witness and the predecessor
// proof. Kept as an interface so this package stays agnostic to which
// circuit backend (gnark groth16/plonk) performs the actual proving.
type Prover interface {
	ProveTransition(ctx context.Context, witness, prevProof []byte) (proof []byte, err error)
}

// Verifier checks a produced proof before the coordinator accepts it, per
// spec.md §4.3 ("the coordinator verifies against the block-circuit
// verifier key before persisting").
type Verifier interface {
	VerifyTransition(ctx context.Context, blockNumber uint64, proof []byte) (bool, error)
	PersistTransition(ctx context.Context, blockNumber uint64, proof []byte) error
}

// Metrics records per-task outcomes and durations. A nil Metrics on
// Config is a valid no-op.
type Metrics interface {
	RecordTaskProcessed(kind, outcome string, duration time.Duration)
}

// Config holds Worker tuning knobs.
type Config struct {
	WorkerID          string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Logger            *log.Logger
	Metrics           Metrics
}

// DefaultConfig returns sensible polling defaults.
func DefaultConfig(workerID string) *Config {
	return &Config{
		WorkerID:          workerID,
		PollInterval:      2 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		Logger:            log.New(log.Writer(), "[Worker] ", log.LstdFlags),
	}
}

// Worker runs the assign/prove/complete loop for transition proofs. Workers
// for the other task kinds (single-withdrawal, single-claim, chain, wrap)
// follow the identical shape against pkg/withdrawal's analogous interfaces
// and are not duplicated here.
type Worker struct {
	id       string
	queue    Queue
	loader   WitnessLoader
	prover   Prover
	verifier Verifier
	logger   *log.Logger
	metrics  Metrics

	pollInterval      time.Duration
	heartbeatInterval time.Duration
}

// New wires a Worker from its dependencies.
func New(queue Queue, loader WitnessLoader, prover Prover, verifier Verifier, cfg *Config) (*Worker, error) {
	if queue == nil || loader == nil || prover == nil || verifier == nil {
		return nil, fmt.Errorf("worker: queue, loader, prover, and verifier are all required")
	}
	if cfg == nil || cfg.WorkerID == "" {
		return nil, fmt.Errorf("worker: a non-empty WorkerID is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Worker] ", log.LstdFlags)
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	heartbeatInterval := cfg.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = 10 * time.Second
	}
	return &Worker{
		id:                cfg.WorkerID,
		queue:             queue,
		loader:            loader,
		prover:            prover,
		verifier:          verifier,
		logger:            logger,
		metrics:           cfg.Metrics,
		pollInterval:      pollInterval,
		heartbeatInterval: heartbeatInterval,
	}, nil
}

// Run polls for work until ctx is cancelled, processing one task at a time.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	blockNumber, ok, err := w.queue.Assign(ctx, w.id)
	if err != nil {
		w.logger.Printf("assign failed: %v", err)
		return
	}
	if !ok {
		return // nothing pending
	}

	start := time.Now()
	err = w.processTransition(ctx, blockNumber)
	if w.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		w.metrics.RecordTaskProcessed(string(KindTransition), outcome, time.Since(start))
	}
	if err != nil {
		w.logger.Printf("block %d: %v", blockNumber, err)
		if err := w.queue.RequeueFailed(ctx, blockNumber); err != nil {
			w.logger.Printf("block %d: requeue after failure: %v", blockNumber, err)
		}
	}
}

// processTransition runs one full assign->prove->complete cycle for a
// single block, with a background heartbeat extending the lease while the
// (potentially slow) prove step runs.
func (w *Worker) processTransition(ctx context.Context, blockNumber uint64) error {
	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go w.heartbeatLoop(heartbeatCtx, blockNumber)

	witness, err := w.loader.LoadWitness(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("load witness: %w", err)
	}
	prevProof, err := w.loader.LoadPreviousProof(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("load previous proof: %w", err)
	}

	proof, err := w.prover.ProveTransition(ctx, witness, prevProof)
	if err != nil {
		return fmt.Errorf("prove transition: %w", err)
	}

	ok, err := w.verifier.VerifyTransition(ctx, blockNumber, proof)
	if err != nil {
		return fmt.Errorf("verify transition: %w", err)
	}
	if !ok {
		return fmt.Errorf("produced proof failed verification")
	}
	if err := w.verifier.PersistTransition(ctx, blockNumber, proof); err != nil {
		return fmt.Errorf("persist transition proof: %w", err)
	}

	if err := w.queue.Complete(ctx, w.id, blockNumber); err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

func (w *Worker) heartbeatLoop(ctx context.Context, blockNumber uint64) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.Heartbeat(ctx, w.id, blockNumber); err != nil {
				w.logger.Printf("block %d: heartbeat failed: %v", blockNumber, err)
				return
			}
		}
	}
}
