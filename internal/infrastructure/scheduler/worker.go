package scheduler

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

const (
	kindReconcile = "reconcile"
	kindSweep     = "sweep"
)

type Options struct {
	Enabled            bool
	Networks           []string
	ReconcileInterval  time.Duration
	SweepInterval      time.Duration
	ReconcileLookback  time.Duration
	SweepWindowStart   time.Duration
	SweepWindowEnd     time.Duration
	NetworkConcurrency int
	LockTTL            time.Duration
	WorkerID           string
}

// Worker runs reconcile and sweep cycles for every network on independent tickers.
// A failing network is logged and retried on the next tick; it never stops the others.
type Worker struct {
	options   Options
	reconcile portsin.ReconcileInvoicesUseCase
	sweep     portsin.SweepInvoicesUseCase
	locker    CycleLocker
	metrics   *Metrics
	logger    *log.Logger
	now       func() time.Time
}

func NewWorker(
	options Options,
	reconcile portsin.ReconcileInvoicesUseCase,
	sweep portsin.SweepInvoicesUseCase,
	locker CycleLocker,
	metrics *Metrics,
	logger *log.Logger,
) *Worker {
	if options.NetworkConcurrency <= 0 {
		options.NetworkConcurrency = 1
	}
	return &Worker{
		options:   options,
		reconcile: reconcile,
		sweep:     sweep,
		locker:    locker,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *Worker) Enabled() bool {
	return w != nil && w.options.Enabled
}

func (w *Worker) Start(ctx context.Context) {
	if !w.Enabled() || len(w.options.Networks) == 0 {
		return
	}

	w.logf(
		"invoice scheduler started worker_id=%s networks=%v reconcile_interval=%s sweep_interval=%s concurrency=%d locking=%t",
		w.options.WorkerID,
		w.options.Networks,
		w.options.ReconcileInterval,
		w.options.SweepInterval,
		w.options.NetworkConcurrency,
		w.locker != nil,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if w.reconcile != nil && w.options.ReconcileInterval > 0 {
		group.Go(func() error {
			w.loop(groupCtx, w.options.ReconcileInterval, w.RunReconcileCycle)
			return nil
		})
	}
	if w.sweep != nil && w.options.SweepInterval > 0 {
		group.Go(func() error {
			w.loop(groupCtx, w.options.SweepInterval, w.RunSweepCycle)
			return nil
		})
	}
	_ = group.Wait()

	w.logf("invoice scheduler stopped worker_id=%s", w.options.WorkerID)
}

func (w *Worker) loop(ctx context.Context, interval time.Duration, cycle func(context.Context)) {
	cycle(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle(ctx)
		}
	}
}

// RunReconcileCycle checks and updates payments over [now-lookback, now) on every network.
func (w *Worker) RunReconcileCycle(ctx context.Context) {
	now := w.now()
	command := dto.ReconcileInvoicesCommand{
		From: now.Add(-w.options.ReconcileLookback),
		To:   now,
	}
	w.fanOut(ctx, kindReconcile, func(ctx context.Context, network string) *apperrors.AppError {
		command := command
		command.Network = network
		output, appErr := w.reconcile.CheckAndUpdatePayments(ctx, command)
		if appErr != nil {
			return appErr
		}
		w.metrics.addInvoices(network, "paid", output.Paid)
		w.metrics.addInvoices(network, "timed_out", output.TimedOut)
		w.logf(
			"invoice reconcile cycle completed network=%s scanned=%d with_balance=%d paid=%d timed_out=%d insufficient=%d unchanged=%d",
			network,
			output.Scanned,
			output.WithBalance,
			output.Paid,
			output.TimedOut,
			output.Insufficient,
			output.Unchanged,
		)
		return nil
	})
}

// RunSweepCycle sweeps [now-windowStart, now-windowEnd) on every network.
func (w *Worker) RunSweepCycle(ctx context.Context) {
	now := w.now()
	command := dto.SweepInvoicesCommand{
		From: now.Add(-w.options.SweepWindowStart),
		To:   now.Add(-w.options.SweepWindowEnd),
	}
	w.fanOut(ctx, kindSweep, func(ctx context.Context, network string) *apperrors.AppError {
		command := command
		command.Network = network
		output, appErr := w.sweep.Sweep(ctx, command)
		if appErr != nil {
			return appErr
		}
		w.metrics.addInvoices(network, "swept", output.Swept)
		w.logf(
			"invoice sweep cycle completed network=%s resumed=%d candidates=%d deployed=%d deploy_tx_id=%s sweep_tx_id=%s swept=%d",
			network,
			output.Resumed,
			output.Candidates,
			output.Deployed,
			output.DeployTxID,
			output.SweepTxID,
			output.Swept,
		)
		return nil
	})
}

func (w *Worker) fanOut(
	ctx context.Context,
	kind string,
	run func(ctx context.Context, network string) *apperrors.AppError,
) {
	group := errgroup.Group{}
	group.SetLimit(w.options.NetworkConcurrency)
	for _, network := range w.options.Networks {
		group.Go(func() error {
			w.runNetwork(ctx, kind, network, run)
			return nil
		})
	}
	_ = group.Wait()
}

func (w *Worker) runNetwork(
	ctx context.Context,
	kind string,
	network string,
	run func(ctx context.Context, network string) *apperrors.AppError,
) {
	if ctx.Err() != nil {
		return
	}

	if w.locker != nil {
		release, acquired, err := w.locker.Acquire(ctx, lockKey(kind, network), w.options.LockTTL)
		if err != nil {
			w.metrics.lockFailed()
			w.logf("invoice %s cycle lock failed network=%s error=%v", kind, network, err)
			return
		}
		if !acquired {
			w.metrics.observeCycle(kind, network, "skipped", 0)
			w.logf("invoice %s cycle skipped network=%s reason=lock_held", kind, network)
			return
		}
		defer release()
	}

	startedAt := time.Now()
	appErr := run(ctx, network)
	elapsed := time.Since(startedAt)
	if appErr != nil {
		w.metrics.observeCycle(kind, network, "failed", elapsed)
		w.logf(
			"invoice %s cycle failed network=%s type=%s code=%s message=%s retryable=%t details=%v latency_ms=%d",
			kind,
			network,
			appErr.Type,
			appErr.Code,
			appErr.Message,
			appErr.Retryable(),
			appErr.Details,
			elapsed.Milliseconds(),
		)
		return
	}
	w.metrics.observeCycle(kind, network, "completed", elapsed)
}

func (w *Worker) logf(format string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}
