package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RestoPOS/app/metrics"
	"RestoPOS/app/models"

	"github.com/cenkalti/backoff"
)

// RemoteSource is the external relational source the sync bridge talks to
type RemoteSource interface {
	FetchOrders(ctx context.Context) ([]models.Order, error)
	FetchTables(ctx context.Context) ([]models.Table, error)
	PushOrders(ctx context.Context, orders []models.Order) error
}

// SyncRecorder keeps the sync status and history
type SyncRecorder interface {
	UpdateSyncStatus(status string, syncErr string, pendingOrders int) error
	LogSync(entityType, action string, count int, status, syncErr string) error
}

// SyncOptions tunes the sync worker
type SyncOptions struct {
	Interval   time.Duration
	SyncTables bool
	MaxRetry   time.Duration // per fetch or push; zero retries once
}

// SyncWorker pushes locally changed orders to the remote source and absorbs
// its snapshots on a fixed interval. Failures are logged and retried on the
// next tick; they never reach callers of the store.
type SyncWorker struct {
	store    *Store
	remote   RemoteSource
	recorder SyncRecorder
	logger   *LoggerService
	opts     SyncOptions

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewSyncWorker creates a sync worker. recorder may be nil.
func NewSyncWorker(store *Store, remote RemoteSource, recorder SyncRecorder, logger *LoggerService, opts SyncOptions) *SyncWorker {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &SyncWorker{
		store:    store,
		remote:   remote,
		recorder: recorder,
		logger:   logger,
		opts:     opts,
	}
}

// Start runs the sync loop until ctx is done or Stop is called
func (w *SyncWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return
	}
	w.isRunning = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})

	go w.run(ctx, w.stopChan, w.done)
	w.logInfo("Sync worker started", fmt.Sprintf("interval=%v", w.opts.Interval))
}

// run is the main sync loop
func (w *SyncWorker) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	// Initial sync
	w.performSync(ctx)

	for {
		select {
		case <-ticker.C:
			w.performSync(ctx)
		case <-stop:
			w.logInfo("Sync worker stopped")
			return
		case <-ctx.Done():
			w.logInfo("Sync worker stopped", ctx.Err().Error())
			return
		}
	}
}

// Stop stops the sync worker and waits for the running cycle to finish
func (w *SyncWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()

	<-done
}

// performSync runs one cycle and swallows its error after recording it
func (w *SyncWorker) performSync(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil && w.logger != nil {
			w.logger.LogPanic(r)
		}
	}()
	_ = w.SyncOnce(ctx)
}

// SyncOnce pushes pending orders, then absorbs the remote orders (and tables
// when enabled). Local orders not yet acknowledged survive the absorption.
func (w *SyncWorker) SyncOnce(ctx context.Context) error {
	startTime := time.Now()
	w.updateStatus("syncing", "")

	pushErr := w.pushOrders(ctx)
	if pushErr != nil {
		w.logError("Error pushing orders", pushErr)
	}

	pullErr := w.pullOrders(ctx)
	if pullErr != nil {
		w.logError("Error pulling orders", pullErr)
	}

	var tableErr error
	if w.opts.SyncTables && pullErr == nil {
		if tableErr = w.pullTables(ctx); tableErr != nil {
			w.logError("Error pulling tables", tableErr)
		}
	}

	err := errors.Join(pushErr, pullErr, tableErr)
	metrics.SyncDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		metrics.SyncCycles.WithLabelValues("failure").Inc()
		w.updateStatus("failed", err.Error())
		return err
	}

	metrics.SyncCycles.WithLabelValues("success").Inc()
	w.updateStatus("completed", "")
	w.logDebug("Synchronization completed", fmt.Sprintf("duration=%v", time.Since(startTime)))
	return nil
}

func (w *SyncWorker) pushOrders(ctx context.Context) error {
	orders, revisions := w.store.PendingOrders()
	if len(orders) == 0 {
		return nil
	}

	err := w.retry(ctx, "push orders", func() error {
		return w.remote.PushOrders(ctx, orders)
	})
	w.logSync("order", "push", len(orders), err)
	if err != nil {
		return err
	}
	return w.store.MarkPushed(ctx, revisions)
}

func (w *SyncWorker) pullOrders(ctx context.Context) error {
	var orders []models.Order
	err := w.retry(ctx, "fetch orders", func() error {
		var fetchErr error
		orders, fetchErr = w.remote.FetchOrders(ctx)
		return fetchErr
	})
	w.logSync("order", "pull", len(orders), err)
	if err != nil {
		return err
	}
	return w.store.AbsorbExternalSnapshot(ctx, orders)
}

func (w *SyncWorker) pullTables(ctx context.Context) error {
	var tables []models.Table
	err := w.retry(ctx, "fetch tables", func() error {
		var fetchErr error
		tables, fetchErr = w.remote.FetchTables(ctx)
		return fetchErr
	})
	w.logSync("table", "pull", len(tables), err)
	if err != nil {
		return err
	}
	// an empty remote listing never wipes the local floor plan
	if len(tables) == 0 {
		return nil
	}
	return w.store.AbsorbTableSnapshot(ctx, tables)
}

// retry runs op with exponential backoff bounded by MaxRetry and ctx
func (w *SyncWorker) retry(ctx context.Context, what string, op func() error) error {
	if w.opts.MaxRetry <= 0 {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = w.opts.MaxRetry

	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		w.logWarning("Retrying "+what, fmt.Sprintf("wait=%v error=%v", wait, err))
	})
}

func (w *SyncWorker) updateStatus(status, syncErr string) {
	if w.recorder == nil {
		return
	}
	pending, _ := w.store.PendingOrders()
	if err := w.recorder.UpdateSyncStatus(status, syncErr, len(pending)); err != nil {
		w.logError("Failed to update sync status", err)
	}
}

func (w *SyncWorker) logSync(entityType, action string, count int, err error) {
	if w.recorder == nil {
		return
	}
	status, message := "success", ""
	if err != nil {
		status, message = "failed", err.Error()
	}
	if logErr := w.recorder.LogSync(entityType, action, count, status, message); logErr != nil {
		w.logError("Failed to write sync log", logErr)
	}
}

func (w *SyncWorker) logInfo(message string, details ...string) {
	if w.logger != nil {
		w.logger.LogInfo(message, details...)
	}
}

func (w *SyncWorker) logDebug(message string, details ...string) {
	if w.logger != nil {
		w.logger.LogDebug(message, details...)
	}
}

func (w *SyncWorker) logWarning(message string, details ...string) {
	if w.logger != nil {
		w.logger.LogWarning(message, details...)
	}
}

func (w *SyncWorker) logError(message string, err error) {
	if w.logger != nil {
		w.logger.LogError(message, err)
	}
}
