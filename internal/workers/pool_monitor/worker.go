package pool_monitor

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
)

// alertCooldown suppresses repeat alerts for a still-critical pool
const alertCooldown = 15 * time.Minute

// PoolChecker is the slice of the pool manager the worker needs
type PoolChecker interface {
	CheckThresholds(ctx context.Context, currencies ...entities.Currency) ([]entities.ThresholdStatus, error)
}

// AlertSender delivers low-pool alerts
type AlertSender interface {
	NotifyLowPool(ctx context.Context, status entities.ThresholdStatus) error
}

// Status is a snapshot of the worker's state
type Status struct {
	Running       bool      `json:"running"`
	LastRun       time.Time `json:"last_run"`
	CriticalPools int       `json:"critical_pools"`
}

// Worker periodically polls pool thresholds and alerts on critical pools.
// It is owned by the composition root and carries no package-level state.
type Worker struct {
	pool     PoolChecker
	notifier AlertSender
	logger   *zap.Logger
	spec     string
	cron     *cron.Cron

	mu            sync.Mutex
	running       bool
	lastRun       time.Time
	criticalPools int
	lastAlerted   map[entities.Currency]time.Time
}

// NewWorker creates a pool monitor polling on the given cron spec
func NewWorker(pool PoolChecker, notifier AlertSender, spec string, logger *zap.Logger) *Worker {
	if spec == "" {
		spec = "@every 1m"
	}
	return &Worker{
		pool:        pool,
		notifier:    notifier,
		logger:      logger,
		spec:        spec,
		lastAlerted: make(map[entities.Currency]time.Time),
	}
}

// Start schedules the threshold poll and runs one check immediately
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.spec, w.runCheck); err != nil {
		w.mu.Unlock()
		return err
	}
	w.running = true
	w.mu.Unlock()

	w.cron.Start()
	w.logger.Info("Pool monitor started", zap.String("schedule", w.spec))

	go w.runCheck()
	return nil
}

// Stop halts the schedule and waits for an in-flight check to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	c := w.cron
	w.mu.Unlock()

	<-c.Stop().Done()
	w.logger.Info("Pool monitor stopped")
}

// Status reports the worker's current state
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Running:       w.running,
		LastRun:       w.lastRun,
		CriticalPools: w.criticalPools,
	}
}

func (w *Worker) runCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statuses, err := w.pool.CheckThresholds(ctx)
	if err != nil {
		w.logger.Error("Pool threshold check failed", zap.Error(err))
		return
	}

	critical := 0
	now := time.Now()
	for _, status := range statuses {
		if !status.IsCritical {
			continue
		}
		critical++

		w.logger.Warn("Wallet pool below threshold",
			zap.String("currency", string(status.Currency)),
			zap.Int("available", status.Available),
			zap.Int("threshold", status.Threshold))

		w.mu.Lock()
		last, alerted := w.lastAlerted[status.Currency]
		shouldAlert := !alerted || now.Sub(last) >= alertCooldown
		if shouldAlert {
			w.lastAlerted[status.Currency] = now
		}
		w.mu.Unlock()

		if shouldAlert && w.notifier != nil {
			if err := w.notifier.NotifyLowPool(ctx, status); err != nil {
				w.logger.Error("Low-pool alert delivery failed",
					zap.Error(err),
					zap.String("currency", string(status.Currency)))
			}
		}
	}

	w.mu.Lock()
	w.lastRun = now
	w.criticalPools = critical
	w.mu.Unlock()
}
