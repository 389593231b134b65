package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/utils"
)

type ExpiryOutcome string

const (
	ExpiryDeclined      ExpiryOutcome = "declined"
	ExpiryNotExpired    ExpiryOutcome = "not-expired"
	ExpiryNotApplicable ExpiryOutcome = "not-applicable"
)

const sweepLockName = "receipt-sweep"

// Locker grants a lease so a single instance sweeps per tick.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, func(), error)
}

type SweepResult struct {
	OrderID uint          `json:"order_id"`
	Outcome ExpiryOutcome `json:"outcome,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type SweepReport struct {
	Declined   int           `json:"declined"`
	Failed     int           `json:"failed"`
	Skipped    bool          `json:"skipped"`
	Results    []SweepResult `json:"results"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// SweepMetrics keeps counters of the expiry sweeps since start.
type SweepMetrics struct {
	SweepsRun      int64      `json:"sweeps_run"`
	SweepsSkipped  int64      `json:"sweeps_skipped"`
	OrdersDeclined int64      `json:"orders_declined"`
	Failures       int64      `json:"failures"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastDurationMs int64      `json:"last_duration_ms"`
}

// ReceiptExpiryScanner auto-declines gcash orders whose proof deadline passed.
// The sweep keeps no state of its own, so it can run on a timer, from cron
// or from several instances at once.
type ReceiptExpiryScanner struct {
	orders   *OrderService
	locker   Locker
	interval time.Duration

	metrics SweepMetrics
	mutex   sync.Mutex

	started  bool
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewReceiptExpiryScanner(orders *OrderService, interval time.Duration) *ReceiptExpiryScanner {
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	return &ReceiptExpiryScanner{
		orders:   orders,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithLocker makes BulkSweep take a lease before scanning.
func (sc *ReceiptExpiryScanner) WithLocker(l Locker) *ReceiptExpiryScanner {
	sc.locker = l
	return sc
}

// CheckSingle evaluates one order and declines it when its receipt deadline elapsed.
func (sc *ReceiptExpiryScanner) CheckSingle(ctx context.Context, orderID uint) (ExpiryOutcome, error) {
	o, err := sc.orders.load(ctx, sc.orders.db, orderID)
	if err != nil {
		return "", err
	}
	return sc.orders.expireIfDue(ctx, o)
}

// BulkSweep declines every eligible order once. A failing order is reported
// in the result list and does not stop the rest.
func (sc *ReceiptExpiryScanner) BulkSweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{StartedAt: sc.orders.cfg.Now(), Results: []SweepResult{}}

	if sc.locker != nil {
		acquired, release, err := sc.locker.TryLock(ctx, sweepLockName, sc.interval)
		if err != nil {
			// a broken lock store must not stop deadlines from being enforced
			utils.ErrorLogger.Warnf("sweep lease unavailable, sweeping anyway: %v", err)
		} else if !acquired {
			report.Skipped = true
			report.FinishedAt = sc.orders.cfg.Now()
			sc.record(report)
			return report, nil
		}
		defer release()
	}

	var candidates []models.Order
	err := sc.orders.db.WithContext(ctx).Preload("Concession").
		Where("status = ? AND payment_method = ?", models.OrderStatusSubmitted, models.PaymentGCash).
		Where("receipt_submitted_at IS NULL AND receipt_deadline IS NOT NULL").
		Order("id asc").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		o := &candidates[i]
		if !sc.orders.expiryDue(o) {
			continue
		}
		outcome, err := sc.orders.expireIfDue(ctx, o)
		res := SweepResult{OrderID: o.ID, Outcome: outcome}
		if err != nil {
			res.Error = err.Error()
			report.Failed++
			utils.ErrorLogger.WithFields(logrus.Fields{"order_id": o.ID}).Errorf("receipt sweep failed: %v", err)
		} else if outcome == ExpiryDeclined {
			report.Declined++
		}
		report.Results = append(report.Results, res)
	}

	report.FinishedAt = sc.orders.cfg.Now()
	sc.record(report)
	if report.Declined > 0 || report.Failed > 0 {
		utils.InfoLogger.Printf("receipt sweep: %d declined, %d failed", report.Declined, report.Failed)
	}
	return report, nil
}

func (sc *ReceiptExpiryScanner) record(r *SweepReport) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if r.Skipped {
		sc.metrics.SweepsSkipped++
		return
	}
	sc.metrics.SweepsRun++
	sc.metrics.OrdersDeclined += int64(r.Declined)
	sc.metrics.Failures += int64(r.Failed)
	at := r.StartedAt
	sc.metrics.LastRunAt = &at
	sc.metrics.LastDurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
}

func (sc *ReceiptExpiryScanner) Metrics() SweepMetrics {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.metrics
}

// Start sweeps once right away and then on every tick until Stop or ctx ends.
func (sc *ReceiptExpiryScanner) Start(ctx context.Context) {
	sc.mutex.Lock()
	if sc.started {
		sc.mutex.Unlock()
		return
	}
	sc.started = true
	sc.mutex.Unlock()

	go func() {
		defer close(sc.done)
		ticker := time.NewTicker(sc.interval)
		defer ticker.Stop()

		sc.runOnce(ctx)
		for {
			select {
			case <-ticker.C:
				sc.runOnce(ctx)
			case <-sc.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	utils.InfoLogger.Printf("Receipt expiry scanner started (every %s)", sc.interval)
}

func (sc *ReceiptExpiryScanner) runOnce(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, sc.interval)
	defer cancel()
	if _, err := sc.BulkSweep(sctx); err != nil {
		sc.mutex.Lock()
		sc.metrics.Failures++
		sc.mutex.Unlock()
		utils.ErrorLogger.Printf("receipt sweep aborted: %v", err)
	}
}

// Stop ends the loop and waits for a running sweep to finish. Safe to call twice.
func (sc *ReceiptExpiryScanner) Stop() {
	sc.mutex.Lock()
	started := sc.started
	sc.mutex.Unlock()

	sc.stopOnce.Do(func() { close(sc.stopChan) })
	if started {
		<-sc.done
	}
}
