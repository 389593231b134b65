package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/campus-food/models"
)

type stubLocker struct {
	acquired bool
	err      error
	calls    int
	released int
}

func (l *stubLocker) TryLock(_ context.Context, name string, _ time.Duration) (bool, func(), error) {
	l.calls++
	if l.err != nil || !l.acquired {
		return false, func() {}, l.err
	}
	return true, func() { l.released++ }, nil
}

func TestBulkSweepDeclinesOverdueOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overdue := f.submitted(t, models.PaymentGCash)
	withProof := f.submitted(t, models.PaymentGCash)
	_, err := f.orders.UploadProof(ctx, testCustomerID, withProof.ID, "/orders/1/receipt/ok.png")
	require.NoError(t, err)
	cash := f.submitted(t, models.PaymentCash)

	f.clock.Advance(10 * time.Minute)
	fresh := f.submitted(t, models.PaymentGCash)
	f.clock.Advance(25 * time.Minute)

	report, err := f.scanner.BulkSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Declined)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Results, 1)
	assert.Equal(t, overdue.ID, report.Results[0].OrderID)
	assert.Equal(t, ExpiryDeclined, report.Results[0].Outcome)

	got := f.reload(t, overdue.ID)
	assert.Equal(t, models.OrderStatusDeclined, got.Status)
	assert.Equal(t, models.DeclineReceiptTimeout, mustReason(t, got).Code)
	assert.Nil(t, got.ReceiptDeadline)
	for _, id := range []uint{withProof.ID, cash.ID, fresh.ID} {
		assert.Equal(t, models.OrderStatusSubmitted, f.reload(t, id).Status)
	}

	again, err := f.scanner.BulkSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Declined)
	assert.Equal(t, 1, f.sink.statusUpdates(overdue.ID, models.OrderStatusDeclined))

	m := f.scanner.Metrics()
	assert.Equal(t, int64(2), m.SweepsRun)
	assert.Equal(t, int64(1), m.OrdersDeclined)
	require.NotNil(t, m.LastRunAt)
}

func TestDeadlineIsExclusive(t *testing.T) {
	f := newFixture(t)
	o := f.submitted(t, models.PaymentGCash)
	f.clock.Advance(30 * time.Minute)

	outcome, err := f.scanner.CheckSingle(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, ExpiryNotExpired, outcome)

	f.clock.Advance(time.Second)
	outcome, err = f.scanner.CheckSingle(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, ExpiryDeclined, outcome)

	outcome, err = f.scanner.CheckSingle(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, ExpiryNotApplicable, outcome)
}

func TestCheckSingleCash(t *testing.T) {
	f := newFixture(t)
	o := f.submitted(t, models.PaymentCash)
	f.clock.Advance(48 * time.Hour)

	outcome, err := f.scanner.CheckSingle(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, ExpiryNotApplicable, outcome)

	_, err = f.scanner.CheckSingle(context.Background(), 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentDeclineAndSweep(t *testing.T) {
	f := newFixture(t)
	o := f.submitted(t, models.PaymentGCash)
	f.clock.Advance(time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.orders.Decline(context.Background(), testConcessionaireID, o.ID, models.Known(models.DeclineTooBusy))
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := f.scanner.BulkSweep(context.Background())
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, models.OrderStatusDeclined, f.reload(t, o.ID).Status)
	assert.Equal(t, 1, f.sink.statusUpdates(o.ID, models.OrderStatusDeclined))
}

func TestSweepSkippedWhenLeaseHeld(t *testing.T) {
	f := newFixture(t)
	o := f.submitted(t, models.PaymentGCash)
	f.clock.Advance(time.Hour)

	locker := &stubLocker{acquired: false}
	f.scanner.WithLocker(locker)

	report, err := f.scanner.BulkSweep(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, models.OrderStatusSubmitted, f.reload(t, o.ID).Status)
	assert.Equal(t, int64(1), f.scanner.Metrics().SweepsSkipped)

	locker.acquired = true
	report, err = f.scanner.BulkSweep(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Declined)
	assert.Equal(t, 1, locker.released)
}

func TestSweepRunsWhenLockStoreDown(t *testing.T) {
	f := newFixture(t)
	o := f.submitted(t, models.PaymentGCash)
	f.clock.Advance(time.Hour)
	f.scanner.WithLocker(&stubLocker{err: errors.New("connection refused")})

	report, err := f.scanner.BulkSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Declined)
	assert.Equal(t, models.OrderStatusDeclined, f.reload(t, o.ID).Status)
}

func TestScannerStartSweepsImmediately(t *testing.T) {
	f := newFixture(t)
	o := f.submitted(t, models.PaymentGCash)
	f.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.scanner.Start(ctx)
	require.Eventually(t, func() bool {
		return f.scanner.Metrics().SweepsRun >= 1
	}, 2*time.Second, 10*time.Millisecond)
	f.scanner.Stop()
	f.scanner.Stop()

	assert.Equal(t, models.OrderStatusDeclined, f.reload(t, o.ID).Status)
}

func TestScannerStopWithoutStart(t *testing.T) {
	sc := NewReceiptExpiryScanner(nil, 0)
	done := make(chan struct{})
	go func() {
		sc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a scanner that never started")
	}
}
