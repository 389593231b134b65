package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/campus-food/config"
	"github.com/yeremiapane/campus-food/database"
	"github.com/yeremiapane/campus-food/models"
	"gorm.io/gorm"
)

const (
	testCustomerID       uint = 20
	testOtherCustomerID  uint = 21
	testConcessionaireID uint = 10
	testOtherOwnerID     uint = 11
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.InitDB(config.Config{
		DBDriver: "sqlite",
		DBDSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type delivered struct {
	userID uint
	event  Event
}

// recordingSink keeps every delivered event; fail makes Deliver return an error.
type recordingSink struct {
	mu     sync.Mutex
	events []delivered
	fail   bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, userID uint, ev Event) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.mu.Lock()
	s.events = append(s.events, delivered{userID: userID, event: ev})
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) ofType(t EventType) []delivered {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []delivered
	for _, d := range s.events {
		if d.event.Type() == t {
			out = append(out, d)
		}
	}
	return out
}

// statusUpdates returns the order_update events announcing status for the order.
func (s *recordingSink) statusUpdates(orderID uint, status models.OrderStatus) int {
	n := 0
	for _, d := range s.ofType(EventOrderUpdate) {
		ev := d.event.(OrderUpdateEvent)
		if ev.OrderID == orderID && ev.Status == status {
			n++
		}
	}
	return n
}

type fixture struct {
	db         *gorm.DB
	clock      *fakeClock
	sink       *recordingSink
	settings   Settings
	orders     *OrderService
	cart       *CartService
	reopenings *ReopeningService
	scanner    *ReceiptExpiryScanner

	concession models.Concession
	other      models.Concession
	coffee     models.Item // 100.00 with a required size group
	bread      models.Item // 35.50, no variations
	foreign    models.Item // belongs to the other concession
}

func newFixture(t *testing.T, tweak ...func(*Settings)) *fixture {
	t.Helper()
	f := &fixture{db: newTestDB(t), clock: newFakeClock(), sink: &recordingSink{}}
	f.settings = Settings{
		ReceiptGracePeriod:   30 * time.Minute,
		ReopenWindow:         24 * time.Hour,
		MaxReopeningRequests: 3,
		ReopenPolicy:         ReopenPolicyResubmit,
		Now:                  f.clock.Now,
	}
	for _, fn := range tweak {
		fn(&f.settings)
	}

	notifier := NewNotificationEmitter(time.Second, f.sink)
	f.orders = NewOrderService(f.db, notifier, f.settings)
	f.cart = NewCartService(f.db, NewGormCatalog(f.db), f.orders)
	f.reopenings = NewReopeningService(f.db, f.orders, notifier, f.settings)
	f.scanner = NewReceiptExpiryScanner(f.orders, time.Minute)

	f.concession = models.Concession{Name: "Kape Kanto", ConcessionaireID: testConcessionaireID}
	require.NoError(t, f.db.Create(&f.concession).Error)
	f.other = models.Concession{Name: "Lutong Bahay", ConcessionaireID: testOtherOwnerID}
	require.NoError(t, f.db.Create(&f.other).Error)

	f.coffee = models.Item{
		ConcessionID: f.concession.ID,
		Name:         "Iced Coffee",
		Price:        decimal.RequireFromString("100.00"),
		Available:    true,
		VariationGroups: []models.VariationGroup{
			{
				Name:              "Size",
				RequiredSelection: true,
				Options: []models.VariationOption{
					{Name: "Regular", Price: decimal.Zero},
					{Name: "Large", Price: decimal.RequireFromString("20.00")},
				},
			},
			{
				Name:              "Add-ons",
				MultipleSelection: true,
				MaxSelection:      2,
				Options: []models.VariationOption{
					{Name: "Extra shot", Price: decimal.RequireFromString("15.00")},
					{Name: "Oat milk", Price: decimal.RequireFromString("25.00")},
				},
			},
		},
	}
	require.NoError(t, f.db.Create(&f.coffee).Error)
	f.bread = models.Item{ConcessionID: f.concession.ID, Name: "Pandesal", Price: decimal.RequireFromString("35.50"), Available: true}
	require.NoError(t, f.db.Create(&f.bread).Error)
	f.foreign = models.Item{ConcessionID: f.other.ID, Name: "Adobo", Price: decimal.RequireFromString("80.00"), Available: true}
	require.NoError(t, f.db.Create(&f.foreign).Error)
	return f
}

func (f *fixture) option(group, option int) uint {
	return f.coffee.VariationGroups[group].Options[option].ID
}

// addBread puts qty pandesal in the customer's cart and returns the cart order.
func (f *fixture) addBread(t *testing.T, customerID uint, qty int) *models.Order {
	t.Helper()
	o, err := f.cart.AddItem(context.Background(), customerID, AddItemInput{
		ConcessionID: f.concession.ID,
		ItemID:       f.bread.ID,
		Quantity:     qty,
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) submitted(t *testing.T, method models.PaymentMethod) *models.Order {
	t.Helper()
	cartOrder := f.addBread(t, testCustomerID, 2)
	o, err := f.orders.CheckoutSingleOrder(context.Background(), testCustomerID, cartOrder.ID, CheckoutInput{PaymentMethod: method})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusSubmitted, o.Status)
	return o
}

// timedOut returns a gcash order declined by the receipt sweep.
func (f *fixture) timedOut(t *testing.T) *models.Order {
	t.Helper()
	o := f.submitted(t, models.PaymentGCash)
	f.clock.Advance(f.settings.ReceiptGracePeriod + time.Minute)
	report, err := f.scanner.BulkSweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Declined)
	return f.reload(t, o.ID)
}

func (f *fixture) reload(t *testing.T, orderID uint) *models.Order {
	t.Helper()
	o, err := f.orders.load(context.Background(), f.db, orderID)
	require.NoError(t, err)
	return o
}
