package Controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/campus-food/config"
	"github.com/yeremiapane/campus-food/database"
	"github.com/yeremiapane/campus-food/hub"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/router"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
	"gorm.io/gorm"
)

const sweepToken = "sweep-secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testApp struct {
	db        *gorm.DB
	router    *gin.Engine
	tokens    *utils.TokenIssuer
	clock     *clock
	hub       *hub.Hub
	uploadDir string

	customer, vendor, admin models.User
	concession              models.Concession
	bread                   models.Item
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	app := &testApp{
		db:        db,
		tokens:    utils.NewTokenIssuer("test-secret", time.Hour),
		clock:     &clock{now: time.Now().UTC().Truncate(time.Second)},
		uploadDir: filepath.Join(t.TempDir(), "receipts"),
	}
	cfg := config.Config{
		UploadDir:      app.uploadDir,
		SweepToken:     sweepToken,
		CORSOrigin:     "*",
		RequestTimeout: 5 * time.Second,
	}
	settings := services.Settings{
		ReceiptGracePeriod:   30 * time.Minute,
		ReopenWindow:         24 * time.Hour,
		MaxReopeningRequests: 3,
		Now:                  app.clock.Now,
	}

	wsHub := hub.New()
	app.hub = wsHub
	notifier := services.NewNotificationEmitter(time.Second, services.NewDBNotificationSink(db), hub.NewSink(wsHub))
	catalog := services.NewGormCatalog(db)
	orders := services.NewOrderService(db, notifier, settings)
	app.router = router.SetupRouter(router.Dependencies{
		DB:            db,
		Config:        cfg,
		Tokens:        app.tokens,
		Catalog:       catalog,
		Orders:        orders,
		Cart:          services.NewCartService(db, catalog, orders),
		Reopenings:    services.NewReopeningService(db, orders, notifier, settings),
		Notifications: services.NewNotificationService(db),
		Scanner:       services.NewReceiptExpiryScanner(orders, time.Minute),
		Hub:           wsHub,
	})

	app.customer = models.User{Name: "Juan", Email: "juan@campus.test", Password: "x", Role: models.RoleCustomer}
	app.vendor = models.User{Name: "Ate Liza", Email: "liza@campus.test", Password: "x", Role: models.RoleConcessionaire}
	app.admin = models.User{Name: "Ops", Email: "ops@campus.test", Password: "x", Role: models.RoleAdmin}
	for _, u := range []*models.User{&app.customer, &app.vendor, &app.admin} {
		require.NoError(t, db.Create(u).Error)
	}
	app.concession = models.Concession{Name: "Kape Kanto", ConcessionaireID: app.vendor.ID}
	require.NoError(t, db.Create(&app.concession).Error)
	app.bread = models.Item{ConcessionID: app.concession.ID, Name: "Pandesal", Price: decimal.RequireFromString("35.50"), Available: true}
	require.NoError(t, db.Create(&app.bread).Error)
	return app
}

func (a *testApp) token(t *testing.T, u models.User) string {
	t.Helper()
	token, err := a.tokens.GenerateToken(u.ID, u.Role)
	require.NoError(t, err)
	return token
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testApp) send(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	return a.send(t, newJSONRequest(t, method, path, body), token)
}

func decode(t *testing.T, resp apiResponse, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

type orderView struct {
	ID              uint       `json:"id"`
	Status          string     `json:"status"`
	PaymentMethod   string     `json:"payment_method"`
	TotalPrice      string     `json:"total_price"`
	ReceiptURL      *string    `json:"receipt_url"`
	ReceiptDeadline *time.Time `json:"receipt_deadline"`
	Details         []struct {
		ID       uint `json:"id"`
		Quantity int  `json:"quantity"`
	} `json:"details"`
}

// cartCheckout adds qty pandesal and checks the cart out with the given method.
func (a *testApp) cartCheckout(t *testing.T, qty int, method string) orderView {
	t.Helper()
	customer := a.token(t, a.customer)
	w, _ := a.do(t, http.MethodPost, "/cart/items", customer, map[string]interface{}{
		"concession_id": a.concession.ID,
		"item_id":       a.bread.ID,
		"quantity":      qty,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, resp := a.do(t, http.MethodPost, "/cart/checkout", customer, map[string]interface{}{"payment_method": method})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var orders []orderView
	decode(t, resp, &orders)
	require.Len(t, orders, 1)
	return orders[0]
}

func newJSONRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
