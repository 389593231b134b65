package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/campus-food/config"
	"github.com/yeremiapane/campus-food/database"
	"github.com/yeremiapane/campus-food/hub"
	"github.com/yeremiapane/campus-food/messaging"
	"github.com/yeremiapane/campus-food/redisx"
	"github.com/yeremiapane/campus-food/router"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
)

func main() {
	cfg := config.Load()

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
		utils.UseJSONFormat()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize DB
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}

	settings := services.Settings{
		ReceiptGracePeriod:   cfg.ReceiptGracePeriod,
		ReopenWindow:         cfg.ReopenWindow,
		MaxReopeningRequests: cfg.MaxReopeningRequests,
		ReopenPolicy:         cfg.ReopenPolicy,
	}

	// Notifikasi: inbox di DB, websocket, dan kafka kalau broker diset
	wsHub := hub.New()
	notifier := services.NewNotificationEmitter(cfg.NotifyTimeout,
		services.NewDBNotificationSink(db),
		hub.NewSink(wsHub),
	)
	var producer *messaging.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewProducer(cfg.KafkaBrokers, cfg.KafkaNotificationTopic, 1024)
		producer.Start()
		notifier.AddSink(messaging.NewSink(producer))
		utils.InfoLogger.Printf("Publishing notifications to kafka topic %s", cfg.KafkaNotificationTopic)
	}

	catalog := services.NewGormCatalog(db)
	orders := services.NewOrderService(db, notifier, settings)
	cart := services.NewCartService(db, catalog, orders)
	reopenings := services.NewReopeningService(db, orders, notifier, settings)

	scanner := services.NewReceiptExpiryScanner(orders, cfg.SweepInterval)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		scanner.WithLocker(redisx.NewLeaseLocker(rdb))
	}
	scanner.Start(ctx)

	r := router.SetupRouter(router.Dependencies{
		DB:            db,
		Config:        cfg,
		Tokens:        utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Catalog:       catalog,
		Orders:        orders,
		Cart:          cart,
		Reopenings:    reopenings,
		Notifications: services.NewNotificationService(db),
		Scanner:       scanner,
		Hub:           wsHub,
	})
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		utils.ErrorLogger.Printf("trusted proxies: %v", err)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	// graceful shutdown
	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	utils.InfoLogger.Println("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Printf("server shutdown: %v", err)
	}
	scanner.Stop()
	cancel()
	if producer != nil {
		producer.Close()      // tutup inbox -> flush & close writer
		producer.WaitClosed() // drain
	}
}
