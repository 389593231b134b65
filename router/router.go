package router

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/campus-food/config"
	"github.com/yeremiapane/campus-food/controllers"
	"github.com/yeremiapane/campus-food/hub"
	"github.com/yeremiapane/campus-food/middlewares"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
	"gorm.io/gorm"
)

// maxReceiptBytes bounds a payment proof upload (image + multipart overhead).
const maxReceiptBytes = 6 << 20

// Dependencies are the wired services the HTTP layer needs.
type Dependencies struct {
	DB            *gorm.DB
	Config        config.Config
	Tokens        *utils.TokenIssuer
	Catalog       services.Catalog
	Orders        *services.OrderService
	Cart          *services.CartService
	Reopenings    *services.ReopeningService
	Notifications *services.NotificationService
	Scanner       *services.ReceiptExpiryScanner
	Hub           *hub.Hub
}

func SetupRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Apply security middlewares
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.Config.CORSOrigin))
	r.Use(middlewares.NewRateLimiter(50, 1).RateLimit())

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(d.DB, d.Tokens)
	menuCtrl := controllers.NewMenuController(d.DB, d.Catalog)
	cartCtrl := controllers.NewCartController(d.Cart, d.Orders)
	orderCtrl := controllers.NewOrderController(d.Orders, d.Config.UploadDir)
	reopenCtrl := controllers.NewReopeningController(d.Reopenings)
	notificationCtrl := controllers.NewNotificationController(d.Notifications)
	wsCtrl := controllers.NewWSController(d.Hub, d.Config.CORSOrigin)
	adminCtrl := controllers.NewAdminController(d.DB, d.Scanner, d.Tokens, d.Config.SweepToken)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter untuk login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	api := r.Group("/")
	api.Use(middlewares.RequestTimeout(d.Config.RequestTimeout))
	api.GET("/concessions/:concession_id/menu", menuCtrl.GetConcessionMenu)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := api.Group("/")
	auth.Use(middlewares.AuthMiddleware(d.Tokens))

	auth.GET("/notifications", notificationCtrl.GetMyNotifications)
	auth.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkRead)

	// order detail, receipt & reopening status: owner, concessionaire or admin
	auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	auth.GET("/orders/:order_id/reopening", reopenCtrl.GetStatus)
	// bukti pembayaran tidak lagi publik, dicek lewat akses order
	auth.GET("/orders/:order_id/receipt/:file", orderCtrl.GetReceipt)

	// CUSTOMER
	customer := auth.Group("/")
	customer.Use(middlewares.RoleCheck(models.RoleCustomer))
	{
		customer.GET("/cart", cartCtrl.GetCart)
		customer.POST("/cart/items", cartCtrl.AddItem)
		customer.PATCH("/cart/items/:detail_id", cartCtrl.UpdateQuantity)
		customer.DELETE("/cart/items/:detail_id", cartCtrl.RemoveItem)
		customer.POST("/cart/checkout", cartCtrl.Checkout)

		customer.GET("/orders", orderCtrl.ListMyOrders)
		customer.POST("/orders/:order_id/checkout", orderCtrl.CheckoutOrder)
		customer.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)
		customer.POST("/orders/:order_id/receipt", middlewares.ReceiptUploadGuard(maxReceiptBytes), orderCtrl.UploadReceipt)
		customer.GET("/orders/:order_id/slip", orderCtrl.DownloadSlip)
		customer.POST("/orders/:order_id/reopening", reopenCtrl.CreateRequest)
	}

	// CONCESSIONAIRE
	concession := auth.Group("/concession")
	concession.Use(middlewares.RoleCheck(models.RoleConcessionaire))
	{
		concession.GET("/orders", orderCtrl.ListConcessionOrders)
		concession.POST("/orders/:order_id/accept", orderCtrl.AcceptOrder())
		concession.POST("/orders/:order_id/decline", orderCtrl.DeclineOrder())
		concession.POST("/orders/:order_id/reject-receipt", orderCtrl.RejectReceipt())
		concession.POST("/orders/:order_id/ready", orderCtrl.MarkReady())
		concession.POST("/orders/:order_id/complete", orderCtrl.CompleteOrder())

		concession.GET("/reopening-requests", reopenCtrl.ListPending)
		concession.POST("/reopening-requests/:request_id/respond", reopenCtrl.Respond)
	}

	// OPS
	api.POST("/internal/receipts/sweep", adminCtrl.SweepAuth(), adminCtrl.TriggerSweep)
	admin := auth.Group("/admin")
	admin.Use(middlewares.RoleCheck(models.RoleAdmin))
	admin.GET("/sweeps/metrics", adminCtrl.GetSweepMetrics)

	// WebSocket, token lewat query string
	ws := r.Group("/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware(d.Tokens))
	ws.GET("", wsCtrl.Connect)

	return r
}
