package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/middleware"
	"storefront-backend/internal/services"
	"storefront-backend/internal/utils"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Orders        *services.OrderService
	Dashboard     *services.DashboardService
	Notifications *services.NotificationService
	Broadcast     *services.BroadcastService
	Users         *services.UserService
	Admins        *services.AdminService
	Products      *services.ProductService
	Hub           *services.NotificationHub
}

// RouterConfig holds the HTTP settings taken from config.Config
type RouterConfig struct {
	AllowedOrigins []string
	Debug          bool
	SecureCookies  bool
	Security       *middleware.SecurityConfig
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg RouterConfig, svc Services, auth *middleware.AuthMiddleware, dbHealth middleware.HealthChecker, log *logrus.Logger) *gin.Engine {
	if err := utils.RegisterValidators(); err != nil {
		log.WithError(err).Warn("Custom validators not registered")
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log, cfg.Debug))
	corsConfig := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Guest-Email", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.SecurityMiddleware(cfg.Security, log))

	router.GET("/health", healthHandler(dbHealth, svc.Hub))

	orderHandlers := NewOrderHandlers(svc.Orders, svc.Dashboard, log, cfg.Debug)
	notificationHandlers := NewNotificationHandlers(svc.Notifications, svc.Users, svc.Broadcast, svc.Hub, log, cfg.Debug)
	authHandlers := NewAuthHandlers(svc.Users, svc.Admins, log, cfg.Debug, cfg.SecureCookies)
	wishlistHandlers := NewWishlistHandlers(svc.Users, log, cfg.Debug)
	productHandlers := NewProductHandlers(svc.Products, log, cfg.Debug)

	dbRequired := middleware.DatabaseHealth(dbHealth)
	authLimit := middleware.AuthRateLimitMiddleware(cfg.Security, log)

	orders := router.Group("/orders", dbRequired)
	{
		orders.POST("/place-order", auth.OptionalAuth(), orderHandlers.PlaceOrder)
		orders.GET("/order/:id", auth.OptionalAuth(), orderHandlers.GetOrder)
		orders.GET("/track/:trackingId", orderHandlers.TrackOrder)
		orders.GET("/user", auth.Authenticate(), orderHandlers.GetUserOrders)
		orders.GET("/guest", orderHandlers.GetGuestOrders)

		admin := orders.Group("/admin", auth.AdminRequired())
		{
			admin.PUT("/update/:orderId", orderHandlers.UpdateOrderStatus)
			admin.GET("/stats", orderHandlers.GetStats)
			admin.GET("/export", orderHandlers.ExportOrders)
			admin.DELETE("/:orderId", orderHandlers.DeleteOrder)
		}
	}

	apiGroup := router.Group("/api", dbRequired)
	{
		notifications := apiGroup.Group("/notifications")
		{
			inbox := notifications.Group("", auth.OptionalAuth())
			inbox.GET("", notificationHandlers.GetNotifications)
			inbox.GET("/unread-count", notificationHandlers.GetUnreadCount)
			inbox.PUT("/read-all", notificationHandlers.MarkAllAsRead)
			inbox.PUT("/:id/read", notificationHandlers.MarkAsRead)
			inbox.PUT("/:id/click", notificationHandlers.MarkClicked)
			inbox.DELETE("/:id", notificationHandlers.DeleteNotification)
			inbox.GET("/ws", notificationHandlers.Stream)

			notifications.POST("/register", auth.Authenticate(), notificationHandlers.RegisterPushToken)
			notifications.PUT("/preferences", auth.Authenticate(), notificationHandlers.UpdatePreferences)
			notifications.POST("/broadcast", auth.AdminRequired(), notificationHandlers.Broadcast)
		}

		authGroup := apiGroup.Group("/auth", authLimit)
		{
			authGroup.POST("/register", authHandlers.Register)
			authGroup.POST("/guest", authHandlers.RegisterGuest)
			authGroup.POST("/login", authHandlers.Login)
			authGroup.POST("/refresh", authHandlers.RefreshToken)
			authGroup.POST("/logout", auth.Authenticate(), authHandlers.Logout)
			authGroup.POST("/forgot-password", authHandlers.ForgotPassword)
			authGroup.POST("/reset-password", authHandlers.ResetPassword)
			authGroup.POST("/verify-email", authHandlers.VerifyEmail)
			authGroup.POST("/send-verification", auth.Authenticate(), authHandlers.SendVerification)
			authGroup.GET("/me", auth.Authenticate(), authHandlers.GetProfile)
		}

		adminGroup := apiGroup.Group("/admin")
		{
			adminGroup.POST("/login", authLimit, authHandlers.AdminLogin)
			adminGroup.POST("/logout", auth.AdminRequired(), authHandlers.AdminLogout)
		}

		wishlist := apiGroup.Group("/users/wishlist", auth.Authenticate())
		{
			wishlist.GET("", wishlistHandlers.GetWishlist)
			wishlist.POST("/:productId", wishlistHandlers.AddToWishlist)
			wishlist.DELETE("/:productId", wishlistHandlers.RemoveFromWishlist)
		}

		apiGroup.GET("/products", productHandlers.GetProducts)
		apiGroup.GET("/products/:id", productHandlers.GetProduct)
		apiGroup.POST("/products", auth.AdminRequired(), productHandlers.CreateProduct)
		apiGroup.GET("/featured", productHandlers.GetFeatured)
		apiGroup.GET("/categories", productHandlers.GetCategories)
	}

	return router
}

func healthHandler(dbHealth middleware.HealthChecker, hub *services.NotificationHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		database := "connected"
		if dbHealth != nil && !dbHealth.Healthy() {
			status = http.StatusServiceUnavailable
			database = "disconnected"
		}

		connections := 0
		if hub != nil {
			connections = hub.ConnectionCount()
		}

		c.JSON(status, gin.H{
			"success":     status == http.StatusOK,
			"status":      http.StatusText(status),
			"database":    database,
			"connections": connections,
			"timestamp":   time.Now().UTC(),
		})
	}
}
