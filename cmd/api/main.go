package main

import (
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/haulbase/dispatch-backend/internal/database"
	"github.com/haulbase/dispatch-backend/internal/dispatch"
	"github.com/haulbase/dispatch-backend/internal/handlers"
	"github.com/haulbase/dispatch-backend/internal/middleware"
	"github.com/haulbase/dispatch-backend/internal/services"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, relying on environment")
	}

	db, err := database.InitDB()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Fatal("Failed to get database instance")
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.WithError(err).Fatal("Failed to initialize Redis")
	}

	// Initialize WebSocket hub
	hub := services.NewHub(log)
	go hub.Run()

	// Wire the dispatch engine and its collaborators
	directions := services.NewDirectionsFromEnv()
	commission := services.NewCommissionEngineFromEnv()
	engine := dispatch.NewEngine(db, hub, directions, commission, log)
	defer engine.Scheduler().Stop()

	// Re-arm expiries for orders still awaiting confirmation
	if err := engine.RescheduleExpiries(); err != nil {
		log.WithError(err).Fatal("Failed to reschedule order expiries")
	}

	// Location retention sweep
	janitor := services.NewLocationJanitor(db, locationRetention(), time.Hour, log)
	go janitor.Run()
	defer janitor.Stop()

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Routes
	api := r.Group("/api")
	{
		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// Load posting and bidding
			loads := protected.Group("/loads")
			{
				loads.POST("", handlers.CreateLoad(engine))
				loads.GET("", handlers.GetOpenLoads(engine))
				loads.GET("/mine", handlers.GetShipperLoads(engine))
				loads.GET("/:loadId", handlers.GetLoad(engine))
				loads.POST("/:loadId/publish", handlers.PublishLoad(engine))
				loads.POST("/:loadId/cancel", handlers.CancelLoad(engine))
				loads.GET("/:loadId/bids", handlers.GetLoadBids(engine))
				loads.POST("/:loadId/bids", handlers.PlaceBid(engine))
			}

			bids := protected.Group("/bids")
			{
				bids.POST("/:bidId/accept", handlers.AcceptBid(engine))
				bids.POST("/:bidId/reject", handlers.RejectBid(engine))
			}

			// Order lifecycle
			orders := protected.Group("/orders")
			{
				orders.GET("/driver", handlers.GetDriverOrders(engine))
				orders.GET("/:orderId", handlers.GetOrder(engine))
				orders.POST("/:orderId/accept", handlers.DriverAcceptOrder(engine))
				orders.POST("/:orderId/reject", handlers.DriverRejectOrder(engine))
				orders.POST("/:orderId/pickup", handlers.PickupOrder(engine))
				orders.POST("/:orderId/transit", handlers.MarkOrderInTransit(engine))
				orders.POST("/:orderId/deliver", handlers.DeliverOrder(engine))
				orders.POST("/:orderId/confirm-delivery", handlers.ConfirmDelivery(engine))
				orders.POST("/:orderId/cancel", handlers.CancelOrder(engine))
				orders.POST("/:orderId/delivery-failed", handlers.FailDelivery(engine))
				orders.POST("/:orderId/mark-rejected", handlers.RejectOrder(engine))
				orders.GET("/:orderId/tracking", handlers.GetOrderTracking(engine))
			}

			// Routes and tracking
			routes := protected.Group("/routes")
			{
				routes.POST("", handlers.BuildRoute(engine))
				routes.GET("/history", handlers.GetRouteHistory(engine))
				routes.POST("/:routeId/complete", handlers.CompleteRoute(engine))
				routes.POST("/:routeId/cancel", handlers.CancelRoute(engine))
				routes.PATCH("/:routeId/tracking", handlers.UpdateRouteTracking(engine))
			}

			// Driver location and status
			driver := protected.Group("/driver")
			{
				driver.POST("/location", handlers.IngestLocation(engine))
				driver.GET("/location/history", handlers.GetLocationHistory(engine))
				driver.GET("/status", handlers.GetDriverStatus(engine))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}

// locationRetention reads LOCATION_RETENTION_DAYS, defaulting to 7.
func locationRetention() time.Duration {
	days := 7
	if raw := os.Getenv("LOCATION_RETENTION_DAYS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}
	return time.Duration(days) * 24 * time.Hour
}
