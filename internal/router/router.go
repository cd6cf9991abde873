// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/config"
	"github.com/smartstudy/marketplace-backend/internal/handlers"
	"github.com/smartstudy/marketplace-backend/internal/middleware"
	"github.com/smartstudy/marketplace-backend/internal/services"
	"github.com/smartstudy/marketplace-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	storageService, _ := services.NewStorageService(cfg)
	notificationService := services.NewNotificationService(db, cfg)
	gateway := services.NewStripeGateway(cfg)

	catalogService := services.NewCatalogService(db)
	accessService := services.NewAccessService(db, storageService)
	walletService := services.NewWalletService(db, cfg)
	purchaseService := services.NewPurchaseService(db, cfg, gateway, walletService, notificationService)
	reviewService := services.NewReviewService(db)

	// Initialize handlers
	resourceHandler := handlers.NewResourceHandler(catalogService, accessService, storageService)
	purchaseHandler := handlers.NewPurchaseHandler(purchaseService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	walletHandler := handlers.NewWalletHandler(walletService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		marketplace := v1.Group("/marketplace")
		{
			// Resource routes
			resources := marketplace.Group("/resources")
			{
				resources.GET("", middleware.OptionalAuth(), resourceHandler.BrowseResources)
				resources.GET("/:id", resourceHandler.GetResource)
				resources.GET("/:id/units", resourceHandler.ListUnits)
				resources.GET("/:id/reviews", reviewHandler.GetResourceReviews)

				protected := resources.Group("")
				protected.Use(middleware.AuthRequired())
				{
					protected.POST("", resourceHandler.CreateResource)
					protected.PUT("/:id", resourceHandler.UpdateResource)
					protected.DELETE("/:id", resourceHandler.DeleteResource)
					protected.POST("/:id/units", middleware.UploadRateLimit(), resourceHandler.AddUnit)
					protected.PUT("/:id/units/:unit_id", resourceHandler.UpdateUnit)
					protected.GET("/:id/units/:unit_id/download", resourceHandler.DownloadUnit)
				}
			}

			// Purchase routes
			purchases := marketplace.Group("/purchases")
			purchases.Use(middleware.AuthRequired())
			{
				purchases.POST("", middleware.PurchaseRateLimit(), purchaseHandler.PurchaseUnit)
				purchases.GET("/my-purchases", purchaseHandler.GetMyPurchases)
				purchases.POST("/:id/refund", middleware.AdminRequired(), purchaseHandler.RefundPurchase)
			}

			// Review routes
			reviews := marketplace.Group("/reviews")
			reviews.Use(middleware.AuthRequired())
			{
				reviews.POST("", reviewHandler.AddReview)
				reviews.PUT("/:id", reviewHandler.UpdateReview)
				reviews.POST("/:id/helpful", reviewHandler.MarkHelpful)
			}

			// Wallet routes
			wallet := marketplace.Group("/wallet")
			wallet.Use(middleware.AuthRequired())
			{
				wallet.GET("", walletHandler.GetWallet)
				wallet.POST("/withdraw", walletHandler.Withdraw)
			}

			// Current user's catalog
			marketplace.GET("/my-resources", middleware.AuthRequired(), resourceHandler.GetMyResources)
		}
	}

	return r
}
