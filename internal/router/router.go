package router

import (
	"time"

	"loyalcrm/config"
	"loyalcrm/internal/domain"
	"loyalcrm/internal/handler"
	"loyalcrm/internal/middleware"
	"loyalcrm/internal/repository"
	"loyalcrm/internal/service"
	"loyalcrm/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	accountRepo := repository.NewAccountRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	referralRepo := repository.NewReferralRepository(db)

	ledgerSvc := service.NewLedgerService(db, &cfg.Loyalty, accountRepo, ledgerRepo, referralRepo)
	activityHub := ws.NewActivityHub()
	ledgerSvc.SetPublisher(activityHub)

	loyaltyHandler := handler.NewLoyaltyHandler(ledgerSvc)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api")
	api.Use(authMw)
	{
		api.GET("/loyalty/:id", loyaltyHandler.GetProfile)
		api.GET("/loyalty/:id/transactions", loyaltyHandler.GetTransactions)
		api.POST("/loyalty/:id/redeem", loyaltyHandler.Redeem)
		api.POST("/loyalty/:id/use-referral", loyaltyHandler.UseReferral)
		api.POST("/loyalty/:id/adjust", middleware.RequireRole(domain.RoleAdmin), loyaltyHandler.Adjust)
		api.POST("/simulate-purchase", loyaltyHandler.SimulatePurchase)
	}

	r.GET("/ws/loyalty", ws.UpgradeActivityWS(&cfg.JWT, activityHub))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	return r
}
