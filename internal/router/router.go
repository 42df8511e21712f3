package router

import (
	"net/http"
	"time"

	"vipearn/config"
	"vipearn/internal/domain"
	"vipearn/internal/handler"
	"vipearn/internal/metrics"
	"vipearn/internal/middleware"
	"vipearn/internal/service"
	"vipearn/internal/ws"
	"vipearn/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the long-lived services the HTTP layer routes to. They are built
// once in main because the background workers share them.
type Deps struct {
	DB            *gorm.DB
	Log           *zap.Logger
	Metrics       *metrics.Metrics
	Limiter       middleware.Limiter
	Hub           *ws.Hub
	Proofs        cloudinary.ProofStore
	Auth          *service.AuthService
	Ledger        *service.LedgerService
	Referral      *service.ReferralService
	Vip           *service.VipService
	Sessions      *service.SessionService
	Deposits      *service.DepositService
	Withdrawals   *service.WithdrawalService
	Notifications *service.NotificationService
	Admin         *service.AdminService
}

func Setup(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Limiter == nil {
		d.Limiter = middleware.NewInMemoryRateLimiter(100, 60*time.Second)
	}
	r.Use(middleware.RateLimit(d.Limiter))

	authHandler := handler.NewAuthHandler(d.Auth, d.Log)
	meHandler := handler.NewMeHandler(d.Auth, d.Log)
	walletHandler := handler.NewWalletHandler(d.Ledger, d.Log)
	referralHandler := handler.NewReferralHandler(d.Referral, d.Log)
	notificationHandler := handler.NewNotificationHandler(d.Notifications, d.Log)
	vipHandler := handler.NewVipHandler(d.Vip, d.Log)
	vipSession := handler.NewSessionHandler(d.Sessions, domain.SurfaceVip, cfg.Session.VipDuration, d.Log)
	taskSession := handler.NewSessionHandler(d.Sessions, domain.SurfaceTask, cfg.Session.TaskDuration, d.Log)
	depositHandler := handler.NewDepositHandler(d.Deposits, d.Proofs, d.Log)
	withdrawalHandler := handler.NewWithdrawalHandler(d.Withdrawals, d.Log)
	adminHandler := handler.NewAdminHandler(d.Admin, d.Log)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/healthz", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if sqlDB, err := d.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"success": code == http.StatusOK, "status": status})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("", meHandler.Get)
			me.GET("/wallet", walletHandler.Get)
			me.GET("/wallet/transactions", walletHandler.Transactions)
			me.GET("/referrals", referralHandler.Summary)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.POST("/fcm-token", meHandler.UpdateFCMToken)
			me.POST("/telegram", meHandler.LinkTelegram)
		}

		vip := api.Group("/vip")
		vip.Use(authMw)
		{
			vip.GET("/levels", vipHandler.Levels)
			vip.GET("/levels/:id/quote", vipHandler.Quote)
			vip.GET("/me", vipHandler.Current)
			vip.POST("/purchase", vipHandler.Purchase)
			vip.POST("/session/start", vipSession.Start)
			vip.POST("/session/complete", vipSession.Complete)
			vip.GET("/session/status", vipSession.Status)
			vip.GET("/sessions", vipSession.History)
		}

		tasks := api.Group("/tasks")
		tasks.Use(authMw)
		{
			tasks.POST("/session/start", taskSession.Start)
			tasks.POST("/session/complete", taskSession.Complete)
			tasks.GET("/session/status", taskSession.Status)
			tasks.GET("/sessions", taskSession.History)
		}

		deposits := api.Group("/deposits")
		deposits.Use(authMw)
		{
			deposits.POST("", depositHandler.Submit)
			deposits.GET("", depositHandler.List)
			deposits.POST("/:id/verify", depositHandler.Verify)
		}

		withdrawals := api.Group("/withdrawals")
		withdrawals.Use(authMw)
		{
			withdrawals.POST("", withdrawalHandler.Request)
			withdrawals.GET("", withdrawalHandler.List)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/users", adminHandler.Users)
			admin.PUT("/users/:id/referrer", adminHandler.SetReferrer)
			admin.GET("/transactions", adminHandler.Transactions)
			admin.GET("/withdrawals", adminHandler.Withdrawals)
			admin.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
			admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
			admin.POST("/wallets/:user_id/adjust", adminHandler.AdjustWallet)
			admin.GET("/settings", adminHandler.Settings)
			admin.PUT("/settings/:key", adminHandler.UpdateSetting)
			admin.GET("/detector", adminHandler.DetectorStatus)
			admin.POST("/detector/start", adminHandler.StartDetector)
			admin.POST("/detector/stop", adminHandler.StopDetector)
			admin.GET("/audit-log", adminHandler.AuditLog)
		}
	}

	r.GET("/ws/notifications", ws.ServeNotifications(&cfg.JWT, d.Hub, d.Log))
	return r
}
