package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/api/handler"
	"github.com/agripulse/agri_go_server/internal/api/middleware"
	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/pkg/metrics"
)

// Handlers 路由用到的全部 handler
type Handlers struct {
	Auth      *handler.AuthHandler
	Payment   *handler.PaymentHandler
	Webhook   *handler.WebhookHandler
	Admin     *handler.AdminHandler
	Dashboard *handler.DashboardHandler
	Data      *handler.DataHandler
	Report    *handler.ReportHandler
	Contact   *handler.ContactHandler
	Usage     *handler.UsageHandler
	WebSocket *handler.WebSocketHandler
	Health    *handler.HealthHandler
}

type Router struct {
	h        *Handlers
	gate     middleware.Gate
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	cfg      *config.Config
}

func NewRouter(h *Handlers, gate middleware.Gate, m *metrics.Metrics, gatherer prometheus.Gatherer, cfg *config.Config) *Router {
	return &Router{
		h:        h,
		gate:     gate,
		metrics:  m,
		gatherer: gatherer,
		cfg:      cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Logger(r.metrics))
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", r.h.Health.Check)
	if r.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	auth := middleware.Auth(r.cfg.JWT.Secret)

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.h.WebSocket.Handle)

		// 认证
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", r.h.Auth.Register)
			authGroup.POST("/login", r.h.Auth.Login)
			authGroup.POST("/verify-email", r.h.Auth.VerifyEmail)
			authGroup.GET("/me", auth, r.h.Auth.Me)
			authGroup.PUT("/profile", auth, r.h.Auth.UpdateProfile)
		}

		// 支付：套餐目录和回调公开，其余需要登录
		payment := api.Group("/payment")
		{
			payment.GET("/plans", r.h.Payment.Plans)
			payment.POST("/webhook/paystack", r.h.Webhook.Paystack)
			payment.POST("/webhook/stripe", r.h.Webhook.Stripe)

			payment.POST("/checkout", auth, r.h.Payment.Checkout)
			payment.GET("/status", auth, r.h.Payment.Status)
			payment.POST("/cancel", auth, r.h.Payment.Cancel)
			payment.POST("/proof", auth, r.h.Payment.SubmitProof)
		}

		// 运营接口
		admin := api.Group("/admin")
		admin.Use(middleware.AdminKey(r.cfg.Payment.AdminKey))
		{
			admin.POST("/payments/confirm", r.h.Admin.ConfirmPayment)
			admin.POST("/payments/fail", r.h.Admin.FailPayment)
			admin.POST("/subscriptions/:account_id/reset-usage", r.h.Admin.ResetUsage)
		}

		// 仪表盘
		dashboard := api.Group("/dashboard")
		dashboard.Use(auth, middleware.Entitle(r.gate, model.CapabilityDashboard))
		{
			dashboard.GET("/overview", r.h.Dashboard.Overview)
			dashboard.GET("/crops/trends", r.h.Dashboard.CropTrends)
			dashboard.GET("/market/intelligence", r.h.Dashboard.MarketIntelligence)
			dashboard.GET("/risk/monitoring", r.h.Dashboard.RiskMonitoring)
		}

		// 数据 API，按请求计量
		data := api.Group("/data")
		data.Use(auth, middleware.Entitle(r.gate, model.CapabilityAPI))
		{
			data.GET("/crops/regions", r.h.Data.RegionalCrops)
			data.GET("/market/prices", r.h.Data.MarketPrices)
			data.GET("/risk/analysis", r.h.Data.RiskAnalysis)
			data.GET("/harvest/timeline", r.h.Data.HarvestTimeline)
			data.GET("/quality/metrics", r.h.Data.QualityMetrics)
			data.POST("/submit", r.h.Data.Submit)
		}

		// 报表
		reports := api.Group("/reports")
		reports.Use(auth)
		{
			reports.POST("", middleware.Entitle(r.gate, model.CapabilityExport), r.h.Report.Create)
			reports.POST("/custom", middleware.Entitle(r.gate, model.CapabilityCustom), r.h.Report.CreateCustom)
			reports.GET("", r.h.Report.List)
			reports.GET("/:id", r.h.Report.Get)
			reports.GET("/:id/download", r.h.Report.Download)
		}

		// 联系我们
		api.POST("/contact", r.h.Contact.Submit)
		api.GET("/contact/info", r.h.Contact.Info)

		// 用户
		user := api.Group("/user")
		user.Use(auth)
		{
			user.GET("/usage", r.h.Usage.GetUsage)
		}
	}

	return engine
}
