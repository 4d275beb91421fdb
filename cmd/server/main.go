package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/api"
	"github.com/agripulse/agri_go_server/internal/api/handler"
	"github.com/agripulse/agri_go_server/internal/database"
	"github.com/agripulse/agri_go_server/internal/pkg/cron"
	"github.com/agripulse/agri_go_server/internal/pkg/metrics"
	"github.com/agripulse/agri_go_server/internal/pkg/oss"
	"github.com/agripulse/agri_go_server/internal/pkg/paystack"
	"github.com/agripulse/agri_go_server/internal/pkg/pubsub"
	"github.com/agripulse/agri_go_server/internal/pkg/queue"
	"github.com/agripulse/agri_go_server/internal/pkg/stripepay"
	"github.com/agripulse/agri_go_server/internal/pkg/ws"
	"github.com/agripulse/agri_go_server/internal/repository"
	"github.com/agripulse/agri_go_server/internal/service"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")
	defer database.Close(db, rdb)

	// 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 报表存储，未配置 OSS 时写本地目录
	store, err := oss.New(&cfg.OSS, cfg.Reports.LocalDir)
	if err != nil {
		log.Fatalf("Failed to init report store: %v", err)
	}

	// 初始化 Queue 与 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.JobQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 WebSocket Hub，转发 Redis 上的账户事件
	wsHub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := pubsub.NewSubscriber(rdb).Subscribe(ctx, wsHub.Relay); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Event subscriber stopped: %v", err)
		}
	}()

	// 支付网关，未配置的网关不注入
	var paystackGateway service.PaystackGateway
	if cfg.Payment.Paystack.SecretKey != "" {
		paystackGateway = paystack.NewClient(cfg.Payment.Paystack.SecretKey, cfg.Payment.Paystack.BaseURL)
	}
	var stripeGateway service.StripeGateway
	if cfg.Payment.Stripe.SecretKey != "" {
		stripeGateway = stripepay.NewClient(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret)
	}

	// 初始化 Repository
	accountRepo := repository.NewAccountRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	agriRepo := repository.NewAgriRepository(db)
	reportRepo := repository.NewReportRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)

	// 初始化 Service
	ledger := service.NewLedgerService(subRepo, cfg)
	gate := service.NewEntitlementGate(subRepo, m)
	authService := service.NewAuthService(accountRepo, ledger, jobQueue, cfg)
	paymentService := service.NewPaymentService(ledger, accountRepo, eventRepo, paystackGateway, stripeGateway, publisher, jobQueue, m, cfg)
	insightsService := service.NewInsightsService(agriRepo, rdb, time.Duration(cfg.Insights.CacheTTLSeconds)*time.Second)
	reportService := service.NewReportService(reportRepo, accountRepo, insightsService, store, jobQueue, publisher, m, cfg)
	contactService := service.NewContactService(jobQueue, cfg)

	// 定时任务
	cronService := cron.NewService(ledger, reportService, cfg.Subscription.PendingExpireHours)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	handlers := &api.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Payment:   handler.NewPaymentHandler(paymentService),
		Webhook:   handler.NewWebhookHandler(paymentService),
		Admin:     handler.NewAdminHandler(paymentService, ledger),
		Dashboard: handler.NewDashboardHandler(insightsService),
		Data:      handler.NewDataHandler(insightsService),
		Report:    handler.NewReportHandler(reportService),
		Contact:   handler.NewContactHandler(contactService),
		Usage:     handler.NewUsageHandler(gate),
		WebSocket: handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins),
		Health:    handler.NewHealthHandler(db, rdb, jobQueue),
	}

	// 初始化 Router
	engine := api.NewRouter(handlers, gate, m, reg, cfg).Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server shutdown complete")
}
