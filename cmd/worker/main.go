package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/database"
	"github.com/agripulse/agri_go_server/internal/pkg/email"
	"github.com/agripulse/agri_go_server/internal/pkg/oss"
	"github.com/agripulse/agri_go_server/internal/pkg/pubsub"
	"github.com/agripulse/agri_go_server/internal/pkg/queue"
	"github.com/agripulse/agri_go_server/internal/repository"
	"github.com/agripulse/agri_go_server/internal/service"
	"github.com/agripulse/agri_go_server/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

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

	// 报表存储
	store, err := oss.New(&cfg.OSS, cfg.Reports.LocalDir)
	if err != nil {
		log.Fatalf("Failed to init report store: %v", err)
	}

	jobQueue := queue.NewQueue(rdb, cfg.Queue.JobQueue)
	publisher := pubsub.NewPublisher(rdb)

	accountRepo := repository.NewAccountRepository(db)
	insightsService := service.NewInsightsService(repository.NewAgriRepository(db), rdb, time.Duration(cfg.Insights.CacheTTLSeconds)*time.Second)
	reportService := service.NewReportService(repository.NewReportRepository(db), accountRepo, insightsService, store, jobQueue, publisher, nil, cfg)
	mailer := email.NewService(&cfg.Email, cfg.Server.FrontendURL)

	processor := worker.NewProcessor(reportService, mailer, jobQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := cfg.Queue.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	log.Printf("Worker started on queue %s, concurrency %d", cfg.Queue.JobQueue, workers)

	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			consume(ctx, id, jobQueue, processor)
		}(i)
	}

	wg.Wait()
	log.Println("Worker shutdown complete")
}

// consume 循环取任务直到 ctx 取消，单个任务失败不影响循环
func consume(ctx context.Context, id int, jobQueue *queue.Queue, processor *worker.Processor) {
	for ctx.Err() == nil {
		msg, err := jobQueue.Pop(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("worker %d: pop: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if msg == nil {
			continue
		}

		log.Printf("worker %d: %s job report=%d attempt=%d", id, msg.Type, msg.ReportID, msg.Attempt)
		if err := processor.Process(ctx, msg); err != nil {
			log.Printf("worker %d: %s job failed: %v", id, msg.Type, err)
		}
	}
	log.Printf("worker %d stopped", id)
}
