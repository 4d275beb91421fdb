package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/database"
	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/pkg/cron"
	"github.com/agripulse/agri_go_server/internal/pkg/oss"
	"github.com/agripulse/agri_go_server/internal/repository"
	"github.com/agripulse/agri_go_server/internal/service"
)

const scanLimit = 10000

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, only report what would change")
	cleanOrphans = flag.Bool("clean-orphans", true, "Delete local report files without a ready report")
	resetUsage   = flag.Bool("reset-usage", false, "Reset usage counters of every subscription")
)

func main() {
	flag.Parse()

	log.Println("Starting maintenance task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db, nil)

	subRepo := repository.NewSubscriptionRepository(db)
	reportRepo := repository.NewReportRepository(db)
	now := time.Now().UTC()

	// 1. 套餐分布
	log.Println("\nSubscriptions by plan:")
	if counts, err := subRepo.CountByPlan(); err != nil {
		log.Printf("Failed to count subscriptions: %v", err)
	} else {
		plans := make([]string, 0, len(counts))
		for plan := range counts {
			plans = append(plans, plan)
		}
		sort.Strings(plans)
		for _, plan := range plans {
			log.Printf("  - %-12s %d", plan, counts[plan])
		}
	}

	// 2. 周期滚动、待支付超时、报表过期
	if *dryRun {
		preview(subRepo, reportRepo, cfg, now)
	} else {
		store, err := oss.New(&cfg.OSS, cfg.Reports.LocalDir)
		if err != nil {
			log.Fatalf("Failed to init report store: %v", err)
		}
		ledger := service.NewLedgerService(subRepo, cfg)
		reports := service.NewReportService(reportRepo, repository.NewAccountRepository(db), nil, store, nil, nil, nil, cfg)

		summary := cron.NewService(ledger, reports, cfg.Subscription.PendingExpireHours).RunOnce(now)
		if summary.Rollover != nil {
			log.Printf("\nPeriod rollover: renewed=%d past_due=%d expired=%d cancelled=%d",
				summary.Rollover.Renewed, summary.Rollover.PastDue, summary.Rollover.Expired, summary.Rollover.Cancelled)
		}
		log.Printf("Pending payments expired: %d", summary.PendingExpired)
		log.Printf("Reports expired: %d", summary.ReportsExpired)

		if *resetUsage {
			n, err := ledger.ResetAllUsage()
			if err != nil {
				log.Printf("Failed to reset usage: %v", err)
			} else {
				log.Printf("Usage reset for %d subscriptions", n)
			}
		}
	}

	// 3. 本地报表目录中的孤儿文件
	if *cleanOrphans && cfg.OSS.Endpoint == "" {
		log.Printf("\nScanning %s for orphaned report files...", cfg.Reports.LocalDir)
		size, count := cleanOrphanFiles(db, cfg.Reports.LocalDir, *dryRun)
		log.Printf("Orphaned files: %d (%s)", count, formatSize(size))
	}

	log.Println("\n" + strings.Repeat("=", 60))
	if *dryRun {
		log.Println("DRY RUN MODE - nothing was changed")
		log.Println("   Run with -dry-run=false to apply")
	} else {
		log.Println("Maintenance completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// preview 只统计，不写库
func preview(subRepo *repository.SubscriptionRepository, reportRepo *repository.ReportRepository, cfg *config.Config, now time.Time) {
	ended, err := subRepo.ListPeriodEnded(now, scanLimit)
	if err != nil {
		log.Printf("Failed to list ended periods: %v", err)
	} else {
		log.Printf("\nSubscriptions due for rollover: %d", len(ended))
	}

	hours := cfg.Subscription.PendingExpireHours
	if hours <= 0 {
		hours = 72
	}
	stale, err := subRepo.ListStalePending(now.Add(-time.Duration(hours)*time.Hour), scanLimit)
	if err != nil {
		log.Printf("Failed to list stale payments: %v", err)
	} else {
		log.Printf("Pending payments older than %dh: %d", hours, len(stale))
		for _, sub := range stale {
			log.Printf("  - account %d reference %s (%s)", sub.AccountID, sub.Payment.Reference, sub.Payment.Method)
		}
	}

	expired, err := reportRepo.ListExpired(now, scanLimit)
	if err != nil {
		log.Printf("Failed to list expired reports: %v", err)
	} else {
		log.Printf("Reports past expiry: %d", len(expired))
	}
}

// cleanOrphanFiles 删除本地目录中没有被报表引用的文件
func cleanOrphanFiles(db *gorm.DB, dir string, dryRun bool) (int64, int) {
	var keys []string
	if err := db.Model(&model.Report{}).
		Where("status IN ? AND file_key <> ''", []string{model.ReportReady, model.ReportGenerating}).
		Pluck("file_key", &keys).Error; err != nil {
		log.Printf("Failed to query report files: %v", err)
		return 0, 0
	}
	referenced := make(map[string]bool, len(keys))
	for _, k := range keys {
		referenced[filepath.ToSlash(k)] = true
	}

	var totalSize int64
	var count int
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || referenced[filepath.ToSlash(rel)] {
			return nil
		}

		log.Printf("  - %s (%s, %s old)", rel, formatSize(info.Size()), time.Since(info.ModTime()).Round(time.Hour))
		if !dryRun {
			if err := os.Remove(path); err != nil {
				log.Printf("    Failed to delete: %v", err)
				return nil
			}
		}
		totalSize += info.Size()
		count++
		return nil
	})
	return totalSize, count
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
