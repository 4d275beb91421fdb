package cron

import (
	"log"
	"time"

	"github.com/agripulse/agri_go_server/internal/service"
)

type Service struct {
	ledger         *service.LedgerService
	reports        *service.ReportService
	pendingTimeout time.Duration
	interval       time.Duration
	stopChan       chan struct{}
}

// Summary 一轮维护任务的结果
type Summary struct {
	Rollover       *service.RolloverStats
	PendingExpired int
	ReportsExpired int
}

func NewService(
	ledger *service.LedgerService,
	reports *service.ReportService,
	pendingExpireHours int,
) *Service {
	if pendingExpireHours <= 0 {
		pendingExpireHours = 72
	}
	return &Service{
		ledger:         ledger,
		reports:        reports,
		pendingTimeout: time.Duration(pendingExpireHours) * time.Hour,
		interval:       time.Hour,
		stopChan:       make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runDailyRollover()
	go s.runHourly()
	log.Println("Cron service started (period rollover + pending expiry + report cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runDailyRollover 每日零点（UTC）滚动计费周期
func (s *Service) runDailyRollover() {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	timer := time.NewTimer(nextMidnight.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.rollover(time.Now().UTC())
			timer.Reset(24 * time.Hour)
		}
	}
}

// runHourly 每小时处理超时支付与过期报表
func (s *Service) runHourly() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			now := time.Now().UTC()
			s.expirePending()
			s.cleanupReports(now)
		}
	}
}

// RunOnce 同步执行全部任务，供维护命令与测试使用
func (s *Service) RunOnce(now time.Time) *Summary {
	return &Summary{
		Rollover:       s.rollover(now),
		PendingExpired: s.expirePending(),
		ReportsExpired: s.cleanupReports(now),
	}
}

func (s *Service) rollover(now time.Time) *service.RolloverStats {
	if s.ledger == nil {
		return &service.RolloverStats{}
	}
	stats, err := s.ledger.RollOverPeriods(now)
	if err != nil {
		log.Printf("Period rollover failed: %v", err)
	}
	if stats != nil && stats.Renewed+stats.PastDue+stats.Expired+stats.Cancelled > 0 {
		log.Printf("Period rollover: renewed=%d, past_due=%d, expired=%d, cancelled=%d",
			stats.Renewed, stats.PastDue, stats.Expired, stats.Cancelled)
	}
	return stats
}

func (s *Service) expirePending() int {
	if s.ledger == nil {
		return 0
	}
	expired, err := s.ledger.ExpireStalePending(s.pendingTimeout)
	if err != nil {
		log.Printf("Pending expiry failed: %v", err)
	}
	if expired > 0 {
		log.Printf("Pending expiry: %d payments marked failed", expired)
	}
	return expired
}

func (s *Service) cleanupReports(now time.Time) int {
	if s.reports == nil {
		return 0
	}
	cleaned, err := s.reports.CleanupExpired(now)
	if err != nil {
		log.Printf("Report cleanup failed: %v", err)
	}
	if cleaned > 0 {
		log.Printf("Report cleanup: %d reports expired", cleaned)
	}
	return cleaned
}
