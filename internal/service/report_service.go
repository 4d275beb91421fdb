package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/metrics"
	"github.com/agripulse/agri_go_server/internal/pkg/oss"
	"github.com/agripulse/agri_go_server/internal/pkg/pubsub"
	"github.com/agripulse/agri_go_server/internal/pkg/queue"
	"github.com/agripulse/agri_go_server/internal/repository"
)

var (
	ErrReportNotFound      = errors.New("report not found")
	ErrReportNotReady      = errors.New("report not ready for download")
	ErrReportExpired       = errors.New("report expired")
	ErrMonthlyReportExists = errors.New("monthly report already generated")
)

const (
	reportFormatCSV      = "csv"
	downloadURLExpire    = 15 * 60
	reportCleanupBatch   = 200
	maxReportPageSize    = 100
	defaultReportPageLen = 10
)

// reportQueries 各类型报表默认包含的查询
var reportQueries = map[string][]string{
	model.ReportMonthlyInsights:  {QueryRegionalCrops, QueryMarketPrices, QueryRiskAnalysis, QueryQualityMetrics},
	model.ReportDataExport:       {QueryRecords},
	model.ReportRegionalDeepDive: {QueryRegionalCrops, QueryHarvestTimeline},
	model.ReportCropTrends:       {QueryCropTrends},
	model.ReportRiskAnalysis:     {QueryRiskAnalysis},
	model.ReportCustomEnterprise: {QueryRegionalCrops, QueryMarketPrices, QueryRiskAnalysis},
}

var reportTitles = map[string]string{
	model.ReportDataExport:       "Data Export",
	model.ReportRegionalDeepDive: "Regional Deep Dive",
	model.ReportCropTrends:       "Crop Trends",
	model.ReportRiskAnalysis:     "Risk Analysis",
}

type ReportService struct {
	reportRepo  *repository.ReportRepository
	accountRepo *repository.AccountRepository
	insights    *InsightsService
	store       oss.Store
	jobQueue    *queue.Queue
	publisher   *pubsub.Publisher
	metrics     *metrics.Metrics
	cfg         *config.Config
}

func NewReportService(
	reportRepo *repository.ReportRepository,
	accountRepo *repository.AccountRepository,
	insights *InsightsService,
	store oss.Store,
	jobQueue *queue.Queue,
	publisher *pubsub.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
) *ReportService {
	return &ReportService{
		reportRepo:  reportRepo,
		accountRepo: accountRepo,
		insights:    insights,
		store:       store,
		jobQueue:    jobQueue,
		publisher:   publisher,
		metrics:     m,
		cfg:         cfg,
	}
}

// Create 创建报表并加入生成队列，月度报表每个自然月限一份
func (s *ReportService) Create(ctx context.Context, accountID int64, req *dto.CreateReportRequest) (*model.Report, error) {
	now := time.Now().UTC()

	if req.Type == model.ReportMonthlyInsights {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		count, err := s.reportRepo.CountSince(accountID, model.ReportMonthlyInsights, monthStart)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrMonthlyReportExists
		}
	}

	queries := reportQueries[req.Type]
	if req.Query != "" {
		queries = []string{req.Query}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultReportTitle(req.Type, now)
	}

	return s.enqueue(ctx, accountID, req.Type, title, &dto.ReportParameters{
		Queries: queries,
		Filters: req.Filters,
	})
}

// CreateCustom 企业定制报表，不过期
func (s *ReportService) CreateCustom(ctx context.Context, accountID int64, req *dto.CustomReportRequest) (*model.Report, error) {
	queries := req.Queries
	if len(queries) == 0 {
		queries = reportQueries[model.ReportCustomEnterprise]
	}

	return s.enqueue(ctx, accountID, model.ReportCustomEnterprise, strings.TrimSpace(req.Title), &dto.ReportParameters{
		Queries:     queries,
		Filters:     req.Filters,
		Description: req.Description,
	})
}

// markFailed 写入失败状态，写库失败只记录日志
func (s *ReportService) markFailed(reportID int64, reason string) {
	if err := s.reportRepo.UpdateFields(reportID, map[string]interface{}{
		"status":        model.ReportFailed,
		"error_message": reason,
	}); err != nil {
		log.Printf("[report] failed to mark report %d failed: %v", reportID, err)
	}
}

func (s *ReportService) enqueue(ctx context.Context, accountID int64, reportType, title string, params *dto.ReportParameters) (*model.Report, error) {
	for _, q := range params.Queries {
		if !KnownQuery(q) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, q)
		}
	}
	if _, err := ParseFilter(&params.Filters, "", time.Now().UTC()); err != nil {
		return nil, err
	}

	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		AccountID:  accountID,
		Title:      title,
		Type:       reportType,
		Format:     reportFormatCSV,
		Query:      strings.Join(params.Queries, ","),
		Parameters: datatypes.JSON(data),
		Status:     model.ReportPending,
	}
	if err := s.reportRepo.Create(report); err != nil {
		return nil, err
	}

	if err := s.jobQueue.PushReport(ctx, accountID, report.ID); err != nil {
		s.markFailed(report.ID, "failed to queue report")
		return nil, fmt.Errorf("failed to queue report: %w", err)
	}

	s.publishProgress(ctx, report, pubsub.StepQueued)
	s.metrics.Report(reportType, model.ReportPending)
	return report, nil
}

// List 分页查询报表
func (s *ReportService) List(accountID int64, req *dto.ReportListRequest) (*dto.ReportListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultReportPageLen
	}
	if pageSize > maxReportPageSize {
		pageSize = maxReportPageSize
	}

	reports, total, err := s.reportRepo.ListByAccount(accountID, req.Type, req.Status, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &dto.ReportListResponse{
		Reports:  reports,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Get 获取账户自己的报表
func (s *ReportService) Get(accountID, reportID int64) (*model.Report, error) {
	report, err := s.reportRepo.GetByIDAndAccount(reportID, accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return report, nil
}

// Download 报表需已生成且未过期，每次下载计数加一
func (s *ReportService) Download(accountID, reportID int64) (*dto.ReportDownload, error) {
	report, err := s.Get(accountID, reportID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if report.Status == model.ReportExpired || (report.Status == model.ReportReady && report.IsExpired(now)) {
		return nil, ErrReportExpired
	}
	if !report.CanDownload(now) {
		return nil, ErrReportNotReady
	}

	result := &dto.ReportDownload{
		Report:   report,
		FileName: fmt.Sprintf("report-%d.%s", report.ID, defaultString(report.Format, reportFormatCSV)),
		FilePath: s.store.LocalPath(report.FileKey),
	}
	if result.FilePath == "" {
		url, err := s.store.DownloadURL(report.FileKey, downloadURLExpire)
		if err != nil {
			return nil, err
		}
		result.DownloadURL = url
	}

	if err := s.reportRepo.IncrementDownload(report.ID); err != nil {
		log.Printf("[report] increment download count for %d failed: %v", report.ID, err)
	} else {
		report.DownloadCount++
	}
	return result, nil
}

// Generate 由 worker 调用：执行查询、渲染 CSV、上传并标记 ready
func (s *ReportService) Generate(ctx context.Context, reportID int64) error {
	started := time.Now()

	// 只有 pending 的报表会被处理，重复投递直接跳过
	claimed, err := s.reportRepo.UpdateStatusIf(reportID, model.ReportPending, model.ReportGenerating)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("[report] report %d is not pending, skipped", reportID)
		return nil
	}

	report, err := s.reportRepo.GetByID(reportID)
	if err != nil {
		return err
	}

	handleError := func(err error) error {
		log.Printf("[report] generate report %d failed: %v", report.ID, err)
		s.markFailed(report.ID, err.Error())
		s.metrics.Report(report.Type, model.ReportFailed)
		if s.publisher != nil {
			s.publisher.PublishReportProgress(ctx, &pubsub.EventMessage{
				AccountID: report.AccountID,
				ReportID:  report.ID,
				Status:    model.ReportFailed,
				Error:     err.Error(),
			})
		}
		return err
	}

	var params dto.ReportParameters
	if len(report.Parameters) > 0 {
		if err := json.Unmarshal(report.Parameters, &params); err != nil {
			return handleError(fmt.Errorf("invalid report parameters: %w", err))
		}
	}
	if len(params.Queries) == 0 {
		params.Queries = reportQueries[report.Type]
	}

	now := time.Now().UTC()
	filter, err := ParseFilter(&params.Filters, "", now)
	if err != nil {
		return handleError(err)
	}

	s.publishProgress(ctx, report, pubsub.StepQuerying)
	tables := make([]*Table, 0, len(params.Queries))
	summary := dto.ReportSummary{Queries: params.Queries, RowsByQuery: map[string]int{}}
	for _, name := range params.Queries {
		table, err := s.insights.RunQuery(ctx, name, filter)
		if err != nil {
			return handleError(err)
		}
		tables = append(tables, table)
		summary.RowsByQuery[name] = len(table.Rows)
		summary.TotalRecords += len(table.Rows)
	}

	s.publishProgress(ctx, report, pubsub.StepRendering)
	data, err := RenderCSV(params.Queries, tables)
	if err != nil {
		return handleError(err)
	}

	s.publishProgress(ctx, report, pubsub.StepUploading)
	objectKey := fmt.Sprintf("reports/%d/%d-%d.csv", report.AccountID, report.ID, now.Unix())
	fileURL, err := s.store.Upload(objectKey, data, oss.ContentType(reportFormatCSV))
	if err != nil {
		return handleError(err)
	}

	summaryJSON, _ := json.Marshal(summary)
	fields := map[string]interface{}{
		"status":          model.ReportReady,
		"file_key":        objectKey,
		"file_url":        fileURL,
		"file_size":       int64(len(data)),
		"total_records":   summary.TotalRecords,
		"summary":         datatypes.JSON(summaryJSON),
		"generation_time": time.Since(started).Milliseconds(),
		"generated_at":    now,
		"error_message":   "",
	}
	if report.Type != model.ReportCustomEnterprise {
		fields["expires_at"] = now.AddDate(0, 0, s.expireDays())
	}
	if err := s.reportRepo.UpdateFields(report.ID, fields); err != nil {
		return handleError(err)
	}

	s.publishProgress(ctx, report, pubsub.StepDone)
	s.metrics.Report(report.Type, model.ReportReady)
	s.notifyReady(ctx, report)
	return nil
}

// CleanupExpired 删除过期报表文件并标记为 expired
func (s *ReportService) CleanupExpired(now time.Time) (int, error) {
	reports, err := s.reportRepo.ListExpired(now, reportCleanupBatch)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, r := range reports {
		if r.FileKey != "" {
			if err := s.store.Delete(r.FileKey); err != nil {
				log.Printf("[report] delete file %s failed: %v", r.FileKey, err)
				continue
			}
		}
		if err := s.reportRepo.UpdateFields(r.ID, map[string]interface{}{
			"status":   model.ReportExpired,
			"file_url": "",
		}); err != nil {
			log.Printf("[report] mark report %d expired failed: %v", r.ID, err)
			continue
		}
		cleaned++
	}
	return cleaned, nil
}

func (s *ReportService) expireDays() int {
	if s.cfg.Reports.ExpireDays > 0 {
		return s.cfg.Reports.ExpireDays
	}
	return 30
}

func (s *ReportService) publishProgress(ctx context.Context, report *model.Report, step string) {
	if s.publisher == nil {
		return
	}
	status := model.ReportGenerating
	switch step {
	case pubsub.StepQueued:
		status = model.ReportPending
	case pubsub.StepDone:
		status = model.ReportReady
	}
	err := s.publisher.PublishReportProgress(ctx, &pubsub.EventMessage{
		AccountID: report.AccountID,
		ReportID:  report.ID,
		Status:    status,
		Step:      step,
	})
	if err != nil {
		log.Printf("[report] publish progress for %d failed: %v", report.ID, err)
	}
}

func (s *ReportService) notifyReady(ctx context.Context, report *model.Report) {
	if s.jobQueue == nil || s.accountRepo == nil {
		return
	}
	account, err := s.accountRepo.GetByID(report.AccountID)
	if err != nil {
		log.Printf("[report] ready email skipped, account %d: %v", report.AccountID, err)
		return
	}
	err = s.jobQueue.PushEmail(ctx, &queue.EmailJob{
		Template: queue.TemplateReportReady,
		To:       account.Email,
		Data: map[string]string{
			"name":      account.Name,
			"title":     report.Title,
			"report_id": itoa(report.ID),
		},
	})
	if err != nil {
		log.Printf("[report] enqueue ready email failed: %v", err)
	}
}

// RenderCSV 多个查询结果写入同一个 CSV，各段之间以空行和 "# 查询名" 分隔
func RenderCSV(names []string, tables []*Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	for i, t := range tables {
		if len(tables) > 1 {
			if i > 0 {
				if err := w.Write([]string{""}); err != nil {
					return nil, err
				}
			}
			if err := w.Write([]string{"# " + names[i]}); err != nil {
				return nil, err
			}
		}
		if err := w.Write(t.Columns); err != nil {
			return nil, err
		}
		if err := w.WriteAll(t.Rows); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func defaultReportTitle(reportType string, now time.Time) string {
	if reportType == model.ReportMonthlyInsights {
		return "Monthly Agricultural Insights - " + now.Format("January 2006")
	}
	return defaultString(reportTitles[reportType], "Report") + " - " + now.Format("2006-01-02")
}
