package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/testutil"
)

func createReport(t *testing.T, db *gorm.DB, accountID int64, reportType, status string) *model.Report {
	t.Helper()

	report := &model.Report{
		AccountID: accountID,
		Title:     "Report " + reportType,
		Type:      reportType,
		Format:    "csv",
		Status:    status,
	}
	require.NoError(t, db.Create(report).Error)
	return report
}

func TestReportRepository_GetByIDAndAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewReportRepository(db)
	owner := testutil.TestAccount(t, db)
	other := testutil.TestAccount(t, db)
	report := createReport(t, db, owner.ID, model.ReportMonthlyInsights, model.ReportPending)

	found, err := repo.GetByIDAndAccount(report.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, found.ID)

	_, err = repo.GetByIDAndAccount(report.ID, other.ID)
	assert.Error(t, err)
}

func TestReportRepository_ListByAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewReportRepository(db)
	account := testutil.TestAccount(t, db)
	createReport(t, db, account.ID, model.ReportMonthlyInsights, model.ReportReady)
	createReport(t, db, account.ID, model.ReportCropTrends, model.ReportReady)
	createReport(t, db, account.ID, model.ReportCropTrends, model.ReportFailed)
	createReport(t, db, testutil.TestAccount(t, db).ID, model.ReportCropTrends, model.ReportReady)

	tests := []struct {
		name       string
		reportType string
		status     string
		page       int
		pageSize   int
		wantTotal  int64
		wantItems  int
	}{
		{"all", "", "", 1, 10, 3, 3},
		{"by type", model.ReportCropTrends, "", 1, 10, 2, 2},
		{"by status", "", model.ReportReady, 1, 10, 2, 2},
		{"second page", "", "", 2, 2, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, total, err := repo.ListByAccount(account.ID, tt.reportType, tt.status, tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Len(t, reports, tt.wantItems)
		})
	}
}

func TestReportRepository_CountSince_IgnoresFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewReportRepository(db)
	account := testutil.TestAccount(t, db)
	createReport(t, db, account.ID, model.ReportMonthlyInsights, model.ReportReady)
	createReport(t, db, account.ID, model.ReportMonthlyInsights, model.ReportFailed)

	since := time.Now().UTC().Add(-time.Hour)
	count, err := repo.CountSince(account.ID, model.ReportMonthlyInsights, since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountSince(account.ID, model.ReportMonthlyInsights, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestReportRepository_UpdateStatusIf(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewReportRepository(db)
	account := testutil.TestAccount(t, db)
	report := createReport(t, db, account.ID, model.ReportDataExport, model.ReportPending)

	ok, err := repo.UpdateStatusIf(report.ID, model.ReportPending, model.ReportGenerating)
	require.NoError(t, err)
	assert.True(t, ok)

	// 已被其他 worker 领取
	ok, err = repo.UpdateStatusIf(report.ID, model.ReportPending, model.ReportGenerating)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReportRepository_IncrementDownload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewReportRepository(db)
	account := testutil.TestAccount(t, db)
	report := createReport(t, db, account.ID, model.ReportDataExport, model.ReportReady)

	require.NoError(t, repo.IncrementDownload(report.ID))
	require.NoError(t, repo.IncrementDownload(report.ID))

	found, err := repo.GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.DownloadCount)
}

func TestReportRepository_ListExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewReportRepository(db)
	account := testutil.TestAccount(t, db)
	now := time.Now().UTC()

	expired := createReport(t, db, account.ID, model.ReportMonthlyInsights, model.ReportReady)
	require.NoError(t, repo.UpdateFields(expired.ID, map[string]interface{}{"expires_at": now.Add(-time.Hour)}))

	fresh := createReport(t, db, account.ID, model.ReportMonthlyInsights, model.ReportReady)
	require.NoError(t, repo.UpdateFields(fresh.ID, map[string]interface{}{"expires_at": now.Add(time.Hour)}))

	// 定制报表不过期
	createReport(t, db, account.ID, model.ReportCustomEnterprise, model.ReportReady)

	reports, err := repo.ListExpired(now, 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, expired.ID, reports[0].ID)
}
