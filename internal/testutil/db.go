package testutil

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agripulse/agri_go_server/internal/database"
	"github.com/agripulse/agri_go_server/internal/model"
)

// mysqlTables 清理顺序（子表在前）
var mysqlTables = []string{
	"payment_events",
	"reports",
	"risk_factors",
	"agricultural_records",
	"subscriptions",
	"accounts",
}

func silentConfig() *gorm.Config {
	return &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// SetupTestDB SQLite 内存库，按模型建表
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), silentConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// 内存库按连接隔离
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Account{},
		&model.Subscription{},
		&model.AgriRecord{},
		&model.RiskFactor{},
		&model.Report{},
		&model.PaymentEvent{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// SetupMySQLDB 连接 TEST_DATABASE_DSN 指向的 MySQL，执行内嵌迁移并清空数据。
// DSN 形如 user:pass@tcp(127.0.0.1:3306)/agri_test?parseTime=True&loc=UTC
func SetupMySQLDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	src, err := database.MigrationSource()
	if err != nil {
		t.Fatalf("migration source: %v", err)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "mysql://"+dsn+sep+"multiStatements=true")
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
	m.Close()

	db, err := gorm.Open(mysql.Open(dsn), silentConfig())
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	for _, table := range mysqlTables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("clear %s: %v", table, err)
		}
	}
	return db
}

// CleanupTestDB 关闭底层连接
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Logf("close test db: %v", err)
	}
}
