//go:build integration
// +build integration

package repository

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/paynext/mchapply/internal/constants"
	"github.com/paynext/mchapply/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), models.NewGormConfig(false))
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := models.AllModels()
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresApplyRecordConstraints(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewMchApplyRecordRepository(db)

	if err := repo.Create(newActiveRecord("MA-PG-001", "M001", constants.ChannelCodeAliPay)); err != nil {
		t.Fatalf("create record failed: %v", err)
	}
	err := repo.Create(newActiveRecord("MA-PG-002", "M001", constants.ChannelCodeAliPay))
	if !errors.Is(err, ErrDuplicateActive) {
		t.Fatalf("expected ErrDuplicateActive on postgres, got %v", err)
	}

	ok, err := repo.TransitionStatus("MA-PG-001", constants.ApplyStatusSubmitted, map[string]interface{}{
		"apply_status": constants.ApplyStatusRejected,
		"active_key":   nil,
	})
	if err != nil || !ok {
		t.Fatalf("reject transition failed: %v %v", ok, err)
	}
	if err := repo.Create(newActiveRecord("MA-PG-003", "M001", constants.ChannelCodeAliPay)); err != nil {
		t.Fatalf("resubmit after reject should succeed: %v", err)
	}
}

func TestPostgresApplyRecordKeywordSearch(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewMchApplyRecordRepository(db)

	record := newActiveRecord("MA-PG-101", "M101", constants.ChannelCodeWxPay)
	record.ApplyData = models.JSON{"merchant_info": map[string]interface{}{"merchant_name": "Rocket Coffee 上海店"}}
	if err := repo.Create(record); err != nil {
		t.Fatalf("create record failed: %v", err)
	}

	rows, total, err := repo.List(MchApplyListFilter{Page: 1, PageSize: 10, Keyword: "rocket"})
	if err != nil {
		t.Fatalf("keyword search failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("case-insensitive keyword search want 1 got total=%d len=%d", total, len(rows))
	}

	rows, total, err = repo.List(MchApplyListFilter{Page: 1, PageSize: 10, Keyword: "上海"})
	if err != nil || total != 1 || len(rows) != 1 {
		t.Fatalf("jsonb keyword search want 1 got total=%d err=%v", total, err)
	}
}

func TestPostgresNotifyLogClaim(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewMchApplyNotifyLogRepository(db)

	newLog := func() *models.MchApplyNotifyLog {
		return &models.MchApplyNotifyLog{
			ChannelCode:    constants.ChannelCodeYsfPay,
			ChannelApplyID: "YSF-PG-1",
			ChannelState:   "00",
			ApplyID:        "MA-PG-201",
			Source:         constants.SyncSourceNotify,
		}
	}
	claimed, err := repo.Claim(newLog())
	if err != nil || !claimed {
		t.Fatalf("first claim should succeed: %v %v", claimed, err)
	}
	claimed, err = repo.Claim(newLog())
	if err != nil || claimed {
		t.Fatalf("second claim should be rejected: %v %v", claimed, err)
	}
}
