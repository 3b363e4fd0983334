package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateRebuildsLegacyNotifyIndex(t *testing.T) {
	dsn := fmt.Sprintf("file:models_migrate_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), NewGormConfig(false))
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	legacy := []string{
		`CREATE TABLE mch_apply_notify_logs (
			id integer PRIMARY KEY AUTOINCREMENT,
			channel_code varchar(32) NOT NULL,
			channel_apply_id varchar(64) NOT NULL,
			channel_state varchar(64) NOT NULL,
			apply_id varchar(32),
			source varchar(16) NOT NULL,
			payload text,
			created_at datetime
		)`,
		`CREATE UNIQUE INDEX uk_apply_notify_state ON mch_apply_notify_logs (channel_code, channel_apply_id, channel_state)`,
	}
	for _, stmt := range legacy {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create legacy schema failed: %v", err)
		}
	}

	if err := migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	for round := 1; round <= 2; round++ {
		row := &MchApplyNotifyLog{
			ChannelCode:    "WX_PAY",
			ChannelApplyID: "2000001234567890",
			ChannelState:   "APPLYMENT_STATE_REJECTED",
			SubmitRound:    round,
			ApplyID:        "MA001",
			Source:         "query",
		}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("round %d insert failed: %v", round, err)
		}
	}
	dup := &MchApplyNotifyLog{
		ChannelCode:    "WX_PAY",
		ChannelApplyID: "2000001234567890",
		ChannelState:   "APPLYMENT_STATE_REJECTED",
		SubmitRound:    2,
		ApplyID:        "MA001",
		Source:         "notify",
	}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("same state within one round should still be unique")
	}
}
