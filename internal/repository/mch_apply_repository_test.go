package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paynext/mchapply/internal/constants"
	"github.com/paynext/mchapply/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupMchApplyRepositoryTest(t *testing.T, cfg *gorm.Config) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:mch_apply_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func newActiveRecord(applyID, mchNo, channelCode string) *models.MchApplyRecord {
	key := models.ActiveKeyFor(mchNo, channelCode)
	return &models.MchApplyRecord{
		ApplyID:     applyID,
		MchNo:       mchNo,
		ChannelCode: channelCode,
		ApplyStatus: constants.ApplyStatusSubmitted,
		ActiveKey:   &key,
	}
}

func TestMchApplyRecordRepositoryRejectsDuplicateActive(t *testing.T) {
	for name, cfg := range map[string]*gorm.Config{
		"translated": models.NewGormConfig(false),
		"raw":        {},
	} {
		t.Run(name, func(t *testing.T) {
			repo := NewMchApplyRecordRepository(setupMchApplyRepositoryTest(t, cfg))
			if err := repo.Create(newActiveRecord("MA001", "M001", constants.ChannelCodeAliPay)); err != nil {
				t.Fatalf("create first record failed: %v", err)
			}
			err := repo.Create(newActiveRecord("MA002", "M001", constants.ChannelCodeAliPay))
			if !errors.Is(err, ErrDuplicateActive) {
				t.Fatalf("expected ErrDuplicateActive, got %v", err)
			}
			if err := repo.Create(newActiveRecord("MA003", "M001", constants.ChannelCodeWxPay)); err != nil {
				t.Fatalf("other channel should be allowed: %v", err)
			}
		})
	}
}

func TestMchApplyRecordRepositoryReleaseActiveKey(t *testing.T) {
	repo := NewMchApplyRecordRepository(setupMchApplyRepositoryTest(t, models.NewGormConfig(false)))
	if err := repo.Create(newActiveRecord("MA001", "M001", constants.ChannelCodeAliPay)); err != nil {
		t.Fatalf("create record failed: %v", err)
	}
	ok, err := repo.TransitionStatus("MA001", constants.ApplyStatusSubmitted, map[string]interface{}{
		"apply_status": constants.ApplyStatusRejected,
		"active_key":   nil,
	})
	if err != nil || !ok {
		t.Fatalf("transition failed: %v %v", ok, err)
	}
	active, err := repo.GetActive("M001", constants.ChannelCodeAliPay)
	if err != nil || active != nil {
		t.Fatalf("active key should be released, got %+v %v", active, err)
	}
	if err := repo.Create(newActiveRecord("MA002", "M001", constants.ChannelCodeAliPay)); err != nil {
		t.Fatalf("re-apply after rejection failed: %v", err)
	}
}

func TestMchApplyRecordRepositoryTransitionStatusIsConditional(t *testing.T) {
	repo := NewMchApplyRecordRepository(setupMchApplyRepositoryTest(t, models.NewGormConfig(false)))
	if err := repo.Create(newActiveRecord("MA001", "M001", constants.ChannelCodeWxPay)); err != nil {
		t.Fatalf("create record failed: %v", err)
	}
	updates := map[string]interface{}{"apply_status": constants.ApplyStatusCancelled}
	ok, err := repo.TransitionStatus("MA001", constants.ApplyStatusSubmitted, updates)
	if err != nil || !ok {
		t.Fatalf("first transition should apply: %v %v", ok, err)
	}
	ok, err = repo.TransitionStatus("MA001", constants.ApplyStatusSubmitted, updates)
	if err != nil || ok {
		t.Fatalf("second transition should miss: %v %v", ok, err)
	}
	record, err := repo.GetByApplyID("MA001")
	if err != nil || record.ApplyStatus != constants.ApplyStatusCancelled {
		t.Fatalf("unexpected record: %+v %v", record, err)
	}
	missing, err := repo.GetByApplyID("MA404")
	if err != nil || missing != nil {
		t.Fatalf("missing record should be nil: %+v %v", missing, err)
	}
}

func TestMchApplyRecordRepositoryListFilter(t *testing.T) {
	repo := NewMchApplyRecordRepository(setupMchApplyRepositoryTest(t, models.NewGormConfig(false)))
	for i, code := range []string{constants.ChannelCodeAliPay, constants.ChannelCodeWxPay, constants.ChannelCodeYsfPay} {
		if err := repo.Create(newActiveRecord(fmt.Sprintf("MA00%d", i), "M001", code)); err != nil {
			t.Fatalf("create record failed: %v", err)
		}
	}
	status := constants.ApplyStatusSubmitted
	records, total, err := repo.List(MchApplyListFilter{MchNo: "M001", ApplyStatus: &status, Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 || len(records) != 2 {
		t.Fatalf("unexpected page: total=%d len=%d", total, len(records))
	}
	records, total, err = repo.List(MchApplyListFilter{ChannelCode: constants.ChannelCodeWxPay})
	if err != nil || total != 1 || records[0].ChannelCode != constants.ChannelCodeWxPay {
		t.Fatalf("unexpected channel filter result: %+v %d %v", records, total, err)
	}
}

func TestMchApplyRecordRepositoryKeywordSearch(t *testing.T) {
	repo := NewMchApplyRecordRepository(setupMchApplyRepositoryTest(t, models.NewGormConfig(false)))
	first := newActiveRecord("MA101", "M101", constants.ChannelCodeAliPay)
	first.ApplyData = models.JSON{"merchant_info": map[string]interface{}{"merchant_name": "杭州百货_旗舰店"}}
	second := newActiveRecord("MA102", "M102", constants.ChannelCodeAliPay)
	second.ApplyData = models.JSON{"merchant_info": map[string]interface{}{"merchant_name": "杭州百货一店"}}
	for _, record := range []*models.MchApplyRecord{first, second} {
		if err := repo.Create(record); err != nil {
			t.Fatalf("create record failed: %v", err)
		}
	}

	records, total, err := repo.List(MchApplyListFilter{Keyword: "杭州百货"})
	if err != nil || total != 2 || len(records) != 2 {
		t.Fatalf("merchant name keyword should match both: total=%d err=%v", total, err)
	}
	records, total, err = repo.List(MchApplyListFilter{Keyword: "百货_"})
	if err != nil || total != 1 || records[0].ApplyID != "MA101" {
		t.Fatalf("underscore should be matched literally: %+v %d %v", records, total, err)
	}
	records, total, err = repo.List(MchApplyListFilter{Keyword: "M102"})
	if err != nil || total != 1 || records[0].ApplyID != "MA102" {
		t.Fatalf("mch_no keyword mismatch: %+v %d %v", records, total, err)
	}
}

func TestMchApplyNotifyLogRepositoryClaimOnce(t *testing.T) {
	repo := NewMchApplyNotifyLogRepository(setupMchApplyRepositoryTest(t, models.NewGormConfig(false)))
	newLog := func() *models.MchApplyNotifyLog {
		return &models.MchApplyNotifyLog{
			ChannelCode:    constants.ChannelCodeWxPay,
			ChannelApplyID: "2000002124775691",
			ChannelState:   "APPLYMENT_STATE_FINISHED",
			ApplyID:        "MA001",
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
	logs, err := repo.ListByApplyID("MA001")
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one log, got %d %v", len(logs), err)
	}

	resubmitted := newLog()
	resubmitted.SubmitRound = 2
	claimed, err = repo.Claim(resubmitted)
	if err != nil || !claimed {
		t.Fatalf("same state in next submit round should be claimable: %v %v", claimed, err)
	}
}

func TestMchApplyRecordRepositoryListDueForSync(t *testing.T) {
	repo := NewMchApplyRecordRepository(setupMchApplyRepositoryTest(t, models.NewGormConfig(false)))
	for i, code := range []string{constants.ChannelCodeAliPay, constants.ChannelCodeWxPay, constants.ChannelCodeYsfPay} {
		record := newActiveRecord(fmt.Sprintf("MA00%d", i+1), "M001", code)
		record.ApplyStatus = constants.ApplyStatusChannelProcessing
		if err := repo.Create(record); err != nil {
			t.Fatalf("create record failed: %v", err)
		}
	}
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if err := repo.MarkSynced("MA001", base.Add(2*time.Minute)); err != nil {
		t.Fatalf("mark synced failed: %v", err)
	}
	if err := repo.MarkSynced("MA002", base.Add(time.Minute)); err != nil {
		t.Fatalf("mark synced failed: %v", err)
	}

	records, err := repo.ListDueForSync(constants.ApplyStatusChannelProcessing, 2)
	if err != nil {
		t.Fatalf("list due failed: %v", err)
	}
	if len(records) != 2 || records[0].ApplyID != "MA003" || records[1].ApplyID != "MA002" {
		t.Fatalf("never synced first then oldest sync, got %+v", records)
	}
	before, _ := repo.GetByApplyID("MA001")
	if before.LastSyncedAt == nil {
		t.Fatalf("last_synced_at should be stored")
	}
	if err := repo.MarkSynced("MA003", base.Add(3*time.Minute)); err != nil {
		t.Fatalf("mark synced failed: %v", err)
	}
	records, err = repo.ListDueForSync(constants.ApplyStatusChannelProcessing, 1)
	if err != nil || len(records) != 1 || records[0].ApplyID != "MA002" {
		t.Fatalf("expected MA002 next, got %+v %v", records, err)
	}
}

func TestMchApplyMaterialRepository(t *testing.T) {
	db := setupMchApplyRepositoryTest(t, models.NewGormConfig(false))
	repo := NewMchApplyMaterialRepository(db)
	materials := []models.MchApplyMaterial{
		{MaterialID: "MAT1", ApplyID: "MA001", MaterialType: constants.MaterialBusinessLicense, FileURL: "u1"},
		{MaterialID: "MAT2", ApplyID: "MA001", MaterialType: constants.MaterialLegalIDFront, FileURL: "u2"},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).CreateBatch(materials)
	})
	if err != nil {
		t.Fatalf("create batch failed: %v", err)
	}
	count, err := repo.CountByApplyID("MA001")
	if err != nil || count != 2 {
		t.Fatalf("expected 2 materials, got %d %v", count, err)
	}
	if err := repo.DeleteByApplyID("MA001"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if count, _ := repo.CountByApplyID("MA001"); count != 0 {
		t.Fatalf("expected materials deleted, got %d", count)
	}
}

func TestChannelApplyConfigRepository(t *testing.T) {
	repo := NewChannelApplyConfigRepository(setupMchApplyRepositoryTest(t, models.NewGormConfig(false)))
	for _, cfg := range models.DefaultChannelApplyConfigs() {
		cfg := cfg
		if err := repo.Create(&cfg); err != nil {
			t.Fatalf("create config failed: %v", err)
		}
	}
	ok, err := repo.SetEnabled("ysf_pay", false)
	if err != nil || !ok {
		t.Fatalf("set enabled failed: %v %v", ok, err)
	}
	enabled, err := repo.List(true)
	if err != nil || len(enabled) != 2 {
		t.Fatalf("expected 2 enabled configs, got %d %v", len(enabled), err)
	}
	cfg, err := repo.GetByChannelCode("wx_pay")
	if err != nil || cfg == nil || cfg.ChannelCode != constants.ChannelCodeWxPay {
		t.Fatalf("unexpected config: %+v %v", cfg, err)
	}
}
