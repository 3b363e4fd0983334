package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/cache"
	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/constants"
	"github.com/paynext/mchapply/internal/logger"
	"github.com/paynext/mchapply/internal/metrics"
	"github.com/paynext/mchapply/internal/models"
	"github.com/paynext/mchapply/internal/queue"
	"github.com/paynext/mchapply/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApplyOptions 进件流程参数
type ApplyOptions struct {
	PollDelay      time.Duration // 状态轮询间隔
	PollMaxRounds  int           // 状态轮询最大轮数
	NotifyDedupTTL time.Duration // 回调去重缓存时长
}

// ApplyService 进件编排服务
type ApplyService struct {
	db            *gorm.DB
	recordRepo    repository.MchApplyRecordRepository
	materialRepo  repository.MchApplyMaterialRepository
	configRepo    repository.ChannelApplyConfigRepository
	auditRepo     repository.MchApplyAuditRecordRepository
	notifyLogRepo repository.MchApplyNotifyLogRepository
	registry      *channel.Registry
	queueClient   *queue.Client
	metrics       *metrics.Metrics
	options       ApplyOptions
	now           func() time.Time
}

// NewApplyService 创建进件编排服务
func NewApplyService(db *gorm.DB, recordRepo repository.MchApplyRecordRepository, materialRepo repository.MchApplyMaterialRepository, configRepo repository.ChannelApplyConfigRepository, auditRepo repository.MchApplyAuditRecordRepository, notifyLogRepo repository.MchApplyNotifyLogRepository, registry *channel.Registry, queueClient *queue.Client, m *metrics.Metrics, options ApplyOptions) *ApplyService {
	if options.PollDelay <= 0 {
		options.PollDelay = 5 * time.Minute
	}
	if options.PollMaxRounds <= 0 {
		options.PollMaxRounds = 48
	}
	if options.NotifyDedupTTL <= 0 {
		options.NotifyDedupTTL = 24 * time.Hour
	}
	return &ApplyService{
		db:            db,
		recordRepo:    recordRepo,
		materialRepo:  materialRepo,
		configRepo:    configRepo,
		auditRepo:     auditRepo,
		notifyLogRepo: notifyLogRepo,
		registry:      registry,
		queueClient:   queueClient,
		metrics:       m,
		options:       options,
		now:           time.Now,
	}
}

// ApplyDetail 申请详情
type ApplyDetail struct {
	Record     *models.MchApplyRecord       `json:"record"`
	Materials  []models.MchApplyMaterial    `json:"materials"`
	Audits     []models.MchApplyAuditRecord `json:"audits"`
	NotifyLogs []models.MchApplyNotifyLog   `json:"notify_logs"`
}

// SubmitApply 提交进件申请并转发渠道，渠道失败时申请保持 SUBMITTED 并返回申请单号
func (s *ApplyService) SubmitApply(ctx context.Context, info *channel.ApplyInfo) (string, error) {
	if err := normalizeApplyInfo(info); err != nil {
		return "", err
	}
	adapter, cfg, err := s.resolveChannel(info.ChannelCode, true)
	if err != nil {
		return "", err
	}
	if err := validateMaterials(info, cfg); err != nil {
		return "", err
	}
	if err := s.ensureNoActive(info.MchNo, info.ChannelCode); err != nil {
		return "", err
	}

	now := s.now()
	record, err := buildApplyRecord(info, constants.ApplyStatusSubmitted, now)
	if err != nil {
		return "", err
	}
	materials := buildMaterials(record.ApplyID, info.Materials, now)
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.recordRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		return s.materialRepo.WithTx(tx).CreateBatch(materials)
	}); err != nil {
		return "", translateSaveError(err)
	}

	log := applyLogger(record)
	log.Infow("apply_submitted", "material_count", len(materials))
	s.metrics.ObserveTransition(record.ChannelCode, constants.ApplyStatusDraft, constants.ApplyStatusSubmitted)

	s.dispatchToChannel(ctx, record, adapter, info)
	return record.ApplyID, nil
}

// SaveDraft 保存进件草稿，同一商户同一渠道仍只允许一条有效申请
func (s *ApplyService) SaveDraft(ctx context.Context, info *channel.ApplyInfo) (string, error) {
	if err := normalizeApplyInfo(info); err != nil {
		return "", err
	}
	if _, _, err := s.resolveChannel(info.ChannelCode, false); err != nil {
		return "", err
	}
	for _, material := range info.Materials {
		if !constants.KnownMaterialType(material.MaterialType) {
			return "", fmt.Errorf("%w: %s", ErrMaterialTypeInvalid, material.MaterialType)
		}
	}
	if err := s.ensureNoActive(info.MchNo, info.ChannelCode); err != nil {
		return "", err
	}

	now := s.now()
	record, err := buildApplyRecord(info, constants.ApplyStatusDraft, now)
	if err != nil {
		return "", err
	}
	record.SubmitTime = nil
	materials := buildMaterials(record.ApplyID, info.Materials, now)
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.recordRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		return s.materialRepo.WithTx(tx).CreateBatch(materials)
	}); err != nil {
		return "", translateSaveError(err)
	}
	applyLogger(record).Infow("apply_draft_saved", "material_count", len(materials))
	return record.ApplyID, nil
}

// ResubmitApply 草稿、已驳回或渠道未受理的已提交申请重新提交，资料整体替换
func (s *ApplyService) ResubmitApply(ctx context.Context, applyID string, info *channel.ApplyInfo) (*models.MchApplyRecord, error) {
	record, err := s.getRecord(applyID)
	if err != nil {
		return nil, err
	}
	if !resubmittable(record) {
		return nil, fmt.Errorf("%w: resubmit from %s", ErrInvalidStateTransition, constants.ApplyStatusName(record.ApplyStatus))
	}
	if info == nil {
		return nil, ErrApplyInfoInvalid
	}
	if strings.TrimSpace(info.MchNo) == "" {
		info.MchNo = record.MchNo
	}
	if strings.TrimSpace(info.ChannelCode) == "" {
		info.ChannelCode = record.ChannelCode
	}
	if strings.TrimSpace(info.IsvNo) == "" {
		info.IsvNo = record.IsvNo
	}
	if err := normalizeApplyInfo(info); err != nil {
		return nil, err
	}
	if info.MchNo != record.MchNo || info.ChannelCode != record.ChannelCode {
		return nil, fmt.Errorf("%w: merchant or channel mismatch", ErrApplyInfoInvalid)
	}
	adapter, cfg, err := s.resolveChannel(info.ChannelCode, true)
	if err != nil {
		return nil, err
	}
	if err := validateMaterials(info, cfg); err != nil {
		return nil, err
	}
	if record.ApplyStatus == constants.ApplyStatusRejected {
		if err := s.ensureNoActive(info.MchNo, info.ChannelCode); err != nil {
			return nil, err
		}
	}

	now := s.now()
	info.ApplyID = record.ApplyID
	applyData, err := models.ToJSON(info)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyInfoInvalid, err)
	}
	activeKey := models.ActiveKeyFor(record.MchNo, record.ChannelCode)
	materials := buildMaterials(record.ApplyID, info.Materials, now)
	fromStatus := record.ApplyStatus
	// 微信等渠道重新提交沿用同一渠道申请单号，状态幂等按轮次区分
	nextRound := record.Round() + 1
	err = s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.recordRepo.WithTx(tx).TransitionStatus(record.ApplyID, fromStatus, map[string]interface{}{
			"apply_status":     constants.ApplyStatusSubmitted,
			"submit_round":     nextRound,
			"apply_data":       applyData,
			"isv_no":           info.IsvNo,
			"active_key":       activeKey,
			"submit_time":      now,
			"channel_apply_id": nil,
			"channel_state":    "",
			"sub_mch_id":       "",
			"reject_reason":    "",
			"audit_info":       nil,
			"audit_time":       nil,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStateTransition
		}
		materialRepo := s.materialRepo.WithTx(tx)
		if err := materialRepo.DeleteByApplyID(record.ApplyID); err != nil {
			return err
		}
		return materialRepo.CreateBatch(materials)
	})
	if err != nil {
		return nil, translateSaveError(err)
	}
	_ = cache.DelApplyState(ctx, record.ApplyID)

	record.ApplyStatus = constants.ApplyStatusSubmitted
	record.ApplyData = applyData
	record.ActiveKey = &activeKey
	record.ChannelApplyID = nil
	record.ChannelState = ""
	record.SubMchID = ""
	record.RejectReason = ""
	record.SubmitTime = &now
	record.SubmitRound = nextRound
	applyLogger(record).Infow("apply_resubmitted",
		"from_status", constants.ApplyStatusName(fromStatus),
		"submit_round", nextRound,
		"material_count", len(materials),
	)
	s.metrics.ObserveTransition(record.ChannelCode, fromStatus, constants.ApplyStatusSubmitted)

	s.dispatchToChannel(ctx, record, adapter, info)
	return s.getRecord(record.ApplyID)
}

// QueryApplyStatus 查询申请记录
func (s *ApplyService) QueryApplyStatus(ctx context.Context, applyID string) (*models.MchApplyRecord, error) {
	record, err := s.getRecord(applyID)
	if err != nil {
		return nil, err
	}
	_ = cache.SetApplyState(ctx, cache.BuildApplyState(record))
	return record, nil
}

// GetApplyDetail 查询申请详情（资料、审核记录、渠道状态日志）
func (s *ApplyService) GetApplyDetail(ctx context.Context, applyID string) (*ApplyDetail, error) {
	record, err := s.getRecord(applyID)
	if err != nil {
		return nil, err
	}
	materials, err := s.materialRepo.ListByApplyID(record.ApplyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	audits, err := s.auditRepo.ListByApplyID(record.ApplyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	logs, err := s.notifyLogRepo.ListByApplyID(record.ApplyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	return &ApplyDetail{
		Record:     record,
		Materials:  materials,
		Audits:     audits,
		NotifyLogs: logs,
	}, nil
}

// ListApplies 按条件查询申请列表
func (s *ApplyService) ListApplies(filter repository.MchApplyListFilter) ([]models.MchApplyRecord, int64, error) {
	filter.MchNo = strings.TrimSpace(filter.MchNo)
	filter.IsvNo = strings.TrimSpace(filter.IsvNo)
	filter.ChannelCode = strings.ToUpper(strings.TrimSpace(filter.ChannelCode))
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	records, total, err := s.recordRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	return records, total, nil
}

// CancelApply 取消申请，仅草稿或已提交状态允许
func (s *ApplyService) CancelApply(ctx context.Context, applyID string) error {
	record, err := s.getRecord(applyID)
	if err != nil {
		return err
	}
	if record.ApplyStatus != constants.ApplyStatusDraft && record.ApplyStatus != constants.ApplyStatusSubmitted {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidStateTransition, constants.ApplyStatusName(record.ApplyStatus))
	}
	ok, err := s.recordRepo.TransitionStatus(record.ApplyID, record.ApplyStatus, map[string]interface{}{
		"apply_status": constants.ApplyStatusCancelled,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApplySaveFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: status changed concurrently", ErrInvalidStateTransition)
	}
	_ = cache.DelApplyState(ctx, record.ApplyID)
	applyLogger(record).Infow("apply_cancelled", "from_status", constants.ApplyStatusName(record.ApplyStatus))
	s.metrics.ObserveTransition(record.ChannelCode, record.ApplyStatus, constants.ApplyStatusCancelled)
	return nil
}

// AuditApply 平台审核，仅已提交状态允许；驳回时释放有效申请唯一键
func (s *ApplyService) AuditApply(ctx context.Context, applyID string, decision int, opinion, auditor string) (*models.MchApplyRecord, error) {
	var target int
	switch decision {
	case constants.AuditStatusApproved:
		target = constants.ApplyStatusApproved
	case constants.AuditStatusRejected:
		target = constants.ApplyStatusRejected
	default:
		return nil, fmt.Errorf("%w: %d", ErrAuditDecisionInvalid, decision)
	}
	record, err := s.getRecord(applyID)
	if err != nil {
		return nil, err
	}
	if record.ApplyStatus != constants.ApplyStatusSubmitted {
		return nil, fmt.Errorf("%w: audit from %s", ErrInvalidStateTransition, constants.ApplyStatusName(record.ApplyStatus))
	}

	now := s.now()
	opinion = strings.TrimSpace(opinion)
	auditor = strings.TrimSpace(auditor)
	updates := map[string]interface{}{
		"apply_status": target,
		"audit_time":   now,
		"audit_info": models.JSON{
			"source":       "platform",
			"audit_status": decision,
			"opinion":      opinion,
			"auditor":      auditor,
			"audit_time":   now.Format(time.RFC3339),
		},
	}
	if target == constants.ApplyStatusRejected {
		updates["reject_reason"] = opinion
		updates["active_key"] = nil
	}
	audit := &models.MchApplyAuditRecord{
		AuditID:      uuid.NewString(),
		ApplyID:      record.ApplyID,
		AuditType:    constants.AuditTypePlatform,
		AuditStatus:  decision,
		AuditOpinion: opinion,
		Auditor:      auditor,
		AuditTime:    now,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.recordRepo.WithTx(tx).TransitionStatus(record.ApplyID, constants.ApplyStatusSubmitted, updates)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStateTransition
		}
		return s.auditRepo.WithTx(tx).Create(audit)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidStateTransition) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidStateTransition)
		}
		return nil, fmt.Errorf("%w: %v", ErrApplySaveFailed, err)
	}
	_ = cache.DelApplyState(ctx, record.ApplyID)
	applyLogger(record).Infow("apply_platform_audited",
		"audit_status", decision,
		"auditor", auditor,
		"to_status", constants.ApplyStatusName(target),
	)
	s.metrics.ObserveTransition(record.ChannelCode, constants.ApplyStatusSubmitted, target)
	return s.getRecord(record.ApplyID)
}

// dispatchToChannel 调用渠道提交；失败仅记录在 audit_info，申请保持 SUBMITTED
func (s *ApplyService) dispatchToChannel(ctx context.Context, record *models.MchApplyRecord, adapter channel.Adapter, info *channel.ApplyInfo) {
	log := applyLogger(record)
	info.ApplyID = record.ApplyID
	start := s.now()
	result := adapter.SubmitToChannel(ctx, info)
	if result == nil {
		result = channel.SystemFailure(errors.New("adapter returned nil result"))
	}
	s.metrics.ObserveChannelCall(record.ChannelCode, "submit", result.ErrorCode, s.now().Sub(start))

	now := s.now()
	if !result.Success {
		log.Warnw("apply_submit_channel_failed",
			"error_code", result.ErrorCode,
			"channel_status", result.ChannelStatus,
			"error_message", result.ErrorMessage,
		)
		if err := s.recordRepo.Update(record.ApplyID, map[string]interface{}{
			"audit_info": models.JSON{
				"source":         constants.SyncSourceSubmit,
				"error_code":     result.ErrorCode,
				"error_message":  result.ErrorMessage,
				"channel_status": result.ChannelStatus,
				"at":             now.Format(time.RFC3339),
			},
		}); err != nil {
			log.Errorw("apply_submit_failure_persist_failed", "error", err)
		}
		return
	}

	channelApplyID := strings.TrimSpace(result.ChannelApplyID)
	channelState := strings.ToUpper(strings.TrimSpace(result.ChannelStatus))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.recordRepo.WithTx(tx).TransitionStatus(record.ApplyID, constants.ApplyStatusSubmitted, map[string]interface{}{
			"apply_status":     constants.ApplyStatusChannelProcessing,
			"channel_apply_id": channelApplyID,
			"channel_state":    channelState,
			"audit_info": models.JSON{
				"source":           constants.SyncSourceSubmit,
				"channel_apply_id": channelApplyID,
				"channel_status":   channelState,
				"at":               now.Format(time.RFC3339),
			},
		})
		if err != nil {
			return err
		}
		if !ok {
			return errRecordStale
		}
		if channelState == "" {
			return nil
		}
		// 受理状态计入日志，迟到的同状态通知不会回退后续进度
		_, err = s.notifyLogRepo.WithTx(tx).Claim(&models.MchApplyNotifyLog{
			ChannelCode:    record.ChannelCode,
			ChannelApplyID: channelApplyID,
			ChannelState:   channelState,
			SubmitRound:    record.Round(),
			ApplyID:        record.ApplyID,
			Source:         constants.SyncSourceSubmit,
			CreatedAt:      now,
		})
		return err
	})
	if errors.Is(err, errRecordStale) {
		// 申请已被撤销等操作抢先变更，渠道侧申请单号留档以便人工撤回
		log.Warnw("apply_submit_result_stale", "channel_apply_id", channelApplyID, "channel_state", channelState)
		if err := s.recordRepo.Update(record.ApplyID, map[string]interface{}{
			"audit_info": models.JSON{
				"source":                  constants.SyncSourceSubmit,
				"orphan_channel_apply_id": channelApplyID,
				"channel_status":          channelState,
				"at":                      now.Format(time.RFC3339),
			},
		}); err != nil {
			log.Errorw("apply_submit_orphan_persist_failed", "channel_apply_id", channelApplyID, "error", err)
		}
		return
	}
	if err != nil {
		log.Errorw("apply_submit_result_persist_failed", "channel_apply_id", channelApplyID, "error", err)
		return
	}
	record.ApplyStatus = constants.ApplyStatusChannelProcessing
	record.ChannelApplyID = &channelApplyID
	record.ChannelState = channelState
	log.Infow("apply_channel_accepted", "channel_apply_id", channelApplyID, "channel_state", channelState)
	s.metrics.ObserveTransition(record.ChannelCode, constants.ApplyStatusSubmitted, constants.ApplyStatusChannelProcessing)
	_ = cache.SetApplyState(ctx, cache.BuildApplyState(record))
	s.enqueueStatusPoll(record.ApplyID, 1)
}

func (s *ApplyService) enqueueStatusPoll(applyID string, round int) {
	if s.queueClient == nil || !s.queueClient.Enabled() {
		return
	}
	if err := s.queueClient.EnqueueApplyStatusPoll(queue.ApplyStatusPollPayload{ApplyID: applyID, Round: round}, s.options.PollDelay); err != nil {
		logger.Warnw("apply_status_poll_enqueue_failed", "apply_id", applyID, "round", round, "error", err)
	}
}

// resolveChannel 获取渠道配置与适配器；requireEnabled 为 true 时要求配置已启用
func (s *ApplyService) resolveChannel(channelCode string, requireEnabled bool) (channel.Adapter, *models.ChannelApplyConfig, error) {
	cfg, err := s.configRepo.GetByChannelCode(channelCode)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	if cfg == nil || (requireEnabled && !cfg.IsEnabled) {
		return nil, nil, fmt.Errorf("%w: %s", ErrChannelNotConfigured, channelCode)
	}
	adapter, err := s.registry.Get(channelCode)
	if err != nil {
		return nil, nil, err
	}
	return adapter, cfg, nil
}

// resubmittable 草稿、驳回，或已提交但渠道未分配申请单号
func resubmittable(record *models.MchApplyRecord) bool {
	switch record.ApplyStatus {
	case constants.ApplyStatusDraft, constants.ApplyStatusRejected:
		return true
	case constants.ApplyStatusSubmitted:
		return record.ChannelApplyIDValue() == ""
	default:
		return false
	}
}

func (s *ApplyService) ensureNoActive(mchNo, channelCode string) error {
	existing, err := s.recordRepo.GetActive(mchNo, channelCode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateApplication, existing.ApplyID)
	}
	return nil
}

func (s *ApplyService) getRecord(applyID string) (*models.MchApplyRecord, error) {
	applyID = strings.TrimSpace(applyID)
	if applyID == "" {
		return nil, fmt.Errorf("%w: apply id is empty", ErrApplyInfoInvalid)
	}
	record, err := s.recordRepo.GetByApplyID(applyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	if record == nil {
		return nil, ErrApplyNotFound
	}
	return record, nil
}

func normalizeApplyInfo(info *channel.ApplyInfo) error {
	if info == nil {
		return ErrApplyInfoInvalid
	}
	info.MchNo = strings.TrimSpace(info.MchNo)
	info.IsvNo = strings.TrimSpace(info.IsvNo)
	info.ChannelCode = strings.ToUpper(strings.TrimSpace(info.ChannelCode))
	if info.MchNo == "" {
		return fmt.Errorf("%w: mch_no is required", ErrApplyInfoInvalid)
	}
	if info.ChannelCode == "" {
		return fmt.Errorf("%w: channel_code is required", ErrApplyInfoInvalid)
	}
	for i := range info.Materials {
		info.Materials[i].MaterialType = strings.ToUpper(strings.TrimSpace(info.Materials[i].MaterialType))
		info.Materials[i].FileURL = strings.TrimSpace(info.Materials[i].FileURL)
	}
	return nil
}

func validateMaterials(info *channel.ApplyInfo, cfg *models.ChannelApplyConfig) error {
	if len(info.Materials) == 0 {
		return fmt.Errorf("%w: at least one material is required", ErrMaterialRequired)
	}
	for _, material := range info.Materials {
		if !constants.KnownMaterialType(material.MaterialType) {
			return fmt.Errorf("%w: %s", ErrMaterialTypeInvalid, material.MaterialType)
		}
		if material.FileURL == "" {
			return fmt.Errorf("%w: %s has no file", ErrMaterialRequired, material.MaterialType)
		}
	}
	if cfg != nil {
		if missing := info.MissingMaterials(cfg.RequiredMaterials); len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMaterialRequired, strings.Join(missing, ","))
		}
	}
	return nil
}

func buildApplyRecord(info *channel.ApplyInfo, status int, now time.Time) (*models.MchApplyRecord, error) {
	info.ApplyID = generateApplyID(now)
	applyData, err := models.ToJSON(info)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyInfoInvalid, err)
	}
	activeKey := models.ActiveKeyFor(info.MchNo, info.ChannelCode)
	submitTime := now
	return &models.MchApplyRecord{
		ApplyID:     info.ApplyID,
		MchNo:       info.MchNo,
		IsvNo:       info.IsvNo,
		ChannelCode: info.ChannelCode,
		ApplyStatus: status,
		ApplyData:   applyData,
		ActiveKey:   &activeKey,
		SubmitRound: 1,
		SubmitTime:  &submitTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func buildMaterials(applyID string, materials []channel.MaterialInfo, now time.Time) []models.MchApplyMaterial {
	rows := make([]models.MchApplyMaterial, 0, len(materials))
	for _, material := range materials {
		rows = append(rows, models.MchApplyMaterial{
			MaterialID:   uuid.NewString(),
			ApplyID:      applyID,
			MaterialType: material.MaterialType,
			MaterialName: strings.TrimSpace(material.MaterialName),
			FileURL:      material.FileURL,
			FileName:     strings.TrimSpace(material.FileName),
			IsRequired:   material.IsRequired,
			CreatedAt:    now,
		})
	}
	return rows
}

func translateSaveError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicateActive):
		return fmt.Errorf("%w: %v", ErrDuplicateApplication, err)
	case errors.Is(err, ErrInvalidStateTransition):
		return fmt.Errorf("%w: status changed concurrently", ErrInvalidStateTransition)
	default:
		return fmt.Errorf("%w: %v", ErrApplySaveFailed, err)
	}
}

// generateApplyID 生成申请单号：MA + 时间 + 6 位随机数
func generateApplyID(now time.Time) string {
	return fmt.Sprintf("MA%s%s", now.Format("20060102150405"), randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}

func applyLogger(record *models.MchApplyRecord) *zap.SugaredLogger {
	if record == nil {
		return logger.S()
	}
	return logger.SW(
		"apply_id", record.ApplyID,
		"mch_no", record.MchNo,
		"channel_code", record.ChannelCode,
	)
}
