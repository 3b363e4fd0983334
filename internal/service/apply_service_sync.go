package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/cache"
	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/constants"
	"github.com/paynext/mchapply/internal/logger"
	"github.com/paynext/mchapply/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	errStateAlreadyApplied = errors.New("channel state already applied")
	errRecordStale         = errors.New("apply record changed concurrently")
)

// NotifyOutcome 渠道通知处理结果
type NotifyOutcome struct {
	ApplyID     string `json:"apply_id"`
	ApplyStatus int    `json:"apply_status"`
	Applied     bool   `json:"applied"` // false 表示重复通知或记录已终态
}

// SyncChannelStatus 查询渠道状态并对账
func (s *ApplyService) SyncChannelStatus(ctx context.Context, applyID string) (*models.MchApplyRecord, error) {
	if state, hit, err := cache.GetApplyState(ctx, applyID); err == nil && hit && constants.IsTerminalApplyStatus(state.ApplyStatus) {
		logger.Debugw("apply_sync_skip_cached_terminal", "apply_id", applyID, "apply_status", state.ApplyStatus)
		return s.getRecord(applyID)
	}
	record, err := s.getRecord(applyID)
	if err != nil {
		return nil, err
	}
	if constants.IsTerminalApplyStatus(record.ApplyStatus) {
		return record, nil
	}
	// 每次尝试都刷新同步时间，批量补偿按该时间轮转
	if err := s.recordRepo.MarkSynced(record.ApplyID, s.now()); err != nil {
		applyLogger(record).Warnw("apply_sync_mark_failed", "error", err)
	}
	channelApplyID := record.ChannelApplyIDValue()
	if channelApplyID == "" {
		return nil, fmt.Errorf("%w: channel apply id not assigned", ErrInvalidStateTransition)
	}
	adapter, err := s.registry.Get(record.ChannelCode)
	if err != nil {
		return nil, err
	}

	start := s.now()
	result := adapter.QueryChannelStatus(ctx, channelApplyID)
	if result == nil {
		result = channel.SystemFailure(errors.New("adapter returned nil result"))
	}
	s.metrics.ObserveChannelCall(record.ChannelCode, "query", result.ErrorCode, s.now().Sub(start))
	if !result.Success {
		applyLogger(record).Warnw("apply_query_channel_failed",
			"channel_apply_id", channelApplyID,
			"error_code", result.ErrorCode,
			"channel_status", result.ChannelStatus,
			"error_message", result.ErrorMessage,
		)
		return nil, fmt.Errorf("%w: %w", ErrChannelCallFailed, result.Err())
	}
	if result.ChannelApplyID == "" {
		result.ChannelApplyID = channelApplyID
	}
	updated, _, err := s.reconcile(ctx, record, result, constants.SyncSourceQuery)
	return updated, err
}

// HandleChannelNotify 验签并处理渠道异步通知，重复通知不产生副作用
func (s *ApplyService) HandleChannelNotify(ctx context.Context, channelCode string, req *channel.NotifyRequest) (*NotifyOutcome, error) {
	channelCode = strings.ToUpper(strings.TrimSpace(channelCode))
	adapter, err := s.registry.Get(channelCode)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &channel.NotifyRequest{}
	}
	result := adapter.HandleChannelNotify(ctx, req)
	if result == nil {
		result = channel.SystemFailure(errors.New("adapter returned nil result"))
	}
	if !result.Success {
		if result.ErrorCode == constants.ResultCodeSignInvalid {
			s.metrics.ObserveNotify(channelCode, "sign_invalid")
			logger.Warnw("apply_notify_sign_invalid", "channel_code", channelCode, "error_message", result.ErrorMessage)
			return nil, fmt.Errorf("%w: %s", ErrNotifySignInvalid, result.ErrorMessage)
		}
		s.metrics.ObserveNotify(channelCode, "invalid")
		logger.Warnw("apply_notify_invalid",
			"channel_code", channelCode,
			"error_code", result.ErrorCode,
			"error_message", result.ErrorMessage,
		)
		return nil, fmt.Errorf("%w: %s", ErrNotifyInvalid, result.ErrorMessage)
	}
	channelApplyID := strings.TrimSpace(result.ChannelApplyID)
	if channelApplyID == "" {
		s.metrics.ObserveNotify(channelCode, "invalid")
		return nil, fmt.Errorf("%w: channel apply id missing", ErrNotifyInvalid)
	}
	record, err := s.recordRepo.GetByChannelApplyID(channelCode, channelApplyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	if record == nil {
		s.metrics.ObserveNotify(channelCode, "not_found")
		logger.Warnw("apply_notify_record_not_found", "channel_code", channelCode, "channel_apply_id", channelApplyID)
		return nil, ErrApplyNotFound
	}

	updated, applied, err := s.reconcile(ctx, record, result, constants.SyncSourceNotify)
	if err != nil {
		return nil, err
	}
	outcome := "applied"
	if !applied {
		outcome = "duplicate"
	}
	s.metrics.ObserveNotify(channelCode, outcome)
	return &NotifyOutcome{
		ApplyID:     updated.ApplyID,
		ApplyStatus: updated.ApplyStatus,
		Applied:     applied,
	}, nil
}

// NotifyAck 返回渠道要求的通知应答报文
func (s *ApplyService) NotifyAck(channelCode string, success bool, message string) channel.NotifyAck {
	if adapter, err := s.registry.Get(channelCode); err == nil {
		if acknowledger, ok := adapter.(channel.NotifyAcknowledger); ok {
			return acknowledger.NotifyAck(success, message)
		}
	}
	return channel.DefaultNotifyAck(success, message)
}

// PollApplyStatus 轮询任务入口：同步一次渠道状态，未终态且未超出轮数时继续投递
func (s *ApplyService) PollApplyStatus(ctx context.Context, applyID string, round int) error {
	record, err := s.SyncChannelStatus(ctx, applyID)
	if err != nil {
		if errors.Is(err, ErrApplyNotFound) || errors.Is(err, ErrInvalidStateTransition) {
			logger.Debugw("apply_status_poll_stop", "apply_id", applyID, "round", round, "error", err)
			return nil
		}
		logger.Warnw("apply_status_poll_sync_failed", "apply_id", applyID, "round", round, "error", err)
		if ClassifyError(err) == ErrorClassChannel {
			s.scheduleNextPoll(applyID, round)
			return nil
		}
		return err
	}
	if constants.IsTerminalApplyStatus(record.ApplyStatus) {
		logger.Infow("apply_status_poll_finished",
			"apply_id", applyID,
			"round", round,
			"apply_status", constants.ApplyStatusName(record.ApplyStatus),
		)
		return nil
	}
	s.scheduleNextPoll(applyID, round)
	return nil
}

func (s *ApplyService) scheduleNextPoll(applyID string, round int) {
	if round >= s.options.PollMaxRounds {
		logger.Warnw("apply_status_poll_rounds_exhausted", "apply_id", applyID, "round", round)
		return
	}
	s.enqueueStatusPoll(applyID, round+1)
}

// SweepProcessing 批量同步渠道处理中的申请，按最近同步时间轮转，返回成功同步条数
func (s *ApplyService) SweepProcessing(ctx context.Context, limit int) (int, error) {
	records, err := s.recordRepo.ListDueForSync(constants.ApplyStatusChannelProcessing, limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrApplyFetchFailed, err)
	}
	synced := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if _, err := s.SyncChannelStatus(ctx, record.ApplyID); err != nil {
			logger.Warnw("apply_sweep_sync_failed", "apply_id", record.ApplyID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// reconcile 将渠道状态应用到申请记录；终态记录或本轮已应用过的 (渠道申请单号, 渠道状态) 直接返回 applied=false
func (s *ApplyService) reconcile(ctx context.Context, record *models.MchApplyRecord, result *channel.Result, source string) (*models.MchApplyRecord, bool, error) {
	log := applyLogger(record).With("source", source)
	if constants.IsTerminalApplyStatus(record.ApplyStatus) {
		log.Debugw("apply_reconcile_skip_terminal", "apply_status", constants.ApplyStatusName(record.ApplyStatus))
		return record, false, nil
	}
	if record.ApplyStatus == constants.ApplyStatusDraft {
		log.Warnw("apply_reconcile_skip_draft")
		return record, false, nil
	}

	channelApplyID := pickFirstNonEmpty(result.ChannelApplyID, record.ChannelApplyIDValue())
	nativeState := strings.ToUpper(strings.TrimSpace(result.ChannelStatus))
	if nativeState == "" {
		nativeState = constants.ApplyStatusName(result.ApplyStatus)
	}
	target := result.ApplyStatus
	if target != constants.ApplyStatusChannelProcessing && target != constants.ApplyStatusApproved && target != constants.ApplyStatusRejected {
		log.Warnw("apply_reconcile_unexpected_status", "apply_status", target, "channel_state", nativeState)
		target = constants.ApplyStatusRejected
	}
	if target == record.ApplyStatus && nativeState == record.ChannelState {
		return record, false, nil
	}
	if applied, err := cache.NotifyApplied(ctx, record.ChannelCode, channelApplyID, record.Round(), nativeState); err == nil && applied {
		log.Infow("apply_notify_duplicate", "channel_apply_id", channelApplyID, "channel_state", nativeState, "hit", "cache")
		return record, false, nil
	}

	now := s.now()
	payload, _ := json.Marshal(result)
	updates := map[string]interface{}{
		"apply_status":  target,
		"channel_state": nativeState,
		"audit_info": models.JSON{
			"source":              source,
			"channel_status":      nativeState,
			"channel_status_desc": result.ChannelStatusDesc,
			"at":                  now.Format(time.RFC3339),
		},
	}
	if record.ChannelApplyIDValue() == "" && channelApplyID != "" {
		updates["channel_apply_id"] = channelApplyID
	}
	var audit *models.MchApplyAuditRecord
	switch target {
	case constants.ApplyStatusApproved:
		updates["sub_mch_id"] = result.SubMchID
		updates["audit_time"] = now
		audit = channelAuditRecord(record.ApplyID, constants.AuditStatusApproved, pickFirstNonEmpty(result.ChannelStatusDesc, nativeState), record.ChannelCode, now)
	case constants.ApplyStatusRejected:
		updates["reject_reason"] = result.RejectReason
		updates["active_key"] = nil
		updates["audit_time"] = now
		audit = channelAuditRecord(record.ApplyID, constants.AuditStatusRejected, pickFirstNonEmpty(result.RejectReason, result.ChannelStatusDesc, nativeState), record.ChannelCode, now)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		claimed, err := s.notifyLogRepo.WithTx(tx).Claim(&models.MchApplyNotifyLog{
			ChannelCode:    record.ChannelCode,
			ChannelApplyID: channelApplyID,
			ChannelState:   nativeState,
			SubmitRound:    record.Round(),
			ApplyID:        record.ApplyID,
			Source:         source,
			Payload:        string(payload),
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		if !claimed {
			return errStateAlreadyApplied
		}
		ok, err := s.recordRepo.WithTx(tx).TransitionStatus(record.ApplyID, record.ApplyStatus, updates)
		if err != nil {
			return err
		}
		if !ok {
			return errRecordStale
		}
		if audit != nil {
			return s.auditRepo.WithTx(tx).Create(audit)
		}
		return nil
	})
	switch {
	case errors.Is(err, errStateAlreadyApplied):
		log.Infow("apply_notify_duplicate", "channel_apply_id", channelApplyID, "channel_state", nativeState, "hit", "db")
		_, _ = cache.MarkNotifyApplied(ctx, record.ChannelCode, channelApplyID, record.Round(), nativeState, s.options.NotifyDedupTTL)
		return s.reloadOr(record), false, nil
	case errors.Is(err, errRecordStale):
		log.Infow("apply_reconcile_stale", "channel_apply_id", channelApplyID, "channel_state", nativeState)
		return s.reloadOr(record), false, nil
	case err != nil:
		log.Errorw("apply_reconcile_failed", "channel_apply_id", channelApplyID, "channel_state", nativeState, "error", err)
		return nil, false, fmt.Errorf("%w: %v", ErrApplySaveFailed, err)
	}

	_, _ = cache.MarkNotifyApplied(ctx, record.ChannelCode, channelApplyID, record.Round(), nativeState, s.options.NotifyDedupTTL)
	log.Infow("apply_channel_status_applied",
		"channel_apply_id", channelApplyID,
		"channel_state", nativeState,
		"from_status", constants.ApplyStatusName(record.ApplyStatus),
		"to_status", constants.ApplyStatusName(target),
	)
	if target != record.ApplyStatus {
		s.metrics.ObserveTransition(record.ChannelCode, record.ApplyStatus, target)
	}
	updated := s.reloadOr(record)
	_ = cache.SetApplyState(ctx, cache.BuildApplyState(updated))
	return updated, true, nil
}

func (s *ApplyService) reloadOr(record *models.MchApplyRecord) *models.MchApplyRecord {
	latest, err := s.recordRepo.GetByApplyID(record.ApplyID)
	if err != nil || latest == nil {
		return record
	}
	return latest
}

func channelAuditRecord(applyID string, auditStatus int, opinion, channelCode string, now time.Time) *models.MchApplyAuditRecord {
	return &models.MchApplyAuditRecord{
		AuditID:      uuid.NewString(),
		ApplyID:      applyID,
		AuditType:    constants.AuditTypeChannel,
		AuditStatus:  auditStatus,
		AuditOpinion: opinion,
		Auditor:      channelCode,
		AuditTime:    now,
	}
}

func pickFirstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
