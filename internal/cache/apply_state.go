package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/models"
)

const applyStateCacheTTL = 10 * time.Minute

// ApplyState 进件状态快照
// 仅用于服务端 Redis 缓存，数据库仍为唯一事实来源
type ApplyState struct {
	ApplyID        string `json:"apply_id"`
	MchNo          string `json:"mch_no"`
	ChannelCode    string `json:"channel_code"`
	ChannelApplyID string `json:"channel_apply_id"`
	ApplyStatus    int    `json:"apply_status"`
	ChannelState   string `json:"channel_state"`
	SubMchID       string `json:"sub_mch_id"`
	UpdatedAt      int64  `json:"updated_at"`
}

func applyStateKey(applyID string) string {
	return fmt.Sprintf("apply:state:%s", strings.TrimSpace(applyID))
}

func notifyDedupKey(channelCode, channelApplyID string, round int, channelState string) string {
	return fmt.Sprintf("apply:notify:%s:%s:%d:%s",
		strings.ToUpper(strings.TrimSpace(channelCode)),
		strings.TrimSpace(channelApplyID),
		round,
		strings.ToUpper(strings.TrimSpace(channelState)),
	)
}

// BuildApplyState 从申请记录构建状态快照
func BuildApplyState(record *models.MchApplyRecord) *ApplyState {
	if record == nil {
		return nil
	}
	return &ApplyState{
		ApplyID:        record.ApplyID,
		MchNo:          record.MchNo,
		ChannelCode:    record.ChannelCode,
		ChannelApplyID: record.ChannelApplyIDValue(),
		ApplyStatus:    record.ApplyStatus,
		ChannelState:   record.ChannelState,
		SubMchID:       record.SubMchID,
		UpdatedAt:      time.Now().Unix(),
	}
}

// GetApplyState 读取状态快照
func GetApplyState(ctx context.Context, applyID string) (*ApplyState, bool, error) {
	var state ApplyState
	hit, err := GetJSON(ctx, applyStateKey(applyID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetApplyState 写入状态快照
func SetApplyState(ctx context.Context, state *ApplyState) error {
	if state == nil || strings.TrimSpace(state.ApplyID) == "" {
		return nil
	}
	return SetJSON(ctx, applyStateKey(state.ApplyID), state, applyStateCacheTTL)
}

// DelApplyState 删除状态快照
func DelApplyState(ctx context.Context, applyID string) error {
	return Del(ctx, applyStateKey(applyID))
}

// MarkNotifyApplied 标记渠道状态已应用，返回 false 表示此前已标记
func MarkNotifyApplied(ctx context.Context, channelCode, channelApplyID string, round int, channelState string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return SetNX(ctx, notifyDedupKey(channelCode, channelApplyID, round, channelState), time.Now().Unix(), ttl)
}

// NotifyApplied 判断渠道状态是否已应用
func NotifyApplied(ctx context.Context, channelCode, channelApplyID string, round int, channelState string) (bool, error) {
	return Exists(ctx, notifyDedupKey(channelCode, channelApplyID, round, channelState))
}
