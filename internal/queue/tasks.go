package queue

import (
	"encoding/json"

	"github.com/paynext/mchapply/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskApplyStatusPoll 进件状态轮询任务
	TaskApplyStatusPoll = constants.TaskApplyStatusPoll
)

// ApplyStatusPollPayload 状态轮询任务载荷
type ApplyStatusPollPayload struct {
	ApplyID string `json:"apply_id"`
	Round   int    `json:"round"`
}

// NewApplyStatusPollTask 创建状态轮询任务
func NewApplyStatusPollTask(payload ApplyStatusPollPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskApplyStatusPoll, body), nil
}

// ParseApplyStatusPollPayload 解析状态轮询任务载荷
func ParseApplyStatusPollPayload(body []byte) (ApplyStatusPollPayload, error) {
	var payload ApplyStatusPollPayload
	err := json.Unmarshal(body, &payload)
	return payload, err
}
