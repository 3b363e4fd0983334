package notify

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/http/handlers/shared"
	"github.com/paynext/mchapply/internal/http/response"

	"github.com/gin-gonic/gin"
)

const maxNotifyBodyBytes = 1 << 20

// ChannelNotify 接收渠道异步通知，按渠道格式应答
func (h *Handler) ChannelNotify(c *gin.Context) {
	channelCode := strings.ToUpper(strings.TrimSpace(c.Param("channel")))
	log := shared.RequestLog(c).With("channel_code", channelCode)
	log.Infow("apply_notify_received",
		"client_ip", c.ClientIP(),
		"content_type", strings.TrimSpace(c.GetHeader("Content-Type")),
	)
	if h == nil || h.processor == nil {
		shared.RespondError(c, response.CodeInternal, "notify handler unavailable", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxNotifyBodyBytes))
	if err != nil {
		log.Warnw("apply_notify_body_read_failed", "error", err)
		h.writeAck(c, channelCode, false, "body invalid")
		return
	}

	outcome, err := h.processor.HandleChannelNotify(c.Request.Context(), channelCode, &channel.NotifyRequest{
		Headers: c.Request.Header.Clone(),
		Body:    body,
	})
	if err != nil {
		appErr := mapNotifyError(err)
		// 未注册渠道没有应答格式
		if errors.Is(err, channel.ErrChannelNotSupported) {
			shared.RespondError(c, appErr.Code, appErr.Message, nil)
			return
		}
		if appErr.Code == response.CodeInternal {
			log.Errorw("apply_notify_failed", "error", err)
		} else {
			log.Warnw("apply_notify_rejected", "code", appErr.Code, "error", err)
		}
		h.writeAck(c, channelCode, false, appErr.Message)
		return
	}

	log.Infow("apply_notify_handled",
		"apply_id", outcome.ApplyID,
		"apply_status", outcome.ApplyStatus,
		"applied", outcome.Applied,
	)
	h.writeAck(c, channelCode, true, "")
}

func (h *Handler) writeAck(c *gin.Context, channelCode string, success bool, message string) {
	ack := h.processor.NotifyAck(channelCode, success, message)
	status := ack.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	contentType := ack.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(status, contentType, ack.Body)
}
