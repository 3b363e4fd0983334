package channel

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout    = 12 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryWait  = 300 * time.Millisecond
)

// TransportOptions 渠道出站请求参数
type TransportOptions struct {
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	HTTPClient *http.Client
}

// Normalize 补齐默认值；MaxRetries 为负数表示不重试。
func (o TransportOptions) Normalize() TransportOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryWait <= 0 {
		o.RetryWait = DefaultRetryWait
	}
	return o
}

// NewRestyClient 创建表单网关客户端：单次请求超时，网络错误与 5xx 有限重试。
func NewRestyClient(opts TransportOptions) *resty.Client {
	opts = opts.Normalize()
	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	return client.
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryWait * 4).
		AddRetryCondition(IsTransientResponse)
}

// IsTransientResponse 判断是否为可重试的瞬时故障
func IsTransientResponse(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	return IsTransientStatus(resp.StatusCode())
}

// IsTransientStatus 5xx 与 429 视为瞬时故障
func IsTransientStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// WithDefaultTimeout 调用方未设置截止时间时补充默认超时
func WithDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
