package channel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrChannelNotSupported = errors.New("channel not supported")
	ErrAdapterInvalid      = errors.New("channel adapter invalid")
)

// Registry 渠道适配器注册表，构建后只读，可并发读取。
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry 注册适配器，编码为空或重复时返回错误。
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			return nil, fmt.Errorf("%w: nil adapter", ErrAdapterInvalid)
		}
		code := normalizeCode(adapter.ChannelCode())
		if code == "" {
			return nil, fmt.Errorf("%w: empty channel code", ErrAdapterInvalid)
		}
		if _, exists := r.adapters[code]; exists {
			return nil, fmt.Errorf("%w: duplicate channel code %s", ErrAdapterInvalid, code)
		}
		r.adapters[code] = adapter
	}
	return r, nil
}

// Get 根据渠道编码获取适配器
func (r *Registry) Get(channelCode string) (Adapter, error) {
	code := normalizeCode(channelCode)
	if r != nil {
		if adapter, ok := r.adapters[code]; ok {
			return adapter, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrChannelNotSupported, code)
}

// Codes 已注册的渠道编码（排序）
func (r *Registry) Codes() []string {
	if r == nil {
		return nil
	}
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
