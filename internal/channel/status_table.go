package channel

import (
	"strings"
)

// StatusTable 渠道原始状态到统一状态的映射表，未识别状态落到 Fallback。
type StatusTable struct {
	entries   map[string]int
	fallback  int
	normalize func(string) string
}

// NewStatusTable 创建状态映射表，键按大写匹配。
func NewStatusTable(entries map[string]int, fallback int) *StatusTable {
	normalized := make(map[string]int, len(entries))
	for key, status := range entries {
		normalized[upperTrim(key)] = status
	}
	return &StatusTable{entries: normalized, fallback: fallback, normalize: upperTrim}
}

// WithNormalizer 追加原始状态的预处理（例如去除固定前缀）
func (t *StatusTable) WithNormalizer(fn func(string) string) *StatusTable {
	if fn == nil {
		return t
	}
	t.normalize = func(raw string) string {
		return fn(upperTrim(raw))
	}
	return t
}

// Map 映射原始状态
func (t *StatusTable) Map(native string) int {
	if status, ok := t.Lookup(native); ok {
		return status
	}
	return t.fallback
}

// Lookup 查找原始状态，未识别时 ok=false
func (t *StatusTable) Lookup(native string) (int, bool) {
	if t == nil {
		return 0, false
	}
	status, ok := t.entries[t.normalize(native)]
	return status, ok
}

// Fallback 未识别状态的兜底统一状态
func (t *StatusTable) Fallback() int {
	return t.fallback
}

// Codes 返回已登记的原始状态
func (t *StatusTable) Codes() []string {
	codes := make([]string, 0, len(t.entries))
	for code := range t.entries {
		codes = append(codes, code)
	}
	return codes
}

func upperTrim(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
