package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicateActive 同一商户在同一渠道已存在有效申请
var ErrDuplicateActive = errors.New("active apply already exists")

// IsUniqueViolation 判断是否为唯一约束冲突，兼容未开启 TranslateError 的连接
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "sqlstate 23505")
}
