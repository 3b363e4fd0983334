package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// applyDataSearchPaths 申请资料快照中参与关键字搜索的 JSON 路径
var applyDataSearchPaths = [][]string{
	{"merchant_info", "merchant_name"},
	{"merchant_info", "short_name"},
	{"contact_info", "contact_name"},
}

const likeClauseFormat = `%s %s ? ESCAPE '\'`

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// jsonPathTextExprByDialect 构建嵌套 JSON 字段文本提取表达式，兼容 sqlite 与 postgres。
func jsonPathTextExprByDialect(dialect, column string, path []string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		// postgres 统一转 jsonb 后再使用 #>> 提取文本
		return fmt.Sprintf("(%s::jsonb #>> '{%s}')", column, strings.Join(path, ","))
	default:
		return fmt.Sprintf("json_extract(%s, '$.%s')", column, strings.Join(path, "."))
	}
}

// buildKeywordCondition 构建普通列 + JSON 路径的 LIKE 条件，并返回参数数量。
func buildKeywordCondition(db *gorm.DB, plainColumns []string, jsonColumn string, jsonPaths [][]string) (string, int) {
	return buildKeywordConditionByDialect(dbDialectName(db), plainColumns, jsonColumn, jsonPaths)
}

func buildKeywordConditionByDialect(dialect string, plainColumns []string, jsonColumn string, jsonPaths [][]string) (string, int) {
	parts := make([]string, 0, len(plainColumns)+len(jsonPaths))
	operator := likeOperatorByDialect(dialect)

	for _, column := range plainColumns {
		parts = append(parts, fmt.Sprintf(likeClauseFormat, column, operator))
	}
	if jsonColumn != "" {
		for _, path := range jsonPaths {
			parts = append(parts, fmt.Sprintf(likeClauseFormat, jsonPathTextExprByDialect(dialect, jsonColumn, path), operator))
		}
	}
	return strings.Join(parts, " OR "), len(parts)
}

func likeOperatorByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return "ILIKE"
	default:
		return "LIKE"
	}
}

// repeatLikeArgs 生成重复的 LIKE 参数列表。
func repeatLikeArgs(like string, count int) []interface{} {
	args := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		args = append(args, like)
	}
	return args
}

// escapeLike 转义 LIKE 通配符
func escapeLike(raw string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(raw)
}
