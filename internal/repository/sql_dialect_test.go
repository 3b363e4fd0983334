package repository

import (
	"strings"
	"testing"
)

func TestJSONPathTextExprByDialectSQLite(t *testing.T) {
	got := jsonPathTextExprByDialect("sqlite", "apply_data", []string{"merchant_info", "merchant_name"})
	want := "json_extract(apply_data, '$.merchant_info.merchant_name')"
	if got != want {
		t.Fatalf("sqlite json expr mismatch, want %s got %s", want, got)
	}
}

func TestJSONPathTextExprByDialectPostgres(t *testing.T) {
	got := jsonPathTextExprByDialect("postgres", "apply_data", []string{"merchant_info", "merchant_name"})
	want := "(apply_data::jsonb #>> '{merchant_info,merchant_name}')"
	if got != want {
		t.Fatalf("postgres json expr mismatch, want %s got %s", want, got)
	}
}

func TestBuildKeywordCondition(t *testing.T) {
	condition, argCount := buildKeywordCondition(nil, []string{"apply_id", "mch_no"}, "apply_data", applyDataSearchPaths)
	if argCount != 5 {
		t.Fatalf("arg count want 5 got %d", argCount)
	}
	if !strings.Contains(condition, `mch_no LIKE ? ESCAPE '\'`) {
		t.Fatalf("condition should contain mch_no LIKE, got %s", condition)
	}
	if !strings.Contains(condition, "json_extract(apply_data, '$.contact_info.contact_name') LIKE ?") {
		t.Fatalf("condition should contain contact_name LIKE, got %s", condition)
	}

	condition, _ = buildKeywordConditionByDialect("postgres", []string{"apply_id"}, "", nil)
	if condition != `apply_id ILIKE ? ESCAPE '\'` {
		t.Fatalf("postgres condition mismatch, got %s", condition)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`100%_a\b`); got != `100\%\_a\\b` {
		t.Fatalf("escape mismatch, got %s", got)
	}
}
