package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_MaskParams_DefaultFields(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		params []interface{}
		want   []interface{}
	}{
		{
			name:   "Password assignment",
			sql:    "update users set password=? where id=?",
			params: []interface{}{"secret123", 1},
			want:   []interface{}{"***REDACTED***", 1},
		},
		{
			name:   "Token in insert",
			sql:    "insert into sessions (user_id,token) values (?,?) returning id",
			params: []interface{}{123, "abc-xyz-token"},
			want:   []interface{}{123, "***REDACTED***"},
		},
		{
			name:   "Multi-row insert",
			sql:    "insert into sessions (user_id,token) values ($1,$2), ($3,$4)",
			params: []interface{}{1, "t1", 2, "t2"},
			want:   []interface{}{1, "***REDACTED***", 2, "***REDACTED***"},
		},
		{
			name:   "API key comparison",
			sql:    "select id from integrations where api_key=?",
			params: []interface{}{"sk_test_123456"},
			want:   []interface{}{"***REDACTED***"},
		},
		{
			name:   "Aliased column",
			sql:    "select u1.id from users u1 where u1.password=? and u1.id=?",
			params: []interface{}{"pw", 7},
			want:   []interface{}{"***REDACTED***", 7},
		},
		{
			name:   "No sensitive fields",
			sql:    "select id,name from users where id=? and name=?",
			params: []interface{}{1, "Alice"},
			want:   []interface{}{1, "Alice"},
		},
		{
			name:   "Empty params",
			sql:    "select count(1) from users",
			params: []interface{}{},
			want:   []interface{}{},
		},
		{
			name:   "Case insensitive",
			sql:    "UPDATE users SET PASSWORD=? WHERE id=?",
			params: []interface{}{"secret", 1},
			want:   []interface{}{"***REDACTED***", 1},
		},
		{
			name:   "Unattributed params are masked",
			sql:    "select password from users limit ?",
			params: []interface{}{10},
			want:   []interface{}{"***REDACTED***"},
		},
	}

	sanitizer := NewSanitizer(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.MaskParams(tt.sql, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizer_MaskParams_CustomFields(t *testing.T) {
	sanitizer := NewSanitizer([]string{"secret_key", "private_data"})

	tests := []struct {
		name   string
		sql    string
		params []interface{}
		want   []interface{}
	}{
		{
			name:   "Custom field secret_key",
			sql:    "update config set secret_key=? where id=?",
			params: []interface{}{"mySecret", 1},
			want:   []interface{}{"***REDACTED***", 1},
		},
		{
			name:   "Custom field private_data",
			sql:    "insert into logs (private_data) values (?)",
			params: []interface{}{"sensitive info"},
			want:   []interface{}{"***REDACTED***"},
		},
		{
			name:   "Default fields no longer apply",
			sql:    "update users set password=? where id=?",
			params: []interface{}{"pw", 1},
			want:   []interface{}{"pw", 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.MaskParams(tt.sql, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizer_FormatParams(t *testing.T) {
	sanitizer := NewSanitizer(nil)

	tests := []struct {
		name   string
		params []interface{}
		want   string
	}{
		{
			name:   "Empty params",
			params: []interface{}{},
			want:   "[]",
		},
		{
			name:   "Single param",
			params: []interface{}{123},
			want:   "[123]",
		},
		{
			name:   "Multiple params",
			params: []interface{}{123, "Alice", true},
			want:   "[123, Alice, true]",
		},
		{
			name:   "NULL value",
			params: []interface{}{nil},
			want:   "[NULL]",
		},
		{
			name:   "Masked value",
			params: []interface{}{"***REDACTED***"},
			want:   "[***REDACTED***]",
		},
		{
			name:   "Long string truncation",
			params: []interface{}{strings.Repeat("a", 150)},
			want:   "[" + strings.Repeat("a", 100) + "...]",
		},
		{
			name:   "Mixed types",
			params: []interface{}{1, "test", nil, true, 3.14},
			want:   "[1, test, NULL, true, 3.14]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.FormatParams(tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizer_FormatParams_AfterMasking(t *testing.T) {
	sanitizer := NewSanitizer(nil)

	sql := "update users set password=? where id=?"
	params := []interface{}{"secretPassword123", 1}

	masked := sanitizer.MaskParams(sql, params)
	formatted := sanitizer.FormatParams(masked)

	assert.Equal(t, "[***REDACTED***, 1]", formatted)
	assert.NotContains(t, formatted, "secretPassword123")
}

func TestSanitizer_WordBoundaries(t *testing.T) {
	sanitizer := NewSanitizer(nil)

	// "password" inside "passwordless_auth" is not a sensitive column
	got := sanitizer.MaskParams("select id from passwordless_auth where user_id=?", []interface{}{123})
	assert.Equal(t, []interface{}{123}, got)
}

func TestSanitizer_ThreadSafety(t *testing.T) {
	sanitizer := NewSanitizer(nil)

	// Run concurrent masking operations
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			sql := "update users set password=? where id=?"
			params := []interface{}{"secret", 1}
			_ = sanitizer.MaskParams(sql, params)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func BenchmarkSanitizer_MaskParams_Sensitive(b *testing.B) {
	sanitizer := NewSanitizer(nil)
	sql := "update users set password=?, token=? where id=?"
	params := []interface{}{"secretPassword", "token123", 1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sanitizer.MaskParams(sql, params)
	}
}

func BenchmarkSanitizer_MaskParams_NonSensitive(b *testing.B) {
	sanitizer := NewSanitizer(nil)
	sql := "select id,name from users where id=? and name=?"
	params := []interface{}{123, "Alice"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sanitizer.MaskParams(sql, params)
	}
}

func BenchmarkSanitizer_FormatParams(b *testing.B) {
	sanitizer := NewSanitizer(nil)
	params := []interface{}{123, "Alice", true, nil, 3.14}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sanitizer.FormatParams(params)
	}
}
