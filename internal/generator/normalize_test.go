package generator

import "testing"

func TestNormalizeSQL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "plain", raw: "FINAL SQL: SELECT 1", want: "SELECT 1;", ok: true},
		{name: "fenced with comments", raw: "FINAL SQL: ```sqlite\nSELECT a -- pick a\nFROM t /* all */ WHERE b = '--x';;\n```", want: "SELECT a FROM t WHERE b = '--x';", ok: true},
		{name: "bold wrapper keeps star projection", raw: "FINAL SQL: **SELECT * FROM t**", want: "SELECT * FROM t;", ok: true},
		{name: "count star", raw: "FINAL SQL: SELECT COUNT(*)\n\tFROM t", want: "SELECT COUNT(*) FROM t;", ok: true},
		{name: "second marker ends body", raw: "FINAL SQL: SELECT 1 FINAL SQL: SELECT 2", want: "SELECT 1;", ok: true},
		{name: "text before marker ignored", raw: "I think the answer is\nFINAL SQL: SELECT x FROM y;", want: "SELECT x FROM y;", ok: true},
		{name: "inline fence keeps keyword", raw: "FINAL SQL: ```SELECT name FROM member```", want: "SELECT name FROM member;", ok: true},
		{name: "inline fence with cte", raw: "FINAL SQL: ```WITH x AS (SELECT 1) SELECT * FROM x```", want: "WITH x AS (SELECT 1) SELECT * FROM x;", ok: true},
		{name: "inline tag then space", raw: "FINAL SQL: ```sql SELECT 1```", want: "SELECT 1;", ok: true},
		{name: "upper case tag", raw: "FINAL SQL:\n```SQL\nSELECT 2\n```", want: "SELECT 2;", ok: true},
		{name: "missing marker", raw: "SELECT 1", ok: false},
		{name: "empty body", raw: "FINAL SQL:  ```sql\n;\n```", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeSQL(tt.raw)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("NormalizeSQL(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormalizeSQLIsIdempotent(t *testing.T) {
	first, ok := NormalizeSQL("FINAL SQL: SELECT  name\nFROM member ;")
	if !ok {
		t.Fatal("NormalizeSQL() rejected valid input")
	}
	second, ok := NormalizeSQL(FinalSQLMarker + " " + first)
	if !ok || second != first {
		t.Fatalf("second pass = %q, want %q", second, first)
	}
}
