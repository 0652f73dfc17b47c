package jsonx

import (
	"errors"
	"testing"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"raw object", `  {"a": 1}  `, `{"a": 1}`},
		{"last fence wins", "draft:\n```json\n{\"a\": 1}\n```\nfinal:\n```json\n{\"a\": 2}\n```", `{"a": 2}`},
		{"embedded in prose", `Sure! Here it is: {"member": ["member_id"]} hope that helps`, `{"member": ["member_id"]}`},
		{"braces inside strings", `x {"sql": "SELECT '{'", "n": {"k": 1}} y`, `{"sql": "SELECT '{'", "n": {"k": 1}}`},
		{"curly quotes", "{“title”: “step”}", `{"title": "step"}`},
		{"single quotes", `{'member': ['member_id', 'first_name']}`, `{"member": ["member_id", "first_name"]}`},
		{"trailing comma", `result: {"a": [1, 2,], }`, `{"a": [1, 2]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.in)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("Extract() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestExtractFailures(t *testing.T) {
	for _, in := range []string{"", "no json here", "[1, 2]", `{"unterminated": `} {
		if _, err := Extract(in); !errors.Is(err, ErrNoJSON) {
			t.Fatalf("Extract(%q) error = %v, want ErrNoJSON", in, err)
		}
	}
}

func TestDecode(t *testing.T) {
	var out map[string][]string
	if err := Decode("```json\n{\"event\": [\"event_id\"]}\n```", &out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(out["event"]) != 1 {
		t.Fatalf("Decode() = %v", out)
	}

	var typed struct {
		N int `json:"n"`
	}
	if err := Decode(`{"n": "not a number"}`, &typed); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("Decode() error = %v, want ErrNoJSON", err)
	}
}
