package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/iap/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"AttemptID", id.NewAttemptID, "att_"},
		{"SweepID", id.NewSweepID, "swp_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"AttemptID", id.NewAttemptID, id.ParseAttemptID},
		{"SweepID", id.NewSweepID, id.ParseSweepID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestPrefixMismatch(t *testing.T) {
	attempt := id.NewAttemptID()
	if _, err := id.ParseSweepID(attempt.String()); err == nil {
		t.Error("expected error parsing attempt id as sweep id")
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "not-a-typeid", "att_123"} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Attempt id.ID `json:"attempt"`
		Missing id.ID `json:"missing"`
	}

	original := wrapper{Attempt: id.NewAttemptID()}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Attempt.String() != original.Attempt.String() {
		t.Errorf("attempt mismatch: %q != %q", decoded.Attempt, original.Attempt)
	}
	if !decoded.Missing.IsNil() {
		t.Error("empty id should decode to Nil")
	}
}
