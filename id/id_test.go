package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/drip/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"EventID", id.NewEventID, "evt_"},
		{"TransferID", id.NewTransferID, "xfer_"},
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
		{"EventID", id.NewEventID, id.ParseEventID},
		{"TransferID", id.NewTransferID, id.ParseTransferID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	evt := id.NewEventID().String()
	if _, err := id.ParseTransferID(evt); err == nil {
		t.Errorf("expected error parsing event ID as transfer ID")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{"", "not-a-typeid", "evt_!!!"}
	for _, s := range tests {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestNil(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("expected Nil to be nil")
	}
	if id.Nil.String() != "" {
		t.Errorf("expected empty string, got %q", id.Nil.String())
	}
	if id.Nil.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", id.Nil.Prefix())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		ID id.ID `json:"id"`
	}

	original := wrapper{ID: id.NewEventID()}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID.String() != original.ID.String() {
		t.Errorf("got %q, want %q", decoded.ID.String(), original.ID.String())
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		s := id.NewTransferID().String()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate id %q", s)
		}
		seen[s] = struct{}{}
	}
}
