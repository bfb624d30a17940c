package model

import (
	"encoding/json"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
		{"ččččččč", true},
		{"čččččččč", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestKindStatuses(t *testing.T) {
	tests := []struct {
		kind    Kind
		limited Status
		valid   Status
		invalid Status
	}{
		{KindGame, StatusActive, StatusCasual, StatusReading},
		{KindBook, StatusReading, StatusReference, StatusActive},
	}

	for _, tt := range tests {
		if got := tt.kind.LimitedStatus(); got != tt.limited {
			t.Errorf("%s.LimitedStatus() = %q, want %q", tt.kind, got, tt.limited)
		}
		if got := tt.kind.Statuses()[0]; got != tt.limited {
			t.Errorf("%s.Statuses()[0] = %q, want %q", tt.kind, got, tt.limited)
		}
		if len(tt.kind.Statuses()) != 6 {
			t.Errorf("%s has %d statuses, want 6", tt.kind, len(tt.kind.Statuses()))
		}
		if !tt.kind.ValidStatus(tt.valid) {
			t.Errorf("%s.ValidStatus(%q) = false", tt.kind, tt.valid)
		}
		if tt.kind.ValidStatus(tt.invalid) {
			t.Errorf("%s.ValidStatus(%q) = true", tt.kind, tt.invalid)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"game", "games"} {
		if k, err := ParseKind(s); err != nil || k != KindGame {
			t.Errorf("ParseKind(%q) = %q, %v", s, k, err)
		}
	}
	if _, err := ParseKind("movies"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCountsMarshalJSON(t *testing.T) {
	c := Counts{Count: 2, Limit: 3, ByStatus: map[Status]int{StatusPaused: 1, StatusCasual: 0}}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]int{"count": 2, "limit": 3, "paused_count": 1, "casual_count": 0}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %d, want %d", k, got[k], v)
		}
	}
}
