package utils

import (
	"testing"
	"time"
)

func TestGenerateUserID(t *testing.T) {
	id := GenerateUserID()

	if len(id) != UserIDLength {
		t.Fatalf("len = %d, want %d", len(id), UserIDLength)
	}
	for _, r := range id {
		valid := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !valid {
			t.Errorf("unexpected character %q in user ID %s", r, id)
		}
	}
}

func TestGenerateUserID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateUserID()
		if seen[id] {
			t.Fatalf("duplicate user ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already safe", "Alice_2024.json", "Alice_2024.json"},
		{"spaces and slashes", "my chat/with bob", "my_chat_with_bob"},
		{"unicode", "résumé", "r_sum_"},
		{"empty", "", ""},
		{"dots and dashes kept", "a.b-c_d", "a.b-c_d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world  "); got != "helloworld" {
		t.Errorf("SanitizeString = %q", got)
	}
	if got := SanitizeString("line1\nline2"); got != "line1\nline2" {
		t.Errorf("newlines should be preserved, got %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("abcdef", 5); got != "ab..." {
		t.Errorf("TruncateString = %q", got)
	}
	if got := TruncateString("abc", 5); got != "abc" {
		t.Errorf("TruncateString = %q", got)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	s := FormatTimestamp(now)

	parsed, err := ParseTimestamp(s)
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("round trip mismatch: %v != %v", parsed, now)
	}
}

func TestDateSuffix(t *testing.T) {
	d := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	if got := DateSuffix(d); got != "2024-03-01" {
		t.Errorf("DateSuffix = %q", got)
	}
}
