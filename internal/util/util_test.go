package util

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		v        float64
		expected float64
	}{
		{"inside", 42, 42},
		{"below", -3, 0},
		{"above", 103, 100},
		{"lower bound", 0, 0},
		{"upper bound", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, 0, 100); got != tt.expected {
				t.Errorf("Clamp(%v) = %v, want %v", tt.v, got, tt.expected)
			}
		})
	}
}

func TestRoundTo(t *testing.T) {
	got := 100.0
	for i := 0; i < 10; i++ {
		got = RoundTo(got-0.1, 6)
	}
	if got != 99 {
		t.Errorf("expected 99 after ten 0.1 steps, got %v", got)
	}
}

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeArg(t *testing.T) {
	if got := NormalizeArg(`  "RIGHT" `); got != "right" {
		t.Errorf("NormalizeArg = %q, want %q", got, "right")
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName("Explore the farm: day 1"); got != "Explore_the_farm__day_1" {
		t.Errorf("SanitizeFileName = %q", got)
	}
}
