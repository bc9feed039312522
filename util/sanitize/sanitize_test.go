package sanitize

import "testing"

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"simple string", "hello", "hello"},
		{"with spaces", "hello world", "hello-world"},
		{"branch path", "feat/login-form", "feat-login-form"},
		{"with underscores", "hello_world", "hello-world"},
		{"with dots", "v1.2.3", "v1-2-3"},
		{"special characters", "hello@world!", "hello-world"},
		{"multiple dashes", "hello---world", "hello-world"},
		{"leading/trailing dashes", "-hello-world-", "hello-world"},
		{"uppercase", "HelloWorld", "helloworld"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Slug(tt.input)
			if result != tt.expected {
				t.Errorf("Slug(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestForTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "My Feature", "My Feature"},
		{"control chars stripped", "fix\x1b[31m bug\n", "fix[31m bug"},
		{"trimmed", "  spaced  ", "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ForTitle(tt.input)
			if result != tt.expected {
				t.Errorf("ForTitle(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
