package command

import (
	"context"
	"testing"
	"time"
)

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "feature-login", false},
		{"valid with slash", "feat/login-form", false},
		{"valid with dots", "release/v1.2", false},
		{"empty name", "", true},
		{"leading slash", "/feat", true},
		{"trailing slash", "feat/", true},
		{"doubled slash", "feat//login", true},
		{"leading hyphen", "-feat", true},
		{"double dots", "feat..login", true},
		{"shell metacharacters", "feat;rm", true},
		{"spaces", "feat login", true},
		{"too long", string(make([]byte, MaxBranchNameLength+1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBranchName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateBranchName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGitRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid ref", "main", false},
		{"valid remote ref", "origin/main", false},
		{"valid HEAD", "HEAD", false},
		{"empty ref", "", true},
		{"leading hyphen", "--force", true},
		{"special characters", "main;echo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateGitRef(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateGitRef(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid path", "/path/to/file.txt", false},
		{"relative path", "relative/path.txt", false},
		{"directory traversal", "../etc/passwd", true},
		{"command injection semicolon", "file.txt; rm -rf /", true},
		{"command injection pipe", "file.txt | cat", true},
		{"command injection dollar", "$(whoami)", true},
		{"command injection backtick", "`whoami`", true},
		{"empty path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFileName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateToolName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "codex", false},
		{"valid with hyphen", "open-code", false},
		{"empty", "", true},
		{"uppercase", "Codex", true},
		{"path", "/usr/bin/sh", true},
		{"metacharacters", "sh;id", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateToolName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateToolName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestBuildRejectsEmptyName(t *testing.T) {
	sb := NewSafeBuilder()
	if _, err := sb.Build(context.Background(), ""); err == nil {
		t.Error("Build should reject an empty command name")
	}
}

func TestWithTimeoutClampsToMax(t *testing.T) {
	sb := NewSafeBuilder()
	cmd, err := sb.Build(context.Background(), "git", "status")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	cmd = cmd.WithTimeout(time.Hour)
	if cmd.timeout != MaxTimeout {
		t.Errorf("expected timeout clamped to %v, got %v", MaxTimeout, cmd.timeout)
	}
}

func TestValidateUnknownType(t *testing.T) {
	sb := NewSafeBuilder()
	if err := sb.Validate("nope", "value"); err == nil {
		t.Error("Validate should fail for unknown argument types")
	}
}
