package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider_GetSecret(t *testing.T) {
	p := NewEnvProvider(DefaultEnvPrefix, map[string]string{
		"PROGNOS_SECRET_RUNTIME_API_KEY": "k-123",
		"PROGNOS_SECRET_EMPTY":           "",
	})

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr bool
	}{
		{name: "dashes map to underscores", secret: "runtime-api-key", want: "k-123"},
		{name: "case folded", secret: "Runtime-Api-Key", want: "k-123"},
		{name: "empty value is missing", secret: "empty", wantErr: true},
		{name: "unset", secret: "pg-password", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetSecret(context.Background(), tt.secret)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("GetSecret() error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetSecret() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GetSecret() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvProvider_ProcessEnvironment(t *testing.T) {
	t.Setenv("TEST_PREFIX_DB_PASSWORD", "from-process")

	p := NewEnvProvider("TEST_PREFIX_", nil)
	got, err := p.GetSecret(context.Background(), "db-password")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if got != "from-process" {
		t.Errorf("GetSecret() = %q, want from-process", got)
	}
}

func writeSecret(t *testing.T, dir, name, value string, perm os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), perm); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}
	// WriteFile is subject to the umask.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("failed to chmod secret: %v", err)
	}
}

func TestFileProvider_GetSecret(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "pg-password", "s3cret\n", 0600)
	writeSecret(t, dir, "readonly", "ro", 0400)
	writeSecret(t, dir, "world-readable", "oops", 0644)
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0700); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	tests := []struct {
		name         string
		secret       string
		want         string
		wantNotFound bool
		wantErr      bool
	}{
		{name: "trims whitespace", secret: "pg-password", want: "s3cret"},
		{name: "read-only file", secret: "readonly", want: "ro"},
		{name: "insecure permissions", secret: "world-readable", wantErr: true},
		{name: "directory", secret: "nested", wantErr: true},
		{name: "missing", secret: "absent", wantNotFound: true},
		{name: "traversal", secret: "../etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetSecret(context.Background(), tt.secret)
			switch {
			case tt.wantNotFound:
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("GetSecret() error = %v, want ErrNotFound", err)
				}
			case tt.wantErr:
				if err == nil || errors.Is(err, ErrNotFound) {
					t.Fatalf("GetSecret() error = %v, want a non-ErrNotFound error", err)
				}
			default:
				if err != nil {
					t.Fatalf("GetSecret() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("GetSecret() = %q, want %q", got, tt.want)
				}
			}
		})
	}
}

func TestFileProvider_Supports(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "present", "v", 0600)

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	if !p.Supports("present") {
		t.Error("Supports(present) = false")
	}
	if p.Supports("absent") {
		t.Error("Supports(absent) = true")
	}
	if p.Supports("../present") {
		t.Error("Supports(../present) = true")
	}
}

func TestNewFileProvider_InvalidDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing"), file} {
		if _, err := NewFileProvider(path); err == nil {
			t.Errorf("NewFileProvider(%q) succeeded", path)
		}
	}
}
