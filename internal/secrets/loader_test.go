package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	got, err := Load(Source{Name: "api key", Value: "inline", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file secret, got %q", got)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("   "), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	_, err := Load(Source{Name: "api key", File: path})
	if err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(Source{Name: "api key", File: filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadValueBeforeEnv(t *testing.T) {
	t.Setenv("LEADSCORE_TEST_KEY", "from-env")

	got, err := Load(Source{Value: " inline ", Env: "LEADSCORE_TEST_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "inline" {
		t.Fatalf("expected inline secret, got %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LEADSCORE_TEST_KEY", "from-env")

	got, err := Load(Source{Env: "LEADSCORE_TEST_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected env secret, got %q", got)
	}
}

func TestLoadNotConfigured(t *testing.T) {
	t.Setenv("LEADSCORE_TEST_KEY", "")

	_, err := Load(Source{Name: "gemini api key", Env: "LEADSCORE_TEST_KEY"})
	if err == nil || !strings.Contains(err.Error(), "LEADSCORE_TEST_KEY") {
		t.Fatalf("expected error naming env variable, got %v", err)
	}

	_, err = Load(Source{})
	if err == nil || !strings.Contains(err.Error(), "secret is not configured") {
		t.Fatalf("expected default name in error, got %v", err)
	}
}
