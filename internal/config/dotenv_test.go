package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDotEnv(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	return path
}

func TestLoadDotEnv_LoadsValuesAndIgnoresNoise(t *testing.T) {
	t.Setenv("PLANTA_A", "")
	t.Setenv("PLANTA_B", "")
	t.Setenv("PLANTA_C", "")

	path := writeDotEnv(t, `
# comment

PLANTA_A=one
export PLANTA_B=two
PLANTA_C="three"
`)

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	if got := os.Getenv("PLANTA_A"); got != "one" {
		t.Fatalf("PLANTA_A=%q, want %q", got, "one")
	}
	if got := os.Getenv("PLANTA_B"); got != "two" {
		t.Fatalf("PLANTA_B=%q, want %q", got, "two")
	}
	if got := os.Getenv("PLANTA_C"); got != "three" {
		t.Fatalf("PLANTA_C=%q, want %q", got, "three")
	}
}

func TestLoadDotEnv_DoesNotOverwriteExistingEnv(t *testing.T) {
	t.Setenv("PLANTA_KEEP", "already")

	path := writeDotEnv(t, "PLANTA_KEEP=fromfile\n")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	if got := os.Getenv("PLANTA_KEEP"); got != "already" {
		t.Fatalf("PLANTA_KEEP=%q, want %q", got, "already")
	}
}

func TestLoadDotEnv_StripsSingleQuotes(t *testing.T) {
	t.Setenv("PLANTA_Q", "")

	path := writeDotEnv(t, "PLANTA_Q='hello world'\n")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	if got := os.Getenv("PLANTA_Q"); got != "hello world" {
		t.Fatalf("PLANTA_Q=%q, want %q", got, "hello world")
	}
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.env")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv on missing file: %v", err)
	}
}
