package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (c *testConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("BLOGSYNC_TEST_NAME", "from-env")
	p := writeFile(t, "name: ${BLOGSYNC_TEST_NAME}\nport: 9000\n")

	cfg := testConfig{}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "from-env" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_KeepsDefaultsForAbsentKeys(t *testing.T) {
	p := writeFile(t, "name: x\n")
	cfg := testConfig{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Port)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	p := writeFile(t, "")
	cfg := testConfig{Port: 1}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	p := writeFile(t, "name: x\nport: 1\nprot: 2\n")
	err := Load(p, &testConfig{})
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	if err := Load(p, &testConfig{}); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	cfg := testConfig{Port: 7}
	if err := LoadWithDefaults(missing, "", &cfg); err != nil {
		t.Fatalf("no files: %v", err)
	}
	if cfg.Port != 7 {
		t.Errorf("port = %d, want default", cfg.Port)
	}

	fallback := writeFile(t, "port: 42\n")
	if err := LoadWithDefaults(missing, fallback, &cfg); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if cfg.Port != 42 {
		t.Errorf("port = %d, want 42 from fallback", cfg.Port)
	}

	if err := LoadWithDefaults(missing, "", &testConfig{}); err == nil {
		t.Error("invalid defaults must still fail validation")
	}
}
