package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_SQLiteBackendValid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Backend = BackendSQLite
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default sqlite config should pass: %v", err)
	}
}

func TestStoreConfig_GitHubRequiresRepository(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("github backend without token, owner and repo should fail")
	}
	if !strings.Contains(err.Error(), "Token") || !strings.Contains(err.Error(), "Owner") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Store.GitHub.Token = "t"
	cfg.Store.GitHub.Owner = "o"
	cfg.Store.GitHub.Repo = "blog"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete github config should pass: %v", err)
	}
}

func TestStoreConfig_InvalidBackendAndPaths(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Backend = "s3"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Store.Backend = BackendSQLite
	cfg.Store.MarkdownDir = "/"
	if err := cfg.Validate(); err == nil {
		t.Error("empty markdown dir should fail")
	}
}

func TestStoreConfig_TrimsSlashes(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Backend = BackendSQLite
	cfg.Store.MarkdownDir = "/content/posts/"
	cfg.Store.IndexPath = "/content/index.json"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	ac := cfg.ArticlesConfig()
	if ac.MarkdownDir != "content/posts" || ac.IndexPath != "content/index.json" {
		t.Errorf("articles config = %+v", ac)
	}
}

func TestEditorConfig_Strategy(t *testing.T) {
	cfg := EditorConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty strategy should default: %v", err)
	}
	if cfg.IndexStrategy != "rebuild" {
		t.Errorf("strategy = %q, want rebuild", cfg.IndexStrategy)
	}

	cfg = EditorConfig{IndexStrategy: "incremental"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("incremental should pass: %v", err)
	}
	cfg = EditorConfig{IndexStrategy: "lazy"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown strategy should fail")
	}
}

func TestGeneratorConfig_Enabled(t *testing.T) {
	if (&GeneratorConfig{}).Enabled() {
		t.Error("generator without key should be disabled")
	}
	if !(&GeneratorConfig{APIKey: "k"}).Enabled() {
		t.Error("generator with key should be enabled")
	}
}
