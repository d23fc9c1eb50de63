package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/venus-kyc/caseflow/internal/workflow"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
version: 1
pipeline:
  - stage: INTAKE
    role: KYC_ANALYST
  - stage: SIGN_OFF
    role: ACO_REVIEWER
users:
  alice:
    role: KYC_ANALYST
    name: Alice
  bob:
    role: ACO_REVIEWER
server:
  addr: ":9000"
notify:
  nats_url: nats://localhost:4222
  subject_prefix: kyc
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(cfg.Users))
	}
	if cfg.Users["alice"].Name != "Alice" {
		t.Errorf("expected display name Alice, got %q", cfg.Users["alice"].Name)
	}
	if cfg.Server.Addr != ":9000" || cfg.Notify.SubjectPrefix != "kyc" {
		t.Errorf("unexpected server/notify: %+v %+v", cfg.Server, cfg.Notify)
	}

	p, err := cfg.BuildPipeline()
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	if p.First().Name != "INTAKE" {
		t.Errorf("expected first stage INTAKE, got %s", p.First().Name)
	}
	role, ok := p.RoleFor("SIGN_OFF")
	if !ok || role != workflow.RoleACOReviewer {
		t.Errorf("expected SIGN_OFF bound to ACO_REVIEWER, got %s", role)
	}
}

func TestLoad_UnknownRole(t *testing.T) {
	path := writeConfig(t, `
version: 1
users:
  mallory:
    role: SUPERUSER
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if !strings.Contains(err.Error(), "mallory") {
		t.Errorf("expected error to name the user, got %v", err)
	}
}

func TestLoad_MissingRole(t *testing.T) {
	path := writeConfig(t, `
version: 1
users:
  alice:
    name: Alice
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing role")
	}
}

func TestLoad_TerminalStageRejected(t *testing.T) {
	path := writeConfig(t, `
version: 1
pipeline:
  - stage: APPROVED
    role: KYC_ANALYST
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for terminal stage in pipeline")
	}
}

func TestLoad_DuplicateStage(t *testing.T) {
	path := writeConfig(t, `
version: 1
pipeline:
  - stage: A
    role: KYC_ANALYST
  - stage: A
    role: KYC_REVIEWER
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate stage")
	}
}

func TestLoad_BadLogFormat(t *testing.T) {
	path := writeConfig(t, `
version: 1
log:
  format: xml
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad log format")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Pipeline) != 4 {
		t.Errorf("expected 4 pipeline stages, got %d", len(loaded.Pipeline))
	}
	if len(loaded.Users) != len(cfg.Users) {
		t.Errorf("expected %d users, got %d", len(cfg.Users), len(loaded.Users))
	}
}

func TestBuildPipeline_EmptyIsDefault(t *testing.T) {
	cfg := &Config{Version: 1}
	p, err := cfg.BuildPipeline()
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	if len(p.Stages()) != 4 || p.First().Name != "KYC_ANALYST" {
		t.Errorf("expected default pipeline, got %+v", p.Stages())
	}
}

func TestDirectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Users["zed"] = User{Role: string(workflow.RoleKYCAnalyst)}
	dir := cfg.Directory()

	u, ok := dir.Lookup("reviewer")
	if !ok || u.Role != workflow.RoleKYCReviewer || u.Username != "reviewer" {
		t.Errorf("unexpected lookup: %+v %v", u, ok)
	}
	if _, ok := dir.Lookup("nobody"); ok {
		t.Error("expected unknown user to be absent")
	}

	analysts := dir.UsersByRole(workflow.RoleKYCAnalyst)
	if len(analysts) != 2 || analysts[0].Username != "analyst" || analysts[1].Username != "zed" {
		t.Errorf("expected sorted analysts, got %+v", analysts)
	}
	if len(dir.Users()) != len(cfg.Users) {
		t.Errorf("expected %d users, got %d", len(cfg.Users), len(dir.Users()))
	}
}

func TestLogLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	Log{Level: "warn", Format: "json"}.Logger(&buf).Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}

	Log{Format: "json"}.Logger(&buf).Info("shown", "case", 1)
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestLoad_ScreeningInterval(t *testing.T) {
	path := writeConfig(t, `
users:
  alice:
    role: KYC_ANALYST
screening:
  workers: 2
  sweep_interval: 45s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, err := cfg.Screening.Interval()
	if err != nil || d.Seconds() != 45 {
		t.Fatalf("Interval() = %v, %v", d, err)
	}

	for _, bad := range []string{"soon", "-5s"} {
		path := writeConfig(t, "users:\n  alice:\n    role: KYC_ANALYST\nscreening:\n  sweep_interval: "+bad+"\n")
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "sweep_interval") {
			t.Errorf("sweep_interval %q: expected error, got %v", bad, err)
		}
	}

	var off Screening
	if d, err := off.Interval(); d != 0 || err != nil {
		t.Errorf("empty interval should disable the sweep, got %v, %v", d, err)
	}
}
