package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "tankobon ") {
		t.Fatalf("version output = %q", out)
	}
}

func TestValidatePrintsResolvedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
url = "http://nas.local:4567"
token = "secret"

[polling.downloads]
active_interval = "10s"
initial_interval = "1m"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"http://nas.local:4567", "token:     (set)", "[downloads]", "active=10s", "initial=1m0s", "[notifications]"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Fatal("validate printed the token")
	}
}

func TestValidateRejectsBadStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[polling.notifications]
active_interval = "1h"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "validate", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "polling.notifications") {
		t.Fatalf("validate error = %v, want polling.notifications error", err)
	}
}
