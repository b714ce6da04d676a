package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lauschr/internal/config"
	"lauschr/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("LAUSCHR_BASE_URL", "")
	t.Setenv("LAUSCHR_DATA_DIR", "")
	t.Setenv("LAUSCHR_NTFY_TOPIC", cfg.Notifications.NtfyTopic)

	configPath := filepath.Join(base, "lauschr.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// runJSON runs a command with --json and decodes its output into v.
func runJSON(t *testing.T, env *cliTestEnv, v any, args ...string) {
	t.Helper()
	out, _, err := runCLI(t, env, append([]string{"--json"}, args...)...)
	if err != nil {
		t.Fatalf("%s failed: %v", strings.Join(args, " "), err)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %s output %q: %v", args[0], out, err)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[app]\nbase_url = %q\n\n[paths]\ndata_dir = %q\naudio_dir = %q\nimages_dir = %q\nlog_dir = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.App.BaseURL,
		cfg.Paths.DataDir,
		cfg.Paths.AudioDir,
		cfg.Paths.ImagesDir,
		cfg.Paths.LogDir,
	)
	if cfg.Notifications.NtfyTopic != "" {
		content += fmt.Sprintf("\n[notifications]\nntfy_topic = %q\n", cfg.Notifications.NtfyTopic)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

type idRecord struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

const testPasswordHash = "$2y$10$abcdefghijklmnopqrstuu5Zc2cHXrkbGJ6aN9kSmyy3T8Ew4xQDi"

func addUser(t *testing.T, env *cliTestEnv, email string, extra ...string) string {
	t.Helper()
	var user idRecord
	args := []string{"user", "add", "--email", email, "--name", email, "--password-hash", testPasswordHash, "--approve"}
	runJSON(t, env, &user, append(args, extra...)...)
	if user.ID == "" {
		t.Fatalf("user add returned no id")
	}
	return user.ID
}
