package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes yaml content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
log_level: debug
http_addr: "127.0.0.1:9999"
poll_interval: 250ms
asset_root: /srv/assets
journal:
  driver: sqlite
  dsn: /var/lib/watchdogd/journal.db
watches:
  - name: shader-hot-reload
    path: shaders/*.frag
  - name: app-config
    path: /etc/app/config.yaml
`

// TestLoadConfig_Valid verifies that a complete config parses with all fields
// populated.
func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, "127.0.0.1:9999")
	}
	if cfg.PollInterval.Std() != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval.Std())
	}
	if cfg.AssetRoot != "/srv/assets" {
		t.Errorf("AssetRoot = %q, want %q", cfg.AssetRoot, "/srv/assets")
	}
	if cfg.Journal.Driver != "sqlite" || cfg.Journal.DSN != "/var/lib/watchdogd/journal.db" {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
	if len(cfg.Watches) != 2 {
		t.Fatalf("Watches length = %d, want 2", len(cfg.Watches))
	}
	if cfg.Watches[0].Name != "shader-hot-reload" || cfg.Watches[0].Path != "shaders/*.frag" {
		t.Errorf("Watches[0] = %+v", cfg.Watches[0])
	}
}

// TestLoadConfig_Defaults verifies that omitted optional fields receive their
// documented defaults.
func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
journal:
  driver: sqlite
  dsn: ":memory:"
watches:
  - name: w
    path: /tmp
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.HTTPAddr != "127.0.0.1:8475" {
		t.Errorf("default HTTPAddr = %q, want %q", cfg.HTTPAddr, "127.0.0.1:8475")
	}
	if cfg.PollInterval.Std() != 500*time.Millisecond {
		t.Errorf("default PollInterval = %v, want 500ms", cfg.PollInterval.Std())
	}
}

// TestLoadConfig_Invalid is a table of validation failures.
func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name: "bad log level",
			yaml: `
log_level: verbose
journal: {driver: sqlite, dsn: ":memory:"}
watches: [{name: w, path: /tmp}]
`,
			wantMsg: "log_level",
		},
		{
			name: "bad journal driver",
			yaml: `
journal: {driver: mysql, dsn: "x"}
watches: [{name: w, path: /tmp}]
`,
			wantMsg: "journal.driver",
		},
		{
			name: "missing journal dsn",
			yaml: `
journal: {driver: sqlite, dsn: ""}
watches: [{name: w, path: /tmp}]
`,
			wantMsg: "journal.dsn",
		},
		{
			name: "no watches",
			yaml: `
journal: {driver: sqlite, dsn: ":memory:"}
`,
			wantMsg: "watches",
		},
		{
			name: "watch without name",
			yaml: `
journal: {driver: sqlite, dsn: ":memory:"}
watches: [{path: /tmp}]
`,
			wantMsg: "watches[0].name",
		},
		{
			name: "duplicate watch path",
			yaml: `
journal: {driver: sqlite, dsn: ":memory:"}
watches:
  - {name: a, path: /tmp}
  - {name: b, path: /tmp}
`,
			wantMsg: "duplicated",
		},
		{
			name: "bad poll interval",
			yaml: `
poll_interval: soon
journal: {driver: sqlite, dsn: ":memory:"}
watches: [{name: w, path: /tmp}]
`,
			wantMsg: "duration",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("LoadConfig succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

// TestLoadConfig_MissingFile verifies the read failure path.
func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadConfig on a missing file should fail")
	}
}
