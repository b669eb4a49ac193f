package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bodytrack/pkg/config"
	"bodytrack/pkg/pose"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" || cfg.Server.ReadTimeout != "30s" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Render.QueueSize != 3 {
		t.Fatalf("queue size = %d", cfg.Render.QueueSize)
	}
	if cfg.Scale != pose.DefaultScale() {
		t.Fatalf("scale = %+v", cfg.Scale)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, exists, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil || exists {
		t.Fatalf("exists=%v err=%v", exists, err)
	}
	if cfg.Server.Transport != "base64" {
		t.Fatalf("expected defaults, got %+v", cfg.Server)
	}
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load on missing file: %v", err)
	}
}

func TestLoadOrDefaultFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bodytrack.toml")
	mustWriteFile(t, path, `
[server]
addr = "127.0.0.1:9000"
transport = " RAW "

[alignment]
reference = { x = 0.5, y = 1.25, z = 2 }

[alignment.device]
z = 0.75
`)
	cfg, exists, err := config.LoadOrDefault(path)
	if err != nil || !exists {
		t.Fatalf("load: exists=%v err=%v", exists, err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Server.Transport != "raw" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Server.Mode != "listen" || cfg.Server.ResyncDelay != "10ms" {
		t.Fatalf("server defaults not filled: %+v", cfg.Server)
	}
	if cfg.Alignment.Reference != (pose.Vec3{X: 0.5, Y: 1.25, Z: 2}) {
		t.Fatalf("reference = %+v", cfg.Alignment.Reference)
	}
	if cfg.Alignment.Device != (pose.Vec3{Z: 0.75}) {
		t.Fatalf("device = %+v", cfg.Alignment.Device)
	}
	if cfg.Foxglove.MarkerTopic == "" || cfg.Log.Format != "auto" {
		t.Fatalf("defaults not filled: %+v %+v", cfg.Foxglove, cfg.Log)
	}
	if cfg.ConfigPath() != path {
		t.Fatalf("config path = %q", cfg.ConfigPath())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"mode":      "[server]\nmode = \"broadcast\"\n",
		"addr":      "[server]\naddr = \"nope\"\n",
		"transport": "[server]\ntransport = \"hex\"\n",
		"timeout":   "[server]\nread_timeout = \"soon\"\n",
		"negative":  "[server]\nresync_delay = \"-1s\"\n",
		"reconnect": "[server]\nreconnect = \"0s\"\n",
		"payload":   "[server]\nmax_payload = -1\n",
		"scale":     "[scale]\nbase = -85.0\ngain = 5.0\n",
		"queue":     "[render]\nqueue_size = 17\n",
		"divisor":   "[alignment.device]\nz = -20.0\n",
		"tick":      "[render]\ntick = \"0s\"\n",
		"level":     "[log]\nlevel = \"chatty\"\n",
		"format":    "[log]\nformat = \"xml\"\n",
		"metrics":   "[metrics]\naddr = \"9108\"\n",
		"syntax":    "[server\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bodytrack.toml")
			mustWriteFile(t, path, content)
			if _, _, err := config.LoadOrDefault(path); err == nil {
				t.Fatalf("expected error for %q", content)
			}
		})
	}
}

func TestValidateRejectsNonPositiveDivisor(t *testing.T) {
	cases := []struct {
		name    string
		gain    float64
		deviceZ float64
	}{
		{name: "device behind", gain: 5, deviceZ: -20},
		{name: "negative gain", gain: -100, deviceZ: 1},
		{name: "zero", gain: 5, deviceZ: -17},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Scale.Gain = tc.gain
			cfg.Alignment.Device = pose.Vec3{Z: tc.deviceZ}
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected divisor error")
			}
			if !strings.Contains(err.Error(), "alignment.device") {
				t.Fatalf("error should name the offending keys: %v", err)
			}
		})
	}

	cfg := config.Default()
	cfg.Scale.Gain = -10
	cfg.Alignment.Device = pose.Vec3{Z: 2}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("positive divisor rejected: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bodytrack.toml")
	cfg := config.Default()
	cfg.Server.Mode = "dial"
	cfg.Server.Addr = "192.168.1.20:8080"
	cfg.Alignment.Reference = pose.Vec3{X: 1, Y: 2, Z: 3}
	cfg.Render.QueueSize = 2
	cfg.Record.JSONL = "poses.jsonl"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "[alignment.reference]") && !strings.Contains(string(data), "reference") {
		t.Fatalf("saved file missing alignment: %s", data)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.Mode != "dial" || loaded.Server.Addr != "192.168.1.20:8080" {
		t.Fatalf("server = %+v", loaded.Server)
	}
	if loaded.Alignment.Reference != cfg.Alignment.Reference || loaded.Render.QueueSize != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if got := loaded.ResolvePath(loaded.Record.JSONL); got != filepath.Join(filepath.Dir(path), "poses.jsonl") {
		t.Fatalf("resolved record path = %q", got)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Render.QueueSize = 99
	path := filepath.Join(t.TempDir(), "bodytrack.toml")
	if err := cfg.Save(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid config was written")
	}
}

func TestDurations(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ReadTimeout = "0s"
	d := cfg.Durations()
	if d.ReadTimeout != 0 || d.ResyncDelay != 10*time.Millisecond || d.RenderTick != 16*time.Millisecond {
		t.Fatalf("durations = %+v", d)
	}
	if d.Reconnect != time.Second || d.ReconnectMax != 30*time.Second {
		t.Fatalf("reconnect = %+v", d)
	}
}

func TestResolvePath(t *testing.T) {
	cfg := config.Default()
	if got := cfg.ResolvePath("poses.db"); got != "poses.db" {
		t.Fatalf("without config path: %q", got)
	}
	abs := filepath.Join(t.TempDir(), "poses.db")
	if got := cfg.ResolvePath(abs); got != abs {
		t.Fatalf("absolute path changed: %q", got)
	}
}
