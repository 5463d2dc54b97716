package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "snippet.yaml")

	content := `
device: emulator-5554
address: 127.0.0.1:7000
snippetPackage: com.example.snippet
rpcTimeoutMs: 30000
waitTimeoutMs: 5000
pollIntervalMs: 50
maxScrollAttempts: 12
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Device != "emulator-5554" {
		t.Errorf("expected device emulator-5554, got %s", cfg.Device)
	}
	if cfg.Address != "127.0.0.1:7000" {
		t.Errorf("expected address 127.0.0.1:7000, got %s", cfg.Address)
	}
	if cfg.SnippetPackage != "com.example.snippet" {
		t.Errorf("expected snippet package, got %q", cfg.SnippetPackage)
	}
	if cfg.RPCTimeoutMs != 30000 || cfg.WaitTimeoutMs != 5000 || cfg.PollIntervalMs != 50 {
		t.Errorf("unexpected timings: %+v", cfg)
	}
	if cfg.MaxScrollAttempts != 12 {
		t.Errorf("expected maxScrollAttempts 12, got %d", cfg.MaxScrollAttempts)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/snippet.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "snippet.yaml")
	if err := os.WriteFile(configPath, []byte("address: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_WaitLongerThanRPC(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "snippet.yaml")
	content := "rpcTimeoutMs: 1000\nwaitTimeoutMs: 2000\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error when wait timeout exceeds rpc timeout")
	}
}

func TestLoadFromDir(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{"yaml extension", "snippet.yaml"},
		{"yml extension", "snippet.yml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, tt.filename), []byte("device: pixel\n"), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadFromDir(dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Device != "pixel" {
				t.Errorf("expected device pixel, got %q", cfg.Device)
			}
		})
	}
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Address != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestDefaults(t *testing.T) {
	ResetHome()
	t.Setenv("SNIPPET_UI_HOME", "/test/home")

	cfg := Config{PollIntervalMs: 20}.Defaults()
	if cfg.Address != DefaultAddress {
		t.Errorf("expected default address, got %s", cfg.Address)
	}
	if cfg.PollIntervalMs != 20 {
		t.Errorf("expected explicit poll interval kept, got %d", cfg.PollIntervalMs)
	}
	if cfg.WaitTimeoutMs != 10000 {
		t.Errorf("expected default wait timeout 10000, got %d", cfg.WaitTimeoutMs)
	}
	if cfg.LogFile != filepath.Join("/test/home", "logs", "snippet-ui.log") {
		t.Errorf("unexpected log file %s", cfg.LogFile)
	}
}

func TestOptions(t *testing.T) {
	cfg := Config{
		Device:            "serial-1",
		RPCTimeoutMs:      20000,
		WaitTimeoutMs:     3000,
		PollIntervalMs:    40,
		MaxScrollAttempts: 5,
	}
	opts := cfg.Options()
	if opts.Device != "serial-1" {
		t.Errorf("expected device serial-1, got %s", opts.Device)
	}
	if opts.PollInterval != 40*time.Millisecond {
		t.Errorf("expected 40ms poll interval, got %v", opts.PollInterval)
	}
	if opts.WaitTimeout != 3*time.Second || opts.RPCTimeout != 20*time.Second {
		t.Errorf("unexpected timeouts: %+v", opts)
	}
	if opts.MaxScrollAttempts != 5 {
		t.Errorf("expected 5 scroll attempts, got %d", opts.MaxScrollAttempts)
	}
}
