package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNormalizePathArg(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no trailing slash", "/assets/icons", "/assets/icons"},
		{"single trailing slash", "/assets/icons/", "/assets/icons"},
		{"multiple trailing slashes", "/assets/icons///", "/assets/icons"},
		{"root path", "/", "/"},
		{"relative path", "sprites", "sprites"},
		{"file path", "logo.png", "logo.png"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePathArg(tt.in)
			if got != tt.want {
				t.Errorf("NormalizePathArg(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with a path", func(c *Config) {}, false},
		{"no paths", func(c *Config) { c.Paths = nil }, true},
		{"no paths in check mode", func(c *Config) { c.Paths = nil; c.CheckOnly = true }, false},
		{"negative jobs", func(c *Config) { c.Jobs = -1 }, true},
		{"zero threshold", func(c *Config) { c.Threshold = 0 }, true},
		{"negative timeout", func(c *Config) { c.EngineTimeout = -time.Second }, true},
		{"zero timeout", func(c *Config) { c.EngineTimeout = 0 }, false},
		{"negative breaker", func(c *Config) { c.BreakerThreshold = -1 }, true},
		{"unknown color", func(c *Config) { c.ColorMode = "rainbow" }, true},
		{"empty engine command", func(c *Config) { c.Engines.AdvPNG.Command = " " }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Paths = []string{"assets"}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineSetClone(t *testing.T) {
	s := DefaultConfig().Engines
	s.OxiPNG.Args = []string{"--strip", "safe"}
	cp := s.Clone()
	cp.OxiPNG.Args[0] = "changed"
	if s.OxiPNG.Args[0] != "--strip" {
		t.Errorf("Clone shares Args with the original: %v", s.OxiPNG.Args)
	}
}

func TestParseArgs(t *testing.T) {
	cfg := DefaultConfig()
	var out bytes.Buffer
	err := parseArgs(&cfg, "1.0.0",
		[]string{"-j", "3", "--threshold", "16", "--timeout", "30s", "--no-color", "-d", "--events", "ev.jsonl", "icons/", "logo.png"},
		&out, func(int) { t.Fatal("unexpected exit") })
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Jobs != 3 {
		t.Errorf("Jobs = %d, want 3", cfg.Jobs)
	}
	if cfg.Threshold != 16 {
		t.Errorf("Threshold = %d, want 16", cfg.Threshold)
	}
	if cfg.EngineTimeout != 30*time.Second {
		t.Errorf("EngineTimeout = %v, want 30s", cfg.EngineTimeout)
	}
	if cfg.ColorMode != ColorNever {
		t.Errorf("ColorMode = %q, want never", cfg.ColorMode)
	}
	if !cfg.Verbose {
		t.Error("Verbose = false, want true")
	}
	if cfg.EventsFile != "ev.jsonl" {
		t.Errorf("EventsFile = %q", cfg.EventsFile)
	}
	if len(cfg.Paths) != 2 || cfg.Paths[0] != "icons" || cfg.Paths[1] != "logo.png" {
		t.Errorf("Paths = %v", cfg.Paths)
	}
}

func TestParseArgs_NeedsPath(t *testing.T) {
	cfg := DefaultConfig()
	if err := parseArgs(&cfg, "1.0.0", []string{"-j", "2"}, &bytes.Buffer{}, func(int) {}); err == nil {
		t.Fatal("expected error without positional paths")
	}

	cfg = DefaultConfig()
	if err := parseArgs(&cfg, "1.0.0", []string{"--check"}, &bytes.Buffer{}, func(int) {}); err != nil {
		t.Fatalf("--check without paths: %v", err)
	}
}

func TestParseArgs_Version(t *testing.T) {
	cfg := DefaultConfig()
	var out bytes.Buffer
	code := -1
	if err := parseArgs(&cfg, "9.9.9", []string{"-V"}, &out, func(c int) { code = c }); err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "pngcrunch v9.9.9") {
		t.Errorf("version output: %q", out.String())
	}
}

func TestLoadEngines_Precedence(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.json")
	project := filepath.Join(dir, "project.json")
	writeFile(t, global, `{"engines": {"imagemagick": {"command": "magick"}, "oxipng": {"command": "/opt/oxipng"}}}`)
	writeFile(t, project, `{"engines": {"oxipng": {"command": "oxipng-9", "args": ["--threads", "1"]}}}`)

	cfg := DefaultConfig()
	if err := LoadEngines(&cfg, global, project, ""); err != nil {
		t.Fatalf("LoadEngines: %v", err)
	}
	if cfg.Engines.ImageMagick.Command != "magick" {
		t.Errorf("imagemagick = %q, want magick", cfg.Engines.ImageMagick.Command)
	}
	if cfg.Engines.OxiPNG.Command != "oxipng-9" {
		t.Errorf("oxipng = %q, want project override", cfg.Engines.OxiPNG.Command)
	}
	if len(cfg.Engines.OxiPNG.Args) != 2 {
		t.Errorf("oxipng args = %v", cfg.Engines.OxiPNG.Args)
	}
	if cfg.Engines.OptiPNG.Command != "optipng" {
		t.Errorf("optipng default lost: %q", cfg.Engines.OptiPNG.Command)
	}
}

func TestLoadEngines_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	if err := LoadEngines(&cfg, filepath.Join(dir, "nope.json"), filepath.Join(dir, "nada.json"), ""); err != nil {
		t.Fatalf("missing conventional files should be ignored: %v", err)
	}
	if err := LoadEngines(&cfg, "", "", filepath.Join(dir, "explicit.json")); err == nil {
		t.Fatal("missing explicit file should be an error")
	}
}

func TestLoadEngines_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"engines": `)
	unknown := filepath.Join(dir, "unknown.json")
	writeFile(t, unknown, `{"engines": {"pngout": {"command": "pngout"}}}`)

	cfg := DefaultConfig()
	if err := LoadEngines(&cfg, "", "", bad); err == nil {
		t.Error("malformed JSON should be an error")
	}
	if err := LoadEngines(&cfg, "", "", unknown); err == nil {
		t.Error("unknown engine should be an error")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
