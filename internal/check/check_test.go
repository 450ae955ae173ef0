package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/backmassage/pngcrunch/internal/config"
	"github.com/backmassage/pngcrunch/internal/engine"
)

type recLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *recLog) add(level, f string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(f, a...))
}

func (l *recLog) Info(f string, a ...interface{})    { l.add("INFO", f, a...) }
func (l *recLog) Success(f string, a ...interface{}) { l.add("SUCCESS", f, a...) }
func (l *recLog) Error(f string, a ...interface{})   { l.add("ERROR", f, a...) }

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// fakeEngine writes an executable script and returns a Spec running it.
func fakeEngine(t *testing.T, id, body string) engine.Spec {
	t.Helper()
	path := filepath.Join(t.TempDir(), id)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return engine.Spec{
		ID:        id,
		Command:   config.EngineConfig{Command: path},
		ProbeArgs: []string{"--version"},
	}
}

func TestProbe_Version(t *testing.T) {
	requireSh(t)
	s := fakeEngine(t, "oxipng", `echo ""; echo "oxipng 9.1.2 ($1)"`)
	got, err := Probe(context.Background(), s)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got != "oxipng 9.1.2 (--version)" {
		t.Errorf("version = %q", got)
	}
}

func TestCheckDeps_AllPresent(t *testing.T) {
	requireSh(t)
	specs := []engine.Spec{
		fakeEngine(t, "imagemagick", "echo Version: ImageMagick 6.9"),
		fakeEngine(t, "optipng", "echo OptiPNG 0.7.8"),
	}
	if err := CheckDeps(context.Background(), specs); err != nil {
		t.Fatalf("CheckDeps: %v", err)
	}
}

func TestCheckDeps_NotOnPath(t *testing.T) {
	requireSh(t)
	specs := []engine.Spec{
		fakeEngine(t, "imagemagick", "echo ok"),
		{ID: "advpng", Command: config.EngineConfig{Command: "pngcrunch-no-such-advpng"}, ProbeArgs: []string{"--version"}},
		{ID: "oxipng", Command: config.EngineConfig{Command: "pngcrunch-no-such-oxipng"}},
	}
	err := CheckDeps(context.Background(), specs)
	var missing *MissingEngineError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingEngineError", err)
	}
	if missing.Engine != "advpng" || missing.Command != "pngcrunch-no-such-advpng" {
		t.Errorf("first missing = %+v, want advpng", missing)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("err does not wrap exec.ErrNotFound: %v", err)
	}
	if !IsMissingEngine(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsMissingEngine misses wrapped error")
	}
}

func TestCheckDeps_ProbeFails(t *testing.T) {
	requireSh(t)
	specs := []engine.Spec{fakeEngine(t, "optipng", "echo broken >&2; exit 3")}
	err := CheckDeps(context.Background(), specs)
	if !IsMissingEngine(err) {
		t.Fatalf("err = %v, want MissingEngineError", err)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("err does not carry the exit status: %v", err)
	}
}

func TestRunCheck(t *testing.T) {
	requireSh(t)
	specs := []engine.Spec{
		fakeEngine(t, "optipng", "echo OptiPNG 0.7.8"),
		{ID: "advpng", Command: config.EngineConfig{Command: "pngcrunch-no-such-advpng"}},
		fakeEngine(t, "oxipng", "echo oxipng 9"),
	}
	log := &recLog{}
	if RunCheck(context.Background(), specs, log) {
		t.Error("RunCheck = true with a missing engine")
	}
	joined := strings.Join(log.lines, "\n")
	for _, want := range []string{"SUCCESS optipng: OptiPNG 0.7.8", "ERROR advpng:", "SUCCESS oxipng: oxipng 9"} {
		if !strings.Contains(joined, want) {
			t.Errorf("log missing %q:\n%s", want, joined)
		}
	}
}
