package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	CloseAll()
	logsDir = ""
	cfgMu.Lock()
	cfg = loggingConfig{}
	logLevel = LevelInfo
	cfgMu.Unlock()
}

func TestDisabledByDefault(t *testing.T) {
	resetState()

	if err := Initialize("", false, "info", nil); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if IsDebugMode() {
		t.Error("debug mode should be disabled")
	}

	// Must be a safe no-op.
	l := Get(CategoryServer)
	l.Info("should go nowhere")
	if l.logger != nil {
		t.Error("expected no-op logger when debug mode is off")
	}
}

func TestWritesToCategoryFile(t *testing.T) {
	resetState()
	dir := t.TempDir()

	if err := Initialize(dir, true, "debug", nil); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer resetState()

	Compiler("located binary at %s", "/usr/local/bin/compactc")
	CloseAll()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var compilerLog string
	for _, e := range entries {
		if strings.Contains(e.Name(), "compiler") {
			compilerLog = filepath.Join(dir, e.Name())
		}
	}
	if compilerLog == "" {
		t.Fatalf("no compiler log file created, got %v", entries)
	}
	data, err := os.ReadFile(compilerLog)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "located binary at /usr/local/bin/compactc") {
		t.Errorf("log file missing expected message, got: %s", data)
	}
}

func TestCategoryFilter(t *testing.T) {
	resetState()
	dir := t.TempDir()

	categories := map[string]bool{
		string(CategoryCompiler): false,
		string(CategoryScanner):  true,
	}
	if err := Initialize(dir, true, "info", categories); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer resetState()

	if IsCategoryEnabled(CategoryCompiler) {
		t.Error("compiler category should be disabled")
	}
	if !IsCategoryEnabled(CategoryScanner) {
		t.Error("scanner category should be enabled")
	}
	// Unlisted categories default to enabled.
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("unlisted category should default to enabled")
	}
}

func TestLevelFilter(t *testing.T) {
	resetState()
	dir := t.TempDir()

	if err := Initialize(dir, true, "warn", nil); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer resetState()

	l := Get(CategoryTools)
	l.Info("info should be dropped")
	l.Warn("warn should be kept")
	CloseAll()

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		data, _ := os.ReadFile(filepath.Join(dir, e.Name()))
		if strings.Contains(string(data), "info should be dropped") {
			t.Error("info message logged despite warn level")
		}
		if strings.Contains(e.Name(), "tools") && !strings.Contains(string(data), "warn should be kept") {
			t.Error("warn message missing")
		}
	}
}
