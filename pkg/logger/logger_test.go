package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(GetWriter())

	Warn("locator of %s is nil", "LoginPage")

	got := buf.String()
	if !strings.Contains(got, "level=warning") {
		t.Errorf("log line = %q, want warning level", got)
	}
	if !strings.Contains(got, "locator of LoginPage is nil") {
		t.Errorf("log line = %q, want formatted message", got)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(GetWriter())

	WithField("page", "Login").Info("initialized")

	if !strings.Contains(buf.String(), "page=Login") {
		t.Errorf("log line = %q, want page field", buf.String())
	}
}

func TestInitAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basil.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Info("hello %d", 42)
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "hello 42") {
		t.Errorf("log file = %q, want message", data)
	}
}

func TestSetLevel(t *testing.T) {
	if err := SetLevel("nope"); err == nil {
		t.Error("SetLevel(nope) should fail")
	}
	if err := SetLevel("debug"); err != nil {
		t.Errorf("SetLevel(debug) error = %v", err)
	}
}
