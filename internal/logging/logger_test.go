package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ssukchat.log")

	logger, err := New(path, "shop", false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("room refreshed", zap.String("counterpart", "bob"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", line)
	}
	for key, want := range map[string]string{"msg": "room refreshed", "profile": "shop", "counterpart": "bob"} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %q", key, entry[key], want)
		}
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("missing ts field")
	}
}

func TestNewFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssukchat.log")
	if _, err := New(path, "main", false); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("log permission = %o, want 0600", perm)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) = nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("OrNop replaced a non-nil logger")
	}
}
