package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	if err := InitAuditLogger(path); err != nil {
		t.Fatalf("InitAuditLogger failed: %v", err)
	}
	defer GetAuditLogger().Close()

	RecordToolAudit(context.Background(), "read_file", "session-1", "success", map[string]interface{}{
		"path": "notes.txt",
	})
	RecordPermissionAudit(context.Background(), "read_file", "session-1", "AllowOnce")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "execute:read_file") {
		t.Error("audit log missing tool entry")
	}
	if !strings.Contains(content, "resolve:read_file") {
		t.Error("audit log missing permission entry")
	}
	if !strings.Contains(content, "session-1") {
		t.Error("audit log missing actor")
	}
}

func TestGetAuditLoggerDefaultsToStderr(t *testing.T) {
	// Must never return nil, even without initialization.
	if GetAuditLogger() == nil {
		t.Fatal("GetAuditLogger returned nil")
	}
}
