package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultAuditConfig(t *testing.T) {
	cfg := DefaultAuditConfig()
	if !cfg.Enabled {
		t.Fatal("expected enabled by default")
	}
	if cfg.OutputPath != "stderr" {
		t.Fatalf("expected stderr, got %s", cfg.OutputPath)
	}
}

func TestAuditLogger_File(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")

	l, err := NewAuditLogger(&AuditConfig{Enabled: true, OutputPath: logPath, SessionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.LogVerify(0, time.Second)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event AuditEvent
	if err := json.Unmarshal(bytes.TrimSpace(data), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.EventType != AuditEventMaintenanceVerify || !event.Success || event.SessionID != "s1" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	l, err := NewAuditLogger(&AuditConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Log(&AuditEvent{EventType: AuditEventGraphClear}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	var nilLogger *AuditLogger
	nilLogger.LogMerge("Vendor", "stripe", "a", []string{"b"}, false)
	if err := nilLogger.Close(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestAuditLogger_MergeAndErrors(t *testing.T) {
	var buf bytes.Buffer
	l := NewAuditWriter(&buf, "s2")

	l.LogMerge("Vendor", "stripe", "a", []string{"b", "c"}, true)
	l.LogVerify(2, 0)
	l.LogSimulationError("stripe", "graph_unavailable", errors.New("connection refused"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var merge AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &merge); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if merge.Details["dry_run"] != true {
		t.Errorf("expected dry_run true, got %v", merge.Details["dry_run"])
	}
	if !strings.Contains(merge.Message, "2 duplicate Vendor") {
		t.Errorf("unexpected message %q", merge.Message)
	}

	var verify AuditEvent
	_ = json.Unmarshal([]byte(lines[1]), &verify)
	if verify.Success || verify.ErrorCode != "identity_conflict" {
		t.Errorf("expected failed verify with identity_conflict, got %+v", verify)
	}

	var simErr AuditEvent
	_ = json.Unmarshal([]byte(lines[2]), &simErr)
	if simErr.ErrorDetail != "connection refused" {
		t.Errorf("expected error detail, got %q", simErr.ErrorDetail)
	}
}

func TestAuditLogger_ClearAndSession(t *testing.T) {
	var buf bytes.Buffer
	l := NewAuditWriter(&buf, "")
	l.LogClear("data/dependencies.json")

	var event AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.EventType != AuditEventGraphClear || event.SessionID == "" {
		t.Errorf("expected graph.clear with a generated session, got %+v", event)
	}
}
