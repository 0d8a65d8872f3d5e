package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

type AuditEventType string

const (
	AuditEventLoadComplete       AuditEventType = "load.complete"
	AuditEventComplianceLoad     AuditEventType = "compliance.load"
	AuditEventMaintenanceMerge   AuditEventType = "maintenance.merge"
	AuditEventMaintenanceVerify  AuditEventType = "maintenance.verify"
	AuditEventSimulationComplete AuditEventType = "simulation.complete"
	AuditEventSimulationError    AuditEventType = "simulation.error"
	AuditEventGraphClear         AuditEventType = "graph.clear"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	SessionID   string         `json:"session_id"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Success     bool           `json:"success"`
	Duration    time.Duration  `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditConfig selects the trail's destination: a file path, "stdout" or
// "stderr". SessionID defaults to a random UUID.
type AuditConfig struct {
	Enabled    bool
	OutputPath string
	SessionID  string
}

func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{Enabled: true, OutputPath: "stderr"}
}

// AuditLogger appends JSON lines to the trail. The zero value and a nil
// pointer both discard everything.
type AuditLogger struct {
	mu      sync.Mutex
	enc     *json.Encoder
	closer  io.Closer
	session string
}

// NewAuditLogger opens the configured destination.
func NewAuditLogger(cfg *AuditConfig) (*AuditLogger, error) {
	if cfg == nil {
		cfg = DefaultAuditConfig()
	}
	if !cfg.Enabled {
		return &AuditLogger{}, nil
	}

	switch cfg.OutputPath {
	case "", "stderr":
		return NewAuditWriter(os.Stderr, cfg.SessionID), nil
	case "stdout":
		return NewAuditWriter(os.Stdout, cfg.SessionID), nil
	}
	f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	l := NewAuditWriter(f, cfg.SessionID)
	l.closer = f
	return l, nil
}

// NewAuditWriter returns a logger writing to w. It never closes w.
func NewAuditWriter(w io.Writer, sessionID string) *AuditLogger {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &AuditLogger{enc: json.NewEncoder(w), session: sessionID}
}

// Log stamps and appends event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if l == nil || l.enc == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.session
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(event); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// record logs and drops the error; audit failures never fail the caller.
func (l *AuditLogger) record(event AuditEvent) {
	_ = l.Log(&event)
}

// LogLoad records a finished dependency or compliance load.
func (l *AuditLogger) LogLoad(eventType AuditEventType, source string, duration time.Duration, details map[string]any) {
	l.record(AuditEvent{
		EventType: eventType,
		Success:   true,
		Duration:  duration,
		Message:   "Loaded " + source,
		Details:   details,
	})
}

// LogClear records a wipe of the whole graph before a reload.
func (l *AuditLogger) LogClear(source string) {
	l.record(AuditEvent{
		EventType: AuditEventGraphClear,
		Success:   true,
		Message:   "Cleared graph before loading " + source,
	})
}

// LogMerge records one duplicate group folded into its canonical node.
func (l *AuditLogger) LogMerge(label, key, canonicalID string, duplicateIDs []string, dryRun bool) {
	l.record(AuditEvent{
		EventType: AuditEventMaintenanceMerge,
		Success:   true,
		Message:   fmt.Sprintf("Merged %d duplicate %s node(s) for %q", len(duplicateIDs), label, key),
		Details: map[string]any{
			"label":      label,
			"key":        key,
			"canonical":  canonicalID,
			"duplicates": duplicateIDs,
			"dry_run":    dryRun,
		},
	})
}

// LogVerify records how many duplicate groups survived maintenance.
func (l *AuditLogger) LogVerify(remaining int, duration time.Duration) {
	event := AuditEvent{
		EventType: AuditEventMaintenanceVerify,
		Success:   remaining == 0,
		Duration:  duration,
		Message:   fmt.Sprintf("Verification: %d duplicate group(s) remain", remaining),
	}
	if remaining > 0 {
		event.ErrorCode = "identity_conflict"
	}
	l.record(event)
}

func (l *AuditLogger) LogSimulation(simulationID, vendor string, hours, overall float64, duration time.Duration) {
	l.record(AuditEvent{
		EventType:  AuditEventSimulationComplete,
		WorkflowID: simulationID,
		Success:    true,
		Duration:   duration,
		Message:    fmt.Sprintf("Simulated %s outage: score=%.2f", vendor, overall),
		Details: map[string]any{
			"vendor":         vendor,
			"duration_hours": hours,
			"overall_score":  overall,
		},
	})
}

// LogSimulationError records a rejected or failed simulation under its
// error kind.
func (l *AuditLogger) LogSimulationError(vendor, kind string, err error) {
	l.record(AuditEvent{
		EventType:   AuditEventSimulationError,
		Message:     "Simulation for " + vendor + " failed",
		ErrorCode:   kind,
		ErrorDetail: err.Error(),
	})
}

// Close closes the file the logger opened, if any.
func (l *AuditLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
