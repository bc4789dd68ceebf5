package audit

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fleetguard/fleetguard/pkg/model"
)

func sampleEntry() model.AuditLogEntry {
	return model.AuditLogEntry{
		ID:            "01HV0000000000000000000000",
		Timestamp:     time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		ActorID:       "u-42",
		ActorEmail:    "tech@acme.test",
		ActorRole:     "Technician",
		Action:        "create",
		ResourceType:  "fuel_entry",
		ResourceID:    "991",
		PermissionKey: "fuel.create",
		RiskLevel:     2,
		Outcome:       model.OutcomeSuccess,
		IPAddress:     "10.0.0.7",
		RiskScore:     39,
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetWriter(&buf)

	logger.Log(EntryEvent{Entry: sampleEntry()})

	output := buf.String()

	// <authpriv(10)*8 + info(6)>
	if !strings.HasPrefix(output, "<86>1 2024-03-01T12:30:00.000Z ") {
		t.Errorf("Expected PRI, version and entry timestamp, got %q", output)
	}
	if !strings.Contains(output, " fleetguard ") {
		t.Error("Expected app name 'fleetguard' in output")
	}
	if !strings.Contains(output, " create [") {
		t.Error("Expected message ID 'create' before structured data")
	}
	if !strings.Contains(output, `ip="10.0.0.7"`) {
		t.Error("Expected client IP in output")
	}
	if !strings.HasSuffix(output, "tech@acme.test create fuel_entry 991 (fuel.create): success\n") {
		t.Errorf("Unexpected message in %q", output)
	}
}

func TestEntryEventSeverity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *model.AuditLogEntry)
		want   Severity
	}{
		{
			name:   "low risk success",
			mutate: func(e *model.AuditLogEntry) {},
			want:   SeverityInfo,
		},
		{
			name:   "high risk success",
			mutate: func(e *model.AuditLogEntry) { e.RiskScore = 90 },
			want:   SeverityNotice,
		},
		{
			name:   "denied",
			mutate: func(e *model.AuditLogEntry) { e.Outcome = model.OutcomeDenied },
			want:   SeverityWarning,
		},
		{
			name:   "failure",
			mutate: func(e *model.AuditLogEntry) { e.Outcome = model.OutcomeFailure },
			want:   SeverityError,
		},
		{
			name:   "emergency override",
			mutate: func(e *model.AuditLogEntry) { e.EmergencyOverride = true; e.RiskScore = 100 },
			want:   SeverityAlert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := sampleEntry()
			tt.mutate(&e)
			event := EntryEvent{Entry: e}
			if got := event.Severity(); got != tt.want {
				t.Errorf("Severity() = %v, want %v", got, tt.want)
			}
			if event.Facility() != FacilityAuthPriv {
				t.Errorf("Facility() = %v, want %v", event.Facility(), FacilityAuthPriv)
			}
		})
	}
}

func TestEntryEventMessage(t *testing.T) {
	e := sampleEntry()
	e.ActorEmail = ""
	e.ResourceName = "Truck 12"
	e.Outcome = model.OutcomeDenied
	e.Reason = "NotGranted"

	got := EntryEvent{Entry: e}.Message()
	want := "u-42 create fuel_entry Truck 12 (fuel.create): denied NotGranted"
	if got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestStructuredData(t *testing.T) {
	sd := EntryEvent{Entry: sampleEntry()}.StructuredData()

	if sd[SDIDActor]["role"] != "Technician" {
		t.Error("Expected actor role snapshot in structured data")
	}
	if sd[SDIDSubject]["type"] != "fuel_entry" {
		t.Error("Expected resource type in structured data")
	}
	if sd[SDIDRisk]["score"] != "39" || sd[SDIDRisk]["tier"] != TierMedium {
		t.Errorf("Unexpected risk data %v", sd[SDIDRisk])
	}

	formatted := formatStructuredData(sd)
	if formatted != formatStructuredData(sd) {
		t.Error("Expected structured data formatting to be deterministic")
	}
	if !strings.HasPrefix(formatted, "[action@32473 mfa=") {
		t.Errorf("Expected sorted elements and params, got %q", formatted)
	}
	if strings.Contains(formatted, `approval=""`) {
		t.Error("Expected empty params to be omitted")
	}
}

func TestEscapeSDValue(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{`with"quote`, `"with\"quote"`},
		{`with\backslash`, `"with\\backslash"`},
		{`with]bracket`, `"with\]bracket"`},
		{`all"three\chars]`, `"all\"three\\chars\]"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeSDValue(tt.input)
			if result != tt.expected {
				t.Errorf("escapeSDValue(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
