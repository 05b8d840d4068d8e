package vex

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNewDocumentDefaults(t *testing.T) {
	d := New("https://example.com/vex/1", "security-team")
	if d.Context != defaultContext {
		t.Errorf("Context = %q, want %q", d.Context, defaultContext)
	}
	if d.Version != 1 {
		t.Errorf("Version = %d, want 1", d.Version)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := New("https://example.com/vex/1", "security-team")
	d.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.Statements = []Statement{
		{VulnerabilityID: "CVE-2023-0001", Products: []string{"pkg:npm/left-pad@1.3.0"}, Status: StatusNotAffected, Justification: "vulnerable_code_not_in_execute_path"},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		t.Fatal(err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != d.ID || got.Author != d.Author || len(got.Statements) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Statements[0].Status != StatusNotAffected {
		t.Errorf("Status = %v, want %v", got.Statements[0].Status, StatusNotAffected)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"))
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestApplicabilityConvertsStatements(t *testing.T) {
	d := Document{Statements: []Statement{
		{VulnerabilityID: "CVE-2023-0001", Products: []string{"pkg:npm/left-pad@1.3.0"}, Status: StatusFixed},
		{VulnerabilityID: "CVE-2023-0002", Status: StatusUnderInvestigation},
	}}
	got := d.Applicability()
	if len(got) != 2 {
		t.Fatalf("expected 2 applicability entries, got %d", len(got))
	}
	if got[0].VulnerabilityID != "CVE-2023-0001" || got[0].Status != "fixed" {
		t.Errorf("unexpected first entry: %+v", got[0])
	}
	if len(got[0].Products) != 1 || got[0].Products[0] != "pkg:npm/left-pad@1.3.0" {
		t.Errorf("expected products to carry through, got %v", got[0].Products)
	}
}
