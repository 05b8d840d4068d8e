package osv

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	bazbom "github.com/bazbom/bazbom"
)

const sampleRecord = `{
  "id": "GHSA-xxxx-yyyy-zzzz",
  "aliases": ["CVE-2023-0001"],
  "summary": "example vuln",
  "published": "2023-01-15T00:00:00Z",
  "modified": "2023-02-01T00:00:00Z",
  "severity": [{"type": "CVSS_V3", "score": "7.5"}],
  "affected": [
    {
      "package": {"ecosystem": "PyPI", "name": "example-pkg"},
      "ranges": [
        {"type": "ECOSYSTEM", "events": [{"introduced": "0"}, {"fixed": "1.2.3"}]}
      ]
    }
  ],
  "references": [{"type": "ADVISORY", "url": "https://example.com/advisory"}]
}`

func TestParseBasicRecord(t *testing.T) {
	v, err := Parse(strings.NewReader(sampleRecord))
	if err != nil {
		t.Fatal(err)
	}
	if v.ID != "GHSA-xxxx-yyyy-zzzz" {
		t.Errorf("ID = %q", v.ID)
	}
	if len(v.Aliases) != 1 || v.Aliases[0] != "CVE-2023-0001" {
		t.Errorf("aliases = %v", v.Aliases)
	}
	if v.Published == nil || v.Modified == nil {
		t.Fatal("expected published/modified to be parsed")
	}
	if v.Severity == nil || v.Severity.CVSSv3 == nil || *v.Severity.CVSSv3 != 7.5 {
		t.Fatalf("severity = %+v", v.Severity)
	}
	if v.Severity.Level != bazbom.SeverityHigh {
		t.Errorf("level = %v", v.Severity.Level)
	}
	if len(v.Affected) != 1 || v.Affected[0].Package != "example-pkg" {
		t.Fatalf("affected = %+v", v.Affected)
	}
	if len(v.Affected[0].Ranges) != 1 || len(v.Affected[0].Ranges[0].Events) != 2 {
		t.Fatalf("ranges = %+v", v.Affected[0].Ranges)
	}
}

func TestParseSkipsVectorStringSeverity(t *testing.T) {
	rec := `{"id": "X", "severity": [{"type": "CVSS_V3", "score": "CVSS:3.1/AV:N/AC:L"}]}`
	v, err := Parse(strings.NewReader(rec))
	if err != nil {
		t.Fatal(err)
	}
	if v.Severity != nil {
		t.Fatalf("expected no severity parsed from a vector string, got %+v", v.Severity)
	}
}

func TestParseZipFiltersNonJSON(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w1, _ := zw.Create("GHSA-1.json")
	w1.Write([]byte(`{"id": "GHSA-1"}`))
	w2, _ := zw.Create("README.txt")
	w2.Write([]byte("not json"))
	zw.Close()

	vulns, err := ParseZip(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(vulns) != 1 || vulns[0].ID != "GHSA-1" {
		t.Fatalf("expected only the .json entry parsed, got %v", vulns)
	}
}

func TestToEventsDropsLimitKind(t *testing.T) {
	events := toEvents([]recordEvent{
		{Introduced: "0"},
		{Fixed: "1.0.0"},
		{Limit: "2.0.0"},
	})
	if len(events) != 2 {
		t.Fatalf("expected limit event dropped, got %v", events)
	}
}
