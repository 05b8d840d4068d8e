package ghsa

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	bazbom "github.com/bazbom/bazbom"
)

func TestParseVersionRangeGEAndLT(t *testing.T) {
	got := ParseVersionRange(">= 1.2.0, < 1.5.0")
	want := bazbom.VersionRange{
		Type: bazbom.RangeEcosystem,
		Events: []bazbom.VersionEvent{
			{Kind: bazbom.EventIntroduced, Value: "1.2.0"},
			{Kind: bazbom.EventFixed, Value: "1.5.0"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVersionRangeLTOnly(t *testing.T) {
	got := ParseVersionRange("< 2.0.0")
	want := bazbom.VersionRange{
		Type:   bazbom.RangeEcosystem,
		Events: []bazbom.VersionEvent{{Kind: bazbom.EventFixed, Value: "2.0.0"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

// TestParseVersionRangeUnrecognizedOperatorCoerces documents a known
// limitation: a caret range is not translated into a precise interval, it
// coerces to the conservative "introduced at 0" fallback.
func TestParseVersionRangeUnrecognizedOperatorCoerces(t *testing.T) {
	got := ParseVersionRange("^2.0.0")
	want := bazbom.VersionRange{
		Type:   bazbom.RangeEcosystem,
		Events: []bazbom.VersionEvent{{Kind: bazbom.EventIntroduced, Value: "0"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSeverityLevel(t *testing.T) {
	cases := map[string]bazbom.SeverityLevel{
		"CRITICAL": bazbom.SeverityCritical,
		"HIGH":     bazbom.SeverityHigh,
		"MODERATE": bazbom.SeverityMedium,
		"LOW":      bazbom.SeverityLow,
		"":         bazbom.SeverityUnknown,
	}
	for in, want := range cases {
		if got := severityLevel(in); got != want {
			t.Errorf("severityLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestToVulnerabilityCarriesCVEAlias(t *testing.T) {
	n := advisoryNode{
		GhsaID: "GHSA-xxxx-yyyy-zzzz",
		Identifiers: []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		}{
			{Type: "GHSA", Value: "GHSA-xxxx-yyyy-zzzz"},
			{Type: "CVE", Value: "CVE-2024-0001"},
		},
	}
	v := toVulnerability(n)
	if len(v.Aliases) != 1 || v.Aliases[0] != "CVE-2024-0001" {
		t.Fatalf("expected CVE alias only, got %v", v.Aliases)
	}
}
