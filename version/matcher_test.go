package version

import (
	"context"
	"testing"

	bazbom "github.com/bazbom/bazbom"
)

func rng(t bazbom.RangeType, events ...bazbom.VersionEvent) bazbom.VersionRange {
	return bazbom.VersionRange{Type: t, Events: events}
}

func ev(kind bazbom.VersionEventKind, v string) bazbom.VersionEvent {
	return bazbom.VersionEvent{Kind: kind, Value: v}
}

func TestIsAffectedSemverFixedRange(t *testing.T) {
	ranges := []bazbom.VersionRange{
		rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "1.0.0"), ev(bazbom.EventFixed, "1.5.0")),
	}
	cases := []struct {
		version string
		want    bool
	}{
		{"0.9.0", false},
		{"1.0.0", true},
		{"1.4.9", true},
		{"1.5.0", false},
		{"2.0.0", false},
	}
	for _, c := range cases {
		got, err := IsAffected(context.Background(), c.version, ranges)
		if err != nil {
			t.Fatalf("version %s: unexpected error: %v", c.version, err)
		}
		if got != c.want {
			t.Errorf("IsAffected(%s) = %v, want %v", c.version, got, c.want)
		}
	}
}

func TestIsAffectedSemverLastAffected(t *testing.T) {
	ranges := []bazbom.VersionRange{
		rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "1.0.0"), ev(bazbom.EventLastAffected, "1.2.0")),
	}
	ok, err := IsAffected(context.Background(), "1.2.0", ranges)
	if err != nil || !ok {
		t.Fatalf("expected 1.2.0 to be affected (inclusive last_affected), got %v %v", ok, err)
	}
	ok, err = IsAffected(context.Background(), "1.2.1", ranges)
	if err != nil || ok {
		t.Fatalf("expected 1.2.1 to not be affected, got %v %v", ok, err)
	}
}

func TestIsAffectedOpenEndedRange(t *testing.T) {
	ranges := []bazbom.VersionRange{
		rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "1.0.0")),
	}
	ok, err := IsAffected(context.Background(), "99.0.0", ranges)
	if err != nil || !ok {
		t.Fatalf("expected an open-ended range to affect any later version, got %v %v", ok, err)
	}
}

func TestIsAffectedInvalidVersionIsHardError(t *testing.T) {
	ranges := []bazbom.VersionRange{rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "1.0.0"))}
	_, err := IsAffected(context.Background(), "not-a-version", ranges)
	if err == nil {
		t.Fatal("expected a VersionParseError for an unparseable version")
	}
	e, ok := err.(*bazbom.Error)
	if !ok || e.Kind != bazbom.ErrKindVersionParse {
		t.Fatalf("expected ErrKindVersionParse, got %+v", err)
	}
}

func TestIsAffectedMalformedIntroducedIsConservative(t *testing.T) {
	ranges := []bazbom.VersionRange{rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "not-a-version"))}
	ok, err := IsAffected(context.Background(), "1.0.0", ranges)
	if err != nil || !ok {
		t.Fatalf("expected a malformed introduced bound to be conservative (affected), got %v %v", ok, err)
	}
}

func TestIsAffectedUnknownRangeTypeIsConservative(t *testing.T) {
	ranges := []bazbom.VersionRange{{Type: bazbom.RangeType(99)}}
	ok, err := IsAffected(context.Background(), "1.0.0", ranges)
	if err != nil || !ok {
		t.Fatalf("expected unknown range kind to conservatively report affected, got %v %v", ok, err)
	}
}

func TestIsAffectedForEcosystemDebian(t *testing.T) {
	ranges := []bazbom.VersionRange{
		rng(bazbom.RangeEcosystem, ev(bazbom.EventIntroduced, "1.2.3-1"), ev(bazbom.EventFixed, "1.2.3-2")),
	}
	ok, err := IsAffectedForEcosystem(context.Background(), "debian", "1.2.3-1", ranges)
	if err != nil || !ok {
		t.Fatalf("expected 1.2.3-1 to be affected, got %v %v", ok, err)
	}
	ok, err = IsAffectedForEcosystem(context.Background(), "debian", "1.2.3-2", ranges)
	if err != nil || ok {
		t.Fatalf("expected 1.2.3-2 (fixed) to not be affected, got %v %v", ok, err)
	}
}

func TestIsAffectedForEcosystemRPM(t *testing.T) {
	ranges := []bazbom.VersionRange{
		rng(bazbom.RangeEcosystem, ev(bazbom.EventIntroduced, "2:1.0-1.el9"), ev(bazbom.EventFixed, "2:1.1-1.el9")),
	}
	ok, err := IsAffectedForEcosystem(context.Background(), "rhel", "2:1.0-5.el9", ranges)
	if err != nil || !ok {
		t.Fatalf("expected rpm version within range to be affected, got %v %v", ok, err)
	}
}

func TestIsAffectedForEcosystemNonEcosystemRangePassesThrough(t *testing.T) {
	ranges := []bazbom.VersionRange{
		rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "1.0.0"), ev(bazbom.EventFixed, "2.0.0")),
	}
	ok, err := IsAffectedForEcosystem(context.Background(), "rhel", "1.5.0", ranges)
	if err != nil || !ok {
		t.Fatalf("expected SEMVER range to still be evaluated normally, got %v %v", ok, err)
	}
}

func TestMatchingRangeReturnsTheRangeThatMatched(t *testing.T) {
	hit := rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "1.0.0"), ev(bazbom.EventFixed, "1.5.0"))
	miss := rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "2.0.0"), ev(bazbom.EventFixed, "3.0.0"))
	got, err := MatchingRange(context.Background(), "1.2.0", []bazbom.VersionRange{miss, hit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a matching range")
	}
	if got.Events[1].Value != "1.5.0" {
		t.Fatalf("expected the hit range (fixed 1.5.0), got %+v", got)
	}
}

func TestMatchingRangeNoMatchReturnsNil(t *testing.T) {
	ranges := []bazbom.VersionRange{rng(bazbom.RangeSemver, ev(bazbom.EventIntroduced, "2.0.0"))}
	got, err := MatchingRange(context.Background(), "1.0.0", ranges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestMatchingRangeForEcosystemReturnsTheDebianRange(t *testing.T) {
	ranges := []bazbom.VersionRange{
		rng(bazbom.RangeEcosystem, ev(bazbom.EventIntroduced, "1.2.3-1"), ev(bazbom.EventFixed, "1.2.3-2")),
	}
	got, err := MatchingRangeForEcosystem(context.Background(), "debian", "1.2.3-1", ranges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a matching range")
	}
}

func TestIsAffectedForEcosystemUnknownFallsBackToString(t *testing.T) {
	ranges := []bazbom.VersionRange{
		rng(bazbom.RangeEcosystem, ev(bazbom.EventIntroduced, "a"), ev(bazbom.EventFixed, "m")),
	}
	ok, err := IsAffectedForEcosystem(context.Background(), "some-unknown-os", "g", ranges)
	if err != nil || !ok {
		t.Fatalf("expected string-comparison fallback to find 'g' within [a, m), got %v %v", ok, err)
	}
}
