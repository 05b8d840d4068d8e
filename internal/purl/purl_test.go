package purl

import (
	"context"
	"testing"

	bazbom "github.com/bazbom/bazbom"
)

func TestGenerateAndParseRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	pkg := bazbom.Package{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}

	purl, err := r.Generate(ctx, pkg)
	if err != nil {
		t.Fatal(err)
	}
	raw := purl.ToString()

	got, err := r.Parse(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Ecosystem != "npm" || got.Name != "left-pad" || got.Version != "1.3.0" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGenerateUnregisteredEcosystem(t *testing.T) {
	r := NewRegistry()
	_, err := r.Generate(context.Background(), bazbom.Package{Ecosystem: "unknown-eco"})
	if err == nil {
		t.Fatal("expected error for unregistered ecosystem")
	}
	if _, ok := err.(ErrUnPurlable); !ok {
		t.Fatalf("expected ErrUnPurlable, got %T", err)
	}
}

func TestParseUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse(context.Background(), "pkg:unknown-type/foo@1.0.0")
	if err == nil {
		t.Fatal("expected error for unregistered purl type")
	}
	if _, ok := err.(ErrUnknownPurl); !ok {
		t.Fatalf("expected ErrUnknownPurl, got %T", err)
	}
}

func TestEcosystemsIncludesRegisteredDefaults(t *testing.T) {
	names := Ecosystems()
	seen := make(map[string]bool)
	for _, n := range names {
		seen[n] = true
	}
	for _, want := range []string{"npm", "maven", "rpm", "cargo"} {
		if !seen[want] {
			t.Errorf("expected %q among registered ecosystems, got %v", want, names)
		}
	}
}
