package spdx

import (
	"context"
	"io"
	"testing"

	bazbom "github.com/bazbom/bazbom"
)

func sampleResults() []bazbom.EcosystemScanResult {
	return []bazbom.EcosystemScanResult{
		{
			Ecosystem: "npm",
			Packages: []bazbom.Package{
				{Name: "app", Version: "1.0.0", Dependencies: []string{"left-pad"}},
				{Name: "left-pad", Version: "1.3.0", License: "MIT"},
			},
		},
	}
}

func TestEncodeProducesPackagesAndRelationships(t *testing.T) {
	e := &Encoder{
		Creators:          []Creator{{Creator: "Tool: bazbom", CreatorType: "Tool"}},
		DocumentName:      "test-doc",
		DocumentNamespace: "https://example.com/spdx/test-doc",
	}
	r, err := e.Encode(context.Background(), sampleResults())
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty SPDX JSON output")
	}
}

func TestBuildSortsPackagesAndRelationshipsDeterministically(t *testing.T) {
	e := &Encoder{DocumentName: "test-doc", DocumentNamespace: "https://example.com/spdx/test-doc"}
	doc, err := e.build(context.Background(), sampleResults())
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(doc.Packages))
	}
	if len(doc.Relationships) != 1 {
		t.Fatalf("expected 1 DEPENDS_ON relationship, got %d", len(doc.Relationships))
	}
	for i := 1; i < len(doc.Packages); i++ {
		if doc.Packages[i-1].PackageSPDXIdentifier > doc.Packages[i].PackageSPDXIdentifier {
			t.Fatalf("expected packages sorted by SPDX identifier, got %v then %v",
				doc.Packages[i-1].PackageSPDXIdentifier, doc.Packages[i].PackageSPDXIdentifier)
		}
	}
}

func TestBuildRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &Encoder{DocumentName: "test-doc", DocumentNamespace: "https://example.com/spdx/test-doc"}
	_, err := e.build(ctx, sampleResults())
	if err == nil {
		t.Fatal("expected build to return the context's cancellation error")
	}
}

func TestNewPackageUsesNOASSERTIONForMissingLicense(t *testing.T) {
	p := newPackage("npm", bazbom.Package{Name: "no-license", Version: "1.0.0"})
	if p.PackageLicenseDeclared != "NOASSERTION" {
		t.Errorf("PackageLicenseDeclared = %q, want NOASSERTION", p.PackageLicenseDeclared)
	}
}

func TestSpdxIDSanitizesInvalidCharacters(t *testing.T) {
	got := spdxID("npm", "@scope/pkg", "1.0.0+build")
	for _, r := range got {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			t.Fatalf("spdxID produced an invalid SPDX identifier character %q in %q", r, got)
		}
	}
}
