package bazbom

import "testing"

func TestPackagePURL(t *testing.T) {
	p := Package{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}
	if got, want := p.PURL(), "pkg:npm/left-pad@1.3.0"; got != want {
		t.Errorf("PURL() = %q want %q", got, want)
	}
}

func TestPackagePURLWithNamespace(t *testing.T) {
	p := Package{Ecosystem: "maven", Namespace: "com.google.guava", Name: "guava", Version: "32.1.2-jre"}
	if got, want := p.PURL(), "pkg:maven/com.google.guava/guava@32.1.2-jre"; got != want {
		t.Errorf("PURL() = %q want %q", got, want)
	}
}

func TestValidateRejectsDuplicatePackage(t *testing.T) {
	r := &EcosystemScanResult{Packages: []Package{
		{Name: "foo", Version: "1.0.0"},
		{Name: "foo", Version: "1.0.0"},
	}}
	err := r.Validate()
	if err == nil {
		t.Fatal("expected duplicate-package error")
	}
	if e, ok := err.(*Error); !ok || e.Kind != ErrKindDuplicate {
		t.Fatalf("expected ErrKindDuplicate, got %+v", err)
	}
}

func TestValidateRecordsUnresolvedDependencies(t *testing.T) {
	r := &EcosystemScanResult{Packages: []Package{
		{Name: "foo", Version: "1.0.0", Dependencies: []string{"bar", "missing-dep"}},
		{Name: "bar", Version: "2.0.0"},
	}}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(r.Unresolved) != 1 || r.Unresolved[0] != "missing-dep" {
		t.Fatalf("unresolved = %v", r.Unresolved)
	}
}

func TestValidateAllowsDistinctVersionsOfSameName(t *testing.T) {
	r := &EcosystemScanResult{Packages: []Package{
		{Name: "foo", Version: "1.0.0"},
		{Name: "foo", Version: "2.0.0"},
	}}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
