package orchestrator

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
	"github.com/bazbom/bazbom/ecosystem/golang"
)

func TestScanDirectoryDetectsAndScansGoModule(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	reg := ecosystem.NewRegistry()
	reg.Register(golang.Scanner{})

	goMod := `module example.com/app

require github.com/foo/bar v1.2.3
`
	src := `package app

func main() {
	helper()
}

func helper() {}
`
	fsys := fstest.MapFS{
		"go.mod":  &fstest.MapFile{Data: []byte(goMod)},
		"main.go": &fstest.MapFile{Data: []byte(src)},
	}

	o := New(reg, nil)
	results, err := o.ScanDirectory(ctx, fsys, ".")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 ecosystem result, got %d", len(results))
	}
	res := results[0]
	if res.Scan.Ecosystem != "golang" {
		t.Fatalf("unexpected ecosystem: %+v", res.Scan)
	}
	if len(res.Scan.Packages) != 1 || res.Scan.Packages[0].Name != "github.com/foo/bar" {
		t.Fatalf("unexpected packages: %v", res.Scan.Packages)
	}
	if res.Scan.Reachable == nil {
		t.Fatal("expected reachability summary to be populated for a golang ecosystem root")
	}
}

func TestScanDirectoryNoEcosystemsDetected(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	reg := ecosystem.NewRegistry()
	reg.Register(golang.Scanner{})

	o := New(reg, nil)
	results, err := o.ScanDirectory(ctx, fstest.MapFS{"README.md": &fstest.MapFile{Data: []byte("hi")}}, ".")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", results)
	}
}

func TestMatchingAffectedPrefersEcosystemMatch(t *testing.T) {
	affected := []bazbom.AffectedPackage{
		{Ecosystem: "Maven", Package: "junit:junit"},
		{Ecosystem: "npm", Package: "junit:junit"},
	}
	got := matchingAffected(affected, ecosystem.Npm, "junit:junit")
	if got == nil || got.Ecosystem != "npm" {
		t.Fatalf("expected the npm entry to win, got %+v", got)
	}
}

func TestMatchingAffectedFallsBackToNameOnly(t *testing.T) {
	affected := []bazbom.AffectedPackage{
		{Ecosystem: "Go", Package: "golang.org/x/text"},
	}
	got := matchingAffected(affected, ecosystem.Npm, "golang.org/x/text")
	if got == nil {
		t.Fatal("expected a name-only fallback match")
	}
}

func TestMatchingAffectedNoNameMatchReturnsNil(t *testing.T) {
	affected := []bazbom.AffectedPackage{{Ecosystem: "npm", Package: "left-pad"}}
	if got := matchingAffected(affected, ecosystem.Npm, "right-pad"); got != nil {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestEcosystemMatchesKnownPairs(t *testing.T) {
	cases := []struct {
		eco     ecosystem.Type
		osv     string
		matches bool
	}{
		{ecosystem.Python, "PyPI", true},
		{ecosystem.Cargo, "crates.io", true},
		{ecosystem.Dpkg, "Ubuntu", true},
		{ecosystem.Rpm, "rpm", true},
		{ecosystem.Maven, "npm", false},
	}
	for _, c := range cases {
		if got := ecosystemMatches(c.eco, c.osv); got != c.matches {
			t.Errorf("ecosystemMatches(%s, %s) = %v, want %v", c.eco, c.osv, got, c.matches)
		}
	}
}
