package npm

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/quay/zlog"
)

func TestScanPrefersLockfile(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	pkgJSON := `{"name":"app","version":"1.0.0","license":"MIT","dependencies":{"left-pad":"^1.3.0"}}`
	lock := `{"packages":{"node_modules/left-pad":{"version":"1.3.0"},"node_modules/jest":{"version":"29.7.0","dev":true}}}`
	fsys := fstest.MapFS{
		"package.json":      &fstest.MapFile{Data: []byte(pkgJSON)},
		"package-lock.json": &fstest.MapFile{Data: []byte(lock)},
	}
	s := Scanner{}
	manifest, lockfile, ok := s.Detect(fsys, ".")
	if !ok {
		t.Fatal("expected detection")
	}
	result, err := s.Scan(ctx, fsys, ".", manifest, lockfile)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %v", result.Packages)
	}
	for _, p := range result.Packages {
		switch p.Name {
		case "left-pad":
			if p.Version != "1.3.0" || p.License != "MIT" {
				t.Errorf("left-pad = %+v", p)
			}
		case "jest":
			if p.Scope != "dev" {
				t.Errorf("jest scope = %q", p.Scope)
			}
		default:
			t.Errorf("unexpected package %q", p.Name)
		}
	}
}

func TestScanFallsBackToManifestWithoutLockfile(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	pkgJSON := `{"name":"app","license":{"type":"Apache-2.0"},"dependencies":{"express":"^4.18.0"},"devDependencies":{"mocha":"~10.2.0"}}`
	fsys := fstest.MapFS{"package.json": &fstest.MapFile{Data: []byte(pkgJSON)}}
	s := Scanner{}
	manifest, lockfile, ok := s.Detect(fsys, ".")
	if !ok {
		t.Fatal("expected detection")
	}
	if lockfile != "" {
		t.Fatalf("expected no lockfile, got %q", lockfile)
	}
	result, err := s.Scan(ctx, fsys, ".", manifest, lockfile)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %v", result.Packages)
	}
	for _, p := range result.Packages {
		switch p.Name {
		case "express":
			if p.Version != "4.18.0" || p.Scope != "direct" {
				t.Errorf("express = %+v", p)
			}
		case "mocha":
			if p.Version != "10.2.0" || p.Scope != "dev" {
				t.Errorf("mocha = %+v", p)
			}
		default:
			t.Errorf("unexpected package %q", p.Name)
		}
		if p.License != "Apache-2.0" {
			t.Errorf("license = %q", p.License)
		}
	}
}

func TestDetectNoManifest(t *testing.T) {
	s := Scanner{}
	if _, _, ok := s.Detect(fstest.MapFS{}, "."); ok {
		t.Fatal("expected no detection without package.json")
	}
}
