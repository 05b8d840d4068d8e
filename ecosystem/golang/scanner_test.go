package golang

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/quay/zlog"
)

func TestScanGoModWithIndirectMarkers(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	goMod := `module example.com/app

go 1.22

require (
	github.com/foo/bar v1.2.3
	github.com/baz/qux v0.1.0 // indirect
)
`
	fsys := fstest.MapFS{"go.mod": &fstest.MapFile{Data: []byte(goMod)}}
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
	for _, p := range result.Packages {
		switch p.Name {
		case "github.com/foo/bar":
			if p.Version != "v1.2.3" || p.Scope != "direct" {
				t.Errorf("bar = %+v", p)
			}
		case "github.com/baz/qux":
			if p.Version != "v0.1.0" || p.Scope != "transitive" {
				t.Errorf("qux = %+v", p)
			}
		default:
			t.Errorf("unexpected package %q", p.Name)
		}
	}
}

func TestScanGoSumOverridesVersionAndAddsIndirect(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	goMod := `module example.com/app

require github.com/foo/bar v1.2.3
`
	goSum := `github.com/foo/bar v1.2.4 h1:abc=
github.com/foo/bar v1.2.4/go.mod h1:def=
github.com/extra/dep v0.9.0 h1:ghi=
`
	fsys := fstest.MapFS{
		"go.mod": &fstest.MapFile{Data: []byte(goMod)},
		"go.sum": &fstest.MapFile{Data: []byte(goSum)},
	}
	s := Scanner{}
	manifest, lockfile, ok := s.Detect(fsys, ".")
	if !ok {
		t.Fatal("expected detection")
	}
	if lockfile == "" {
		t.Fatal("expected go.sum to be detected")
	}
	result, err := s.Scan(ctx, fsys, ".", manifest, lockfile)
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]string{}
	for _, p := range result.Packages {
		byName[p.Name] = p.Version
	}
	if byName["github.com/foo/bar"] != "v1.2.4" {
		t.Errorf("expected go.sum version to win, got %q", byName["github.com/foo/bar"])
	}
	if byName["github.com/extra/dep"] != "v0.9.0" {
		t.Errorf("expected go.sum-only module surfaced as indirect, got %q", byName["github.com/extra/dep"])
	}
}

func TestDetectNoGoMod(t *testing.T) {
	s := Scanner{}
	if _, _, ok := s.Detect(fstest.MapFS{}, "."); ok {
		t.Fatal("expected no detection without go.mod")
	}
}
