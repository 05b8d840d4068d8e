package bazel

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/quay/zlog"
)

func TestScanModuleBazelDeps(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	module := `module(name = "app", version = "1.0")

bazel_dep(name = "rules_go", version = "0.41.0")
bazel_dep(name = "gazelle", version = "0.33.0")
`
	fsys := fstest.MapFS{"MODULE.bazel": &fstest.MapFile{Data: []byte(module)}}
	s := Scanner{}
	m, l, ok := s.Detect(fsys, ".")
	if !ok {
		t.Fatal("expected detection")
	}
	if l != "" {
		t.Fatalf("expected no lockfile, got %q", l)
	}
	result, err := s.Scan(ctx, fsys, ".", m, l)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Packages) != 2 {
		t.Fatalf("expected 2 bazel_dep packages, got %v", result.Packages)
	}
	byName := map[string]string{}
	for _, p := range result.Packages {
		byName[p.Name] = p.Version
		if p.Scope != "direct" {
			t.Errorf("%s scope = %q", p.Name, p.Scope)
		}
	}
	if byName["rules_go"] != "0.41.0" || byName["gazelle"] != "0.33.0" {
		t.Fatalf("unexpected versions: %v", byName)
	}
}

func TestScanMavenInstallArtifacts(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	workspace := `load("@rules_jvm_external//:defs.bzl", "maven_install")

maven_install(
    artifacts = [
        "com.google.guava:guava:32.1.2-jre",
        "org.junit.jupiter:junit-jupiter:5.10.0",
    ],
    repositories = ["https://repo1.maven.org/maven2"],
)
`
	fsys := fstest.MapFS{"WORKSPACE": &fstest.MapFile{Data: []byte(workspace)}}
	s := Scanner{}
	m, l, ok := s.Detect(fsys, ".")
	if !ok {
		t.Fatal("expected detection")
	}
	result, err := s.Scan(ctx, fsys, ".", m, l)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Packages) != 2 {
		t.Fatalf("expected 2 maven_install artifacts, got %v", result.Packages)
	}
	for _, p := range result.Packages {
		if p.Scope != "transitive" {
			t.Errorf("%s scope = %q", p.Name, p.Scope)
		}
	}
}

func TestScanDedupesRepeatedDeps(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	module := `bazel_dep(name = "rules_go", version = "0.41.0")
bazel_dep(name = "rules_go", version = "0.41.0")
`
	fsys := fstest.MapFS{"MODULE.bazel": &fstest.MapFile{Data: []byte(module)}}
	s := Scanner{}
	m, l, _ := s.Detect(fsys, ".")
	result, err := s.Scan(ctx, fsys, ".", m, l)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Packages) != 1 {
		t.Fatalf("expected dedup to collapse to 1 package, got %v", result.Packages)
	}
}

func TestDetectNoManifest(t *testing.T) {
	s := Scanner{}
	if _, _, ok := s.Detect(fstest.MapFS{}, "."); ok {
		t.Fatal("expected no detection without MODULE.bazel or WORKSPACE")
	}
}
