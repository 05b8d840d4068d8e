// Package bazel scans Bazel workspaces by reading one manifest, the first
// found of MODULE.bazel, WORKSPACE and WORKSPACE.bazel, for Bzlmod
// bazel_dep declarations and maven_install artifact pins; http_archive
// rules are not read. Bazel has no single resolved-lockfile format
// comparable to package-lock.json; MODULE.bazel.lock is reported by Detect
// when present, but Scan does not read it.
package bazel

import (
	"bufio"
	"context"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const (
	moduleManifest    = "MODULE.bazel"
	workspaceManifest = "WORKSPACE"
	workspaceAlt      = "WORKSPACE.bazel"
	lockfileName      = "MODULE.bazel.lock"
)

// Scanner implements ecosystem.Scanner for Bazel.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Bazel }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	for _, name := range []string{moduleManifest, workspaceManifest, workspaceAlt} {
		m := path.Join(dir, name)
		if _, err := fs.Stat(fsys, m); err == nil {
			l := path.Join(dir, lockfileName)
			if _, err := fs.Stat(fsys, l); err != nil {
				l = ""
			}
			return m, l, true
		}
	}
	return "", "", false
}

// bazelDep matches Bzlmod's `bazel_dep(name = "rules_go", version = "0.41.0")`.
var bazelDep = regexp.MustCompile(`bazel_dep\(\s*name\s*=\s*"([^"]+)"\s*,\s*version\s*=\s*"([^"]+)"`)

// mavenArtifact matches maven_install's `artifacts = [ "group:artifact:version", ... ]`
// entries, one quoted GAV string per match.
var mavenArtifact = regexp.MustCompile(`"([^":]+:[^":]+:[0-9][^"]*)"`)

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/bazel.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Bazel), Root: dir}

	data, err := fs.ReadFile(fsys, manifest)
	if err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "bazel.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	seen := make(map[string]bool)
	addPkg := func(name, version string, scope bazbom.Scope) {
		key := name + "@" + version
		if seen[key] {
			return
		}
		seen[key] = true
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Bazel),
			Name:      name,
			Version:   version,
			Scope:     scope,
		})
	}

	sc := bufio.NewScanner(strings.NewReader(string(data)))
	inMavenArtifacts := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if m := bazelDep.FindStringSubmatch(line); m != nil {
			addPkg(m[1], m[2], bazbom.ScopeDirect)
			continue
		}

		switch {
		case strings.Contains(line, "artifacts") && strings.Contains(line, "["):
			inMavenArtifacts = true
		case inMavenArtifacts && strings.Contains(line, "]"):
			inMavenArtifacts = false
		}
		if inMavenArtifacts {
			for _, m := range mavenArtifact.FindAllStringSubmatch(line, -1) {
				gav := strings.Split(m[1], ":")
				if len(gav) != 3 {
					continue
				}
				addPkg(gav[0]+":"+gav[1], gav[2], bazbom.ScopeTransitive)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "bazel.Scan", Kind: bazbom.ErrKindParse, Inner: err}
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}
