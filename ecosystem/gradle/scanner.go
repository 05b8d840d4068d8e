// Package gradle scans Java/Kotlin projects built with Gradle by reading
// build.gradle or build.gradle.kts. Gradle has no single universal
// lockfile (gradle.lockfile is opt-in per-project); when one is present
// this scanner reads it, otherwise it works from the manifest declarations.
package gradle

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
	groovyManifest = "build.gradle"
	kotlinManifest = "build.gradle.kts"
	lockfileName   = "gradle.lockfile"
)

// Scanner implements ecosystem.Scanner for Gradle.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Gradle }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	for _, name := range []string{groovyManifest, kotlinManifest} {
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

// depLine matches Groovy/Kotlin dependency declarations:
//
//	implementation 'group:artifact:version'
//	api("group:artifact:version")
//	testImplementation "group:artifact:version"
var depLine = regexp.MustCompile(`^(implementation|api|compile|runtimeOnly|testImplementation|testCompile|compileOnly)[\s(]+['"]([^'":]+):([^'":]+):([^'"]+)['"]`)

// lockLine matches a resolved gradle.lockfile entry: group:artifact:version=configurations
var lockLine = regexp.MustCompile(`^([^:]+):([^:]+):([^=]+)=`)

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/gradle.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Gradle), Root: dir}

	if lockfile != "" {
		pkgs, err := parseLockfile(fsys, lockfile)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("unparseable gradle.lockfile, falling back to manifest")
		} else {
			result.Packages = pkgs
		}
	}

	if result.Packages == nil {
		pkgs, err := parseManifest(fsys, manifest)
		if err != nil {
			return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "gradle.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
		}
		result.Packages = pkgs
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

func parseManifest(fsys fs.FS, manifest string) ([]bazbom.Package, error) {
	f, err := fsys.Open(manifest)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []bazbom.Package
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		m := depLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		scope := bazbom.ScopeDirect
		if strings.HasPrefix(m[1], "test") {
			scope = bazbom.ScopeDev
		}
		out = append(out, bazbom.Package{
			Ecosystem: string(ecosystem.Gradle),
			Name:      m[2] + ":" + m[3],
			Version:   ecosystem.StripOperator(m[4]),
			Scope:     scope,
		})
	}
	return out, sc.Err()
}

func parseLockfile(fsys fs.FS, lockfile string) ([]bazbom.Package, error) {
	f, err := fsys.Open(lockfile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []bazbom.Package
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") || line == "empty=" {
			continue
		}
		m := lockLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, bazbom.Package{
			Ecosystem: string(ecosystem.Gradle),
			Name:      m[1] + ":" + m[2],
			Version:   m[3],
			Scope:     bazbom.ScopeTransitive,
		})
	}
	return out, sc.Err()
}
