// Package sbt scans Scala projects built with sbt by reading build.sbt's
// libraryDependencies declarations. sbt has no committed resolved-lockfile
// equivalent in common use, so this scanner is manifest-only, same as
// maven and bazel.
package sbt

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

const manifestName = "build.sbt"

// Scanner implements ecosystem.Scanner for sbt.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Sbt }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	m := path.Join(dir, manifestName)
	if _, err := fs.Stat(fsys, m); err != nil {
		return "", "", false
	}
	return m, "", true
}

// depLine matches both forms sbt accepts:
//
//	"org" % "artifact" % "version"       -- Java-style, no Scala suffix appended
//	"org" %% "artifact" % "version"      -- Scala-style, sbt appends _<scalaVersion>
var depLine = regexp.MustCompile(`"([^"]+)"\s*(%%?)\s*"([^"]+)"\s*%\s*"([^"]+)"`)

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/sbt.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Sbt), Root: dir}

	f, err := fsys.Open(manifest)
	if err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "sbt.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "//") {
			continue
		}
		m := depLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1] + ":" + m[3]
		if m[2] == "%%" {
			// Cross-build operator: sbt resolves the actual artifact name
			// by appending "_<scalaBinaryVersion>" at build time, which
			// this scanner doesn't know without reading scalaVersion too;
			// recorded with a "_*" marker rather than guessing a version.
			name = m[1] + ":" + m[3] + "_*"
		}
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Sbt),
			Name:      name,
			Version:   ecosystem.StripOperator(m[4]),
			Scope:     bazbom.ScopeDirect,
		})
	}
	if err := sc.Err(); err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "sbt.Scan", Kind: bazbom.ErrKindParse, Inner: err}
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}
