// Package rpm scans RHEL/Fedora-family root filesystems by reading the
// modern sqlite-backed rpmdb at var/lib/rpm/rpmdb.sqlite. Only the sqlite
// backend is implemented: the legacy BerkeleyDB ("Packages") and NDB
// ("Packages.db") formats need a database file handle the stdlib fs.FS
// scanning surface here can't open in place (modernc.org/sqlite needs a
// real on-disk path, not an fs.FS entry); the gap is recorded in
// DESIGN.md.
package rpm

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const sqliteRelPath = "var/lib/rpm/rpmdb.sqlite"

// Scanner implements ecosystem.Scanner for RPM's sqlite-backed database.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Rpm }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	m := path.Join(dir, sqliteRelPath)
	if _, err := fs.Stat(fsys, m); err != nil {
		return "", "", false
	}
	return m, "", true
}

// Scan opens the rpmdb.sqlite file directly from the scanned root (not
// through fsys, since database/sql/modernc.org/sqlite needs a real path),
// reads each package header blob from the Packages table, and extracts
// name/version/release/epoch/arch.
func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/rpm.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Rpm), Root: dir}

	realPath := path.Join(dir, sqliteRelPath)
	u := url.URL{Scheme: "file", Opaque: realPath, RawQuery: url.Values{"_pragma": {"query_only(1)"}}.Encode()}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "rpm.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT blob FROM Packages ORDER BY hnum`)
	if err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "rpm.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}
	defer rows.Close()

	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			zlog.Info(ctx).Err(err).Msg("skipping unreadable header row")
			continue
		}
		fields, err := headerFields(blob)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("skipping malformed header blob")
			continue
		}
		name := stringField(fields, tagName)
		if name == "" {
			continue
		}
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Rpm),
			Name:      name,
			Version:   evr(fields),
			Scope:     bazbom.ScopeDirect,
		})
	}
	if err := rows.Err(); err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "rpm.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

// evr builds the epoch:version-release string rpm itself uses to compare
// package versions.
func evr(fields map[int32]any) string {
	var b strings.Builder
	if epoch, ok := fields[tagEpoch].(int32); ok {
		fmt.Fprintf(&b, "%d:", epoch)
	}
	b.WriteString(stringField(fields, tagVersion))
	b.WriteByte('-')
	b.WriteString(stringField(fields, tagRelease))
	return b.String()
}
