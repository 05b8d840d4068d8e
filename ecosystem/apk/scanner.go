// Package apk scans Alpine root filesystems by reading the apk installed
// database directly at a scanned root path.
package apk

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const installedFile = "lib/apk/db/installed"

// Scanner implements ecosystem.Scanner for Alpine's apk.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Apk }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	m := path.Join(dir, installedFile)
	if _, err := fs.Stat(fsys, m); err != nil {
		return "", "", false
	}
	return m, "", true
}

// Scan parses the apk installed database. The database uses a
// case-sensitive one-letter-key, newline-delimited record format (not MIME
// headers, despite the superficial resemblance), so it's hand-parsed here
// rather than via textproto.
func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/apk.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Apk), Root: dir}

	b, err := fs.ReadFile(fsys, manifest)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return result, nil
	default:
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "apk.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	entries := bytes.Split(b, []byte("\n\n"))
	for _, entry := range entries {
		if len(entry) == 0 {
			continue
		}
		var name, version string
		r := bytes.NewBuffer(entry)
		for line, err := r.ReadBytes('\n'); err == nil; line, err = r.ReadBytes('\n') {
			if len(line) < 2 {
				continue
			}
			val := string(bytes.TrimSpace(line[2:]))
			switch line[0] {
			case 'P':
				name = val
			case 'V':
				version = val
			}
		}
		if name == "" || version == "" {
			continue
		}
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Apk),
			Name:      name,
			Version:   version,
			Scope:     bazbom.ScopeDirect,
		})
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}
