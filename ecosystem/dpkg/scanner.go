// Package dpkg scans Debian-based root filesystems by reading
// var/lib/dpkg/status as a plain filesystem read at a scanned root path.
// The status file is an RFC822-like message format with "\n\n" record
// separators, read here with net/textproto.
package dpkg

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"net/textproto"
	"path"
	"strings"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const statusFile = "var/lib/dpkg/status"

// Scanner implements ecosystem.Scanner for Debian's dpkg.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Dpkg }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	m := path.Join(dir, statusFile)
	if _, err := fs.Stat(fsys, m); err != nil {
		return "", "", false
	}
	return m, "", true
}

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/dpkg.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Dpkg), Root: dir}

	f, err := fsys.Open(manifest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "dpkg.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}
	defer f.Close()

	tp := textproto.NewReader(bufio.NewReader(f))
	for {
		hdr, err := tp.ReadMIMEHeader()
		if len(hdr) == 0 {
			break
		}
		name := hdr.Get("Package")
		version := hdr.Get("Version")
		status := hdr.Get("Status")
		if name == "" || version == "" {
			if err != nil {
				break
			}
			continue
		}
		// Status has the form "want flag state", e.g. "install ok installed".
		// Packages removed-but-not-purged ("deinstall ok config-files") are
		// not currently installed and are skipped.
		if status != "" && !strings.Contains(status, "installed") {
			if err != nil {
				break
			}
			continue
		}
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Dpkg),
			Name:      name,
			Version:   version,
			Scope:     bazbom.ScopeDirect,
		})
		if err != nil {
			break
		}
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}
