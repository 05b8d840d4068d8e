// Package ecosystem implements per-language/per-OS-package scanners behind
// a uniform capability set, and the registry + detector that dispatch a
// scanned directory to the right one. Each Scanner is side-effect-free with
// respect to the filesystem and operates over a source tree rather than a
// built container layer.
package ecosystem

import (
	"context"
	"io/fs"
	"sync"

	bazbom "github.com/bazbom/bazbom"
)

// Type names one of the ecosystems this module scans.
type Type string

const (
	Npm      Type = "npm"
	Python   Type = "python"
	Golang   Type = "golang"
	Cargo    Type = "cargo"
	RubyGems Type = "rubygems"
	Composer Type = "composer"
	Maven    Type = "maven"
	Gradle   Type = "gradle"
	Bazel    Type = "bazel"
	Sbt      Type = "sbt"
	Apk      Type = "apk"
	Dpkg     Type = "dpkg"
	Rpm      Type = "rpm"
)

// Scanner is the capability set every ecosystem variant implements:
// detect(root) -> bool, scan(ctx) -> EcosystemScanResult, fetch_license is
// folded into Scan: a scanner fills Package.License from the files it
// reads. Only the npm scanner does so (package.json "license"); the other
// scanners leave License empty.
type Scanner interface {
	Ecosystem() Type

	// Detect reports whether this scanner's manifest or lockfile markers
	// are present directly inside dir, returning the relative paths found
	// (lockfile preferred; manifest alone is also a valid detection).
	Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool)

	// Scan reads the manifest/lockfile previously found by Detect and
	// returns the packages and findings for this ecosystem root.
	Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error)
}

// Registry holds one Scanner per Type.
type Registry struct {
	mu       sync.RWMutex
	scanners map[Type]Scanner
}

// NewRegistry returns an empty Registry. Callers register the ecosystem
// Scanners they want (see ecosystem/register for the full built-in set) —
// kept out of this package to avoid an import cycle, since every concrete
// Scanner package imports back into "ecosystem" for the Scanner interface
// and Type constants.
func NewRegistry() *Registry {
	return &Registry{scanners: make(map[Type]Scanner)}
}

// Register adds or replaces the Scanner for its Ecosystem().
func (r *Registry) Register(s Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners[s.Ecosystem()] = s
}

// Get returns the Scanner registered for t, if any.
func (r *Registry) Get(t Type) (Scanner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scanners[t]
	return s, ok
}

// All returns every registered Scanner, in no particular order.
func (r *Registry) All() []Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scanner, 0, len(r.scanners))
	for _, s := range r.scanners {
		out = append(out, s)
	}
	return out
}
