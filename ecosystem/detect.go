package ecosystem

import (
	"context"
	"io/fs"
	"path"

	"github.com/quay/zlog"
)

// Detected names one ecosystem root found by DetectEcosystems: the
// directory it lives in and the manifest/lockfile pair its Scanner found.
type Detected struct {
	Type     Type
	Root     string
	Manifest string
	Lockfile string
}

// DetectEcosystems implements detect_ecosystems(path): walks the tree under
// root, and for every directory, asks every registered Scanner whether its
// markers are present directly inside it. A directory can match more than
// one ecosystem (e.g. a Go module vendoring an npm frontend).
func DetectEcosystems(ctx context.Context, reg *Registry, fsys fs.FS, root string) ([]Detected, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/DetectEcosystems")

	scanners := reg.All()
	var out []Detected

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if base := path.Base(p); base != "." && isIgnoredDir(base) {
			return fs.SkipDir
		}
		for _, s := range scanners {
			manifest, lockfile, ok := s.Detect(fsys, p)
			if !ok {
				continue
			}
			out = append(out, Detected{Type: s.Ecosystem(), Root: p, Manifest: manifest, Lockfile: lockfile})
			zlog.Debug(ctx).Str("ecosystem", string(s.Ecosystem())).Str("root", p).Msg("detected ecosystem root")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isIgnoredDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "target", "dist", "build", ".venv", "__pycache__":
		return true
	default:
		return false
	}
}
