// Package advisory implements ingestion, canonicalization, enrichment, and
// merge of vulnerability advisories from multiple upstream feeds.
package advisory

import "time"

// Source names one of the upstream feeds db_sync pulls.
type Source string

const (
	SourceOSV Source = "osv"
	SourceNVD Source = "nvd"
	SourceGHSA Source = "ghsa"
	SourceKEV Source = "kev"
	SourceEPSS Source = "epss"
)

// ManifestFile records one synced feed file's reproducibility fingerprint.
type ManifestFile struct {
	Source Source `json:"source"`
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	BLAKE3 string `json:"blake3"`
}

// Manifest is produced by Sync and records exactly what was written to the
// cache directory, so that two runs against the same upstream state produce
// byte-identical manifests.
type Manifest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Files       []ManifestFile `json:"files"`
}
