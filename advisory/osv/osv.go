// Package osv ingests OSV-schema vulnerability advisories (the schema
// shared by osv.dev, GHSA's OSV export, and most language-ecosystem
// advisory databases) and canonicalizes them into bazbom.Vulnerability.
package osv

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/internal/httputil"
)

// DefaultEcosystemsURL lists the per-ecosystem zip archives osv.dev
// publishes, one line per ecosystem name.
const DefaultEcosystemsURL = `https://osv-vulnerabilities.storage.googleapis.com/ecosystems.txt`

func archiveURL(ecosystem string) string {
	return fmt.Sprintf("https://osv-vulnerabilities.storage.googleapis.com/%s/all.zip", ecosystem)
}

// Fetcher downloads and parses osv.dev's per-ecosystem advisory archives.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher builds a Fetcher with a client carrying the package's default
// advisory timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{Client: httputil.NewClient(httputil.DefaultAdvisoryTimeout)}
}

// FetchEcosystem downloads and parses the all.zip archive for a single OSV
// ecosystem name (e.g. "PyPI", "npm", "Go").
func (f *Fetcher) FetchEcosystem(ctx context.Context, ecosystem string) ([]bazbom.Vulnerability, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/osv/FetchEcosystem", "ecosystem", ecosystem)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL(ecosystem), nil)
	if err != nil {
		return nil, &bazbom.Error{Op: "osv.FetchEcosystem", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &bazbom.Error{Op: "osv.FetchEcosystem", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	defer resp.Body.Close()
	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return nil, &bazbom.Error{Op: "osv.FetchEcosystem", Kind: bazbom.ErrKindNetwork, Inner: err}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &bazbom.Error{Op: "osv.FetchEcosystem", Kind: bazbom.ErrKindNetwork, Message: "read body", Inner: err}
	}

	vulns, err := ParseZip(body)
	if err != nil {
		return nil, err
	}
	zlog.Info(ctx).Int("count", len(vulns)).Msg("parsed OSV archive")
	return vulns, nil
}

// ParseZip decodes every *.json file in an OSV all.zip archive.
func ParseZip(data []byte) ([]bazbom.Vulnerability, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &bazbom.Error{Op: "osv.ParseZip", Kind: bazbom.ErrKindParse, Inner: err}
	}
	var out []bazbom.Vulnerability
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &bazbom.Error{Op: "osv.ParseZip", Kind: bazbom.ErrKindParse, Message: f.Name, Inner: err}
		}
		v, err := Parse(rc)
		rc.Close()
		if err != nil {
			return nil, &bazbom.Error{Op: "osv.ParseZip", Kind: bazbom.ErrKindParse, Message: f.Name, Inner: err}
		}
		out = append(out, v)
	}
	return out, nil
}

// record mirrors the subset of the OSV schema (https://ossf.github.io/osv-schema/)
// this module consumes.
type record struct {
	ID        string          `json:"id"`
	Aliases   []string        `json:"aliases,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Details   string          `json:"details,omitempty"`
	Published string          `json:"published,omitempty"`
	Modified  string          `json:"modified,omitempty"`
	Severity  []recordSeverity `json:"severity,omitempty"`
	Affected  []recordAffected `json:"affected,omitempty"`
	References []recordReference `json:"references,omitempty"`
}

type recordSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type recordAffected struct {
	Package recordPackage   `json:"package"`
	Ranges  []recordRange   `json:"ranges,omitempty"`
}

type recordPackage struct {
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name"`
}

type recordRange struct {
	Type   string        `json:"type"`
	Events []recordEvent `json:"events"`
}

type recordEvent struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
	Limit        string `json:"limit,omitempty"`
}

type recordReference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Parse decodes a single OSV JSON record into a bazbom.Vulnerability.
func Parse(r io.Reader) (bazbom.Vulnerability, error) {
	var rec record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return bazbom.Vulnerability{}, &bazbom.Error{Op: "osv.Parse", Kind: bazbom.ErrKindParse, Inner: err}
	}

	v := bazbom.Vulnerability{
		ID:      rec.ID,
		Aliases: rec.Aliases,
		Summary: rec.Summary,
		Details: rec.Details,
	}

	if t, err := parseTime(rec.Published); err == nil {
		v.Published = t
	}
	if t, err := parseTime(rec.Modified); err == nil {
		v.Modified = t
	}

	for _, ref := range rec.References {
		v.References = append(v.References, bazbom.Reference{URL: ref.URL, Type: ref.Type})
	}

	v.Severity = toSeverity(rec.Severity)

	for _, a := range rec.Affected {
		ap := bazbom.AffectedPackage{
			Ecosystem: a.Package.Ecosystem,
			Package:   a.Package.Name,
		}
		for _, r := range a.Ranges {
			ap.Ranges = append(ap.Ranges, bazbom.VersionRange{
				Type:   toRangeType(r.Type),
				Events: toEvents(r.Events),
			})
		}
		v.Affected = append(v.Affected, ap)
	}

	return v, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, fmt.Errorf("empty")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// toSeverity reads OSV's severity array. Entries whose score is a bare
// number are kept directly; entries carrying a CVSS vector string instead
// of a number are skipped, since this module has no vector parser.
func toSeverity(entries []recordSeverity) *bazbom.Severity {
	if len(entries) == 0 {
		return nil
	}
	var out bazbom.Severity
	for _, e := range entries {
		score, err := strconv.ParseFloat(e.Score, 64)
		if err != nil {
			// OSV commonly stores a CVSS vector string here rather than a
			// bare number; without a vector parser this entry is skipped.
			continue
		}
		switch e.Type {
		case "CVSS_V4":
			out.CVSSv4 = &score
		case "CVSS_V3":
			out.CVSSv3 = &score
		}
	}
	if out.CVSSv3 == nil && out.CVSSv4 == nil {
		return nil
	}
	out.Level = levelFor(out.CVSS())
	return &out
}

func levelFor(score float64) bazbom.SeverityLevel {
	switch {
	case score >= 9.0:
		return bazbom.SeverityCritical
	case score >= 7.0:
		return bazbom.SeverityHigh
	case score >= 4.0:
		return bazbom.SeverityMedium
	case score > 0:
		return bazbom.SeverityLow
	default:
		return bazbom.SeverityUnknown
	}
}

func toRangeType(t string) bazbom.RangeType {
	switch strings.ToUpper(t) {
	case "SEMVER":
		return bazbom.RangeSemver
	case "ECOSYSTEM":
		return bazbom.RangeEcosystem
	case "GIT":
		return bazbom.RangeGit
	default:
		return bazbom.RangeEcosystem
	}
}

func toEvents(events []recordEvent) []bazbom.VersionEvent {
	out := make([]bazbom.VersionEvent, 0, len(events))
	for _, e := range events {
		switch {
		case e.Introduced != "":
			out = append(out, bazbom.VersionEvent{Kind: bazbom.EventIntroduced, Value: e.Introduced})
		case e.Fixed != "":
			out = append(out, bazbom.VersionEvent{Kind: bazbom.EventFixed, Value: e.Fixed})
		case e.LastAffected != "":
			out = append(out, bazbom.VersionEvent{Kind: bazbom.EventLastAffected, Value: e.LastAffected})
		case e.Limit != "":
			// {limit} deliberately carries no VersionEventKind; it is
			// dropped during normalization.
		}
	}
	return out
}
