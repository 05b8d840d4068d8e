// Package kev ingests the CISA Known Exploited Vulnerabilities catalog and
// turns it into bazbom.KEVEntry records keyed by CVE ID.
package kev

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/internal/httputil"
)

// DefaultFeed is the default location of the CISA KEV catalog.
const DefaultFeed = `https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json`

// dateLayout is the date format used throughout the KEV catalog's JSON
// fields (dateAdded, dueDate).
const dateLayout = "2006-01-02"

// root mirrors the top-level shape of the CISA KEV JSON feed.
type root struct {
	CatalogVersion  string           `json:"catalogVersion"`
	Count           int              `json:"count"`
	Vulnerabilities []vulnerability `json:"vulnerabilities"`
}

type vulnerability struct {
	CVEID     string `json:"cveID"`
	DateAdded string `json:"dateAdded"`
	DueDate   string `json:"dueDate,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Fetcher fetches and parses the CISA KEV catalog.
type Fetcher struct {
	Client *http.Client
	Feed   string
}

// NewFetcher builds a Fetcher with the default feed URL and a client
// carrying the package's default advisory timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client: httputil.NewClient(httputil.DefaultAdvisoryTimeout),
		Feed:   DefaultFeed,
	}
}

// Fetch downloads and parses the catalog, returning a map from CVE ID to
// its KEVEntry. A CVE absent from the map is simply not known-exploited.
func (f *Fetcher) Fetch(ctx context.Context) (map[string]bazbom.KEVEntry, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/kev/Fetch")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Feed, nil)
	if err != nil {
		return nil, &bazbom.Error{Op: "kev.Fetch", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &bazbom.Error{Op: "kev.Fetch", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	defer resp.Body.Close()

	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return nil, &bazbom.Error{Op: "kev.Fetch", Kind: bazbom.ErrKindNetwork, Inner: err}
	}

	entries, err := Parse(bufio.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}
	zlog.Info(ctx).Int("count", len(entries)).Msg("parsed KEV catalog")
	return entries, nil
}

// Parse decodes a CISA KEV JSON catalog into a map keyed by CVE ID.
func Parse(r io.Reader) (map[string]bazbom.KEVEntry, error) {
	var doc root
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &bazbom.Error{Op: "kev.Parse", Kind: bazbom.ErrKindParse, Inner: err}
	}

	out := make(map[string]bazbom.KEVEntry, len(doc.Vulnerabilities))
	for _, v := range doc.Vulnerabilities {
		if v.CVEID == "" {
			continue
		}
		entry, err := toEntry(v)
		if err != nil {
			return nil, &bazbom.Error{Op: "kev.Parse", Kind: bazbom.ErrKindParse, Message: fmt.Sprintf("entry %s", v.CVEID), Inner: err}
		}
		out[v.CVEID] = entry
	}
	return out, nil
}

func toEntry(v vulnerability) (bazbom.KEVEntry, error) {
	added, err := time.Parse(dateLayout, v.DateAdded)
	if err != nil {
		return bazbom.KEVEntry{}, fmt.Errorf("dateAdded %q: %w", v.DateAdded, err)
	}
	entry := bazbom.KEVEntry{DateAdded: added, Notes: v.Notes}
	if d := strings.TrimSpace(v.DueDate); d != "" {
		due, err := time.Parse(dateLayout, d)
		if err != nil {
			return bazbom.KEVEntry{}, fmt.Errorf("dueDate %q: %w", d, err)
		}
		entry.DueDate = &due
	}
	return entry, nil
}
