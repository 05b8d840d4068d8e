// Package epss ingests the FIRST.org Exploit Prediction Scoring System
// daily feed and turns it into bazbom.EPSS records keyed by CVE ID.
package epss

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/internal/httputil"
)

// DefaultFeed is the EPSS feed for the current day's scores. Callers that
// need a specific historical date should set Fetcher.Feed directly; the
// EPSS archive names files epss_scores-YYYY-MM-DD.csv.gz.
const DefaultFeed = `https://epss.cyentia.com/epss_scores-current.csv.gz`

// Fetcher fetches and parses the EPSS scores feed.
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

// Fetch downloads and parses the feed, returning a map from CVE ID to its
// EPSS score and percentile.
func (f *Fetcher) Fetch(ctx context.Context) (map[string]bazbom.EPSS, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/epss/Fetch")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Feed, nil)
	if err != nil {
		return nil, &bazbom.Error{Op: "epss.Fetch", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &bazbom.Error{Op: "epss.Fetch", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	defer resp.Body.Close()

	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return nil, &bazbom.Error{Op: "epss.Fetch", Kind: bazbom.ErrKindNetwork, Inner: err}
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, &bazbom.Error{Op: "epss.Fetch", Kind: bazbom.ErrKindParse, Message: "decompress", Inner: err}
	}
	defer gz.Close()

	scores, err := Parse(gz)
	if err != nil {
		return nil, err
	}
	zlog.Info(ctx).Int("count", len(scores)).Msg("parsed EPSS feed")
	return scores, nil
}

// Parse decodes an uncompressed EPSS CSV body (the FIRST.org
// "cve,epss,percentile" format, preceded by a "#model_version:...,score_date:..."
// comment line) into a map keyed by CVE ID.
func Parse(r io.Reader) (map[string]bazbom.EPSS, error) {
	cr := csv.NewReader(r)
	// The feed's first line is a "#model_version:...,score_date:..." comment;
	// csv.Reader's Comment handling skips it entirely since it starts with '#'.
	cr.Comment = '#'
	cr.FieldsPerRecord = 3

	header, err := cr.Read()
	if err != nil {
		return nil, &bazbom.Error{Op: "epss.Parse", Kind: bazbom.ErrKindParse, Message: "header", Inner: err}
	}
	expected := []string{"cve", "epss", "percentile"}
	if len(header) != 3 || header[0] != expected[0] || header[1] != expected[1] || header[2] != expected[2] {
		return nil, &bazbom.Error{Op: "epss.Parse", Kind: bazbom.ErrKindParse, Message: fmt.Sprintf("unexpected header %v", header)}
	}

	out := make(map[string]bazbom.EPSS)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &bazbom.Error{Op: "epss.Parse", Kind: bazbom.ErrKindParse, Inner: err}
		}
		cve := strings.TrimSpace(record[0])
		if cve == "" {
			continue
		}
		score, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		percentile, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			continue
		}
		out[cve] = bazbom.EPSS{Score: score, Percentile: percentile}
	}
	return out, nil
}
