// Package audit implements a tamper-evident, append-only audit event
// stream.
package audit

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Event is one audit log entry. Metadata keys are sorted before signing so
// that the same logical event always produces the same canonical JSON
// regardless of map iteration order — field ordering in signing is
// load-bearing.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Actor     string            `json:"actor"`
	Action    string            `json:"action"`
	Resource  string            `json:"resource"`
	Result    string            `json:"result"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Signature string            `json:"signature"`
	SourceIP  string            `json:"source_ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// canonical renders e, excluding its Signature field, as JSON with stable
// key ordering: struct fields in declaration order, and Metadata entries
// sorted by key.
func (e Event) canonical() ([]byte, error) {
	type wire struct {
		Timestamp time.Time         `json:"timestamp"`
		EventType string            `json:"event_type"`
		Actor     string            `json:"actor"`
		Action    string            `json:"action"`
		Resource  string            `json:"resource"`
		Result    string            `json:"result"`
		Metadata  []metadataEntry   `json:"metadata,omitempty"`
		SourceIP  string            `json:"source_ip,omitempty"`
		UserAgent string            `json:"user_agent,omitempty"`
	}
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]metadataEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, metadataEntry{Key: k, Value: e.Metadata[k]})
	}
	w := wire{
		Timestamp: e.Timestamp, EventType: e.EventType, Actor: e.Actor,
		Action: e.Action, Resource: e.Resource, Result: e.Result,
		Metadata: entries, SourceIP: e.SourceIP, UserAgent: e.UserAgent,
	}
	return json.Marshal(w)
}

type metadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Sign computes signature = hex(HMAC-SHA256(canonicalJSON(event minus
// signature), secret)) and sets it on a copy of e.
func Sign(e Event, secret []byte) (Event, error) {
	b, err := e.canonical()
	if err != nil {
		return Event{}, fmt.Errorf("audit: canonicalize: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(b)
	e.Signature = hex.EncodeToString(mac.Sum(nil))
	return e, nil
}

// Verify recomputes e's signature and compares it in constant time against
// the one already set.
func Verify(e Event, secret []byte) (bool, error) {
	b, err := e.canonical()
	if err != nil {
		return false, fmt.Errorf("audit: canonicalize: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(b)
	want := mac.Sum(nil)
	got, err := hex.DecodeString(e.Signature)
	if err != nil {
		return false, nil
	}
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// Log is an append-only, per-record HMAC'd event stream rooted at a
// directory, with optional daily rotation.
type Log struct {
	Dir          string
	Secret       []byte
	DailyRotate  bool
	RetentionDays int

	mu sync.Mutex
}

func (l *Log) filePath(now time.Time) string {
	if l.DailyRotate {
		return filepath.Join(l.Dir, now.Format("2006-01-02")+".log")
	}
	return filepath.Join(l.Dir, "audit.log")
}

// Append signs e and appends it as one JSON line to the log file for e's
// timestamp date (or audit.log when DailyRotate is off). The
// write happens under an exclusive lock so concurrent writers never
// interleave partial lines.
func (l *Log) Append(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	signed, err := Sign(e, l.Secret)
	if err != nil {
		return err
	}
	line, err := json.Marshal(signed)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("audit: mkdir: %w", err)
	}
	f, err := os.OpenFile(l.filePath(signed.Timestamp), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}

// FileResult is one file's outcome from VerifyIntegrity.
type FileResult struct {
	Path     string
	AllValid bool
}

// VerifyIntegrity scans every log file in the log directory and reports,
// per file, whether every record's signature verifies. One bad signature
// marks the whole file bad.
func (l *Log) VerifyIntegrity() ([]FileResult, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("audit: read dir: %w", err)
	}
	var results []FileResult
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		path := filepath.Join(l.Dir, entry.Name())
		valid, err := l.verifyFile(path)
		if err != nil {
			return nil, err
		}
		results = append(results, FileResult{Path: path, AllValid: valid})
	}
	return results, nil
}

func (l *Log) verifyFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("audit: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return false, nil
		}
		ok, err := Verify(e, l.Secret)
		if err != nil || !ok {
			return false, nil
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("audit: scan %s: %w", path, err)
	}
	return true, nil
}

// CleanupOldLogs deletes date-named log files older than RetentionDays.
func (l *Log) CleanupOldLogs() error {
	if l.RetentionDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return fmt.Errorf("audit: read dir: %w", err)
	}
	cutoff := time.Now().AddDate(0, 0, -l.RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".log")
		t, err := time.Parse("2006-01-02", name)
		if err != nil {
			continue
		}
		if t.Before(cutoff) {
			if err := os.Remove(filepath.Join(l.Dir, entry.Name())); err != nil {
				return fmt.Errorf("audit: remove %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}
