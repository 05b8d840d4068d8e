// Package cache implements a two-tier content-addressed cache: a local,
// disk-backed tier with LRU eviction and an optional shared remote tier.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quay/zlog"
	"lukechampine.com/blake3"
)

// Entry is the persisted index record for one cached blob.
type Entry struct {
	Key          string     `json:"key"`
	ContentHash  string     `json:"content_hash"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed time.Time  `json:"last_accessed"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	SizeBytes    int64      `json:"size_bytes"`
	FilePath     string     `json:"file_path"`
}

func (e Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Local is a content-addressed, size-bounded local cache tier.
//
// All mutations (index update, blob write, index persist) happen under a
// single exclusive lock: the local cache index is the only mutable shared
// state within a process.
type Local struct {
	dir         string
	maxSize     int64
	mu          sync.Mutex
	index       map[string]Entry
	totalSize   int64
}

// Open constructs or reopens a Local cache rooted at dir, reconstructing
// its in-memory index from dir/index.json if present.
func Open(ctx context.Context, dir string, maxSizeBytes int64) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}
	l := &Local{dir: dir, maxSize: maxSizeBytes, index: make(map[string]Entry)}
	if err := l.loadIndex(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Local) indexPath() string { return filepath.Join(l.dir, "index.json") }

func (l *Local) loadIndex(ctx context.Context) error {
	b, err := os.ReadFile(l.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: read index: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return fmt.Errorf("cache: parse index: %w", err)
	}
	var total int64
	for _, e := range entries {
		// An index entry whose blob is missing or size-mismatched is
		// dropped, not fatal.
		fi, err := os.Stat(e.FilePath)
		if err != nil || fi.Size() != e.SizeBytes {
			zlog.Debug(ctx).Str("key", e.Key).Msg("cache: dropping corrupt index entry")
			continue
		}
		l.index[e.Key] = e
		total += e.SizeBytes
	}
	l.totalSize = total
	return nil
}

func (l *Local) persistIndexLocked() error {
	entries := make([]Entry, 0, len(l.index))
	for _, e := range l.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal index: %w", err)
	}
	tmp := l.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("cache: write index: %w", err)
	}
	return os.Rename(tmp, l.indexPath())
}

// Put computes BLAKE3(data), writes it to disk, and records an Entry for
// key. If ttl is non-zero, ExpiresAt is set to now+ttl. A prior entry for
// key has its blob removed.
func (l *Local) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum := blake3.Sum256(data)
	hash := fmt.Sprintf("%x", sum)
	path := filepath.Join(l.dir, hash+".bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cache: write blob: %w", err)
	}

	now := time.Now()
	entry := Entry{
		Key: key, ContentHash: hash, CreatedAt: now, LastAccessed: now,
		SizeBytes: int64(len(data)), FilePath: path,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		entry.ExpiresAt = &exp
	}

	if prior, ok := l.index[key]; ok && prior.FilePath != path {
		l.totalSize -= prior.SizeBytes
		if err := os.Remove(prior.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			zlog.Debug(ctx).Err(err).Msg("cache: unable to remove superseded blob")
		}
	}
	l.index[key] = entry
	l.totalSize += entry.SizeBytes

	l.evictLocked(ctx)
	return l.persistIndexLocked()
}

// Get returns the blob for key, or ok=false if the entry is missing or
// expired. An expired entry is removed as a side effect.
func (l *Local) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, found := l.index[key]
	if !found {
		Misses.WithLabelValues("local").Inc()
		return nil, false, nil
	}
	if entry.expired(time.Now()) {
		l.removeLocked(key)
		Misses.WithLabelValues("local").Inc()
		if err := l.persistIndexLocked(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	b, err := os.ReadFile(entry.FilePath)
	if err != nil {
		// CacheCorruption: blob missing though index says otherwise.
		l.removeLocked(key)
		_ = l.persistIndexLocked()
		Misses.WithLabelValues("local").Inc()
		return nil, false, nil
	}
	entry.LastAccessed = time.Now()
	l.index[key] = entry
	if err := l.persistIndexLocked(); err != nil {
		return nil, false, err
	}
	Hits.WithLabelValues("local").Inc()
	return b, true, nil
}

// Contains reports whether key has a live (unexpired) entry, without
// reading the blob.
func (l *Local) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.index[key]
	return ok && !e.expired(time.Now())
}

// removeLocked deletes key's index entry and blob. Caller holds l.mu.
func (l *Local) removeLocked(key string) {
	e, ok := l.index[key]
	if !ok {
		return
	}
	delete(l.index, key)
	l.totalSize -= e.SizeBytes
	_ = os.Remove(e.FilePath)
}

// evictLocked evicts entries by ascending LastAccessed (LRU) until total
// size is at or below maxSize. Caller holds l.mu.
func (l *Local) evictLocked(ctx context.Context) {
	if l.maxSize <= 0 {
		return
	}
	for l.totalSize > l.maxSize {
		var oldestKey string
		var oldest time.Time
		first := true
		for k, e := range l.index {
			if first || e.LastAccessed.Before(oldest) {
				oldestKey, oldest, first = k, e.LastAccessed, false
			}
		}
		if first {
			return
		}
		zlog.Debug(ctx).Str("key", oldestKey).Msg("cache: evicting LRU entry")
		l.removeLocked(oldestKey)
		Evictions.Inc()
	}
}

// PruneExpired removes every expired entry.
func (l *Local) PruneExpired(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for k, e := range l.index {
		if e.expired(now) {
			l.removeLocked(k)
		}
	}
	return l.persistIndexLocked()
}

// Clear removes every entry and blob.
func (l *Local) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.index {
		l.removeLocked(k)
	}
	return l.persistIndexLocked()
}

// Stats is a snapshot of cache occupancy.
type Stats struct {
	Entries   int
	TotalSize int64
	MaxSize   int64
}

func (l *Local) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Entries: len(l.index), TotalSize: l.totalSize, MaxSize: l.maxSize}
}
