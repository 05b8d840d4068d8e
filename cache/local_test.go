package cache

import (
	"context"
	"testing"
	"time"

	"github.com/quay/zlog"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	l, err := Open(ctx, t.TempDir(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("hello world")
	if err := l.Put(ctx, "k", want, 0); err != nil {
		t.Fatal(err)
	}
	got, ok, err := l.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestGetExpired(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	l, err := Open(ctx, t.TempDir(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Put(ctx, "k", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	_, ok, err := l.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected expired entry to miss")
	}
}

// TestLRUEviction checks that, with max_size_bytes=10, `a` and `b` are put
// and `a` is then touched (refreshing its recency) before `c` is added,
// so that when `c` finally pushes total size over budget, `b` — not the
// freshly-touched `a` — is the least-recently-accessed entry and gets
// evicted, leaving `a` and `c` with total size 9.
func TestLRUEviction(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	l, err := Open(ctx, t.TempDir(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Put(ctx, "a", []byte("aaaaa"), 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := l.Put(ctx, "b", []byte("bbbbb"), 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, _, err := l.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := l.Put(ctx, "c", []byte("cccc"), 0); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := l.Get(ctx, "b"); ok {
		t.Error("expected b to have been evicted")
	}
	if _, ok, _ := l.Get(ctx, "a"); !ok {
		t.Error("expected a to remain")
	}
	stats := l.Stats()
	if stats.TotalSize > 10 {
		t.Errorf("total size %d exceeds max", stats.TotalSize)
	}
}

func TestPruneExpired(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	l, err := Open(ctx, t.TempDir(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Put(ctx, "k", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if err := l.PruneExpired(ctx); err != nil {
		t.Fatal(err)
	}
	if l.Stats().Entries != 0 {
		t.Fatal("expected prune to remove expired entry")
	}
}
