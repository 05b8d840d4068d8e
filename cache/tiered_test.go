package cache

import (
	"context"
	"testing"

	"github.com/quay/zlog"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	ctx := zlog.Test(context.Background(), t)
	l, err := Open(ctx, t.TempDir(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestTieredGetPrefersLocal(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	local := newLocal(t)
	remote := &FSRemote{Root: t.TempDir()}
	tiered := &Tiered{Local: local, Remote: remote}

	if err := local.Put(ctx, "k", []byte("local-value"), 0); err != nil {
		t.Fatal(err)
	}
	if err := remote.Put(ctx, "k", []byte("remote-value")); err != nil {
		t.Fatal(err)
	}

	data, ok, err := tiered.Get(ctx, "k")
	if err != nil || !ok || string(data) != "local-value" {
		t.Fatalf("Get = %q, %v, %v, want local-value", data, ok, err)
	}
}

func TestTieredGetFallsBackToRemoteAndPopulatesLocal(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	local := newLocal(t)
	remote := &FSRemote{Root: t.TempDir()}
	tiered := &Tiered{Local: local, Remote: remote}

	if err := remote.Put(ctx, "k", []byte("remote-value")); err != nil {
		t.Fatal(err)
	}

	data, ok, err := tiered.Get(ctx, "k")
	if err != nil || !ok || string(data) != "remote-value" {
		t.Fatalf("Get = %q, %v, %v, want remote-value", data, ok, err)
	}

	// Now local should be populated too.
	localData, ok, err := local.Get(ctx, "k")
	if err != nil || !ok || string(localData) != "remote-value" {
		t.Fatalf("expected remote hit to populate local, got %q, %v, %v", localData, ok, err)
	}
}

func TestTieredGetMissWhenNoRemoteConfigured(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	tiered := &Tiered{Local: newLocal(t)}
	_, ok, err := tiered.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected a miss with no remote and no local entry")
	}
}

func TestTieredPutWritesBothTiers(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	local := newLocal(t)
	remote := &FSRemote{Root: t.TempDir()}
	tiered := &Tiered{Local: local, Remote: remote}

	if err := tiered.Put(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := local.Get(ctx, "k"); !ok {
		t.Error("expected Put to write the local tier")
	}
	if _, ok, _ := remote.Get(ctx, "k"); !ok {
		t.Error("expected Put to write the remote tier")
	}
}

func TestTieredPutSucceedsEvenIfRemoteFails(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	local := newLocal(t)
	tiered := &Tiered{Local: local, Remote: &S3Remote{}}
	if err := tiered.Put(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("expected a remote Put failure to be swallowed, got %v", err)
	}
	if _, ok, _ := local.Get(ctx, "k"); !ok {
		t.Error("expected the local tier to still be written")
	}
}

func TestTieredContainsChecksBothTiers(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	local := newLocal(t)
	remote := &FSRemote{Root: t.TempDir()}
	tiered := &Tiered{Local: local, Remote: remote}

	if tiered.Contains(ctx, "k") {
		t.Fatal("expected Contains to be false before any write")
	}
	if err := remote.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if !tiered.Contains(ctx, "k") {
		t.Error("expected Contains to find the key via the remote tier")
	}
}
