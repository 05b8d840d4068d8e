package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testEvent() Event {
	return Event{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EventType: "scan",
		Actor:     "ci-runner",
		Action:    "scan_directory",
		Resource:  "repo://example/app",
		Result:    "success",
		Metadata:  map[string]string{"ecosystems": "npm,golang"},
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("s3cr3t")
	signed, err := Sign(testEvent(), secret)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := Verify(signed, secret)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	secret := []byte("s3cr3t")
	signed, err := Sign(testEvent(), secret)
	if err != nil {
		t.Fatal(err)
	}
	signed.Result = "failure"
	ok, err := Verify(signed, secret)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected tampered event to fail verification")
	}
}

func TestAppendAndVerifyIntegrity(t *testing.T) {
	dir := t.TempDir()
	l := &Log{Dir: dir, Secret: []byte("s3cr3t"), DailyRotate: true}
	if err := l.Append(testEvent()); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(testEvent()); err != nil {
		t.Fatal(err)
	}
	results, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(results))
	}
	if !results[0].AllValid {
		t.Fatal("expected log file to verify as valid")
	}
}

func TestCanonicalMetadataOrderIndependent(t *testing.T) {
	a := testEvent()
	a.Metadata = map[string]string{"a": "1", "b": "2"}
	b := testEvent()
	b.Metadata = map[string]string{"b": "2", "a": "1"}

	signedA, err := Sign(a, []byte("s3cr3t"))
	if err != nil {
		t.Fatal(err)
	}
	signedB, err := Sign(b, []byte("s3cr3t"))
	if err != nil {
		t.Fatal(err)
	}
	if signedA.Signature != signedB.Signature {
		t.Errorf("expected map iteration order not to affect the signature: %q vs %q", signedA.Signature, signedB.Signature)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := Sign(testEvent(), []byte("s3cr3t"))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := Verify(signed, []byte("wrong"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected verification to fail with the wrong secret")
	}
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	e := testEvent()
	e.Signature = "not-hex!"
	ok, err := Verify(e, []byte("s3cr3t"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected a malformed signature to fail verification, not error")
	}
}

func TestVerifyIntegrityDetectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	l := &Log{Dir: dir, Secret: []byte("s3cr3t")}
	if err := l.Append(testEvent()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "audit.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := append(append([]byte{}, data...), []byte(`{"timestamp":"2026-01-01T00:00:00Z","signature":"deadbeef"}`+"\n")...)
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].AllValid {
		t.Fatalf("expected tampered file to be marked invalid, got %+v", results)
	}
}

func TestCleanupOldLogsRemovesOlderThanRetention(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "2020-01-01.log")
	recent := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	if err := os.WriteFile(old, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(recent, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := &Log{Dir: dir, RetentionDays: 30}
	if err := l.CleanupOldLogs(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expected the old log file to be removed")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Error("expected the recent log file to remain")
	}
}

func TestCleanupOldLogsNoopWhenRetentionUnset(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "2020-01-01.log")
	if err := os.WriteFile(old, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := &Log{Dir: dir}
	if err := l.CleanupOldLogs(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(old); err != nil {
		t.Error("expected cleanup to be a no-op when RetentionDays is unset")
	}
}
