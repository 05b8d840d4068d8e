package rpm

import (
	"encoding/binary"
	"testing"
)

// buildHeaderBlob assembles a synthetic RPM header blob with one typeString
// entry per (tag, value) pair, matching the on-disk tags-array + data-blob
// layout headerFields parses.
func buildHeaderBlob(t *testing.T, entries map[int32]string) []byte {
	t.Helper()

	var data []byte
	offsets := make(map[int32]int32, len(entries))
	// Deterministic order so subtests can make assertions about byte layout
	// if ever needed.
	tags := make([]int32, 0, len(entries))
	for tag := range entries {
		tags = append(tags, tag)
	}
	for i := 0; i < len(tags); i++ {
		for j := i + 1; j < len(tags); j++ {
			if tags[j] < tags[i] {
				tags[i], tags[j] = tags[j], tags[i]
			}
		}
	}
	for _, tag := range tags {
		offsets[tag] = int32(len(data))
		data = append(data, []byte(entries[tag])...)
		data = append(data, 0)
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(tags)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(data)))

	for _, tag := range tags {
		e := make([]byte, entryInfoSize)
		binary.BigEndian.PutUint32(e[0:4], uint32(tag))
		binary.BigEndian.PutUint32(e[4:8], uint32(typeString))
		binary.BigEndian.PutUint32(e[8:12], uint32(offsets[tag]))
		binary.BigEndian.PutUint32(e[12:16], 1)
		buf = append(buf, e...)
	}
	buf = append(buf, data...)
	return buf
}

func TestHeaderFieldsParsesStrings(t *testing.T) {
	blob := buildHeaderBlob(t, map[int32]string{
		tagName:    "openssl",
		tagVersion: "3.0.9",
		tagRelease: "2.el9",
	})
	fields, err := headerFields(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got := stringField(fields, tagName); got != "openssl" {
		t.Errorf("name = %q", got)
	}
	if got := stringField(fields, tagVersion); got != "3.0.9" {
		t.Errorf("version = %q", got)
	}
	if got := stringField(fields, tagRelease); got != "2.el9" {
		t.Errorf("release = %q", got)
	}
}

func TestHeaderFieldsTooShort(t *testing.T) {
	if _, err := headerFields([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for too-short blob")
	}
}

func TestHeaderFieldsSizeMismatch(t *testing.T) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], 5) // claims 5 tags but has no tag data
	binary.BigEndian.PutUint32(buf[4:8], 0)
	if _, err := headerFields(buf); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestStringFieldMissingTag(t *testing.T) {
	fields := map[int32]any{tagName: "x"}
	if got := stringField(fields, tagVersion); got != "" {
		t.Errorf("expected empty string for missing tag, got %q", got)
	}
}
