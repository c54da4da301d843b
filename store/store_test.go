package store

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/treepeck/chesspos/position"
)

func sigFromUint64(v uint64) position.Signature {
	var s position.Signature
	for i := 0; i < 8; i++ {
		s[i] = byte(v >> (8 * (7 - i)))
	}
	return s
}

func writeSpan(t *testing.T, entries []IndexEntry) (string, *ImmutableSpan[IndexEntry]) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "0")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteRecords(f, entries); err != nil {
		t.Fatal(err)
	}
	f.Close()

	span, err := Open[IndexEntry](path)
	if err != nil {
		t.Fatal(err)
	}
	return path, span
}

func TestImmutableSpanRoundTrip(t *testing.T) {
	entries := []IndexEntry{
		{Signature: sigFromUint64(10), GameId: 1},
		{Signature: sigFromUint64(20), GameId: 2},
		{Signature: sigFromUint64(30), GameId: 3},
	}
	_, span := writeSpan(t, entries)
	defer span.Close()

	if span.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", span.Len())
	}
	for i, want := range entries {
		got, err := span.At(i)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("At(%d) = %+v, want %+v", i, got, want)
		}
	}
}

func TestOpenRejectsCorruptSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0")
	if err := os.WriteFile(path, make([]byte, 7), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open[IndexEntry](path); err == nil {
		t.Fatal("expected an error opening a file whose size is not a multiple of the record size")
	}
}

func TestBuildRangeIndexAndSaveLoad(t *testing.T) {
	var entries []IndexEntry
	for i := uint64(0); i < 5000; i++ {
		entries = append(entries, IndexEntry{Signature: sigFromUint64(i * 2), GameId: uint32(i)})
	}
	ri := BuildRangeIndex(entries, DefaultSampleStride)
	if len(ri.Entries) == 0 {
		t.Fatal("BuildRangeIndex produced no samples")
	}
	if ri.Entries[0].Offset != 0 {
		t.Fatalf("first sample offset = %d, want 0", ri.Entries[0].Offset)
	}
	if ri.Entries[len(ri.Entries)-1].Offset != uint64(len(entries)-1) {
		t.Fatalf("last sample offset = %d, want %d", ri.Entries[len(ri.Entries)-1].Offset, len(entries)-1)
	}

	path := filepath.Join(t.TempDir(), "0_index")
	if err := ri.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadRangeIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Entries) != len(ri.Entries) {
		t.Fatalf("loaded %d samples, want %d", len(loaded.Entries), len(ri.Entries))
	}
}

func TestEqualRangeMultipleFindsExactMatches(t *testing.T) {
	var entries []IndexEntry
	for i := uint64(0); i < 10000; i++ {
		// Three records per distinct key, so equal ranges have width 3.
		entries = append(entries,
			IndexEntry{Signature: sigFromUint64(i), GameId: uint32(i)},
			IndexEntry{Signature: sigFromUint64(i), GameId: uint32(i) + 1},
			IndexEntry{Signature: sigFromUint64(i), GameId: uint32(i) + 2},
		)
	}
	_, span := writeSpan(t, entries)
	defer span.Close()

	ri := BuildRangeIndex(entries, DefaultSampleStride)

	keys := []position.Signature{sigFromUint64(0), sigFromUint64(5000), sigFromUint64(9999)}
	ranges, err := EqualRangeMultiple(span, ri, keys)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range ranges {
		if r.End-r.Begin != 3 {
			t.Fatalf("key %d: range width = %d, want 3 (range=%+v)", i, r.End-r.Begin, r)
		}
		for j := r.Begin; j < r.End; j++ {
			rec, err := span.At(j)
			if err != nil {
				t.Fatal(err)
			}
			if rec.Signature != keys[i] {
				t.Fatalf("record %d signature mismatch for key %d", j, i)
			}
		}
	}
}

func TestEqualRangeMultipleMissReturnsEmptyRange(t *testing.T) {
	entries := []IndexEntry{
		{Signature: sigFromUint64(10), GameId: 0},
		{Signature: sigFromUint64(20), GameId: 1},
		{Signature: sigFromUint64(30), GameId: 2},
	}
	_, span := writeSpan(t, entries)
	defer span.Close()
	ri := BuildRangeIndex(entries, DefaultSampleStride)

	ranges, err := EqualRangeMultiple(span, ri, []position.Signature{sigFromUint64(15)})
	if err != nil {
		t.Fatal(err)
	}
	if ranges[0].Begin != ranges[0].End {
		t.Fatalf("expected empty range for a miss, got %+v", ranges[0])
	}
}

func TestEqualRangeMultipleReturnsOneRangePerKey(t *testing.T) {
	var entries []IndexEntry
	for i := uint64(0); i < 2000; i++ {
		entries = append(entries, IndexEntry{Signature: sigFromUint64(i * 3), GameId: uint32(i)})
	}
	_, span := writeSpan(t, entries)
	defer span.Close()
	ri := BuildRangeIndex(entries, 64)

	keys := make([]position.Signature, 0, 50)
	for i := 0; i < 50; i++ {
		keys = append(keys, sigFromUint64(uint64(i)*40))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	ranges, err := EqualRangeMultiple(span, ri, keys)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != len(keys) {
		t.Fatalf("got %d ranges, want %d", len(ranges), len(keys))
	}
}
