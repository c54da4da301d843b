package store

import (
	"os"

	"github.com/cockroachdb/errors"
)

// DefaultSampleStride is the N in "sample every N=1024 records" from
// spec.md §4.3.
const DefaultSampleStride = 1024

// RangeIndex is a monotone-nondecreasing sampling of (signature, record
// offset) pairs over a sorted IndexEntry file: index[i].Signature is <= the
// signature of the record at index[i].Offset, and consecutive samples
// bound a contiguous, searchable window of the main file.
type RangeIndex struct {
	Entries []RangeIndexEntry
}

// BuildRangeIndex samples sorted (entries must already be sorted by
// signature) every stride records, always including the first and last,
// so RangeIndex.Entries is never empty for a non-empty input.
func BuildRangeIndex(entries []IndexEntry, stride int) RangeIndex {
	if stride <= 0 {
		stride = DefaultSampleStride
	}
	if len(entries) == 0 {
		return RangeIndex{}
	}

	var ri RangeIndex
	for i := 0; i < len(entries); i += stride {
		ri.Entries = append(ri.Entries, RangeIndexEntry{Signature: entries[i].Signature, Offset: uint64(i)})
	}
	last := len(entries) - 1
	if ri.Entries[len(ri.Entries)-1].Offset != uint64(last) {
		ri.Entries = append(ri.Entries, RangeIndexEntry{Signature: entries[last].Signature, Offset: uint64(last)})
	}
	return ri
}

// Save writes ri to path as a flat sequence of RangeIndexEntry records —
// the "<file_id>_index" sidecar spec.md §4.5 names.
func (ri RangeIndex) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "store: create %s", path)
	}
	defer f.Close()
	return WriteRecords(f, ri.Entries)
}

// LoadRangeIndex reads a sidecar file written by RangeIndex.Save.
func LoadRangeIndex(path string) (RangeIndex, error) {
	span, err := Open[RangeIndexEntry](path)
	if err != nil {
		return RangeIndex{}, err
	}
	defer span.Close()

	ri := RangeIndex{Entries: make([]RangeIndexEntry, span.Len())}
	for i := range ri.Entries {
		e, err := span.At(i)
		if err != nil {
			return RangeIndex{}, err
		}
		ri.Entries[i] = e
	}
	return ri, nil
}
