// Package store implements the sorted, immutable, mmap-backed partition
// files the position index is built from: fixed-size record random access,
// a sampled range-index sidecar, and the batched interpolation search that
// turns a sorted signature list into per-file hit ranges.
package store

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/mmap"
)

// ImmutableSpan is a read-only, random-access view over a file holding a
// sequence of fixed-size records of type T, backed by a memory-mapped
// reader. T must be a fixed-size type in the sense encoding/binary
// understands (only fixed-width numeric fields and arrays thereof — no
// slices, maps, strings or pointers): IndexEntry and RangeIndexEntry
// instantiate it.
type ImmutableSpan[T any] struct {
	ra         *mmap.ReaderAt
	recordSize int
	count      int
}

// Open memory-maps path and validates that its size is an exact multiple
// of T's encoded size — spec.md §7's "corrupt database file" check.
func Open[T any](path string) (*ImmutableSpan[T], error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return nil, errors.Newf("store: type %T is not a fixed-size record", zero)
	}

	ra, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", path)
	}

	total := ra.Len()
	if total%int64(size) != 0 {
		ra.Close()
		return nil, errors.Wrapf(ErrCorruptPartition, "store: %s size %d, record size %d", path, total, size)
	}

	return &ImmutableSpan[T]{ra: ra, recordSize: size, count: int(total / int64(size))}, nil
}

// Len returns the number of records in the span.
func (s *ImmutableSpan[T]) Len() int { return s.count }

// RecordSize returns the encoded size of one T, in bytes.
func (s *ImmutableSpan[T]) RecordSize() int { return s.recordSize }

// At decodes and returns the record at index i.
func (s *ImmutableSpan[T]) At(i int) (T, error) {
	var rec T
	if i < 0 || i >= s.count {
		return rec, errors.Newf("store: index %d out of range (len=%d)", i, s.count)
	}
	buf := make([]byte, s.recordSize)
	if _, err := s.ra.ReadAt(buf, int64(i)*int64(s.recordSize)); err != nil {
		return rec, errors.Wrapf(err, "store: read record %d", i)
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &rec); err != nil {
		return rec, errors.Wrapf(err, "store: decode record %d", i)
	}
	return rec, nil
}

// Close unmaps the underlying file.
func (s *ImmutableSpan[T]) Close() error { return s.ra.Close() }

// WriteRecords sequentially encodes records to w — the symmetric write
// side of ImmutableSpan, used by the writer worker to produce the files
// ImmutableSpan later opens.
func WriteRecords[T any](w io.Writer, records []T) error {
	for i, rec := range records {
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			return errors.Wrapf(err, "store: encode record %d", i)
		}
	}
	return nil
}
