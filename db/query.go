package db

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/headerstore"
	"github.com/treepeck/chesspos/position"
	"github.com/treepeck/chesspos/store"
)

// PartitionTarget names one (level, result) partition to search.
type PartitionTarget struct {
	Level  Level
	Result Result
}

// RangeHit is one matching equal-range within one committed partition
// file.
type RangeHit struct {
	Target PartitionTarget
	Bucket int
	FileID int
	Range  store.Range
}

// QueryRanges implements spec.md §4.5's query_ranges: for every (target,
// position) pair it returns the list of partition-file ranges whose
// records' signature equals that position's signature. The outer slice is
// indexed by input position order, regardless of the internal sort used
// to make the search batched and sequential per file.
func (db *Database) QueryRanges(targets []PartitionTarget, positions []position.Position) ([][]RangeHit, error) {
	log.Debugf("query_ranges: %d targets x %d positions", len(targets), len(positions))

	type keyedSig struct {
		sig   position.Signature
		index int
	}
	keys := make([]keyedSig, len(positions))
	for i, p := range positions {
		keys[i] = keyedSig{sig: p.Signature(), index: i}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].sig.Less(keys[j].sig) })

	out := make([][]RangeHit, len(positions))

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, target := range targets {
		byBucket := make(map[int][]keyedSig)
		for _, k := range keys {
			b := bucketFor(k.sig, db.bucketCount)
			byBucket[b] = append(byBucket[b], k)
		}

		for bucket, bkeys := range byBucket {
			key := partitionKey{Level: target.Level, Result: target.Result, Bucket: bucket}
			ps := db.partitions[key]
			if ps == nil {
				continue
			}

			sigs := make([]position.Signature, len(bkeys))
			for i, k := range bkeys {
				sigs[i] = k.sig
			}

			for _, f := range ps.files {
				ranges, err := store.EqualRangeMultiple(f.Span, f.RangeIndex, sigs)
				if err != nil {
					return nil, errors.Wrapf(err, "db: query partition file %s", f.Path)
				}
				for i, r := range ranges {
					if r.Begin == r.End {
						continue
					}
					origIndex := bkeys[i].index
					out[origIndex] = append(out[origIndex], RangeHit{
						Target: target,
						Bucket: bucket,
						FileID: f.ID,
						Range:  r,
					})
				}
			}
		}
	}

	return out, nil
}

// FirstGameIndex implements spec.md §4.5's first_game_index: given one
// position's non-empty RangeHit list (as returned by QueryRanges), it
// reads the first record of the first hit and returns the game-id that
// produced it.
func (db *Database) FirstGameIndex(hits []RangeHit) (headerstore.GameId, bool, error) {
	if len(hits) == 0 {
		return 0, false, nil
	}
	h := hits[0]

	db.mu.Lock()
	key := partitionKey{Level: h.Target.Level, Result: h.Target.Result, Bucket: h.Bucket}
	ps := db.partitions[key]
	db.mu.Unlock()
	if ps == nil {
		return 0, false, errors.AssertionFailedf("db: range hit references an unknown partition %+v", key)
	}

	var f *fileRecord
	for _, cand := range ps.files {
		if cand.ID == h.FileID {
			f = cand
			break
		}
	}
	if f == nil {
		return 0, false, errors.AssertionFailedf("db: range hit references unknown file id %d", h.FileID)
	}

	rec, err := f.Span.At(h.Range.Begin)
	if err != nil {
		return 0, false, err
	}
	return headerstore.GameId(rec.GameId), true, nil
}

// QueryHeaders implements spec.md §4.5's query_headers, resolving dense
// game ids to their header-store metadata.
func (db *Database) QueryHeaders(ids []headerstore.GameId) ([]headerstore.HeaderRecord, error) {
	return db.header.Query(ids)
}
