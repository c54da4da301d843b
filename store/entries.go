package store

import "github.com/treepeck/chesspos/position"

// IndexEntry is one position-index record: a 128-bit position signature
// plus the game id it was observed in, 20 bytes packed with no padding.
type IndexEntry struct {
	Signature position.Signature
	GameId    uint32
}

// Less orders entries by signature only, per spec.md §3 ("total order by
// signature; the game_id is a tie-breaker carried as payload").
func (e IndexEntry) Less(other IndexEntry) bool { return e.Signature.Less(other.Signature) }

// RangeIndexEntry is one sample in a partition file's range-index sidecar:
// a signature paired with the record index in the main file where a scan
// for that signature may safely begin.
type RangeIndexEntry struct {
	Signature position.Signature
	Offset    uint64
}
