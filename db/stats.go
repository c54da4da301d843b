package db

import "os"

// PartitionStats is one (level, result) partition's committed-file
// footprint, summed across every hash bucket.
type PartitionStats struct {
	Files int
	Bytes int64
}

// Stats returns per-(level, result) file counts and total on-disk bytes,
// read from the database's already-tracked committed-file lists — a
// supplemental introspection surface spec.md's own callable surface is
// silent on.
func (db *Database) Stats() map[PartitionTarget]PartitionStats {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make(map[PartitionTarget]PartitionStats)
	for key, ps := range db.partitions {
		target := PartitionTarget{Level: key.Level, Result: key.Result}
		s := out[target]
		for _, f := range ps.files {
			s.Files++
			if info, err := os.Stat(f.Path); err == nil {
				s.Bytes += info.Size()
			}
		}
		out[target] = s
	}
	return out
}
