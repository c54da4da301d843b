package db

import "github.com/treepeck/chesspos/position"

// DefaultBucketCount is the fixed power-of-two bucket count spec.md §4.5
// calls out as typical.
const DefaultBucketCount = 4

// bucketFor routes a signature to its hash bucket: the low 64 bits of the
// signature (themselves an xxHash digest, see position.Signature) modulo
// the partition's bucket count.
func bucketFor(sig position.Signature, bucketCount int) int {
	if bucketCount <= 1 {
		return 0
	}
	return int(sig.Uint128Lo() % uint64(bucketCount))
}
