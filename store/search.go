package store

import (
	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/position"
)

// Range is a half-open record-index window [Begin, End) within a single
// partition file where every record's signature equals the key that
// produced it.
type Range struct {
	Begin, End int
}

// EqualRangeMultiple implements spec.md §4.3's
// equal_range_multiple_interp_indexed_cross: given an ascending list of
// signatures, it returns one Range per key, via a single left-to-right
// sweep that first narrows against the range index, then interpolation
// search within the narrowed window, falling back to plain bisection.
// Successive keys never re-scan records a prior key already passed.
func EqualRangeMultiple(span *ImmutableSpan[IndexEntry], ri RangeIndex, sortedKeys []position.Signature) ([]Range, error) {
	if span.Len() == 0 || len(ri.Entries) == 0 {
		out := make([]Range, len(sortedKeys))
		return out, nil
	}

	out := make([]Range, len(sortedKeys))
	lowerBound := 0

	for i, key := range sortedKeys {
		winLo, winHi := narrowWindow(ri, key, lowerBound, span.Len()-1)
		if winLo > winHi {
			out[i] = Range{Begin: lowerBound, End: lowerBound}
			continue
		}

		begin, err := lowerBoundInWindow(span, winLo, winHi, key)
		if err != nil {
			return nil, err
		}
		end, err := upperBoundInWindow(span, begin, winHi, key)
		if err != nil {
			return nil, err
		}

		out[i] = Range{Begin: begin, End: end}
		lowerBound = end
	}

	return out, nil
}

// narrowWindow uses the sampled range index to find a [lo, hi] record-index
// window guaranteed to contain every record equal to key, bounded below by
// floor (the running lower bound from the sweep).
func narrowWindow(ri RangeIndex, key position.Signature, floor, lastRecord int) (int, int) {
	entries := ri.Entries
	lo, hi := 0, len(entries)-1
	winLo := floor

	// Largest sample offset with Signature < key.
	for lo <= hi {
		mid := (lo + hi) / 2
		if entries[mid].Signature.Less(key) {
			if int(entries[mid].Offset) > winLo {
				winLo = int(entries[mid].Offset)
			}
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	winHi := lastRecord
	lo, hi = 0, len(entries)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if key.Less(entries[mid].Signature) {
			winHi = int(entries[mid].Offset)
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}

	return winLo, winHi
}

// interpolationGuess projects signatures to the high 64 bits and
// linearly interpolates a candidate index; callers treat it only as a
// starting point; correctness comes from the bisection that follows.
func interpolationGuess(loKey, hiKey, key position.Signature, lo, hi int) int {
	loV, hiV, keyV := loKey.Uint128Hi(), hiKey.Uint128Hi(), key.Uint128Hi()
	if hiV <= loV || hi <= lo {
		return lo
	}
	if keyV <= loV {
		return lo
	}
	if keyV >= hiV {
		return hi
	}
	frac := float64(keyV-loV) / float64(hiV-loV)
	guess := lo + int(frac*float64(hi-lo))
	if guess < lo {
		guess = lo
	}
	if guess > hi {
		guess = hi
	}
	return guess
}

// lowerBoundInWindow returns the first record index in [lo, hi] whose
// signature is >= key, or hi+1 if none.
func lowerBoundInWindow(span *ImmutableSpan[IndexEntry], lo, hi int, key position.Signature) (int, error) {
	loRec, err := span.At(lo)
	if err != nil {
		return 0, err
	}
	hiRec, err := span.At(hi)
	if err != nil {
		return 0, err
	}
	guess := interpolationGuess(loRec.Signature, hiRec.Signature, key, lo, hi)

	guessRec, err := span.At(guess)
	if err != nil {
		return 0, err
	}
	if guessRec.Signature.Less(key) {
		lo = guess + 1
	} else {
		hi = guess
	}

	for lo <= hi {
		mid := (lo + hi) / 2
		rec, err := span.At(mid)
		if err != nil {
			return 0, err
		}
		if rec.Signature.Less(key) {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// upperBoundInWindow returns the first record index in [lo, hi] whose
// signature is > key, or hi+1 if none.
func upperBoundInWindow(span *ImmutableSpan[IndexEntry], lo, hi int, key position.Signature) (int, error) {
	if lo > hi {
		return lo, nil
	}
	for lo <= hi {
		mid := (lo + hi) / 2
		rec, err := span.At(mid)
		if err != nil {
			return 0, err
		}
		if key.Less(rec.Signature) {
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// ErrCorruptPartition is returned by partition-opening code when a file's
// byte size is not a multiple of its record size.
var ErrCorruptPartition = errors.New("store: partition file size is not a multiple of the record size")
