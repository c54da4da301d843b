package db

import (
	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/bcgn"
)

// Result is a game outcome from White's perspective, the partitioning key
// spec.md §4.5 calls {w, l, d}.
type Result uint8

const (
	ResultWin  Result = iota // white win
	ResultLoss               // black win
	ResultDraw
)

var resultNames = [...]string{"w", "l", "d"}

// Results enumerates every partitioned result, in directory-layout order.
var Results = []Result{ResultWin, ResultLoss, ResultDraw}

func (r Result) String() string {
	if int(r) >= len(resultNames) {
		return "unknown"
	}
	return resultNames[r]
}

// ParseResult parses a result's directory name back into a Result.
func ParseResult(s string) (Result, error) {
	for i, n := range resultNames {
		if n == s {
			return Result(i), nil
		}
	}
	return 0, errors.Newf("db: unknown result %q", s)
}

// resultFromBCGN maps a BCGN game result to a partition Result. ok is
// false for bcgn.ResultUnknown, which the importer must skip rather than
// partition.
func resultFromBCGN(r bcgn.Result) (res Result, ok bool) {
	switch r {
	case bcgn.ResultWhiteWin:
		return ResultWin, true
	case bcgn.ResultBlackWin:
		return ResultLoss, true
	case bcgn.ResultDraw:
		return ResultDraw, true
	default:
		return 0, false
	}
}
