package bcgn

import (
	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/bitboard"
	"github.com/treepeck/chesspos/movegen"
	"github.com/treepeck/chesspos/position"
)

// longMoveIndexThreshold is the largest move-list size written with a
// 1-byte index; longer lists use a 2-byte index. A position can only exceed it when the side to move has an
// unusual surplus of queens from underpromotion (the canonical "more than
// three queens" case spec.md calls out): each extra queen adds up to 27
// slider destinations to the canonical move list.
const longMoveIndexThreshold = 1<<8 - 1

// requiresLongMoveIndex reports whether pos currently needs a 2-byte move
// index. Both writer and reader recompute this independently from the
// position they have each replayed to, so no extra format bit is needed.
func requiresLongMoveIndex(pos *position.Position) bool {
	return len(movegen.CanonicalMoves(pos)) > longMoveIndexThreshold
}

// encodeMoveIndex finds m's position in pos's canonical legal-move list and
// returns its big-endian encoding: 1 byte normally, 2 bytes when
// requiresLongMoveIndex(pos).
func encodeMoveIndex(pos *position.Position, m bitboard.Move) ([]byte, error) {
	moves := movegen.CanonicalMoves(pos)
	idx := -1
	for i, candidate := range moves {
		if candidate == m {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.Newf("bcgn: move %s is not legal in the current position", m)
	}

	if len(moves) > longMoveIndexThreshold {
		return []byte{byte(idx >> 8), byte(idx)}, nil
	}
	return []byte{byte(idx)}, nil
}

// decodeMoveIndex reads the move index for pos from b (which must hold
// exactly the bytes requiresLongMoveIndex(pos) says this move occupies, at
// offset 0) and resolves it against pos's canonical legal-move list.
func decodeMoveIndex(pos *position.Position, b []byte) (bitboard.Move, int, error) {
	long := requiresLongMoveIndex(pos)
	width := 1
	if long {
		width = 2
	}
	if len(b) < width {
		return 0, 0, errors.Newf("bcgn: truncated move index (need %d bytes, have %d)", width, len(b))
	}

	var idx int
	if long {
		idx = int(b[0])<<8 | int(b[1])
	} else {
		idx = int(b[0])
	}

	moves := movegen.CanonicalMoves(pos)
	if idx < 0 || idx >= len(moves) {
		return 0, 0, errors.Newf("bcgn: move index %d out of range (%d legal moves)", idx, len(moves))
	}
	return moves[idx], width, nil
}
