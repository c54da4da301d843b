// Package movegen generates legal chess moves from a position.Position using
// the bitboard package's magic attack tables. It is the single place that
// knows how to turn a Position into the set of moves a player may actually
// play, and how to enumerate the destination squares the BCGN codec's
// level-1 move index is built from.
package movegen

import (
	"github.com/treepeck/chesspos/bitboard"
	"github.com/treepeck/chesspos/position"
)

// Generate returns every legal move available to the side to move in pos.
// It generates pseudo-legal moves first, then filters out any that leave
// (or place) the mover's own king in check by actually playing and
// unplaying each candidate — the same approach the legacy engine this
// package is descended from used, traded here for the do/undo-move pair
// position.Position exposes instead of a FEN-stack replay.
func Generate(pos *position.Position) []bitboard.Move {
	bitboard.InitMagics()

	pseudo := make([]bitboard.Move, 0, 48)
	pseudo = genPawnMoves(pos, pseudo)
	pseudo = genKnightMoves(pos, pseudo)
	pseudo = genSliderMoves(pos, bitboard.Bishop, pseudo)
	pseudo = genSliderMoves(pos, bitboard.Rook, pseudo)
	pseudo = genSliderMoves(pos, bitboard.Queen, pseudo)
	pseudo = genKingMoves(pos, pseudo)

	legal := make([]bitboard.Move, 0, len(pseudo))
	mover := pos.SideToMove
	for _, m := range pseudo {
		rev := pos.DoMove(m)
		kingSq := pos.Board.Pieces[bitboard.MakePiece(bitboard.King, mover)].First()
		if !IsAttacked(&pos.Board, kingSq, mover.Opposite()) {
			legal = append(legal, m)
		}
		pos.UndoMove(rev)
	}
	return legal
}

// InCheck reports whether the side to move's king is currently attacked.
func InCheck(pos *position.Position) bool {
	bitboard.InitMagics()
	kingSq := pos.Board.Pieces[bitboard.MakePiece(bitboard.King, pos.SideToMove)].First()
	return IsAttacked(&pos.Board, kingSq, pos.SideToMove.Opposite())
}

// IsAttacked reports whether sq is attacked by any piece of color by.
func IsAttacked(b *position.Board, sq bitboard.Square, by bitboard.Color) bool {
	occ := b.OccupiedAll

	if bitboard.PawnAttacks(sq, by.Opposite())&b.Pieces[bitboard.MakePiece(bitboard.Pawn, by)] != 0 {
		return true
	}
	if bitboard.KnightAttacks(sq)&b.Pieces[bitboard.MakePiece(bitboard.Knight, by)] != 0 {
		return true
	}
	if bitboard.KingAttacks(sq)&b.Pieces[bitboard.MakePiece(bitboard.King, by)] != 0 {
		return true
	}
	diagonal := b.Pieces[bitboard.MakePiece(bitboard.Bishop, by)] | b.Pieces[bitboard.MakePiece(bitboard.Queen, by)]
	if bitboard.BishopAttacks(sq, occ)&diagonal != 0 {
		return true
	}
	straight := b.Pieces[bitboard.MakePiece(bitboard.Rook, by)] | b.Pieces[bitboard.MakePiece(bitboard.Queen, by)]
	if bitboard.RookAttacks(sq, occ)&straight != 0 {
		return true
	}
	return false
}

var promotionKinds = [4]bitboard.PromotionKind{
	bitboard.PromoKnight, bitboard.PromoBishop, bitboard.PromoRook, bitboard.PromoQueen,
}

func genPawnMoves(pos *position.Position, moves []bitboard.Move) []bitboard.Move {
	side := pos.SideToMove
	pawns := pos.Board.Pieces[bitboard.MakePiece(bitboard.Pawn, side)]
	occAll := pos.Board.OccupiedAll
	enemy := pos.Board.Occupied[side.Opposite()]

	var promoRank bitboard.Bitboard
	var startRank bitboard.Bitboard
	var push func(bitboard.Bitboard) bitboard.Bitboard
	var back func(bitboard.Square) bitboard.Square
	if side == bitboard.White {
		promoRank = bitboard.Bitboard(0xFF) << 56
		startRank = bitboard.Bitboard(0xFF) << 8
		push = bitboard.ShiftNorth
		back = func(s bitboard.Square) bitboard.Square { return s - 8 }
	} else {
		promoRank = bitboard.Bitboard(0xFF)
		startRank = bitboard.Bitboard(0xFF) << 48
		push = bitboard.ShiftSouth
		back = func(s bitboard.Square) bitboard.Square { return s + 8 }
	}

	singlePush := push(pawns) &^ occAll
	for t := singlePush; t != 0; {
		to := t.PopFirst()
		from := back(to)
		moves = appendPawnMove(moves, from, to, bitboard.Normal, promoRank)
	}

	doublePush := push(singlePush&push(pawns&startRank)) &^ occAll
	for t := doublePush; t != 0; {
		to := t.PopFirst()
		from := back(back(to))
		moves = append(moves, bitboard.NewMove(from, to, bitboard.Normal))
	}

	for fromBB := pawns; fromBB != 0; {
		from := fromBB.PopFirst()
		attacks := bitboard.PawnAttacks(from, side) & enemy
		for t := attacks; t != 0; {
			to := t.PopFirst()
			moves = appendPawnMove(moves, from, to, bitboard.Normal, promoRank)
		}
		if pos.EPSquare != bitboard.SquareNone && bitboard.PawnAttacks(from, side)&pos.EPSquare.Bit() != 0 {
			moves = append(moves, bitboard.NewMove(from, pos.EPSquare, bitboard.EnPassant))
		}
	}

	return moves
}

func appendPawnMove(moves []bitboard.Move, from, to bitboard.Square, mt bitboard.MoveType, promoRank bitboard.Bitboard) []bitboard.Move {
	if to.Bit()&promoRank != 0 {
		for _, pk := range promotionKinds {
			moves = append(moves, bitboard.NewPromotionMove(from, to, pk))
		}
		return moves
	}
	return append(moves, bitboard.NewMove(from, to, mt))
}

func genKnightMoves(pos *position.Position, moves []bitboard.Move) []bitboard.Move {
	side := pos.SideToMove
	own := pos.Board.Occupied[side]
	for fromBB := pos.Board.Pieces[bitboard.MakePiece(bitboard.Knight, side)]; fromBB != 0; {
		from := fromBB.PopFirst()
		for t := bitboard.KnightAttacks(from) &^ own; t != 0; {
			to := t.PopFirst()
			moves = append(moves, bitboard.NewMove(from, to, bitboard.Normal))
		}
	}
	return moves
}

func genSliderMoves(pos *position.Position, kind bitboard.PieceKind, moves []bitboard.Move) []bitboard.Move {
	side := pos.SideToMove
	own := pos.Board.Occupied[side]
	occ := pos.Board.OccupiedAll
	for fromBB := pos.Board.Pieces[bitboard.MakePiece(kind, side)]; fromBB != 0; {
		from := fromBB.PopFirst()
		for t := bitboard.Attacks(kind, from, occ) &^ own; t != 0; {
			to := t.PopFirst()
			moves = append(moves, bitboard.NewMove(from, to, bitboard.Normal))
		}
	}
	return moves
}

func genKingMoves(pos *position.Position, moves []bitboard.Move) []bitboard.Move {
	side := pos.SideToMove
	from := pos.Board.Pieces[bitboard.MakePiece(bitboard.King, side)].First()
	own := pos.Board.Occupied[side]
	for t := bitboard.KingAttacks(from) &^ own; t != 0; {
		to := t.PopFirst()
		moves = append(moves, bitboard.NewMove(from, to, bitboard.Normal))
	}

	var kingSide, queenSide bitboard.CastlingRights
	var kingSideTo, queenSideTo bitboard.Square
	if side == bitboard.White {
		kingSide, queenSide = bitboard.WhiteKingSide, bitboard.WhiteQueenSide
		kingSideTo, queenSideTo = 6, 2
	} else {
		kingSide, queenSide = bitboard.BlackKingSide, bitboard.BlackQueenSide
		kingSideTo, queenSideTo = 62, 58
	}

	occ := pos.Board.OccupiedAll
	enemy := side.Opposite()
	if pos.CastlingRights&kingSide != 0 &&
		bitboard.CastlingEmptyPath(kingSide)&occ == 0 &&
		!anyAttacked(pos, bitboard.CastlingAttackedPath(kingSide), enemy) {
		moves = append(moves, bitboard.NewMove(from, kingSideTo, bitboard.Castle))
	}
	if pos.CastlingRights&queenSide != 0 &&
		bitboard.CastlingEmptyPath(queenSide)&occ == 0 &&
		!anyAttacked(pos, bitboard.CastlingAttackedPath(queenSide), enemy) {
		moves = append(moves, bitboard.NewMove(from, queenSideTo, bitboard.Castle))
	}

	return moves
}

func anyAttacked(pos *position.Position, squares bitboard.Bitboard, by bitboard.Color) bool {
	for s := squares; s != 0; {
		sq := s.PopFirst()
		if IsAttacked(&pos.Board, sq, by) {
			return true
		}
	}
	return false
}

// pieceOrderRank gives the canonical piece-kind ordering used for the
// BCGN level-1 move index: pawns, knights, bishops, rooks, kings, queens.
func pieceOrderRank(pos *position.Position, m bitboard.Move) int {
	kind := pos.Board.PieceAt(m.From()).Kind()
	switch kind {
	case bitboard.Pawn:
		return 0
	case bitboard.Knight:
		return 1
	case bitboard.Bishop:
		return 2
	case bitboard.Rook:
		return 3
	case bitboard.King:
		return 4
	default: // Queen
		return 5
	}
}

// CanonicalMoves returns Generate(pos)'s legal moves sorted into a fixed,
// deterministic order: piece kind (pawns, knights, bishops, rooks, kings,
// queens), then from-square, then to-square, then promotion kind. The
// BCGN codec's level-1 move index is this slice's position, not a
// hand-rolled per-square enumeration — any deterministic total order over
// the same legal-move set satisfies the index/move bijection the format
// requires, and reusing Generate keeps the codec from re-deriving move
// geometry that already lives here.
func CanonicalMoves(pos *position.Position) []bitboard.Move {
	moves := Generate(pos)
	sortMoves(pos, moves)
	return moves
}

func sortMoves(pos *position.Position, moves []bitboard.Move) {
	// Insertion sort: move lists are short (legal chess positions rarely
	// exceed a few dozen moves), and this keeps the comparison pure
	// without pulling in sort.Slice's closure-based interface here.
	for i := 1; i < len(moves); i++ {
		m := moves[i]
		j := i - 1
		for j >= 0 && moveLess(pos, m, moves[j]) {
			moves[j+1] = moves[j]
			j--
		}
		moves[j+1] = m
	}
}

func moveLess(pos *position.Position, a, b bitboard.Move) bool {
	ra, rb := pieceOrderRank(pos, a), pieceOrderRank(pos, b)
	if ra != rb {
		return ra < rb
	}
	if a.From() != b.From() {
		return a.From() < b.From()
	}
	if a.To() != b.To() {
		return a.To() < b.To()
	}
	return a.Promotion() < b.Promotion()
}
