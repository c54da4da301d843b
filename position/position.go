// Package position implements the full legal chess position: board state,
// side to move, castling rights, and the en-passant target, together with
// do/undo-move, FEN I/O, and the compressed/signature encodings the
// position index is keyed on.
package position

import (
	"github.com/treepeck/chesspos/bitboard"
)

// Board holds per-square and per-piece-type/per-color bitboards, kept
// mutually consistent by Position's move application.
type Board struct {
	// Pieces indexes directly by bitboard.Piece.
	Pieces [12]bitboard.Bitboard
	// Squares gives O(1) piece lookup by square, avoiding a 12-bitboard
	// scan on every move-generation probe.
	Squares [64]bitboard.Piece
	// Occupied[White]/Occupied[Black] are the per-color union;
	// OccupiedAll is the union of both.
	Occupied    [2]bitboard.Bitboard
	OccupiedAll bitboard.Bitboard
}

// PieceAt returns the piece on sq, or bitboard.PieceNone if empty.
func (b *Board) PieceAt(sq bitboard.Square) bitboard.Piece { return b.Squares[sq] }

func (b *Board) place(p bitboard.Piece, sq bitboard.Square) {
	bit := sq.Bit()
	b.Pieces[p] |= bit
	b.Occupied[p.Color()] |= bit
	b.OccupiedAll |= bit
	b.Squares[sq] = p
}

func (b *Board) remove(p bitboard.Piece, sq bitboard.Square) {
	bit := sq.Bit()
	b.Pieces[p] &^= bit
	b.Occupied[p.Color()] &^= bit
	b.OccupiedAll &^= bit
	b.Squares[sq] = bitboard.PieceNone
}

// Position is a complete, self-describing chess position: the board plus
// everything needed to determine legality and to distinguish otherwise
// identical piece placements (side to move, castling rights, en-passant
// target).
type Position struct {
	Board          Board
	SideToMove     bitboard.Color
	CastlingRights bitboard.CastlingRights
	EPSquare       bitboard.Square // bitboard.SquareNone if none
}

// New returns the standard starting position.
func New() Position {
	p, err := FromFEN(StartFEN)
	if err != nil {
		// StartFEN is a compile-time constant; a parse failure here is a
		// bug in this package, not bad input.
		panic("position: StartFEN failed to parse: " + err.Error())
	}
	return p
}

// ReverseMove carries exactly the information DoMove discards, so that
// UndoMove can restore the prior Position bit-for-bit.
type ReverseMove struct {
	Move              bitboard.Move
	MovedPiece        bitboard.Piece
	CapturedPiece     bitboard.Piece  // PieceNone if the move was not a capture
	CapturedSquare    bitboard.Square // differs from Move.To() only for en-passant
	PriorEPSquare     bitboard.Square
	PriorCastlingRights bitboard.CastlingRights
}

// rookCastleSquares gives, for each king destination square of a Castle
// move (To is the king's destination, not the rook's square), the rook's
// from/to squares.
var rookCastleSquares = map[bitboard.Square][2]bitboard.Square{
	6:  {7, 5},   // white O-O:  h1 -> f1
	2:  {0, 3},   // white O-O-O: a1 -> d1
	62: {63, 61}, // black O-O:  h8 -> f8
	58: {56, 59}, // black O-O-O: a8 -> d8
}

// DoMove applies m to p in place and returns the information needed to
// reverse it exactly via UndoMove. The caller must ensure m is at least
// pseudo-legal for p; DoMove does not validate legality.
func (p *Position) DoMove(m bitboard.Move) ReverseMove {
	from, to := m.From(), m.To()
	moved := p.Board.PieceAt(from)

	rev := ReverseMove{
		Move:                m,
		MovedPiece:          moved,
		CapturedPiece:       bitboard.PieceNone,
		CapturedSquare:      to,
		PriorEPSquare:       p.EPSquare,
		PriorCastlingRights: p.CastlingRights,
	}

	p.Board.remove(moved, from)

	switch m.Type() {
	case bitboard.Normal:
		if captured := p.Board.PieceAt(to); captured != bitboard.PieceNone {
			rev.CapturedPiece = captured
			p.Board.remove(captured, to)
		}
		p.Board.place(moved, to)

	case bitboard.EnPassant:
		var capSq bitboard.Square
		if p.SideToMove == bitboard.White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		rev.CapturedSquare = capSq
		rev.CapturedPiece = p.Board.PieceAt(capSq)
		p.Board.remove(rev.CapturedPiece, capSq)
		p.Board.place(moved, to)

	case bitboard.Castle:
		p.Board.place(moved, to)
		rookSquares := rookCastleSquares[to]
		rook := p.Board.PieceAt(rookSquares[0])
		p.Board.remove(rook, rookSquares[0])
		p.Board.place(rook, rookSquares[1])

	case bitboard.Promotion:
		if captured := p.Board.PieceAt(to); captured != bitboard.PieceNone {
			rev.CapturedPiece = captured
			p.Board.remove(captured, to)
		}
		promoted := bitboard.MakePiece(promotionKindToKind(m.Promotion()), p.SideToMove)
		p.Board.place(promoted, to)
	}

	p.updateCastlingRights(moved, from, to, rev.CapturedPiece, rev.CapturedSquare)
	p.updateEPSquare(moved, from, to)
	p.SideToMove = p.SideToMove.Opposite()

	return rev
}

// UndoMove restores the position to the state it had before rev.Move was
// played. DoMove followed by UndoMove with its returned ReverseMove is the
// identity on Position, bit-for-bit.
func (p *Position) UndoMove(rev ReverseMove) {
	p.SideToMove = p.SideToMove.Opposite()
	p.EPSquare = rev.PriorEPSquare
	p.CastlingRights = rev.PriorCastlingRights

	from, to := rev.Move.From(), rev.Move.To()

	switch rev.Move.Type() {
	case bitboard.Normal:
		p.Board.remove(rev.MovedPiece, to)
		p.Board.place(rev.MovedPiece, from)
		if rev.CapturedPiece != bitboard.PieceNone {
			p.Board.place(rev.CapturedPiece, to)
		}

	case bitboard.EnPassant:
		p.Board.remove(rev.MovedPiece, to)
		p.Board.place(rev.MovedPiece, from)
		p.Board.place(rev.CapturedPiece, rev.CapturedSquare)

	case bitboard.Castle:
		rookSquares := rookCastleSquares[to]
		rook := p.Board.PieceAt(rookSquares[1])
		p.Board.remove(rook, rookSquares[1])
		p.Board.place(rook, rookSquares[0])
		p.Board.remove(rev.MovedPiece, to)
		p.Board.place(rev.MovedPiece, from)

	case bitboard.Promotion:
		promoted := p.Board.PieceAt(to)
		p.Board.remove(promoted, to)
		p.Board.place(rev.MovedPiece, from)
		if rev.CapturedPiece != bitboard.PieceNone {
			p.Board.place(rev.CapturedPiece, to)
		}
	}
}

func promotionKindToKind(pk bitboard.PromotionKind) bitboard.PieceKind {
	switch pk {
	case bitboard.PromoKnight:
		return bitboard.Knight
	case bitboard.PromoBishop:
		return bitboard.Bishop
	case bitboard.PromoRook:
		return bitboard.Rook
	default:
		return bitboard.Queen
	}
}

// rookHomeRight maps a rook's home square to the single castling right it
// guards, for both "this rook moved" and "this rook got captured" cases.
var rookHomeRight = map[bitboard.Square]bitboard.CastlingRights{
	7:  bitboard.WhiteKingSide,
	0:  bitboard.WhiteQueenSide,
	63: bitboard.BlackKingSide,
	56: bitboard.BlackQueenSide,
}

// updateCastlingRights clears rights invalidated by a king move, a move
// off a rook's home square, or a capture landing on the opponent's rook
// home square.
func (p *Position) updateCastlingRights(moved bitboard.Piece, from, to bitboard.Square, captured bitboard.Piece, capturedSquare bitboard.Square) {
	switch moved.Kind() {
	case bitboard.King:
		if moved.Color() == bitboard.White {
			p.CastlingRights &^= bitboard.WhiteKingSide | bitboard.WhiteQueenSide
		} else {
			p.CastlingRights &^= bitboard.BlackKingSide | bitboard.BlackQueenSide
		}
	case bitboard.Rook:
		if right, ok := rookHomeRight[from]; ok {
			p.CastlingRights &^= right
		}
	}

	if captured != bitboard.PieceNone {
		if right, ok := rookHomeRight[capturedSquare]; ok {
			p.CastlingRights &^= right
		}
	}
}

// updateEPSquare sets EPSquare when moved is a pawn double-push that lands
// next to an enemy pawn able to capture onto the skipped square, else
// clears it (the en-passant right is only ever live for the one reply, and
// only when it could actually be exercised).
func (p *Position) updateEPSquare(moved bitboard.Piece, from, to bitboard.Square) {
	p.EPSquare = bitboard.SquareNone

	if moved.Kind() != bitboard.Pawn {
		return
	}
	diff := int(to) - int(from)
	if diff != 16 && diff != -16 {
		return
	}

	var epSquare bitboard.Square
	if diff == 16 {
		epSquare = from + 8
	} else {
		epSquare = from - 8
	}

	enemyPawns := p.Board.Pieces[bitboard.MakePiece(bitboard.Pawn, moved.Color().Opposite())]
	if bitboard.PawnAttacks(epSquare, moved.Color())&enemyPawns != 0 {
		p.EPSquare = epSquare
	}
}
