package position

import (
	"testing"

	"github.com/treepeck/chesspos/bitboard"
)

func TestNewIsStartPosition(t *testing.T) {
	p := New()
	if p.SideToMove != bitboard.White {
		t.Fatalf("side to move = %v, want White", p.SideToMove)
	}
	if p.CastlingRights != bitboard.WhiteKingSide|bitboard.WhiteQueenSide|bitboard.BlackKingSide|bitboard.BlackQueenSide {
		t.Fatalf("castling rights = %v, want all four", p.CastlingRights)
	}
	if p.EPSquare != bitboard.SquareNone {
		t.Fatalf("ep square = %v, want none", p.EPSquare)
	}
	if p.Board.OccupiedAll.PopCount() != 32 {
		t.Fatalf("occupied squares = %d, want 32", p.Board.OccupiedAll.PopCount())
	}
}

// doUndo applies m then immediately undoes it, and fails the test unless
// the position is restored bit-for-bit.
func doUndo(t *testing.T, p *Position, m bitboard.Move) {
	t.Helper()
	before := *p
	rev := p.DoMove(m)
	p.UndoMove(rev)
	if *p != before {
		t.Fatalf("DoMove/UndoMove(%s) is not the identity:\nbefore=%+v\nafter =%+v", m, before, *p)
	}
}

func TestDoUndoMoveNormal(t *testing.T) {
	p := New()
	// e2-e4 is encoded as a plain Normal move at this layer; the pawn
	// double-push special-casing lives in updateEPSquare, not in move
	// typing.
	m := bitboard.NewMove(bitboard.Square(12), bitboard.Square(28), bitboard.Normal)
	doUndo(t, &p, m)
}

func TestDoUndoMoveCapture(t *testing.T) {
	p, err := FromFEN("rnbqkbnr/pppp1ppp/8/4p3/3P4/8/PPP1PPPP/RNBQKBNR w KQkq - 0 2")
	if err != nil {
		t.Fatal(err)
	}
	m := bitboard.NewMove(bitboard.Square(27), bitboard.Square(36), bitboard.Normal) // dxe5
	doUndo(t, &p, m)
}

func TestDoUndoMoveEnPassant(t *testing.T) {
	p, err := FromFEN("rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 3")
	if err != nil {
		t.Fatal(err)
	}
	m := bitboard.NewMove(bitboard.Square(27), bitboard.Square(20), bitboard.EnPassant) // dxe3
	doUndo(t, &p, m)
}

func TestDoUndoMoveCastle(t *testing.T) {
	p, err := FromFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m := bitboard.NewMove(bitboard.Square(4), bitboard.Square(6), bitboard.Castle) // white O-O
	doUndo(t, &p, m)
}

func TestDoUndoMovePromotion(t *testing.T) {
	p, err := FromFEN("8/P6k/8/8/8/8/7K/8 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m := bitboard.NewPromotionMove(bitboard.Square(48), bitboard.Square(56), bitboard.PromoQueen)
	doUndo(t, &p, m)
}

func TestUpdateEPSquareClearedWithoutAdjacentEnemyPawn(t *testing.T) {
	p := New()
	m := bitboard.NewMove(bitboard.Square(12), bitboard.Square(28), bitboard.Normal) // e2-e4
	p.DoMove(m)
	if p.EPSquare != bitboard.SquareNone {
		t.Fatalf("ep square = %v, want none: no enemy pawn attacks e3", p.EPSquare)
	}
}

func TestUpdateEPSquareSetWhenAttackedByEnemyPawn(t *testing.T) {
	// Black pawn on d4 attacks e3, the square white's double push skips.
	p, err := FromFEN("rnbqkbnr/ppp1pppp/8/8/3p4/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m := bitboard.NewMove(bitboard.Square(12), bitboard.Square(28), bitboard.Normal) // e2-e4
	p.DoMove(m)
	if p.EPSquare != bitboard.Square(20) {
		t.Fatalf("ep square = %v, want e3 (20)", p.EPSquare)
	}
}

func TestUpdateCastlingRightsClearsOnRookCapture(t *testing.T) {
	p, err := FromFEN("r3k2r/8/8/8/8/8/5n2/R3K2R b KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m := bitboard.NewMove(bitboard.Square(13), bitboard.Square(7), bitboard.Normal) // Nxh1
	p.DoMove(m)
	if p.CastlingRights&bitboard.WhiteKingSide != 0 {
		t.Fatalf("white kingside right survived a capture on h1: %v", p.CastlingRights)
	}
}
