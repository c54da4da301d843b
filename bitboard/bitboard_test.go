package bitboard

import "testing"

func TestSquareFileRank(t *testing.T) {
	cases := []struct {
		sq   Square
		file File
		rank Rank
	}{
		{0, 0, 0},
		{7, 7, 0},
		{8, 0, 1},
		{63, 7, 7},
	}
	for _, c := range cases {
		if c.sq.File() != c.file || c.sq.Rank() != c.rank {
			t.Fatalf("square %d: got file=%d rank=%d, want file=%d rank=%d",
				c.sq, c.sq.File(), c.sq.Rank(), c.file, c.rank)
		}
		if got := NewSquare(c.file, c.rank); got != c.sq {
			t.Fatalf("NewSquare(%d,%d) = %d, want %d", c.file, c.rank, got, c.sq)
		}
	}
}

func TestSquareString(t *testing.T) {
	if got := Square(0).String(); got != "a1" {
		t.Fatalf("Square(0).String() = %q, want a1", got)
	}
	if got := Square(63).String(); got != "h8" {
		t.Fatalf("Square(63).String() = %q, want h8", got)
	}
	if got := SquareNone.String(); got != "-" {
		t.Fatalf("SquareNone.String() = %q, want -", got)
	}
}

func TestBitboardPopFirst(t *testing.T) {
	b := Bitboard(0)
	b |= Square(3).Bit()
	b |= Square(10).Bit()
	b |= Square(63).Bit()

	if b.PopCount() != 3 {
		t.Fatalf("PopCount() = %d, want 3", b.PopCount())
	}

	var got []Square
	for b != 0 {
		got = append(got, b.PopFirst())
	}
	want := []Square{3, 10, 63}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMoveRoundTrip(t *testing.T) {
	m := NewMove(Square(12), Square(28), Normal)
	if m.From() != 12 || m.To() != 28 || m.Type() != Normal {
		t.Fatalf("NewMove round trip failed: from=%d to=%d type=%d", m.From(), m.To(), m.Type())
	}

	pm := NewPromotionMove(Square(52), Square(60), PromoRook)
	if pm.From() != 52 || pm.To() != 60 || pm.Type() != Promotion || pm.Promotion() != PromoRook {
		t.Fatalf("NewPromotionMove round trip failed: %+v", pm)
	}
}

func TestCastlingRightsString(t *testing.T) {
	cr := WhiteKingSide | BlackQueenSide
	if got := cr.String(); got != "Kq" {
		t.Fatalf("CastlingRights.String() = %q, want Kq", got)
	}
	if got := CastlingRights(0).String(); got != "-" {
		t.Fatalf("empty CastlingRights.String() = %q, want -", got)
	}
}

// TestMagicAttacksMatchClassical cross-checks every magic-indexed slider
// attack against the classical ray generator for a sample of occupancies
// per square, per spec.md §4.1's precondition that magic tables are
// verified this way.
func TestMagicAttacksMatchClassical(t *testing.T) {
	InitMagics()

	occupancies := []Bitboard{
		0,
		0xFFFF00000000FFFF, // both back ranks + pawn ranks
		0x0000001818000000, // center clump
	}

	for sq := Square(0); sq < 64; sq++ {
		for _, occ := range occupancies {
			wantB := genBishopAttacksClassical(sq.Bit(), occ&bishopMask[sq])
			if got := BishopAttacks(sq, occ); got != wantB {
				t.Fatalf("bishop attacks mismatch at %s occ=%#v: got %#v want %#v",
					sq, occ, got, wantB)
			}
			wantR := genRookAttacksClassical(sq.Bit(), occ&rookMask[sq])
			if got := RookAttacks(sq, occ); got != wantR {
				t.Fatalf("rook attacks mismatch at %s occ=%#v: got %#v want %#v",
					sq, occ, got, wantR)
			}
		}
	}
}

func TestKnightAndKingAttacksCorners(t *testing.T) {
	InitMagics()
	if got := KnightAttacks(Square(0)).PopCount(); got != 2 {
		t.Fatalf("knight attacks from a1 = %d squares, want 2", got)
	}
	if got := KingAttacks(Square(0)).PopCount(); got != 3 {
		t.Fatalf("king attacks from a1 = %d squares, want 3", got)
	}
}
