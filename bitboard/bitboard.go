// Package bitboard implements the 64-bit board representation and the
// geometric primitives (squares, files, ranks, pieces, moves, castling
// rights) that every other package in the database builds on.
//
// Square ordering is A1=0, B1=1, ..., H8=63 (file-major, rank-minor):
// square = file + rank*8.
package bitboard

import (
	"fmt"
	"math/bits"
	"strings"
)

// Bitboard is a 64-bit set of squares; bit i set means square i is a member.
type Bitboard uint64

// Square is a board square in 0..63, or SquareNone as a sentinel.
type Square int8

// File is a board file in 0..7 (A..H).
type File int8

// Rank is a board rank in 0..7 (1..8).
type Rank int8

const (
	// SquareNone is the sentinel used where no square is meaningful
	// (e.g. no en-passant target).
	SquareNone Square = 64
)

// NewSquare builds a square from its file and rank.
func NewSquare(f File, r Rank) Square { return Square(int8(f) + int8(r)*8) }

// File returns the file the square lies on.
func (s Square) File() File { return File(s % 8) }

// Rank returns the rank the square lies on.
func (s Square) Rank() Rank { return Rank(s / 8) }

// Bit returns the singleton bitboard containing only this square.
func (s Square) Bit() Bitboard { return Bitboard(1) << uint(s) }

// String renders the square in algebraic notation, e.g. "e4".
func (s Square) String() string {
	if s == SquareNone {
		return "-"
	}
	return string([]byte{'a' + byte(s.File()), '1' + byte(s.Rank())})
}

// Color is one of the two sides.
type Color uint8

const (
	White Color = iota
	Black
)

// Opposite returns the other color.
func (c Color) Opposite() Color { return c ^ 1 }

// Piece is one of the 12 piece kinds, or PieceNone on an empty square.
type Piece int8

const (
	WhitePawn Piece = iota
	BlackPawn
	WhiteKnight
	BlackKnight
	WhiteBishop
	BlackBishop
	WhiteRook
	BlackRook
	WhiteQueen
	BlackQueen
	WhiteKing
	BlackKing
	PieceNone Piece = -1
)

// pieceLetters indexes directly by Piece for FEN / diagnostic rendering.
var pieceLetters = [12]byte{'P', 'p', 'N', 'n', 'B', 'b', 'R', 'r', 'Q', 'q', 'K', 'k'}

// Letter returns the FEN letter for the piece ('P'..'K', lowercase for black).
func (p Piece) Letter() byte {
	if p == PieceNone {
		return '.'
	}
	return pieceLetters[p]
}

// Color returns the piece's owner. PieceNone has no well-defined color.
func (p Piece) Color() Color { return Color(p & 1) }

// PieceKind identifies a piece type irrespective of color, used to index
// attack and move-index tables shared by both colors.
type PieceKind int8

const (
	Pawn PieceKind = iota
	Knight
	Bishop
	Rook
	Queen
	King
)

// Kind strips the color from a piece.
func (p Piece) Kind() PieceKind { return PieceKind(p / 2) }

// MakePiece builds a colored piece from a kind and a color.
func MakePiece(k PieceKind, c Color) Piece { return Piece(int(k)*2 + int(c)) }

// PromotionKind enumerates the four pieces a pawn can promote to, packed in
// 2 bits as spec'd by the on-disk Move encoding.
type PromotionKind uint8

const (
	PromoKnight PromotionKind = iota
	PromoBishop
	PromoRook
	PromoQueen
)

// MoveType distinguishes the four move shapes, packed in 2 bits.
type MoveType uint8

const (
	Normal MoveType = iota
	Promotion
	Castle
	EnPassant
)

// Move is a 16-bit packed chess move:
//
//	bits 0-5:   To square
//	bits 6-11:  From square
//	bits 12-13: MoveType
//	bits 14-15: PromotionKind (meaningful only if MoveType == Promotion)
//
// Castling is encoded as MoveType Castle with From=king square and
// To=the king's destination square (g1, c1, g8 or c8); it is not encoded
// as the king capturing its own rook. En-passant is encoded as the pawn
// moving to the empty en-passant square.
type Move uint16

// NewMove builds a non-promotion move.
func NewMove(from, to Square, mt MoveType) Move {
	return Move(uint16(to) | uint16(from)<<6 | uint16(mt)<<12)
}

// NewPromotionMove builds a promotion move.
func NewPromotionMove(from, to Square, promo PromotionKind) Move {
	return Move(uint16(to) | uint16(from)<<6 | uint16(Promotion)<<12 | uint16(promo)<<14)
}

func (m Move) To() Square            { return Square(m & 0x3F) }
func (m Move) From() Square          { return Square((m >> 6) & 0x3F) }
func (m Move) Type() MoveType        { return MoveType((m >> 12) & 0x3) }
func (m Move) Promotion() PromotionKind {
	return PromotionKind(m >> 14)
}

func (m Move) String() string {
	s := m.From().String() + m.To().String()
	if m.Type() == Promotion {
		s += string("nbrq"[m.Promotion()])
	}
	return s
}

// CastlingRights is a 4-bit flag set of remaining castling privileges.
type CastlingRights uint8

const (
	WhiteKingSide CastlingRights = 1 << iota
	WhiteQueenSide
	BlackKingSide
	BlackQueenSide
)

func (cr CastlingRights) String() string {
	if cr == 0 {
		return "-"
	}
	var b strings.Builder
	if cr&WhiteKingSide != 0 {
		b.WriteByte('K')
	}
	if cr&WhiteQueenSide != 0 {
		b.WriteByte('Q')
	}
	if cr&BlackKingSide != 0 {
		b.WriteByte('k')
	}
	if cr&BlackQueenSide != 0 {
		b.WriteByte('q')
	}
	return b.String()
}

// Union, Intersect, Without and Complement are kept as free functions rather
// than operators since Bitboard is a plain uint64 and Go has no operator
// overloading; callers may also just use &, |, &^ directly.

// Union returns the set union of a and b.
func Union(a, b Bitboard) Bitboard { return a | b }

// Intersect returns the set intersection of a and b.
func Intersect(a, b Bitboard) Bitboard { return a & b }

// Without returns a with every square of b removed.
func Without(a, b Bitboard) Bitboard { return a &^ b }

// Complement returns the 64-square complement of b.
func Complement(b Bitboard) Bitboard { return ^b }

// ShiftNorth etc. shift a bitboard by one square in a compass direction,
// masking off wraparound across board edges.
func ShiftNorth(b Bitboard) Bitboard { return b << 8 }
func ShiftSouth(b Bitboard) Bitboard { return b >> 8 }
func ShiftEast(b Bitboard) Bitboard  { return (b &^ fileH) << 1 }
func ShiftWest(b Bitboard) Bitboard  { return (b &^ fileA) >> 1 }

const (
	fileA Bitboard = 0x0101010101010101
	fileH Bitboard = fileA << 7
	rank1 Bitboard = 0xFF
	rank8 Bitboard = rank1 << 56
)

// PopCount returns the number of set squares.
func (b Bitboard) PopCount() int { return bits.OnesCount64(uint64(b)) }

// First returns the lowest-indexed set square, or SquareNone if b is empty.
func (b Bitboard) First() Square {
	if b == 0 {
		return SquareNone
	}
	return Square(bits.TrailingZeros64(uint64(b)))
}

// Last returns the highest-indexed set square, or SquareNone if b is empty.
func (b Bitboard) Last() Square {
	if b == 0 {
		return SquareNone
	}
	return Square(63 - bits.LeadingZeros64(uint64(b)))
}

// PopFirst removes and returns the lowest-indexed set square.
func (b *Bitboard) PopFirst() Square {
	sq := b.First()
	if sq != SquareNone {
		*b &= *b - 1
	}
	return sq
}

// String renders the bitboard as an 8x8 ASCII grid, rank 8 first. It exists
// purely for test failure output and debugging; nothing on a query or
// ingest hot path calls it.
func (b Bitboard) String() string {
	var s strings.Builder
	for r := 7; r >= 0; r-- {
		for f := 0; f < 8; f++ {
			if b&NewSquare(File(f), Rank(r)).Bit() != 0 {
				s.WriteByte('1')
			} else {
				s.WriteByte('.')
			}
			s.WriteByte(' ')
		}
		s.WriteByte('\n')
	}
	return s.String()
}

// GoString supports %#v in test failure messages.
func (b Bitboard) GoString() string { return fmt.Sprintf("Bitboard(0x%016X)", uint64(b)) }
