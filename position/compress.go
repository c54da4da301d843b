package position

import (
	"github.com/cespare/xxhash/v2"
	"github.com/treepeck/chesspos/bitboard"
)

// CompressedPosition is the 24-byte on-disk encoding of a Position: an
// 8-byte occupancy bitboard followed by 16 bytes holding one 4-bit nibble
// per occupied square, in LSB-first square order, packed low nibble first.
//
// Nibble values:
//
//	0-11  base piece ordinal (bitboard.Piece numbering)
//	12    a pawn that is the en-passant-target subject (the pawn the ep
//	      square's capture would remove)
//	13/14 a white/black rook standing on a corner square whose castling
//	      right is still present
//	15    the black king, when side-to-move is black
//
// Exactly one of 13/14 is emitted per corner when the rook is home and the
// right exists; 15 is emitted for the black king iff black is to move (a
// black-to-move position with no black king cannot occur in legal chess,
// so this single overload also carries the side-to-move bit — see
// DESIGN.md's Open Question note).
type CompressedPosition [24]byte

// Compress encodes p into its 24-byte on-disk form.
func (p Position) Compress() CompressedPosition {
	var c CompressedPosition

	occ := p.Board.OccupiedAll
	for i := 0; i < 8; i++ {
		c[i] = byte(occ >> (8 * i))
	}

	epSubject := p.enPassantSubjectSquare()

	var nibbleIndex int
	scan := occ
	for scan != 0 {
		sq := scan.PopFirst()
		nibble := p.nibbleFor(sq, epSubject)

		byteIdx := 8 + nibbleIndex/2
		if nibbleIndex%2 == 0 {
			c[byteIdx] = (c[byteIdx] &^ 0x0F) | (nibble & 0x0F)
		} else {
			c[byteIdx] = (c[byteIdx] &^ 0xF0) | ((nibble & 0x0F) << 4)
		}
		nibbleIndex++
	}

	return c
}

// enPassantSubjectSquare returns the square of the pawn that a legal
// en-passant capture at p.EPSquare would remove, or bitboard.SquareNone.
func (p Position) enPassantSubjectSquare() bitboard.Square {
	if p.EPSquare == bitboard.SquareNone {
		return bitboard.SquareNone
	}
	// The pawn that just double-pushed belongs to the side that is NOT
	// to move (it moved on the previous ply).
	if p.SideToMove == bitboard.White {
		return p.EPSquare - 8
	}
	return p.EPSquare + 8
}

func (p Position) nibbleFor(sq bitboard.Square, epSubject bitboard.Square) byte {
	piece := p.Board.PieceAt(sq)

	if piece.Kind() == bitboard.Pawn && sq == epSubject {
		return 12
	}

	if piece.Kind() == bitboard.Rook {
		switch sq {
		case 0: // a1
			if piece.Color() == bitboard.White && p.CastlingRights&bitboard.WhiteQueenSide != 0 {
				return 13
			}
		case 7: // h1
			if piece.Color() == bitboard.White && p.CastlingRights&bitboard.WhiteKingSide != 0 {
				return 13
			}
		case 56: // a8
			if piece.Color() == bitboard.Black && p.CastlingRights&bitboard.BlackQueenSide != 0 {
				return 14
			}
		case 63: // h8
			if piece.Color() == bitboard.Black && p.CastlingRights&bitboard.BlackKingSide != 0 {
				return 14
			}
		}
	}

	if piece == bitboard.BlackKing && p.SideToMove == bitboard.Black {
		return 15
	}

	return byte(piece)
}

// rookCornerRight maps a rook-home corner square to the castling right it
// guards, used by Decompress to restore rights from nibbles 13/14.
var rookCornerRight = map[bitboard.Square]bitboard.CastlingRights{
	0:  bitboard.WhiteQueenSide,
	7:  bitboard.WhiteKingSide,
	56: bitboard.BlackQueenSide,
	63: bitboard.BlackKingSide,
}

// Decompress is the exact inverse of Compress: for all legal positions,
// Position.Compress().Decompress() reproduces (board, side-to-move,
// ep-square, castling-rights) bit-for-bit.
func (c CompressedPosition) Decompress() Position {
	var p Position
	for i := range p.Board.Squares {
		p.Board.Squares[i] = bitboard.PieceNone
	}
	p.EPSquare = bitboard.SquareNone
	p.SideToMove = bitboard.White

	var occ bitboard.Bitboard
	for i := 0; i < 8; i++ {
		occ |= bitboard.Bitboard(c[i]) << (8 * i)
	}

	type pending struct {
		sq     bitboard.Square
		nibble byte
	}
	var epSubject bitboard.Square = bitboard.SquareNone
	var entries []pending

	var nibbleIndex int
	scan := occ
	for scan != 0 {
		sq := scan.PopFirst()
		byteIdx := 8 + nibbleIndex/2
		var nibble byte
		if nibbleIndex%2 == 0 {
			nibble = c[byteIdx] & 0x0F
		} else {
			nibble = (c[byteIdx] >> 4) & 0x0F
		}
		entries = append(entries, pending{sq, nibble})

		if nibble == 15 {
			p.SideToMove = bitboard.Black
		}
		nibbleIndex++
	}

	for _, e := range entries {
		switch e.nibble {
		case 12:
			epSubject = e.sq
			// Color resolved below once SideToMove is finalized; pawn
			// color is always the opposite of SideToMove.
		case 13:
			p.CastlingRights |= rookCornerRight[e.sq]
		case 14:
			p.CastlingRights |= rookCornerRight[e.sq]
		}
	}

	for _, e := range entries {
		var piece bitboard.Piece
		switch e.nibble {
		case 12:
			piece = bitboard.MakePiece(bitboard.Pawn, p.SideToMove.Opposite())
		case 13:
			piece = bitboard.WhiteRook
		case 14:
			piece = bitboard.BlackRook
		case 15:
			piece = bitboard.BlackKing
		default:
			piece = bitboard.Piece(e.nibble)
		}
		p.Board.place(piece, e.sq)
	}

	if epSubject != bitboard.SquareNone {
		subjectColor := p.Board.PieceAt(epSubject).Color()
		if subjectColor == bitboard.White {
			p.EPSquare = epSubject - 8
		} else {
			p.EPSquare = epSubject + 8
		}
	}

	return p
}

// Signature is the 128-bit index key derived from a CompressedPosition: two
// independently salted 64-bit xxHash passes over the raw 24 bytes, packed
// big-endian (hi || lo). It distinguishes positions differing only in
// side-to-move, en-passant, or castling rights, since all three are baked
// into the CompressedPosition bytes it is computed from.
type Signature [16]byte

const (
	sigSeedHi uint64 = 0x9E3779B97F4A7C15
	sigSeedLo uint64 = 0xC2B2AE3D27D4EB4F
)

// Sign computes the Signature of a CompressedPosition.
func (c CompressedPosition) Sign() Signature {
	var sig Signature

	hi := xxhash.NewWithSeed(sigSeedHi)
	hi.Write(c[:])
	hiSum := hi.Sum64()

	lo := xxhash.NewWithSeed(sigSeedLo)
	lo.Write(c[:])
	loSum := lo.Sum64()

	for i := 0; i < 8; i++ {
		sig[i] = byte(hiSum >> (8 * (7 - i)))
		sig[8+i] = byte(loSum >> (8 * (7 - i)))
	}
	return sig
}

// Signature is a convenience wrapper around Compress().Sign().
func (p Position) Signature() Signature { return p.Compress().Sign() }

// Less reports whether sig orders strictly before other, using the raw
// 16-byte big-endian representation. PartitionFile records are kept
// non-decreasing under this order.
func (sig Signature) Less(other Signature) bool {
	for i := 0; i < 16; i++ {
		if sig[i] != other[i] {
			return sig[i] < other[i]
		}
	}
	return false
}

// Equal reports byte-for-byte equality.
func (sig Signature) Equal(other Signature) bool { return sig == other }

// Uint128Hi / Uint128Lo expose the signature as two big-endian uint64
// halves. The interpolation search uses Uint128Hi to project a Signature
// onto a numeric value; the database's bucket choice uses Uint128Lo.
func (sig Signature) Uint128Hi() uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sig[i])
	}
	return v
}

func (sig Signature) Uint128Lo() uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sig[8+i])
	}
	return v
}
