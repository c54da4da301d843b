package position

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/bitboard"
)

// StartFEN is the standard initial chess position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var fenPieceLetters = map[byte]bitboard.Piece{
	'P': bitboard.WhitePawn, 'N': bitboard.WhiteKnight, 'B': bitboard.WhiteBishop,
	'R': bitboard.WhiteRook, 'Q': bitboard.WhiteQueen, 'K': bitboard.WhiteKing,
	'p': bitboard.BlackPawn, 'n': bitboard.BlackKnight, 'b': bitboard.BlackBishop,
	'r': bitboard.BlackRook, 'q': bitboard.BlackQueen, 'k': bitboard.BlackKing,
}

// FromFEN parses a standard Forsyth-Edwards Notation string. It returns an
// error (rather than panicking) on malformed input, per spec.md §4.2.
func FromFEN(fen string) (Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return Position{}, errors.Newf("position: malformed FEN %q: need at least 4 fields, got %d", fen, len(fields))
	}
	// Halfmove/fullmove counters are accepted but not retained on Position
	// (spec.md §3 keeps Position to board + side-to-move + castling + ep);
	// callers that need them track them alongside, as the header store does
	// for ply count.
	for len(fields) < 6 {
		fields = append(fields, "0")
	}

	var p Position
	for i := range p.Board.Squares {
		p.Board.Squares[i] = bitboard.PieceNone
	}

	rank, file := 7, 0
	for _, c := range []byte(fields[0]) {
		switch {
		case c == '/':
			if file != 8 {
				return Position{}, errors.Newf("position: malformed FEN %q: rank %d has %d files", fen, rank, file)
			}
			rank--
			file = 0
		case c >= '1' && c <= '8':
			file += int(c - '0')
		default:
			piece, ok := fenPieceLetters[c]
			if !ok {
				return Position{}, errors.Newf("position: malformed FEN %q: unknown piece letter %q", fen, c)
			}
			if rank < 0 || file > 7 {
				return Position{}, errors.Newf("position: malformed FEN %q: piece placement overflows the board", fen)
			}
			sq := bitboard.NewSquare(bitboard.File(file), bitboard.Rank(rank))
			p.Board.place(piece, sq)
			file++
		}
	}
	if rank != 0 || file != 8 {
		return Position{}, errors.Newf("position: malformed FEN %q: piece placement does not cover 8 ranks", fen)
	}

	switch fields[1] {
	case "w":
		p.SideToMove = bitboard.White
	case "b":
		p.SideToMove = bitboard.Black
	default:
		return Position{}, errors.Newf("position: malformed FEN %q: bad active color %q", fen, fields[1])
	}

	if fields[2] != "-" {
		for _, c := range []byte(fields[2]) {
			switch c {
			case 'K':
				p.CastlingRights |= bitboard.WhiteKingSide
			case 'Q':
				p.CastlingRights |= bitboard.WhiteQueenSide
			case 'k':
				p.CastlingRights |= bitboard.BlackKingSide
			case 'q':
				p.CastlingRights |= bitboard.BlackQueenSide
			default:
				return Position{}, errors.Newf("position: malformed FEN %q: bad castling field %q", fen, fields[2])
			}
		}
	}

	if fields[3] == "-" {
		p.EPSquare = bitboard.SquareNone
	} else {
		if len(fields[3]) != 2 {
			return Position{}, errors.Newf("position: malformed FEN %q: bad en-passant field %q", fen, fields[3])
		}
		f := int(fields[3][0] - 'a')
		r := int(fields[3][1] - '1')
		if f < 0 || f > 7 || r < 0 || r > 7 {
			return Position{}, errors.Newf("position: malformed FEN %q: bad en-passant square %q", fen, fields[3])
		}
		p.EPSquare = bitboard.NewSquare(bitboard.File(f), bitboard.Rank(r))
	}

	if _, err := strconv.Atoi(fields[4]); err != nil {
		return Position{}, errors.Wrapf(err, "position: malformed FEN %q: bad halfmove counter", fen)
	}
	if _, err := strconv.Atoi(fields[5]); err != nil {
		return Position{}, errors.Wrapf(err, "position: malformed FEN %q: bad fullmove counter", fen)
	}

	return p, nil
}

// FEN serializes p into a Forsyth-Edwards Notation string. Since Position
// does not retain the halfmove/fullmove counters (see FromFEN), they are
// always emitted as "0 1"; callers that round-trip full game state through FEN
// carry those counters alongside (the header store's ply count serves the
// same role for this database).
func (p Position) FEN() string {
	var b strings.Builder
	b.Grow(72)

	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := bitboard.NewSquare(bitboard.File(file), bitboard.Rank(rank))
			piece := p.Board.PieceAt(sq)
			if piece == bitboard.PieceNone {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteByte('0' + byte(empty))
				empty = 0
			}
			b.WriteByte(piece.Letter())
		}
		if empty > 0 {
			b.WriteByte('0' + byte(empty))
		}
		if rank != 0 {
			b.WriteByte('/')
		}
	}

	b.WriteByte(' ')
	if p.SideToMove == bitboard.White {
		b.WriteByte('w')
	} else {
		b.WriteByte('b')
	}

	b.WriteByte(' ')
	b.WriteString(p.CastlingRights.String())

	b.WriteByte(' ')
	b.WriteString(p.EPSquare.String())

	b.WriteString(" 0 1")

	return b.String()
}
