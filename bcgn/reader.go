package bcgn

import (
	"bufio"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/bitboard"
	"github.com/treepeck/chesspos/position"
)

// Reader streams game entries out of a BCGN file in the order they were
// written.
type Reader struct {
	f      *os.File
	r      *bufio.Reader
	Header FileHeader
}

// Open reads the file header and returns a Reader positioned at the first
// game entry.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "bcgn: open %s", path)
	}
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(f, raw[:]); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "bcgn: read header of %s", path)
	}
	hdr, err := decodeFileHeader(raw)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "bcgn: %s", path)
	}
	return &Reader{f: f, r: bufio.NewReader(f), Header: hdr}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// UnparsedBcgnGame is one raw game entry; its accessors parse fields from
// the stored bytes on demand rather than eagerly.
type UnparsedBcgnGame struct {
	level      CompressionLevel
	headerLen  int
	header     []byte // header section only, excludes the 4-byte length prefix
	movetext   []byte
}

// Next reads and returns the next game entry, or io.EOF when the stream is
// exhausted.
func (r *Reader) Next() (*UnparsedBcgnGame, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r.r, lenPrefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Wrap(err, "bcgn: truncated game entry length prefix")
		}
		return nil, err // propagates io.EOF unwrapped
	}
	totalLen := int(lenPrefix[0])<<8 | int(lenPrefix[1])
	headerLen := int(lenPrefix[2])<<8 | int(lenPrefix[3])
	if headerLen > totalLen {
		return nil, errors.Newf("bcgn: header_length %d exceeds total_length %d", headerLen, totalLen)
	}

	body := make([]byte, totalLen)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, errors.Wrap(err, "bcgn: truncated game entry body")
	}

	return &UnparsedBcgnGame{
		level:     r.Header.CompressionLevel,
		headerLen: headerLen,
		header:    body[:headerLen],
		movetext:  body[headerLen:],
	}, nil
}

func (g *UnparsedBcgnGame) combined() uint16 {
	return uint16(g.header[0])<<8 | uint16(g.header[1])
}

// Ply returns the game's ply count.
func (g *UnparsedBcgnGame) Ply() int { return int(g.combined() >> 2) }

// Result returns the game's outcome.
func (g *UnparsedBcgnGame) Result() Result { return Result(g.combined() & 0x3) }

// Year, Month, Day return the game's date fields.
func (g *UnparsedBcgnGame) Year() int  { return int(g.header[2])<<8 | int(g.header[3]) }
func (g *UnparsedBcgnGame) Month() int { return int(g.header[4]) }
func (g *UnparsedBcgnGame) Day() int   { return int(g.header[5]) }

// WhiteElo, BlackElo return the players' ratings.
func (g *UnparsedBcgnGame) WhiteElo() uint16 {
	return uint16(g.header[6])<<8 | uint16(g.header[7])
}
func (g *UnparsedBcgnGame) BlackElo() uint16 {
	return uint16(g.header[8])<<8 | uint16(g.header[9])
}

// Round returns the game's round number.
func (g *UnparsedBcgnGame) Round() uint16 { return uint16(g.header[10])<<8 | uint16(g.header[11]) }

// ECOCategory, ECOIndex return the game's ECO classification.
func (g *UnparsedBcgnGame) ECOCategory() byte { return g.header[12] }
func (g *UnparsedBcgnGame) ECOIndex() byte    { return g.header[13] }

// Flags returns the raw flags byte.
func (g *UnparsedBcgnGame) Flags() uint8 { return g.header[14] }

func (g *UnparsedBcgnGame) hasCustomStart() bool {
	return g.Flags()&FlagHasCustomStartPosition != 0
}

func (g *UnparsedBcgnGame) hasTags() bool {
	return g.Flags()&FlagHasAdditionalTags != 0
}

// variableSection returns the header bytes after the fixed 15-byte prefix
// (combined_ply_and_result, date, elos, round, eco, flags), i.e. the
// optional start position followed by the four strings and optional tags.
func (g *UnparsedBcgnGame) variableSection() []byte { return g.header[15:] }

// StartPosition returns the game's custom start position, or the standard
// start position if FlagHasCustomStartPosition is not set.
func (g *UnparsedBcgnGame) StartPosition() (position.Position, error) {
	if !g.hasCustomStart() {
		return position.New(), nil
	}
	sec := g.variableSection()
	if len(sec) < 24 {
		return position.Position{}, errors.New("bcgn: truncated custom start position")
	}
	var cp position.CompressedPosition
	copy(cp[:], sec[:24])
	return cp.Decompress(), nil
}

func readLengthPrefixed(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", nil, errors.New("bcgn: truncated length-prefixed string")
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", nil, errors.New("bcgn: truncated length-prefixed string body")
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}

// strings returns (white, black, event, site, tags, error).
func (g *UnparsedBcgnGame) strings() (white, black, event, site string, tags map[string]string, err error) {
	b := g.variableSection()
	if g.hasCustomStart() {
		if len(b) < 24 {
			err = errors.New("bcgn: truncated custom start position")
			return
		}
		b = b[24:]
	}

	if white, b, err = readLengthPrefixed(b); err != nil {
		return
	}
	if black, b, err = readLengthPrefixed(b); err != nil {
		return
	}
	if event, b, err = readLengthPrefixed(b); err != nil {
		return
	}
	if site, b, err = readLengthPrefixed(b); err != nil {
		return
	}

	if g.hasTags() {
		if len(b) < 1 {
			err = errors.New("bcgn: truncated tag count")
			return
		}
		count := int(b[0])
		b = b[1:]
		tags = make(map[string]string, count)
		for i := 0; i < count; i++ {
			var k, v string
			if k, b, err = readLengthPrefixed(b); err != nil {
				return
			}
			if v, b, err = readLengthPrefixed(b); err != nil {
				return
			}
			tags[k] = v
		}
	}
	return
}

// White, Black, Event, Site, Tags wrap strings() for single-field access.
func (g *UnparsedBcgnGame) White() (string, error) { w, _, _, _, _, err := g.strings(); return w, err }
func (g *UnparsedBcgnGame) Black() (string, error) { _, b, _, _, _, err := g.strings(); return b, err }
func (g *UnparsedBcgnGame) Event() (string, error) { _, _, e, _, _, err := g.strings(); return e, err }
func (g *UnparsedBcgnGame) Site() (string, error)  { _, _, _, s, _, err := g.strings(); return s, err }
func (g *UnparsedBcgnGame) Tags() (map[string]string, error) {
	_, _, _, _, t, err := g.strings()
	return t, err
}

// Moves replays the game's movetext and returns the full move list.
func (g *UnparsedBcgnGame) Moves() ([]bitboard.Move, error) {
	start, err := g.StartPosition()
	if err != nil {
		return nil, err
	}
	pos := start
	moves := make([]bitboard.Move, 0, g.Ply())

	b := g.movetext
	for len(b) > 0 {
		switch g.level {
		case Level0:
			if len(b) < 2 {
				return nil, errors.New("bcgn: truncated level-0 move")
			}
			m := bitboard.Move(uint16(b[0])<<8 | uint16(b[1]))
			moves = append(moves, m)
			pos.DoMove(m)
			b = b[2:]
		case Level1:
			m, width, err := decodeMoveIndex(&pos, b)
			if err != nil {
				return nil, err
			}
			moves = append(moves, m)
			pos.DoMove(m)
			b = b[width:]
		default:
			return nil, errors.Newf("bcgn: unknown compression level %d", g.level)
		}
	}
	return moves, nil
}

// Positions replays the movetext and returns every position in the game,
// starting with the start position and including the position after each
// move (len(result) == Ply()+1).
func (g *UnparsedBcgnGame) Positions() ([]position.Position, error) {
	start, err := g.StartPosition()
	if err != nil {
		return nil, err
	}
	pos := start
	out := make([]position.Position, 0, g.Ply()+1)
	out = append(out, pos)

	b := g.movetext
	for len(b) > 0 {
		switch g.level {
		case Level0:
			if len(b) < 2 {
				return nil, errors.New("bcgn: truncated level-0 move")
			}
			m := bitboard.Move(uint16(b[0])<<8 | uint16(b[1]))
			pos.DoMove(m)
			b = b[2:]
		case Level1:
			m, width, err := decodeMoveIndex(&pos, b)
			if err != nil {
				return nil, err
			}
			pos.DoMove(m)
			b = b[width:]
		default:
			return nil, errors.Newf("bcgn: unknown compression level %d", g.level)
		}
		out = append(out, pos)
	}
	return out, nil
}
