package bcgn

import (
	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/position"
)

// GameMeta is the fixed and variable metadata of one game entry, everything
// BCGN stores besides the movetext itself.
type GameMeta struct {
	Year, Month, Day     int
	WhiteElo, BlackElo   uint16
	Round                uint16
	ECOCategory, ECOIndex byte
	Result               Result
	White, Black, Event, Site string
	Tags                 map[string]string
	// StartPosition is nil for the default starting position, or a custom
	// start (FlagHasCustomStartPosition is set and its 24-byte compressed
	// form is written immediately after the fixed header fields).
	StartPosition *position.Position
}

func (m GameMeta) validate() error {
	for name, s := range map[string]string{"white": m.White, "black": m.Black, "event": m.Event, "site": m.Site} {
		if len(s) > maxStringBytes {
			return errors.Wrapf(ErrStringTooLarge, "bcgn: field %s is %d bytes", name, len(s))
		}
	}
	for k, v := range m.Tags {
		if len(k) > maxStringBytes || len(v) > maxStringBytes {
			return errors.Wrapf(ErrStringTooLarge, "bcgn: tag %q", k)
		}
	}
	return nil
}

func (m GameMeta) flags() uint8 {
	var f uint8
	if len(m.Tags) > 0 {
		f |= FlagHasAdditionalTags
	}
	if m.StartPosition != nil {
		f |= FlagHasCustomStartPosition
	}
	return f
}

func writeLengthPrefixed(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// encodeHeader writes every fixed+variable metadata field, in order,
// excluding the total_length/header_length prefix (computed by the caller
// once the movetext length is also known) and excluding the movetext.
func encodeHeader(m GameMeta, ply int) []byte {
	buf := make([]byte, 0, 64+len(m.White)+len(m.Black)+len(m.Event)+len(m.Site))

	combined := uint16(ply&0x3FFF)<<2 | uint16(m.Result&0x3)
	buf = append(buf, byte(combined>>8), byte(combined))

	buf = append(buf, byte(m.Year>>8), byte(m.Year), byte(m.Month), byte(m.Day))
	buf = append(buf, byte(m.WhiteElo>>8), byte(m.WhiteElo))
	buf = append(buf, byte(m.BlackElo>>8), byte(m.BlackElo))
	buf = append(buf, byte(m.Round>>8), byte(m.Round))
	buf = append(buf, m.ECOCategory, m.ECOIndex)

	buf = append(buf, m.flags())

	if m.StartPosition != nil {
		cp := m.StartPosition.Compress()
		buf = append(buf, cp[:]...)
	}

	buf = writeLengthPrefixed(buf, m.White)
	buf = writeLengthPrefixed(buf, m.Black)
	buf = writeLengthPrefixed(buf, m.Event)
	buf = writeLengthPrefixed(buf, m.Site)

	if len(m.Tags) > 0 {
		buf = append(buf, byte(len(m.Tags)))
		for k, v := range m.Tags {
			buf = writeLengthPrefixed(buf, k)
			buf = writeLengthPrefixed(buf, v)
		}
	}

	return buf
}
