// Package bcgn implements the Binary Chess Game Notation container format:
// a compact on-disk representation of games and their move sequences,
// written and read as a stream of fixed-header game entries.
package bcgn

import (
	"github.com/cockroachdb/errors"
)

// Magic identifies a BCGN file; it is the first four bytes of the header.
var Magic = [4]byte{'B', 'C', 'G', 'N'}

// FormatVersion is the version byte this package reads and writes.
const FormatVersion = 1

// CompressionLevel selects the movetext encoding.
type CompressionLevel uint8

const (
	// Level0 stores every move as a fixed 2-byte packed Move.
	Level0 CompressionLevel = 0
	// Level1 stores moves as a 1- or 2-byte position-relative index into
	// the canonical legal-move enumeration (see moveindex.go).
	Level1 CompressionLevel = 1
)

// AuxCompression selects a post-encoding compression pass over the
// movetext. AuxCompressionNone is the only level ever produced today;
// AuxCompressionZstd is implemented and tested (see aux_zstd.go) but never
// selected by Writer's public constructors — the byte exists so a future
// format revision has somewhere to grow into.
type AuxCompression uint8

const (
	AuxCompressionNone AuxCompression = 0
	AuxCompressionZstd AuxCompression = 1
)

// HeaderSize is the fixed on-disk size of the file header.
const HeaderSize = 32

// FileHeader is the fixed 32-byte prefix of a BCGN file.
type FileHeader struct {
	Version          uint8
	CompressionLevel CompressionLevel
	AuxCompression   AuxCompression
}

func (h FileHeader) encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	copy(buf[0:4], Magic[:])
	buf[4] = h.Version
	buf[5] = byte(h.CompressionLevel)
	buf[6] = byte(h.AuxCompression)
	return buf
}

func decodeFileHeader(buf [HeaderSize]byte) (FileHeader, error) {
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return FileHeader{}, errors.Newf("bcgn: bad magic %q", buf[0:4])
	}
	return FileHeader{
		Version:          buf[4],
		CompressionLevel: CompressionLevel(buf[5]),
		AuxCompression:   AuxCompression(buf[6]),
	}, nil
}

// Result is a game outcome, packed into the low 2 bits of
// combined_ply_and_result.
type Result uint8

const (
	ResultUnknown Result = iota
	ResultWhiteWin
	ResultBlackWin
	ResultDraw
)

// Flag bits in GameEntry.Flags.
const (
	FlagHasAdditionalTags     = 1 << 0
	FlagHasCustomStartPosition = 1 << 1
)

// maxGameBytes is the hard capacity spec'd for a single game entry: its
// total_length field is a u16, so the entry (header + movetext) can never
// exceed this many bytes.
const maxGameBytes = 1<<16 - 1

// maxStringBytes is the hard capacity for any length-prefixed string
// field: its length prefix is a u8.
const maxStringBytes = 1<<8 - 1

// ErrGameTooLarge is returned when a finished game entry would exceed
// maxGameBytes.
var ErrGameTooLarge = errors.New("bcgn: game entry exceeds 65535 bytes")

// ErrStringTooLarge is returned when a string field exceeds 255 bytes.
var ErrStringTooLarge = errors.New("bcgn: string field exceeds 255 bytes")
