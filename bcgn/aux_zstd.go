package bcgn

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

// compressZstd and decompressZstd implement the AuxCompressionZstd movetext
// transform. Nothing in this package's public constructors selects
// AuxCompressionZstd today (AuxCompressionNone is the only level ever
// written), but the format's aux-compression byte exists so a future
// revision can turn this on without a file-format change, and these two
// functions are exercised directly by TestZstdAuxCompressionRoundTrip in
// bcgn_test.go to keep that path
// from bit-rotting unexercised.
func compressZstd(movetext []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "bcgn: create zstd encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(movetext, make([]byte, 0, len(movetext))), nil
}

func decompressZstd(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "bcgn: create zstd decoder")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "bcgn: zstd decode")
	}
	return out, nil
}

// roundTripZstd is a small helper used only by tests, kept here rather
// than in the test file so compressZstd/decompressZstd stay unexported.
func roundTripZstd(movetext []byte) ([]byte, error) {
	c, err := compressZstd(movetext)
	if err != nil {
		return nil, err
	}
	d, err := decompressZstd(c)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(d, movetext) {
		return nil, errors.New("bcgn: zstd round trip mismatch")
	}
	return d, nil
}
