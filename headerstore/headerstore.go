// Package headerstore implements the append-only game-metadata log: a
// continuous byte log of variable-length header records, paired with a
// fixed-width index of u64 byte offsets that gives O(1) random access by
// dense game id.
package headerstore

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

// GameId is the dense identifier assigned to a game at ingest time; it
// equals the record's index in the header store.
type GameId uint32

// HeaderRecord is one game's metadata, matching the on-disk layout in
// spec.md §6: record-size-prefixed, four fixed fields, then three
// length-prefixed strings.
type HeaderRecord struct {
	Year       uint16
	Month, Day uint8
	ECO        [3]byte
	Ply        uint16
	Event, White, Black string
}

const fixedRecordPrefix = 2 + 1 + 1 + 3 + 2 // year + month + day + eco + ply

func encodeRecord(r HeaderRecord) ([]byte, error) {
	for name, s := range map[string]string{"event": r.Event, "white": r.White, "black": r.Black} {
		if len(s) > 255 {
			return nil, errors.Newf("headerstore: field %s exceeds 255 bytes", name)
		}
	}

	body := make([]byte, 0, fixedRecordPrefix+3+len(r.Event)+len(r.White)+len(r.Black))
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], r.Year)
	body = append(body, tmp[:]...)
	body = append(body, r.Month, r.Day)
	body = append(body, r.ECO[:]...)
	binary.LittleEndian.PutUint16(tmp[:], r.Ply)
	body = append(body, tmp[:]...)

	for _, s := range []string{r.Event, r.White, r.Black} {
		body = append(body, byte(len(s)))
		body = append(body, s...)
	}

	if len(body) > 1<<16-1-2 {
		return nil, errors.New("headerstore: record exceeds the u16 record-size field")
	}

	out := make([]byte, 0, 2+len(body))
	binary.LittleEndian.PutUint16(tmp[:], uint16(len(body)))
	out = append(out, tmp[:]...)
	out = append(out, body...)
	return out, nil
}

func decodeRecord(body []byte) (HeaderRecord, error) {
	if len(body) < fixedRecordPrefix {
		return HeaderRecord{}, errors.New("headerstore: truncated record")
	}
	var r HeaderRecord
	r.Year = binary.LittleEndian.Uint16(body[0:2])
	r.Month, r.Day = body[2], body[3]
	copy(r.ECO[:], body[4:7])
	r.Ply = binary.LittleEndian.Uint16(body[7:9])

	b := body[9:]
	strs := make([]string, 3)
	for i := range strs {
		if len(b) < 1 {
			return HeaderRecord{}, errors.New("headerstore: truncated string length")
		}
		n := int(b[0])
		if len(b) < 1+n {
			return HeaderRecord{}, errors.New("headerstore: truncated string body")
		}
		strs[i] = string(b[1 : 1+n])
		b = b[1+n:]
	}
	r.Event, r.White, r.Black = strs[0], strs[1], strs[2]
	return r, nil
}

// Store is the header log + offset index pair for one database. All
// methods are safe for concurrent use; add_game and query each take a
// single mutex for the duration of their file I/O, matching spec.md §4.6's
// "atomic under a single mutex" contract.
type Store struct {
	mu      sync.Mutex
	log     *os.File
	index   *os.File
	offsets []uint64 // in-memory mirror of the index file, offsets[i] == byte offset of record i
}

// Open opens (creating if necessary) the header log and offset index under
// dir, which must already exist. It loads the existing offset index fully
// into memory.
func Open(dir string) (*Store, error) {
	logPath := filepath.Join(dir, "header")
	idxPath := filepath.Join(dir, "index")

	log, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "headerstore: open %s", logPath)
	}
	idx, err := os.OpenFile(idxPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		log.Close()
		return nil, errors.Wrapf(err, "headerstore: open %s", idxPath)
	}

	raw, err := io.ReadAll(idx)
	if err != nil {
		log.Close()
		idx.Close()
		return nil, errors.Wrapf(err, "headerstore: read %s", idxPath)
	}
	if len(raw)%8 != 0 {
		log.Close()
		idx.Close()
		return nil, errors.Newf("headerstore: %s size %d is not a multiple of 8", idxPath, len(raw))
	}
	offsets := make([]uint64, len(raw)/8)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
	}

	return &Store{log: log, index: idx, offsets: offsets}, nil
}

// Close closes both underlying files.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err1 := s.log.Close()
	err2 := s.index.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// NextGameId returns the id the next AddGame call will assign.
func (s *Store) NextGameId() GameId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GameId(len(s.offsets))
}

// AddGame serializes r to the header log, appends its starting offset to
// the index, and returns its newly assigned dense GameId.
func (s *Store) AddGame(r HeaderRecord) (GameId, error) {
	encoded, err := encodeRecord(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	offset, err := s.log.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "headerstore: seek log end")
	}
	if _, err := s.log.Write(encoded); err != nil {
		return 0, errors.Wrap(err, "headerstore: write record")
	}

	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(offset))
	if _, err := s.index.Seek(0, io.SeekEnd); err != nil {
		return 0, errors.Wrap(err, "headerstore: seek index end")
	}
	if _, err := s.index.Write(tmp[:]); err != nil {
		return 0, errors.Wrap(err, "headerstore: write index entry")
	}

	id := GameId(len(s.offsets))
	s.offsets = append(s.offsets, uint64(offset))
	return id, nil
}

// Query resolves each id to its HeaderRecord, in the order given.
func (s *Store) Query(ids []GameId) ([]HeaderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HeaderRecord, len(ids))
	for i, id := range ids {
		if int(id) >= len(s.offsets) {
			return nil, errors.Newf("headerstore: game id %d out of range (%d games)", id, len(s.offsets))
		}
		if _, err := s.log.Seek(int64(s.offsets[id]), io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "headerstore: seek record")
		}
		var sizeBuf [2]byte
		if _, err := io.ReadFull(s.log, sizeBuf[:]); err != nil {
			return nil, errors.Wrapf(err, "headerstore: read record size for id %d", id)
		}
		size := binary.LittleEndian.Uint16(sizeBuf[:])
		body := make([]byte, size)
		if _, err := io.ReadFull(s.log, body); err != nil {
			return nil, errors.Wrapf(err, "headerstore: read record body for id %d", id)
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, errors.Wrapf(err, "headerstore: decode record for id %d", id)
		}
		out[i] = rec
	}
	return out, nil
}
