package bcgn

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/bitboard"
	"github.com/treepeck/chesspos/position"
)

// maxGameLength bounds how much headroom end_game requires before it will
// swap buffers and hand the front buffer off to the async writer, so that
// a single game entry is never split across a handoff boundary.
const maxGameLength = maxGameBytes

// Writer serializes games to a BCGN file. It double-buffers finished game
// entries: writes accumulate into a front buffer, and once that buffer is
// within maxGameLength bytes of its capacity it is hung off to a
// background goroutine while a second buffer becomes the new front —
// callers never block on disk I/O mid-game.
type Writer struct {
	compressionLevel CompressionLevel
	auxCompression   AuxCompression

	mu      sync.Mutex
	front   *bytes.Buffer
	bufCap  int
	file    io.WriteCloser
	pending chan *bytes.Buffer
	wg      sync.WaitGroup

	errMu   sync.Mutex
	writeErr error
}

func (w *Writer) setWriteErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}

func (w *Writer) loadWriteErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}

// NewWriter opens path for appending and returns a Writer at the given
// compression level. If the file is empty (freshly created), the 32-byte
// file header is written immediately; if it already holds a BCGN file, the
// header is left untouched and new game entries are appended after it.
func NewWriter(path string, level CompressionLevel, bufCap int) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "bcgn: open %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "bcgn: stat %s", path)
	}

	if info.Size() == 0 {
		hdr := FileHeader{Version: FormatVersion, CompressionLevel: level, AuxCompression: AuxCompressionNone}
		enc := hdr.encode()
		if _, err := f.Write(enc[:]); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "bcgn: write header to %s", path)
		}
	}

	if bufCap <= 0 {
		bufCap = 4 << 20
	}

	w := &Writer{
		compressionLevel: level,
		auxCompression:   AuxCompressionNone,
		front:            bytes.NewBuffer(make([]byte, 0, bufCap)),
		bufCap:           bufCap,
		file:             f,
		pending:          make(chan *bytes.Buffer, 2),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Writer) run() {
	defer w.wg.Done()
	for buf := range w.pending {
		if _, err := w.file.Write(buf.Bytes()); err != nil {
			w.setWriteErr(errors.Wrap(err, "bcgn: async write failed"))
		}
	}
}

// GameBuilder accumulates one game's metadata and movetext.
type GameBuilder struct {
	w        *Writer
	meta     GameMeta
	movetext bytes.Buffer
	pos      position.Position
	moveCnt  int
}

// NewGame begins a new game entry. meta.Result and string fields must
// already be known; ply count is derived from the number of AddMove calls.
func (w *Writer) NewGame(meta GameMeta) (*GameBuilder, error) {
	if err := meta.validate(); err != nil {
		return nil, err
	}
	pos := position.New()
	if meta.StartPosition != nil {
		pos = *meta.StartPosition
	}
	return &GameBuilder{w: w, meta: meta, pos: pos}, nil
}

// AddMove appends one move to the game's movetext, encoded per the
// writer's compression level, then advances the builder's replay position.
func (g *GameBuilder) AddMove(m bitboard.Move) error {
	switch g.w.compressionLevel {
	case Level0:
		g.movetext.WriteByte(byte(m >> 8))
		g.movetext.WriteByte(byte(m))
	case Level1:
		enc, err := encodeMoveIndex(&g.pos, m)
		if err != nil {
			return err
		}
		g.movetext.Write(enc)
	default:
		return errors.Newf("bcgn: unknown compression level %d", g.w.compressionLevel)
	}
	g.pos.DoMove(m)
	g.moveCnt++
	return nil
}

// EndGame finalizes the entry (computing total_length/header_length from
// the now-known movetext size) and hands it to the writer, swapping
// buffers first if the front buffer doesn't have room for another entry of
// this size.
func (g *GameBuilder) EndGame() error {
	header := encodeHeader(g.meta, g.moveCnt)
	headerLen := len(header)
	totalLen := headerLen + g.movetext.Len()
	if totalLen > maxGameBytes {
		return ErrGameTooLarge
	}

	entry := make([]byte, 0, 4+totalLen)
	entry = append(entry, byte(totalLen>>8), byte(totalLen))
	entry = append(entry, byte(headerLen>>8), byte(headerLen))
	entry = append(entry, header...)
	entry = append(entry, g.movetext.Bytes()...)

	return g.w.appendEntry(entry)
}

func (w *Writer) appendEntry(entry []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.front.Len()+len(entry) > w.bufCap-maxGameLength && w.front.Len() > 0 {
		w.swapLocked()
	}
	w.front.Write(entry)
	return w.loadWriteErr()
}

func (w *Writer) swapLocked() {
	full := w.front
	w.front = bytes.NewBuffer(make([]byte, 0, w.bufCap))
	w.pending <- full
}

// Flush hands any buffered entries to the background writer without
// waiting for them to land on disk; Close is the only call that blocks
// until every entry is durable.
func (w *Writer) Flush() error {
	w.mu.Lock()
	if w.front.Len() > 0 {
		w.swapLocked()
	}
	w.mu.Unlock()
	return w.loadWriteErr()
}

// Close flushes remaining buffered entries, waits for the async writer to
// finish, and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.front.Len() > 0 {
		w.swapLocked()
	}
	w.mu.Unlock()

	close(w.pending)
	w.wg.Wait()

	if err := w.file.Close(); err != nil {
		w.setWriteErr(errors.Wrap(err, "bcgn: close"))
	}
	return w.loadWriteErr()
}
