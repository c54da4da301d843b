package db

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/treepeck/chesspos/bcgn"
	"github.com/treepeck/chesspos/headerstore"
	"github.com/treepeck/chesspos/pipeline"
	"github.com/treepeck/chesspos/store"
)

// SourceFile is one BCGN archive to ingest, tagged with the level its
// games were played at. The partitioned database has no PGN reader
// (out of scope); BCGN is its only ingest source.
type SourceFile struct {
	Path  string
	Level Level
}

// ImportMode selects one of spec.md §4.5's three import orchestration
// strategies.
type ImportMode int

const (
	// ImportSequenced processes levels, then files within a level, one at
	// a time, with a single sort worker.
	ImportSequenced ImportMode = iota
	// ImportParallel runs one task per non-empty level concurrently, all
	// sharing one pipeline.
	ImportParallel
	// ImportParallelUnsequenced divides the file set into near-equal-byte
	// blocks, reserving disjoint file-id ranges per block so concurrent
	// writers never collide.
	ImportParallelUnsequenced
)

// ImportStats summarizes one Import call.
type ImportStats struct {
	GamesImported int64
	SkippedGames  int64
	SkippedFiles  int64
}

var indexEntrySize = binary.Size(store.IndexEntry{})

const importHeadroomFactor = 0.25

// computeBucketCapacity implements spec.md §6's
// `bucket_size = memory / (num_buckets + headroom_factor*num_buckets)`,
// converted from bytes to a record count.
func computeBucketCapacity(memory int64, numBuckets int) (int, error) {
	if numBuckets < 1 {
		numBuckets = 1
	}
	bucketSizeBytes := float64(memory) / (float64(numBuckets) * (1 + importHeadroomFactor))
	capacity := int(bucketSizeBytes) / indexEntrySize
	if capacity < 1 {
		return 0, ErrMemoryBudgetTooSmall
	}
	return capacity, nil
}

// ecoCode packs a BCGN (category, index) ECO pair into the header store's
// three-character ECO code ("B20", etc).
func ecoCode(category, index byte) [3]byte {
	return [3]byte{'A' + category, '0' + index/10, '0' + index%10}
}

// ingestContext is the mutable state one Import call's workers share: the
// pipeline, the per-bucket accumulation buffers, and running counters.
type ingestContext struct {
	db               *Database
	pipe             *pipeline.Pipeline
	recordsPerBucket int
	// idAlloc is non-nil only for the parallel-per-file-block mode, where
	// each block draws file ids from its own pre-reserved disjoint range
	// instead of the database's shared counter.
	idAlloc *blockIDAllocator

	mu   sync.Mutex
	bufs map[partitionKey][]store.IndexEntry

	skippedGames int64
	skippedFiles int64
	imported     int64
}

func newIngestContext(db *Database, pipe *pipeline.Pipeline, recordsPerBucket int) *ingestContext {
	return &ingestContext{db: db, pipe: pipe, recordsPerBucket: recordsPerBucket, bufs: make(map[partitionKey][]store.IndexEntry)}
}

// idRange is one not-yet-exhausted block of pre-reserved file ids for a
// single partitionKey.
type idRange struct {
	next, end int
}

// blockIDAllocator hands out file ids for one parallel-per-file-block
// import block. It draws from the database's shared counter in batches
// (via reserveFileIDBlock) rather than once per flush, so that concurrent
// blocks reserve disjoint, monotonically increasing id ranges per
// partition instead of contending on a single id at a time.
type blockIDAllocator struct {
	db        *Database
	batchSize int

	mu     sync.Mutex
	ranges map[partitionKey]idRange
}

func newBlockIDAllocator(db *Database, batchSize int) *blockIDAllocator {
	if batchSize < 1 {
		batchSize = 1
	}
	return &blockIDAllocator{db: db, batchSize: batchSize, ranges: make(map[partitionKey]idRange)}
}

// next returns the next file id for key, reserving a fresh batch from the
// database's counter whenever the block's current range for key runs out.
func (a *blockIDAllocator) next(key partitionKey) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.ranges[key]
	if !ok || r.next >= r.end {
		start := a.db.reserveFileIDBlock(key, a.batchSize)
		r = idRange{next: start, end: start + a.batchSize}
	}
	id := r.next
	r.next++
	a.ranges[key] = r
	return id
}

// blockIDBatchSize upper-bounds how many files a single block could ever
// need to flush for one partition, from the block's total byte size and a
// conservative minimum BCGN bytes-per-move (the 1-byte level-1 canonical
// move index, spec.md §4.7's most compact movetext encoding), divided by
// the per-file record capacity.
const minBCGNBytesPerMove = 1

func blockIDBatchSize(blockBytes int64, recordsPerBucket int) int {
	if recordsPerBucket < 1 {
		recordsPerBucket = 1
	}
	estimatedPositions := blockBytes / minBCGNBytesPerMove
	n := int(estimatedPositions/int64(recordsPerBucket)) + 1
	if n < 1 {
		n = 1
	}
	return n
}

func (ctx *ingestContext) appendEntry(key partitionKey, e store.IndexEntry) error {
	ctx.mu.Lock()
	buf, ok := ctx.bufs[key]
	if !ok {
		ctx.mu.Unlock()
		fresh := ctx.pipe.GetEmptyBuffer()
		ctx.mu.Lock()
		if existing, ok2 := ctx.bufs[key]; ok2 {
			ctx.pipe.ReturnBuffer(fresh)
			buf = existing
		} else {
			buf = fresh
		}
	}

	buf = append(buf, e)
	if len(buf) < ctx.recordsPerBucket {
		ctx.bufs[key] = buf
		ctx.mu.Unlock()
		return nil
	}

	delete(ctx.bufs, key)
	ctx.mu.Unlock()
	return ctx.flushBucket(key, buf)
}

func (ctx *ingestContext) flushBucket(key partitionKey, buf []store.IndexEntry) error {
	var id int
	if ctx.idAlloc != nil {
		id = ctx.idAlloc.next(key)
	} else {
		id = ctx.db.reserveFileID(key)
	}
	path := ctx.db.partitionFilePath(key, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "db: mkdir for %s", path)
	}

	done := ctx.pipe.ScheduleUnordered(path, buf)
	res := <-done
	if res.Err != nil {
		return res.Err
	}
	log.Debugf("flushed partition file %s (%d records)", path, len(buf))
	return ctx.db.commitFile(key, id, path, res.RangeIndex)
}

// flushAll flushes every non-empty remaining bucket buffer, for use at the
// end of an import pass.
func (ctx *ingestContext) flushAll() error {
	ctx.mu.Lock()
	remaining := ctx.bufs
	ctx.bufs = make(map[partitionKey][]store.IndexEntry)
	ctx.mu.Unlock()

	for key, buf := range remaining {
		if len(buf) == 0 {
			ctx.pipe.ReturnBuffer(buf)
			continue
		}
		if err := ctx.flushBucket(key, buf); err != nil {
			return err
		}
	}
	return nil
}

// importFile streams every game out of one BCGN source file and indexes
// its positions. A file that fails to open is logged and skipped — it
// never aborts the whole import (spec.md §7).
func (ctx *ingestContext) importFile(sf SourceFile) {
	r, err := bcgn.Open(sf.Path)
	if err != nil {
		log.Warningf("skipping unreadable file %s: %v", sf.Path, err)
		atomic.AddInt64(&ctx.skippedFiles, 1)
		return
	}
	defer r.Close()

	log.Infof("importing %s (level=%s)", sf.Path, sf.Level)

	for {
		g, err := r.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warningf("aborting import of %s: %v", sf.Path, err)
			}
			return
		}
		if err := ctx.importGame(sf.Level, g); err != nil {
			log.Warningf("skipping game in %s: %v", sf.Path, err)
			atomic.AddInt64(&ctx.skippedGames, 1)
		}
	}
}

func (ctx *ingestContext) importGame(level Level, g *bcgn.UnparsedBcgnGame) error {
	res, ok := resultFromBCGN(g.Result())
	if !ok {
		return errors.New("db: unknown game result")
	}
	ply := g.Ply()
	if ply == 0 {
		return ErrZeroPlyGame
	}
	if ply > 0x3FFF {
		return ErrTooManyPlies
	}

	white, err := g.White()
	if err != nil {
		return err
	}
	black, err := g.Black()
	if err != nil {
		return err
	}
	event, err := g.Event()
	if err != nil {
		return err
	}

	rec := headerstore.HeaderRecord{
		Year:  uint16(g.Year()),
		Month: uint8(g.Month()),
		Day:   uint8(g.Day()),
		ECO:   ecoCode(g.ECOCategory(), g.ECOIndex()),
		Ply:   uint16(ply),
		Event: event,
		White: white,
		Black: black,
	}
	gameID, err := ctx.db.header.AddGame(rec)
	if err != nil {
		return err
	}

	positions, err := g.Positions()
	if err != nil {
		return err
	}

	for _, pos := range positions {
		sig := pos.Signature()
		bucket := bucketFor(sig, ctx.db.bucketCount)
		key := partitionKey{Level: level, Result: res, Bucket: bucket}
		entry := store.IndexEntry{Signature: sig, GameId: uint32(gameID)}
		if err := ctx.appendEntry(key, entry); err != nil {
			return err
		}
	}

	atomic.AddInt64(&ctx.imported, 1)
	return nil
}

// Import ingests every source file into db, per spec.md §4.5. Importing
// the empty file list is a no-op.
func (db *Database) Import(files []SourceFile, memory int64, mode ImportMode) (ImportStats, error) {
	if len(files) == 0 {
		return ImportStats{}, nil
	}

	switch mode {
	case ImportSequenced:
		return db.importSequenced(files, memory)
	case ImportParallel:
		return db.importParallel(files, memory)
	case ImportParallelUnsequenced:
		return db.importParallelUnsequenced(files, memory)
	default:
		return ImportStats{}, errors.Newf("db: unknown import mode %d", mode)
	}
}

func (db *Database) importSequenced(files []SourceFile, memory int64) (ImportStats, error) {
	numBuckets := len(Results) * db.bucketCount
	capacity, err := computeBucketCapacity(memory, numBuckets)
	if err != nil {
		return ImportStats{}, err
	}

	pipe := pipeline.New(1, numBuckets+2, capacity, 0)
	ctx := newIngestContext(db, pipe, capacity)

	byLevel := groupByLevel(files)
	for _, level := range Levels {
		for _, sf := range byLevel[level] {
			ctx.importFile(sf)
		}
	}

	if err := ctx.flushAll(); err != nil {
		pipe.Shutdown()
		return ImportStats{}, err
	}
	pipe.Shutdown()

	return ImportStats{
		GamesImported: atomic.LoadInt64(&ctx.imported),
		SkippedGames:  atomic.LoadInt64(&ctx.skippedGames),
		SkippedFiles:  atomic.LoadInt64(&ctx.skippedFiles),
	}, nil
}

func (db *Database) importParallel(files []SourceFile, memory int64) (ImportStats, error) {
	byLevel := groupByLevel(files)
	activeLevels := 0
	for _, level := range Levels {
		if len(byLevel[level]) > 0 {
			activeLevels++
		}
	}
	if activeLevels == 0 {
		activeLevels = 1
	}

	numBuckets := len(Results) * db.bucketCount * activeLevels
	capacity, err := computeBucketCapacity(memory, numBuckets)
	if err != nil {
		return ImportStats{}, err
	}

	pipe := pipeline.New(3, numBuckets+2, capacity, 0)
	ctx := newIngestContext(db, pipe, capacity)

	var eg errgroup.Group
	for _, level := range Levels {
		sfs := byLevel[level]
		if len(sfs) == 0 {
			continue
		}
		eg.Go(func() error {
			for _, sf := range sfs {
				ctx.importFile(sf)
			}
			return nil
		})
	}
	_ = eg.Wait() // importFile never returns an error; per-file/per-game failures are logged and skipped

	if err := ctx.flushAll(); err != nil {
		pipe.Shutdown()
		return ImportStats{}, err
	}
	pipe.Shutdown()

	return ImportStats{
		GamesImported: atomic.LoadInt64(&ctx.imported),
		SkippedGames:  atomic.LoadInt64(&ctx.skippedGames),
		SkippedFiles:  atomic.LoadInt64(&ctx.skippedFiles),
	}, nil
}

// importParallelUnsequenced implements spec.md §4.5's mode 3: the file set
// is divided into near-equal-byte blocks, and each block gets its own
// pre-reserved, disjoint file-id range per partition (via blockIDAllocator
// / reserveFileIDBlock) so concurrent writers across blocks never need to
// contend on the database's shared id counter for every single flush.
func (db *Database) importParallelUnsequenced(files []SourceFile, memory int64) (ImportStats, error) {
	numBuckets := len(Results) * db.bucketCount
	capacity, err := computeBucketCapacity(memory, numBuckets)
	if err != nil {
		return ImportStats{}, err
	}

	numBlocks := len(files)
	if maxBlocks := 8; numBlocks > maxBlocks {
		numBlocks = maxBlocks
	}
	blocks := blockFilesByBytes(files, numBlocks)

	workers := len(blocks) / 2
	if workers < 1 {
		workers = 1
	}

	pipe := pipeline.New(len(blocks)-workers+1, numBuckets*len(blocks)+2, capacity, 0)

	ctxs := make([]*ingestContext, len(blocks))
	for i, block := range blocks {
		ctx := newIngestContext(db, pipe, capacity)
		ctx.idAlloc = newBlockIDAllocator(db, blockIDBatchSize(blockByteSize(block), capacity))
		ctxs[i] = ctx
	}

	sem := semaphore.NewWeighted(int64(workers))
	var eg errgroup.Group
	for i, block := range blocks {
		i, block := i, block
		eg.Go(func() error {
			if err := sem.Acquire(context.Background(), 1); err != nil {
				return err
			}
			defer sem.Release(1)
			for _, sf := range block {
				ctxs[i].importFile(sf)
			}
			return nil
		})
	}
	_ = eg.Wait()

	var stats ImportStats
	for _, ctx := range ctxs {
		if err := ctx.flushAll(); err != nil {
			pipe.Shutdown()
			return ImportStats{}, err
		}
		stats.GamesImported += atomic.LoadInt64(&ctx.imported)
		stats.SkippedGames += atomic.LoadInt64(&ctx.skippedGames)
		stats.SkippedFiles += atomic.LoadInt64(&ctx.skippedFiles)
	}
	pipe.Shutdown()

	return stats, nil
}

// blockByteSize sums the on-disk size of every source file in block, for
// sizing that block's id-range reservation batch.
func blockByteSize(block []SourceFile) int64 {
	var total int64
	for _, sf := range block {
		if info, err := os.Stat(sf.Path); err == nil {
			total += info.Size()
		}
	}
	return total
}

func groupByLevel(files []SourceFile) map[Level][]SourceFile {
	out := make(map[Level][]SourceFile)
	for _, sf := range files {
		out[sf.Level] = append(out[sf.Level], sf)
	}
	return out
}

// blockFilesByBytes divides files into at most numBlocks near-equal-bytes
// blocks, per spec.md §4.4's ordering contract for parallel-per-file-block
// ingest; a file whose size can't be read is counted as 1 byte toward the
// block it falls in rather than blocking the split.
func blockFilesByBytes(files []SourceFile, numBlocks int) [][]SourceFile {
	if numBlocks < 1 {
		numBlocks = 1
	}
	if numBlocks > len(files) {
		numBlocks = len(files)
	}

	type weighted struct {
		sf   SourceFile
		size int64
	}
	ws := make([]weighted, len(files))
	var total int64
	for i, sf := range files {
		size := int64(1)
		if info, err := os.Stat(sf.Path); err == nil {
			size = info.Size()
		}
		ws[i] = weighted{sf, size}
		total += size
	}

	target := total / int64(numBlocks)
	if target < 1 {
		target = 1
	}

	blocks := make([][]SourceFile, 0, numBlocks)
	var cur []SourceFile
	var curBytes int64
	for _, w := range ws {
		cur = append(cur, w.sf)
		curBytes += w.size
		if curBytes >= target && len(blocks) < numBlocks-1 {
			blocks = append(blocks, cur)
			cur = nil
			curBytes = 0
		}
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}
