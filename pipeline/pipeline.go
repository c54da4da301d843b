// Package pipeline implements the async store pipeline that turns bounded
// in-memory buckets of store.IndexEntry into sorted, immutable partition
// files: K sort workers feed one writer worker over two shared FIFO
// queues, with a bounded buffer pool enforcing the memory budget.
package pipeline

import (
	"os"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/store"
)

// Job is one bucket's worth of work: the entries to sort and/or write, the
// destination partition file path, and a completion channel the submitter
// can wait on.
type Job struct {
	Entries []store.IndexEntry
	Path    string
	done    chan Result
}

// Result is delivered on a Job's completion channel once its entries are
// durable on disk.
type Result struct {
	RangeIndex store.RangeIndex
	Err        error
}

// Pipeline owns the buffer pool and the two FIFO queues described in
// spec.md §4.4. A Pipeline must be shut down exactly once via Shutdown.
type Pipeline struct {
	bufferPool chan []store.IndexEntry
	sortQueue  chan *Job
	writeQueue chan *Job

	sortWG  sync.WaitGroup
	writeWG sync.WaitGroup

	stride int
}

// New starts numSortWorkers sort workers and one writer worker, and
// preallocates numBuffers buffers of bucketCap capacity into the buffer
// pool. stride is the range-index sampling stride (0 selects
// store.DefaultSampleStride).
func New(numSortWorkers, numBuffers, bucketCap, stride int) *Pipeline {
	if numSortWorkers < 1 {
		numSortWorkers = 1
	}
	if numBuffers < 1 {
		numBuffers = 1
	}

	p := &Pipeline{
		bufferPool: make(chan []store.IndexEntry, numBuffers),
		sortQueue:  make(chan *Job, numBuffers),
		writeQueue: make(chan *Job, numBuffers),
		stride:     stride,
	}
	for i := 0; i < numBuffers; i++ {
		p.bufferPool <- make([]store.IndexEntry, 0, bucketCap)
	}

	for i := 0; i < numSortWorkers; i++ {
		p.sortWG.Add(1)
		go p.sortWorker()
	}
	p.writeWG.Add(1)
	go p.writeWorker()

	return p
}

// GetEmptyBuffer blocks until a buffer is available in the pool, per
// spec.md §4.4's "ingest threads that request an empty buffer block until
// one is returned".
func (p *Pipeline) GetEmptyBuffer() []store.IndexEntry {
	return <-p.bufferPool
}

// ReturnBuffer puts an unused buffer back in the pool without going
// through the pipeline (e.g. a bucket the caller decided not to flush).
func (p *Pipeline) ReturnBuffer(buf []store.IndexEntry) {
	p.bufferPool <- buf[:0]
}

// ScheduleUnordered submits buf for sorting then writing to path. The
// returned channel receives exactly one Result once the file (and its
// range-index sidecar) are durable.
func (p *Pipeline) ScheduleUnordered(path string, buf []store.IndexEntry) <-chan Result {
	done := make(chan Result, 1)
	p.sortQueue <- &Job{Entries: buf, Path: path, done: done}
	return done
}

// ScheduleOrdered submits buf directly to the write queue, bypassing the
// sort queue, for callers that already hand over a sorted buffer.
func (p *Pipeline) ScheduleOrdered(path string, buf []store.IndexEntry) <-chan Result {
	done := make(chan Result, 1)
	p.writeQueue <- &Job{Entries: buf, Path: path, done: done}
	return done
}

func (p *Pipeline) sortWorker() {
	defer p.sortWG.Done()
	for job := range p.sortQueue {
		sort.SliceStable(job.Entries, func(i, j int) bool {
			return job.Entries[i].Less(job.Entries[j])
		})
		p.writeQueue <- job
	}
}

func (p *Pipeline) writeWorker() {
	defer p.writeWG.Done()
	for job := range p.writeQueue {
		ri, err := writePartitionFile(job.Path, job.Entries, p.stride)

		buf := job.Entries[:0]
		p.bufferPool <- buf

		if job.done != nil {
			job.done <- Result{RangeIndex: ri, Err: err}
			close(job.done)
		}
	}
}

func writePartitionFile(path string, entries []store.IndexEntry, stride int) (store.RangeIndex, error) {
	f, err := os.Create(path)
	if err != nil {
		return store.RangeIndex{}, errors.Wrapf(err, "pipeline: create %s", path)
	}
	if err := store.WriteRecords(f, entries); err != nil {
		f.Close()
		return store.RangeIndex{}, errors.Wrapf(err, "pipeline: write %s", path)
	}
	if err := f.Close(); err != nil {
		return store.RangeIndex{}, errors.Wrapf(err, "pipeline: close %s", path)
	}

	ri := store.BuildRangeIndex(entries, stride)
	if err := ri.Save(path + "_index"); err != nil {
		return store.RangeIndex{}, errors.Wrapf(err, "pipeline: save range index for %s", path)
	}
	return ri, nil
}

// Shutdown drains both queues: it closes the sort queue and waits for
// every sort worker to exit (so every pending sort has reached the write
// queue), then closes the write queue and waits for the writer worker —
// guaranteeing every scheduled job is durable before Shutdown returns.
func (p *Pipeline) Shutdown() {
	close(p.sortQueue)
	p.sortWG.Wait()
	close(p.writeQueue)
	p.writeWG.Wait()
}
