package db

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/treepeck/chesspos/store"
)

// partitionKey identifies one physical file family on disk.
type partitionKey struct {
	Level  Level
	Result Result
	Bucket int
}

// fileRecord is one committed, opened partition file plus its range-index
// sidecar.
type fileRecord struct {
	ID         int
	Path       string
	Span       *store.ImmutableSpan[store.IndexEntry]
	RangeIndex store.RangeIndex
}

// partitionState is the in-memory view of one partitionKey's committed
// file list, kept sorted by ascending file id.
type partitionState struct {
	key     partitionKey
	files   []*fileRecord
	nextID  int
}

func (db *Database) partitionDir(key partitionKey) string {
	p := filepath.Join(db.root, key.Level.String(), key.Result.String())
	if db.bucketCount > 1 {
		p = filepath.Join(p, strconv.Itoa(key.Bucket))
	}
	return p
}

func (db *Database) partitionFilePath(key partitionKey, id int) string {
	return filepath.Join(db.partitionDir(key), strconv.Itoa(id))
}

// reserveFileID allocates the next monotone file id for key and advances
// the partition's counter.
func (db *Database) reserveFileID(key partitionKey) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	ps := db.partitions[key]
	if ps == nil {
		ps = &partitionState{key: key}
		db.partitions[key] = ps
	}
	id := ps.nextID
	ps.nextID++
	return id
}

// reserveFileIDBlock allocates n consecutive file ids for key, for the
// parallel-per-file-block import mode's disjoint id-range reservation.
func (db *Database) reserveFileIDBlock(key partitionKey, n int) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	ps := db.partitions[key]
	if ps == nil {
		ps = &partitionState{key: key}
		db.partitions[key] = ps
	}
	start := ps.nextID
	ps.nextID += n
	return start
}

// commitFile records a just-written, just-closed partition file as part of
// key's committed file list, opening it (mmap) for querying.
func (db *Database) commitFile(key partitionKey, id int, path string, ri store.RangeIndex) error {
	span, err := store.Open[store.IndexEntry](path)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "db: open committed partition file %s", path), ErrCorruptFile)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	ps := db.partitions[key]
	if ps == nil {
		ps = &partitionState{key: key}
		db.partitions[key] = ps
	}
	ps.files = append(ps.files, &fileRecord{ID: id, Path: path, Span: span, RangeIndex: ri})
	sort.Slice(ps.files, func(i, j int) bool { return ps.files[i].ID < ps.files[j].ID })
	if id >= ps.nextID {
		ps.nextID = id + 1
	}
	return nil
}

// discoverPartitions walks the database root and opens every existing
// partition file and its range-index sidecar, per spec.md §8's "opening a
// just-closed database re-discovers all partition files and their range
// indexes". A corrupt partition file is a fatal open-time error.
func (db *Database) discoverPartitions() error {
	for _, level := range Levels {
		for _, result := range Results {
			resultDir := filepath.Join(db.root, level.String(), result.String())
			info, err := os.Stat(resultDir)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return errors.Wrapf(err, "db: stat %s", resultDir)
			}
			if !info.IsDir() {
				continue
			}

			if db.bucketCount > 1 {
				for b := 0; b < db.bucketCount; b++ {
					key := partitionKey{Level: level, Result: result, Bucket: b}
					if err := db.discoverOneDir(key, filepath.Join(resultDir, strconv.Itoa(b))); err != nil {
						return err
					}
				}
			} else {
				key := partitionKey{Level: level, Result: result, Bucket: 0}
				if err := db.discoverOneDir(key, resultDir); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (db *Database) discoverOneDir(key partitionKey, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "db: read dir %s", dir)
	}

	var ids []int
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), "_index") {
			continue
		}
		id, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		path := filepath.Join(dir, strconv.Itoa(id))
		span, err := store.Open[store.IndexEntry](path)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "db: corrupt partition file %s", path), ErrCorruptFile)
		}
		ri, err := store.LoadRangeIndex(path + "_index")
		if err != nil {
			span.Close()
			return errors.Mark(errors.Wrapf(err, "db: corrupt range index sidecar for %s", path), ErrCorruptFile)
		}

		ps := db.partitions[key]
		if ps == nil {
			ps = &partitionState{key: key}
			db.partitions[key] = ps
		}
		ps.files = append(ps.files, &fileRecord{ID: id, Path: path, Span: span, RangeIndex: ri})
		if id >= ps.nextID {
			ps.nextID = id + 1
		}
	}
	return nil
}
