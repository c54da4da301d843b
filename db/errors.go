package db

import "github.com/cockroachdb/errors"

// Sentinel errors for the expected failure modes spec.md §7 enumerates.
var (
	// ErrCorruptFile is returned at open time when a partition file's byte
	// size is not a multiple of the IndexEntry record size. A BCGN source
	// file that fails to open (including a bad magic/header) is not
	// reported with it: Import logs that file and skips it.
	ErrCorruptFile = errors.New("db: corrupt database file")
	// ErrUnreadableFile names the unreadable-source-file case. No function
	// in this package returns it; Import logs an unreadable source file
	// and skips it.
	ErrUnreadableFile = errors.New("db: unreadable source file")
	// ErrCapacityExceeded names the case of a game's encoded size or a
	// string field exceeding its fixed-width on-disk capacity. No function
	// in this package returns it.
	ErrCapacityExceeded = errors.New("db: game exceeds on-disk capacity")
	// ErrMemoryBudgetTooSmall is returned when an import memory budget
	// would compute a zero-capacity bucket.
	ErrMemoryBudgetTooSmall = errors.New("db: import memory budget too small")
	// ErrZeroPlyGame is returned (and the game skipped) for a game with no
	// moves.
	ErrZeroPlyGame = errors.New("db: game has zero plies")
	// ErrTooManyPlies is returned (and the game skipped) for a game
	// exceeding BCGN's 14-bit ply field.
	ErrTooManyPlies = errors.New("db: game exceeds 16383 plies")
)
