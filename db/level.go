package db

import "github.com/cockroachdb/errors"

// Level classifies the provenance of a game: who (or what) played it.
// This is not part of a BCGN game entry — callers assign it per source
// file at import time.
type Level uint8

const (
	LevelHuman Level = iota
	LevelEngine
	LevelServer
)

var levelNames = [...]string{"human", "engine", "server"}

// Levels enumerates every level, in directory-layout order.
var Levels = []Level{LevelHuman, LevelEngine, LevelServer}

func (l Level) String() string {
	if int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel parses a level's directory name back into a Level.
func ParseLevel(s string) (Level, error) {
	for i, n := range levelNames {
		if n == s {
			return Level(i), nil
		}
	}
	return 0, errors.Newf("db: unknown level %q", s)
}
