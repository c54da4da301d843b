package db

import (
	"path/filepath"
	"testing"

	"github.com/treepeck/chesspos/bcgn"
	"github.com/treepeck/chesspos/bitboard"
	"github.com/treepeck/chesspos/headerstore"
	"github.com/treepeck/chesspos/position"
)

func sq(file, rank byte) bitboard.Square {
	return bitboard.NewSquare(bitboard.File(file-'a'), bitboard.Rank(rank-'1'))
}

func scholarsMateMoves() []bitboard.Move {
	return []bitboard.Move{
		bitboard.NewMove(sq('e', '2'), sq('e', '4'), bitboard.Normal),
		bitboard.NewMove(sq('e', '7'), sq('e', '5'), bitboard.Normal),
		bitboard.NewMove(sq('f', '1'), sq('c', '4'), bitboard.Normal),
		bitboard.NewMove(sq('b', '8'), sq('c', '6'), bitboard.Normal),
		bitboard.NewMove(sq('d', '1'), sq('h', '5'), bitboard.Normal),
		bitboard.NewMove(sq('g', '8'), sq('f', '6'), bitboard.Normal),
		bitboard.NewMove(sq('h', '5'), sq('f', '7'), bitboard.Normal),
	}
}

func writeBcgnFile(t *testing.T, path string, meta bcgn.GameMeta, moves []bitboard.Move) {
	t.Helper()
	w, err := bcgn.NewWriter(path, bcgn.Level0, 0)
	if err != nil {
		t.Fatal(err)
	}
	g, err := w.NewGame(meta)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range moves {
		if err := g.AddMove(m); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.EndGame(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestImportSequencedThenQuery(t *testing.T) {
	dbDir := t.TempDir()
	database, err := Create(dbDir, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	srcPath := filepath.Join(t.TempDir(), "games.bcgn")
	whiteWinMoves := scholarsMateMoves()
	drawMoves := []bitboard.Move{
		bitboard.NewMove(sq('e', '2'), sq('e', '4'), bitboard.Normal),
		bitboard.NewMove(sq('e', '7'), sq('e', '5'), bitboard.Normal),
	}

	w, err := bcgn.NewWriter(srcPath, bcgn.Level0, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		result bcgn.Result
		moves  []bitboard.Move
	}{
		{bcgn.ResultWhiteWin, whiteWinMoves},
		{bcgn.ResultDraw, drawMoves},
	} {
		g, err := w.NewGame(bcgn.GameMeta{
			Year: 2024, Month: 1, Day: 1, Result: tc.result,
			White: "A", Black: "B", Event: "E", Site: "S",
		})
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range tc.moves {
			if err := g.AddMove(m); err != nil {
				t.Fatal(err)
			}
		}
		if err := g.EndGame(); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	stats, err := database.Import([]SourceFile{{Path: srcPath, Level: LevelHuman}}, 1<<20, ImportSequenced)
	if err != nil {
		t.Fatal(err)
	}
	if stats.GamesImported != 2 {
		t.Fatalf("GamesImported = %d, want 2", stats.GamesImported)
	}
	if stats.SkippedGames != 0 || stats.SkippedFiles != 0 {
		t.Fatalf("unexpected skips: %+v", stats)
	}

	targets := []PartitionTarget{
		{Level: LevelHuman, Result: ResultWin},
		{Level: LevelHuman, Result: ResultLoss},
		{Level: LevelHuman, Result: ResultDraw},
	}
	start := position.New()

	// QueryRanges is indexed by position, not target, so query once per
	// target to isolate each partition's hits for the start position.
	var winHits, drawHits []RangeHit
	for _, target := range targets {
		hits, err := database.QueryRanges([]PartitionTarget{target}, []position.Position{start})
		if err != nil {
			t.Fatal(err)
		}
		switch target.Result {
		case ResultWin:
			winHits = hits[0]
		case ResultDraw:
			drawHits = hits[0]
		}
	}

	if len(winHits) == 0 {
		t.Fatal("expected at least one range hit for the white-win partition at the start position")
	}
	if len(drawHits) == 0 {
		t.Fatal("expected at least one range hit for the draw partition at the start position")
	}

	winID, ok, err := database.FirstGameIndex(winHits)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("FirstGameIndex: expected ok=true")
	}
	if winID != 0 {
		t.Fatalf("first game id for white-win = %d, want 0", winID)
	}

	drawID, ok, err := database.FirstGameIndex(drawHits)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("FirstGameIndex: expected ok=true")
	}
	if drawID != 1 {
		t.Fatalf("first game id for draw = %d, want 1", drawID)
	}

	headers, err := database.QueryHeaders([]headerstore.GameId{winID, drawID})
	if err != nil {
		t.Fatal(err)
	}
	if headers[0].White != "A" || headers[0].Black != "B" {
		t.Fatalf("unexpected header fields: %+v", headers[0])
	}
}

func TestImportEmptyFileListIsNoop(t *testing.T) {
	dbDir := t.TempDir()
	database, err := Create(dbDir, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	stats, err := database.Import(nil, 1<<20, ImportSequenced)
	if err != nil {
		t.Fatal(err)
	}
	if stats != (ImportStats{}) {
		t.Fatalf("expected zero stats for an empty import, got %+v", stats)
	}
}

func TestOpenRediscoversPartitions(t *testing.T) {
	dbDir := t.TempDir()
	database, err := Create(dbDir, 2)
	if err != nil {
		t.Fatal(err)
	}

	srcPath := filepath.Join(t.TempDir(), "games.bcgn")
	writeBcgnFile(t, srcPath, bcgn.GameMeta{
		Year: 2024, Month: 1, Day: 1, Result: bcgn.ResultWhiteWin,
		White: "A", Black: "B", Event: "E", Site: "S",
	}, scholarsMateMoves())

	if _, err := database.Import([]SourceFile{{Path: srcPath, Level: LevelEngine}}, 1<<20, ImportSequenced); err != nil {
		t.Fatal(err)
	}
	if err := database.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dbDir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	hits, err := reopened.QueryRanges(
		[]PartitionTarget{{Level: LevelEngine, Result: ResultWin}},
		[]position.Position{position.New()},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits[0]) == 0 {
		t.Fatal("reopened database lost its committed partition file")
	}
}

func TestImportParallelAcrossLevels(t *testing.T) {
	dbDir := t.TempDir()
	database, err := Create(dbDir, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	humanPath := filepath.Join(t.TempDir(), "human.bcgn")
	enginePath := filepath.Join(t.TempDir(), "engine.bcgn")
	writeBcgnFile(t, humanPath, bcgn.GameMeta{
		Year: 2024, Month: 1, Day: 1, Result: bcgn.ResultWhiteWin,
		White: "A", Black: "B", Event: "E", Site: "S",
	}, scholarsMateMoves())
	writeBcgnFile(t, enginePath, bcgn.GameMeta{
		Year: 2024, Month: 1, Day: 1, Result: bcgn.ResultDraw,
		White: "C", Black: "D", Event: "E", Site: "S",
	}, []bitboard.Move{
		bitboard.NewMove(sq('e', '2'), sq('e', '4'), bitboard.Normal),
		bitboard.NewMove(sq('e', '7'), sq('e', '5'), bitboard.Normal),
	})

	stats, err := database.Import([]SourceFile{
		{Path: humanPath, Level: LevelHuman},
		{Path: enginePath, Level: LevelEngine},
	}, 1<<20, ImportParallel)
	if err != nil {
		t.Fatal(err)
	}
	if stats.GamesImported != 2 {
		t.Fatalf("GamesImported = %d, want 2", stats.GamesImported)
	}

	start := position.New()
	humanHits, err := database.QueryRanges(
		[]PartitionTarget{{Level: LevelHuman, Result: ResultWin}},
		[]position.Position{start},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(humanHits[0]) == 0 {
		t.Fatal("expected a hit for the human white-win partition")
	}

	engineHits, err := database.QueryRanges(
		[]PartitionTarget{{Level: LevelEngine, Result: ResultDraw}},
		[]position.Position{start},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(engineHits[0]) == 0 {
		t.Fatal("expected a hit for the engine draw partition")
	}
}

func TestImportParallelUnsequencedFileIDsAreDisjointAndMonotonic(t *testing.T) {
	dbDir := t.TempDir()
	database, err := Create(dbDir, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	var files []SourceFile
	for i := 0; i < 6; i++ {
		path := filepath.Join(t.TempDir(), "games.bcgn")
		writeBcgnFile(t, path, bcgn.GameMeta{
			Year: 2024, Month: 1, Day: 1, Result: bcgn.ResultWhiteWin,
			White: "A", Black: "B", Event: "E", Site: "S",
		}, scholarsMateMoves())
		files = append(files, SourceFile{Path: path, Level: LevelHuman})
	}

	// A tiny memory budget forces a record capacity of 1 per bucket, so
	// every partition ends up with several separately flushed files
	// instead of one, across several concurrent blocks.
	stats, err := database.Import(files, 100, ImportParallelUnsequenced)
	if err != nil {
		t.Fatal(err)
	}
	if stats.GamesImported != 6 {
		t.Fatalf("GamesImported = %d, want 6", stats.GamesImported)
	}

	key := partitionKey{Level: LevelHuman, Result: ResultWin, Bucket: 0}
	ps := database.partitions[key]
	if ps == nil || len(ps.files) == 0 {
		t.Fatal("expected at least one committed file for the white-win partition")
	}

	seen := make(map[int]bool)
	prev := -1
	for _, f := range ps.files { // commitFile keeps this slice sorted by id
		if f.ID <= prev {
			t.Fatalf("file ids are not strictly increasing: %d after %d", f.ID, prev)
		}
		if seen[f.ID] {
			t.Fatalf("duplicate file id %d: blocks' reserved ranges collided", f.ID)
		}
		seen[f.ID] = true
		prev = f.ID
	}
}

func TestMemoryBudgetTooSmallIsRejected(t *testing.T) {
	dbDir := t.TempDir()
	database, err := Create(dbDir, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	srcPath := filepath.Join(t.TempDir(), "games.bcgn")
	writeBcgnFile(t, srcPath, bcgn.GameMeta{
		Year: 2024, Month: 1, Day: 1, Result: bcgn.ResultWhiteWin,
		White: "A", Black: "B", Event: "E", Site: "S",
	}, scholarsMateMoves())

	_, err = database.Import([]SourceFile{{Path: srcPath, Level: LevelHuman}}, 1, ImportSequenced)
	if err == nil {
		t.Fatal("expected an error for a too-small memory budget")
	}
}
