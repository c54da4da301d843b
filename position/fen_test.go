package position

import "testing"

func TestFromFENStartPosition(t *testing.T) {
	p, err := FromFEN(StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.FEN(); got != StartFEN {
		t.Fatalf("round trip = %q, want %q", got, StartFEN)
	}
}

func TestFromFENCustomPosition(t *testing.T) {
	fen := "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3"
	p, err := FromFEN(fen)
	if err != nil {
		t.Fatal(err)
	}
	// Position does not keep the move counters, so FEN emits "0 1".
	want := "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 0 1"
	if got := p.FEN(); got != want {
		t.Fatalf("round trip = %q, want %q", got, want)
	}
}

func TestFromFENRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"not a fen at all",
		"8/8/8/8/8/8/8/8 x KQkq - 0 1",
		"8/8/8/8/8/8/8/8 w XQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq z9 0 1",
		"pppppppp/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
	}
	for _, fen := range cases {
		if _, err := FromFEN(fen); err == nil {
			t.Fatalf("FromFEN(%q) succeeded, want an error", fen)
		}
	}
}

func TestFromFENEnPassantField(t *testing.T) {
	fen := "rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3"
	p, err := FromFEN(fen)
	if err != nil {
		t.Fatal(err)
	}
	if p.EPSquare.String() != "d6" {
		t.Fatalf("ep square = %s, want d6", p.EPSquare)
	}
}
