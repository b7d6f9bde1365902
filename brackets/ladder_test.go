package brackets

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/songclash/songclash/models"
)

func songList(n int) []models.Song {
	songs := make([]models.Song, n)
	for i := range songs {
		songs[i] = models.Song{ID: string(rune('a' + i))}
	}
	return songs
}

func TestLadderBuildSeeding(t *testing.T) {
	g := NewLadderGenerator(rand.New(rand.NewSource(1)))

	seeds, err := g.Build(BuildParams{Songs: songList(5)})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(seeds) != 4 {
		t.Fatalf("expected 4 matches for 5 songs, got %d", len(seeds))
	}

	first := seeds[0]
	if first.MatchNumber != 0 || first.RoundNumber != 1 {
		t.Errorf("opening match numbering wrong: match=%d round=%d", first.MatchNumber, first.RoundNumber)
	}
	if first.SongAID == nil || first.SongBID == nil {
		t.Error("opening match must have both slots filled")
	}
	if first.Status != models.MatchStatusPlaying {
		t.Errorf("opening match status = %s, want playing", first.Status)
	}

	for i, seed := range seeds[1:] {
		if seed.MatchNumber != i+1 {
			t.Errorf("seed %d has match number %d", i+1, seed.MatchNumber)
		}
		if seed.SongAID != nil {
			t.Errorf("match %d slot A should be empty until a winner arrives", seed.MatchNumber)
		}
		if seed.SongBID == nil {
			t.Errorf("match %d slot B should hold its challenger", seed.MatchNumber)
		}
		if seed.Status != models.MatchStatusPending {
			t.Errorf("match %d status = %s, want pending", seed.MatchNumber, seed.Status)
		}
	}

	// Every song appears exactly once across all slots.
	seen := map[string]int{}
	for _, seed := range seeds {
		if seed.SongAID != nil {
			seen[*seed.SongAID]++
		}
		if seed.SongBID != nil {
			seen[*seed.SongBID]++
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 distinct songs seeded, got %d", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("song %s seeded %d times", id, count)
		}
	}
}

func TestLadderBuildRejectsTooFewSongs(t *testing.T) {
	g := NewLadderGenerator(rand.New(rand.NewSource(1)))

	for _, n := range []int{0, 1} {
		if _, err := g.Build(BuildParams{Songs: songList(n)}); !errors.Is(err, ErrNotEnoughSongs) {
			t.Errorf("Build with %d songs: got %v, want ErrNotEnoughSongs", n, err)
		}
	}
}

func TestResolveWinnerMajority(t *testing.T) {
	g := NewLadderGenerator(rand.New(rand.NewSource(1)))
	a, b := "song-a", "song-b"

	match := &models.Match{SongAID: &a, SongBID: &b, VotesA: 3, VotesB: 1}
	winner, err := g.ResolveWinner(match)
	if err != nil {
		t.Fatalf("ResolveWinner: %v", err)
	}
	if winner != a {
		t.Errorf("winner = %s, want %s", winner, a)
	}

	match.VotesA, match.VotesB = 0, 2
	winner, err = g.ResolveWinner(match)
	if err != nil {
		t.Fatalf("ResolveWinner: %v", err)
	}
	if winner != b {
		t.Errorf("winner = %s, want %s", winner, b)
	}
}

func TestResolveWinnerTieStaysWithinMatch(t *testing.T) {
	g := NewLadderGenerator(rand.New(rand.NewSource(7)))
	a, b := "song-a", "song-b"
	match := &models.Match{SongAID: &a, SongBID: &b, VotesA: 2, VotesB: 2}

	sawA, sawB := false, false
	for i := 0; i < 100; i++ {
		winner, err := g.ResolveWinner(match)
		if err != nil {
			t.Fatalf("ResolveWinner: %v", err)
		}
		switch winner {
		case a:
			sawA = true
		case b:
			sawB = true
		default:
			t.Fatalf("tie resolved to song outside the match: %s", winner)
		}
	}
	if !sawA || !sawB {
		t.Error("coin flip never picked one of the sides in 100 tries")
	}
}

func TestResolveWinnerBye(t *testing.T) {
	g := NewLadderGenerator(rand.New(rand.NewSource(1)))
	b := "song-b"

	match := &models.Match{SongBID: &b, VotesA: 0, VotesB: 0}
	winner, err := g.ResolveWinner(match)
	if err != nil {
		t.Fatalf("ResolveWinner on bye: %v", err)
	}
	if winner != b {
		t.Errorf("bye winner = %s, want %s", winner, b)
	}

	if _, err := g.ResolveWinner(&models.Match{}); !errors.Is(err, ErrMatchNoSongs) {
		t.Errorf("empty match: got %v, want ErrMatchNoSongs", err)
	}
}

func TestNextMatch(t *testing.T) {
	winner := "song-w"
	completed := &models.Match{
		MatchNumber: 1,
		Status:      models.MatchStatusCompleted,
		WinnerID:    &winner,
	}
	matches := []models.Match{
		{MatchNumber: 0},
		*completed,
		{MatchNumber: 2},
	}

	next, err := NextMatch(matches, completed)
	if err != nil {
		t.Fatalf("NextMatch: %v", err)
	}
	if next == nil || next.MatchNumber != 2 {
		t.Fatalf("expected successor match 2, got %+v", next)
	}

	last := &models.Match{MatchNumber: 2, Status: models.MatchStatusCompleted, WinnerID: &winner}
	next, err = NextMatch(matches, last)
	if err != nil {
		t.Fatalf("NextMatch at ladder end: %v", err)
	}
	if next != nil {
		t.Errorf("expected exhausted ladder, got match %d", next.MatchNumber)
	}

	if _, err := NextMatch(matches, &models.Match{MatchNumber: 0, Status: models.MatchStatusVoting}); !errors.Is(err, ErrInvalidMatchState) {
		t.Errorf("uncompleted match: got %v, want ErrInvalidMatchState", err)
	}
}

func TestPlaybackDuration(t *testing.T) {
	if got := PlaybackDuration(0); got != 30 {
		t.Errorf("opening match duration = %d, want 30", got)
	}
	if got := PlaybackDuration(3); got != 15 {
		t.Errorf("later match duration = %d, want 15", got)
	}
}

// One generator is shared by every request goroutine; shuffles and tie
// coins from different sessions must not corrupt its rand state. Run with
// the race detector.
func TestGeneratorSafeForConcurrentUse(t *testing.T) {
	g := NewLadderGenerator(rand.New(rand.NewSource(7)))
	songA, songB := "song-a", "song-b"

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tied := &models.Match{SongAID: &songA, SongBID: &songB, VotesA: 1, VotesB: 1}
				winner, err := g.ResolveWinner(tied)
				if err != nil {
					t.Errorf("ResolveWinner: %v", err)
					return
				}
				if winner != songA && winner != songB {
					t.Errorf("winner %q is not in the match", winner)
					return
				}
				if _, err := g.Build(BuildParams{Songs: songList(4)}); err != nil {
					t.Errorf("Build: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
