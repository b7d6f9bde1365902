package brackets

import (
	"math/rand"
	"sync"

	"github.com/songclash/songclash/models"
)

// LadderGenerator builds a challenger ladder: the first match pairs the
// first two shuffled songs and every later song seeds slot B of its own
// future match. Each winner fills slot A of the next match, so N songs
// always produce exactly N-1 matches. The rand source is injectable so
// tests can seed the shuffle and the tie coin; *rand.Rand is not safe for
// concurrent use and one generator serves every session, so access goes
// through a mutex.
type LadderGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewLadderGenerator(rng *rand.Rand) *LadderGenerator {
	return &LadderGenerator{rng: rng}
}

func (g *LadderGenerator) shuffle(n int, swap func(i, j int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(n, swap)
}

func (g *LadderGenerator) coin() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(2)
}

func (g *LadderGenerator) Name() string {
	return "Ladder"
}

func (g *LadderGenerator) Build(params BuildParams) ([]*SeedMatch, error) {
	songs := params.Songs
	if len(songs) < 2 {
		return nil, ErrNotEnoughSongs
	}

	shuffled := make([]models.Song, len(songs))
	copy(shuffled, songs)
	g.shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	seeds := make([]*SeedMatch, 0, len(shuffled)-1)

	firstA := shuffled[0].ID
	firstB := shuffled[1].ID
	seeds = append(seeds, &SeedMatch{
		RoundNumber: 1,
		MatchNumber: 0,
		SongAID:     &firstA,
		SongBID:     &firstB,
		Status:      models.MatchStatusPlaying,
	})

	for i := 2; i < len(shuffled); i++ {
		challenger := shuffled[i].ID
		seeds = append(seeds, &SeedMatch{
			RoundNumber: i,
			MatchNumber: i - 1,
			SongBID:     &challenger,
			Status:      models.MatchStatusPending,
		})
	}

	return seeds, nil
}

// ResolveWinner picks the winning song of a match. A match with exactly one
// filled slot is a bye and resolves without votes; a tie between two filled
// slots is decided by a fair coin.
func (g *LadderGenerator) ResolveWinner(m *models.Match) (string, error) {
	if m.SongAID == nil && m.SongBID == nil {
		return "", ErrMatchNoSongs
	}
	if m.SongAID == nil {
		return *m.SongBID, nil
	}
	if m.SongBID == nil {
		return *m.SongAID, nil
	}

	switch {
	case m.VotesA > m.VotesB:
		return *m.SongAID, nil
	case m.VotesB > m.VotesA:
		return *m.SongBID, nil
	default:
		if g.coin() == 0 {
			return *m.SongAID, nil
		}
		return *m.SongBID, nil
	}
}

// NextMatch returns the ladder successor of a completed match, or nil when
// the ladder is exhausted and the completed match's winner takes the
// tournament. Matches must belong to one tournament.
func NextMatch(matches []models.Match, completed *models.Match) (*models.Match, error) {
	if completed.Status != models.MatchStatusCompleted || completed.WinnerID == nil {
		return nil, ErrInvalidMatchState
	}
	for i := range matches {
		if matches[i].MatchNumber == completed.MatchNumber+1 {
			return &matches[i], nil
		}
	}
	return nil, nil
}

// PlaybackDuration returns how long each song plays in a match: the opening
// match gets a longer listen than the later ones.
func PlaybackDuration(matchNumber int) int {
	if matchNumber == 0 {
		return 30
	}
	return 15
}
