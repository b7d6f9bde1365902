package brackets

import (
	"errors"

	"github.com/songclash/songclash/models"
)

var (
	ErrNotEnoughSongs    = errors.New("not enough songs to build a bracket (minimum 2)")
	ErrInvalidMatchState = errors.New("match is not completed or has no winner")
	ErrMatchNoSongs      = errors.New("match has no songs in either slot")
)

// SeedMatch is one pre-created ladder slot. The persistence layer turns
// seeds into stored matches in order.
type SeedMatch struct {
	RoundNumber int
	MatchNumber int
	SongAID     *string
	SongBID     *string
	Status      models.MatchStatus
}

type BuildParams struct {
	Songs []models.Song
}

type Generator interface {
	Build(params BuildParams) ([]*SeedMatch, error)
	Name() string
}
