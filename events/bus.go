package events

import (
	"context"
	"log/slog"
	"sync"
)

// Domain events flowing through the in-process bus. The completion pipeline
// assumes per-match emission order is preserved, so dispatch is synchronous:
// Emit runs every handler inline before returning.

type VoteCast struct {
	SessionID    string
	TournamentID string
	MatchID      string
	PlayerID     string
	SongID       string
}

type MatchCompleted struct {
	SessionID    string
	TournamentID string
	MatchID      string
}

type RoundAdvanced struct {
	SessionID    string
	TournamentID string
	RoundNumber  int
}

type GameFinished struct {
	SessionID     string
	TournamentID  string
	WinningSongID string
}

// Bus dispatches typed domain events to registered handlers in registration
// order. Handler panics are recovered and logged; a handler failure never
// rolls back the state change that produced the event.
type Bus struct {
	mu     sync.RWMutex
	logger *slog.Logger

	voteCast       []func(context.Context, VoteCast)
	matchCompleted []func(context.Context, MatchCompleted)
	roundAdvanced  []func(context.Context, RoundAdvanced)
	gameFinished   []func(context.Context, GameFinished)
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

func (b *Bus) OnVoteCast(h func(context.Context, VoteCast)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voteCast = append(b.voteCast, h)
}

func (b *Bus) OnMatchCompleted(h func(context.Context, MatchCompleted)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matchCompleted = append(b.matchCompleted, h)
}

func (b *Bus) OnRoundAdvanced(h func(context.Context, RoundAdvanced)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roundAdvanced = append(b.roundAdvanced, h)
}

func (b *Bus) OnGameFinished(h func(context.Context, GameFinished)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gameFinished = append(b.gameFinished, h)
}

func (b *Bus) EmitVoteCast(ctx context.Context, e VoteCast) {
	b.mu.RLock()
	handlers := b.voteCast
	b.mu.RUnlock()
	for _, h := range handlers {
		b.dispatch(ctx, "vote:cast", func(ctx context.Context) { h(ctx, e) })
	}
}

func (b *Bus) EmitMatchCompleted(ctx context.Context, e MatchCompleted) {
	b.mu.RLock()
	handlers := b.matchCompleted
	b.mu.RUnlock()
	for _, h := range handlers {
		b.dispatch(ctx, "match:completed", func(ctx context.Context) { h(ctx, e) })
	}
}

func (b *Bus) EmitRoundAdvanced(ctx context.Context, e RoundAdvanced) {
	b.mu.RLock()
	handlers := b.roundAdvanced
	b.mu.RUnlock()
	for _, h := range handlers {
		b.dispatch(ctx, "round:advanced", func(ctx context.Context) { h(ctx, e) })
	}
}

func (b *Bus) EmitGameFinished(ctx context.Context, e GameFinished) {
	b.mu.RLock()
	handlers := b.gameFinished
	b.mu.RUnlock()
	for _, h := range handlers {
		b.dispatch(ctx, "game:finished", func(ctx context.Context) { h(ctx, e) })
	}
}

func (b *Bus) dispatch(ctx context.Context, kind string, run func(context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("event handler panicked",
				slog.String("event", kind),
				slog.Any("panic", p))
		}
	}()
	run(ctx)
}
