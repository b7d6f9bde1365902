package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/songclash/songclash/brackets"
	"github.com/songclash/songclash/events"
	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/repositories/memory"
	"github.com/songclash/songclash/services"
)

type recordingHub struct {
	mu       sync.Mutex
	messages []models.PushMessage
}

func (h *recordingHub) Broadcast(_ string, message models.PushMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *recordingHub) SendToPlayer(_, _ string, message models.PushMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *recordingHub) count(kind models.PushType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.messages {
		if m.Type == kind {
			n++
		}
	}
	return n
}

type env struct {
	store       *memory.Store
	hub         *recordingHub
	sessions    services.SessionService
	tournaments services.TournamentService
	votes       services.VoteService
}

func newEnv(seed int64) *env {
	store := memory.NewStore()
	hub := &recordingHub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(logger)
	locker := services.NewMatchLocker()
	ladder := brackets.NewLadderGenerator(rand.New(rand.NewSource(seed)))

	sessions := services.NewSessionService(
		store.Sessions(), store.Players(), store.Tournaments(),
		store.Songs(), store.Matches(), hub,
	)
	tournaments := services.NewTournamentService(
		store.Sessions(), store.Players(), store.Tournaments(),
		store.Songs(), store.Matches(),
		ladder, sessions, hub, nil, logger,
	)
	votes := services.NewVoteService(
		store.Players(), store.Tournaments(), store.Matches(), store.Votes(),
		locker, bus, sessions, hub, logger,
	)
	progression := services.NewProgressionService(
		store.Players(), store.Tournaments(), store.Songs(),
		store.Matches(), store.Votes(),
		ladder, locker, bus, sessions, hub, logger,
	)
	progression.Register()

	return &env{
		store:       store,
		hub:         hub,
		sessions:    sessions,
		tournaments: tournaments,
		votes:       votes,
	}
}

const ownerAccount = "owner-account"

// setupSession creates a session and joins the given players; the first one
// joins with the owner's account identity.
func setupSession(t *testing.T, e *env, names ...string) (*models.Session, []*models.Player) {
	t.Helper()
	ctx := context.Background()

	session, err := e.sessions.Create(ctx, ownerAccount)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	players := make([]*models.Player, 0, len(names))
	for i, name := range names {
		identity := ""
		if i == 0 {
			identity = ownerAccount
		}
		player, err := e.sessions.Join(ctx, session.ID, name, identity)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		players = append(players, player)
	}
	return session, players
}

// startRound walks a session through category selection and submission into
// a running bracket, one song per player.
func startRound(t *testing.T, e *env, sessionID string, players []*models.Player) *models.Tournament {
	t.Helper()
	ctx := context.Background()

	tournament, err := e.tournaments.NewRound(ctx, sessionID, players[0].ID)
	if err != nil {
		t.Fatalf("new round: %v", err)
	}

	pickerIdx := tournament.CurrentPickerIndex % len(players)
	if _, err := e.tournaments.SubmitCategory(ctx, sessionID, players[pickerIdx].ID, "guilty pleasures"); err != nil {
		t.Fatalf("submit category: %v", err)
	}

	for i, p := range players {
		if _, err := e.tournaments.SubmitSong(ctx, sessionID, p.ID, services.SongInput{
			SpotifyID: "spotify-" + p.ID,
			Name:      "song-" + p.Name,
			StartTime: i * 10,
		}); err != nil {
			t.Fatalf("submit song for %s: %v", p.Name, err)
		}
	}

	tournament, err = e.tournaments.Start(ctx, sessionID, players[0].ID)
	if err != nil {
		t.Fatalf("start tournament: %v", err)
	}
	return tournament
}

func currentMatch(t *testing.T, e *env, tournamentID string, number int) *models.Match {
	t.Helper()
	match, err := e.store.Matches().GetByNumber(context.Background(), tournamentID, number)
	if err != nil {
		t.Fatalf("get match %d: %v", number, err)
	}
	return match
}

func TestFullGameToWinner(t *testing.T) {
	e := newEnv(42)
	ctx := context.Background()
	session, players := setupSession(t, e, "Alice", "Bob", "Cara")

	tournament := startRound(t, e, session.ID, players)
	if tournament.Status != models.TournamentStatusTournament {
		t.Fatalf("tournament status = %s, want tournament", tournament.Status)
	}
	if tournament.CurrentRound != 1 {
		t.Errorf("current round = %d, want 1", tournament.CurrentRound)
	}

	matches, err := e.store.Matches().ListByTournament(ctx, tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("3 songs should produce 2 matches, got %d", len(matches))
	}

	// Match 0: two votes for A, one for B.
	match := currentMatch(t, e, tournament.ID, 0)
	if match.Status != models.MatchStatusPlaying {
		t.Fatalf("opening match status = %s, want playing", match.Status)
	}
	expectedWinner := *match.SongAID
	for i, p := range players {
		choice := *match.SongAID
		if i == 2 {
			choice = *match.SongBID
		}
		if _, err := e.votes.CastVote(ctx, session.ID, p.ID, match.ID, choice); err != nil {
			t.Fatalf("vote by %s: %v", p.Name, err)
		}
	}

	match = currentMatch(t, e, tournament.ID, 0)
	if match.Status != models.MatchStatusCompleted {
		t.Fatalf("match 0 status after all votes = %s, want completed", match.Status)
	}
	if match.WinnerID == nil || *match.WinnerID != expectedWinner {
		t.Fatalf("match 0 winner = %v, want %s", match.WinnerID, expectedWinner)
	}
	if match.VotesA != 2 || match.VotesB != 1 {
		t.Errorf("match 0 tally = %d/%d, want 2/1", match.VotesA, match.VotesB)
	}

	// The winner moved into slot A of the successor, which is now live.
	next := currentMatch(t, e, tournament.ID, 1)
	if next.Status != models.MatchStatusPlaying {
		t.Fatalf("match 1 status = %s, want playing", next.Status)
	}
	if next.SongAID == nil || *next.SongAID != expectedWinner {
		t.Fatalf("match 1 slot A = %v, want previous winner %s", next.SongAID, expectedWinner)
	}

	// Match 1: everyone votes for the challenger.
	finalWinner := *next.SongBID
	for _, p := range players {
		if _, err := e.votes.CastVote(ctx, session.ID, p.ID, next.ID, finalWinner); err != nil {
			t.Fatalf("final vote by %s: %v", p.Name, err)
		}
	}

	finished, err := e.store.Tournaments().GetByID(ctx, tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	if finished.Status != models.TournamentStatusFinished {
		t.Fatalf("tournament status = %s, want finished", finished.Status)
	}
	if finished.WinningSongID == nil || *finished.WinningSongID != finalWinner {
		t.Fatalf("winning song = %v, want %s", finished.WinningSongID, finalWinner)
	}

	if got := e.hub.count(models.PushMatchEnded); got != 2 {
		t.Errorf("match_ended broadcasts = %d, want 2", got)
	}
	if got := e.hub.count(models.PushGameWinner); got != 1 {
		t.Errorf("game_winner broadcasts = %d, want 1", got)
	}
	if got := e.hub.count(models.PushMatchStarted); got != 2 {
		t.Errorf("match_started broadcasts = %d, want 2", got)
	}
}

func TestVoteReplacementMovesTally(t *testing.T) {
	e := newEnv(3)
	ctx := context.Background()
	session, players := setupSession(t, e, "Alice", "Bob")

	tournament := startRound(t, e, session.ID, players)
	match := currentMatch(t, e, tournament.ID, 0)
	songA, songB := *match.SongAID, *match.SongBID

	if _, err := e.votes.CastVote(ctx, session.ID, players[0].ID, match.ID, songA); err != nil {
		t.Fatal(err)
	}
	updated, err := e.votes.CastVote(ctx, session.ID, players[0].ID, match.ID, songB)
	if err != nil {
		t.Fatal(err)
	}
	if updated.VotesA != 0 || updated.VotesB != 1 {
		t.Fatalf("tally after revote = %d/%d, want 0/1", updated.VotesA, updated.VotesB)
	}
	if updated.Status == models.MatchStatusCompleted {
		t.Fatal("one voter revoting must not complete the match")
	}

	// Second player's vote completes it: 0 votes A, 2 votes B.
	if _, err := e.votes.CastVote(ctx, session.ID, players[1].ID, match.ID, songB); err != nil {
		t.Fatal(err)
	}
	match = currentMatch(t, e, tournament.ID, 0)
	if match.Status != models.MatchStatusCompleted {
		t.Fatalf("match status = %s, want completed", match.Status)
	}
	if *match.WinnerID != songB {
		t.Errorf("winner = %s, want %s", *match.WinnerID, songB)
	}
}

func TestKickedPlayerVoteSurvives(t *testing.T) {
	e := newEnv(11)
	ctx := context.Background()
	session, players := setupSession(t, e, "Alice", "Bob", "Cara")
	alice, bob, cara := players[0], players[1], players[2]

	tournament := startRound(t, e, session.ID, players)
	match := currentMatch(t, e, tournament.ID, 0)
	songA, songB := *match.SongAID, *match.SongBID

	if _, err := e.votes.CastVote(ctx, session.ID, alice.ID, match.ID, songA); err != nil {
		t.Fatal(err)
	}
	if _, err := e.votes.CastVote(ctx, session.ID, cara.ID, match.ID, songA); err != nil {
		t.Fatal(err)
	}

	if err := e.sessions.Kick(ctx, session.ID, cara.ID, ownerAccount); err != nil {
		t.Fatalf("kick: %v", err)
	}

	// Two recorded votes against a roster of two: the next vote closes it,
	// and the kicked player's vote still counts.
	if _, err := e.votes.CastVote(ctx, session.ID, bob.ID, match.ID, songB); err != nil {
		t.Fatal(err)
	}

	match = currentMatch(t, e, tournament.ID, 0)
	if match.Status != models.MatchStatusCompleted {
		t.Fatalf("match status = %s, want completed", match.Status)
	}
	if match.VotesA != 2 || match.VotesB != 1 {
		t.Errorf("tally = %d/%d, want 2/1 with kicked player's vote kept", match.VotesA, match.VotesB)
	}
	if *match.WinnerID != songA {
		t.Errorf("winner = %s, want %s", *match.WinnerID, songA)
	}

	// The kicked player's song stays seeded and the remaining two players
	// can drive the bracket to a finish.
	songs, err := e.store.Songs().ListByTournament(ctx, tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 3 {
		t.Errorf("songs after kick = %d, want 3", len(songs))
	}
	next := currentMatch(t, e, tournament.ID, 1)
	if next.Status != models.MatchStatusPlaying {
		t.Fatalf("match 1 status = %s, want playing", next.Status)
	}
	for _, p := range []*models.Player{alice, bob} {
		if _, err := e.votes.CastVote(ctx, session.ID, p.ID, next.ID, *next.SongAID); err != nil {
			t.Fatal(err)
		}
	}
	finished, err := e.store.Tournaments().GetByID(ctx, tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	if finished.Status != models.TournamentStatusFinished {
		t.Errorf("tournament status = %s, want finished", finished.Status)
	}
}

func TestJoinAfterKickGetsFreshOrder(t *testing.T) {
	e := newEnv(1)
	ctx := context.Background()
	session, players := setupSession(t, e, "Alice", "Bob", "Cara")

	if err := e.sessions.Kick(ctx, session.ID, players[1].ID, ownerAccount); err != nil {
		t.Fatalf("kick: %v", err)
	}

	// The new order must step past the surviving players, not reuse the
	// roster count (which would collide with Cara's order 2).
	late, err := e.sessions.Join(ctx, session.ID, "Dave", "")
	if err != nil {
		t.Fatalf("join after kick: %v", err)
	}
	if late.JoinOrder != 3 {
		t.Errorf("join order after kick = %d, want 3", late.JoinOrder)
	}
}

func TestPickerRotatesBetweenRounds(t *testing.T) {
	e := newEnv(5)
	ctx := context.Background()
	session, players := setupSession(t, e, "Alice", "Bob")

	tournament := startRound(t, e, session.ID, players)
	if tournament.CurrentPickerIndex != 0 {
		t.Fatalf("first round picker index = %d, want 0", tournament.CurrentPickerIndex)
	}

	// Opening a second round mid-tournament is rejected.
	if _, err := e.tournaments.NewRound(ctx, session.ID, players[0].ID); !errors.Is(err, services.ErrActiveTournamentExists) {
		t.Fatalf("new round during active tournament: got %v, want ErrActiveTournamentExists", err)
	}

	// Finish the single match.
	match := currentMatch(t, e, tournament.ID, 0)
	for _, p := range players {
		if _, err := e.votes.CastVote(ctx, session.ID, p.ID, match.ID, *match.SongAID); err != nil {
			t.Fatal(err)
		}
	}

	second, err := e.tournaments.NewRound(ctx, session.ID, players[1].ID)
	if err != nil {
		t.Fatalf("second round: %v", err)
	}
	if second.CurrentPickerIndex != 1 {
		t.Errorf("second round picker index = %d, want 1", second.CurrentPickerIndex)
	}

	// Only the new picker may set the category.
	if _, err := e.tournaments.SubmitCategory(ctx, session.ID, players[0].ID, "road trip songs"); !errors.Is(err, services.ErrNotPicker) {
		t.Errorf("wrong picker: got %v, want ErrNotPicker", err)
	}
	if _, err := e.tournaments.SubmitCategory(ctx, session.ID, players[1].ID, "road trip songs"); err != nil {
		t.Errorf("rightful picker rejected: %v", err)
	}
}

func TestPhaseAndValidationGuards(t *testing.T) {
	e := newEnv(9)
	ctx := context.Background()
	session, players := setupSession(t, e, "Alice", "Bob")
	alice, bob := players[0], players[1]

	tournament, err := e.tournaments.NewRound(ctx, session.ID, alice.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Song submission before the category is announced.
	if _, err := e.tournaments.SubmitSong(ctx, session.ID, alice.ID, services.SongInput{
		SpotifyID: "x", Name: "y",
	}); !errors.Is(err, services.ErrWrongPhase) {
		t.Errorf("song before category: got %v, want ErrWrongPhase", err)
	}

	longCategory := make([]byte, 101)
	for i := range longCategory {
		longCategory[i] = 'x'
	}
	if _, err := e.tournaments.SubmitCategory(ctx, session.ID, alice.ID, string(longCategory)); !errors.Is(err, services.ErrCategoryTooLong) {
		t.Errorf("long category: got %v, want ErrCategoryTooLong", err)
	}

	if _, err := e.tournaments.SubmitCategory(ctx, session.ID, alice.ID, "one hit wonders"); err != nil {
		t.Fatal(err)
	}

	// Starting needs at least two songs and the owner seat.
	if _, err := e.tournaments.Start(ctx, session.ID, alice.ID); !errors.Is(err, services.ErrInsufficientSongs) {
		t.Errorf("start with no songs: got %v, want ErrInsufficientSongs", err)
	}
	for _, p := range players {
		if _, err := e.tournaments.SubmitSong(ctx, session.ID, p.ID, services.SongInput{
			SpotifyID: "spotify-" + p.ID, Name: "song-" + p.Name,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.tournaments.Start(ctx, session.ID, bob.ID); !errors.Is(err, services.ErrOwnerOnly) {
		t.Errorf("start by non-owner: got %v, want ErrOwnerOnly", err)
	}
	if _, err := e.tournaments.Start(ctx, session.ID, alice.ID); err != nil {
		t.Fatal(err)
	}

	// Voting for a song outside the match is rejected.
	match := currentMatch(t, e, tournament.ID, 0)
	if _, err := e.votes.CastVote(ctx, session.ID, alice.ID, match.ID, "not-in-match"); !errors.Is(err, services.ErrSongNotInMatch) {
		t.Errorf("foreign song vote: got %v, want ErrSongNotInMatch", err)
	}
}

func TestSnapshotCoversWholeSession(t *testing.T) {
	e := newEnv(17)
	ctx := context.Background()
	session, players := setupSession(t, e, "Alice", "Bob", "Cara")

	tournament := startRound(t, e, session.ID, players)

	state, err := e.sessions.Snapshot(ctx, session.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if state.Tournament == nil || state.Tournament.ID != tournament.ID {
		t.Fatal("snapshot missing the active tournament")
	}
	if len(state.Players) != 3 {
		t.Errorf("snapshot players = %d, want 3", len(state.Players))
	}
	if len(state.Songs) != 3 {
		t.Errorf("snapshot songs = %d, want 3", len(state.Songs))
	}
	if len(state.Matches) != 2 {
		t.Errorf("snapshot matches = %d, want 2", len(state.Matches))
	}

	// After the game finishes the snapshot still carries the finished
	// tournament so clients can render the winner screen.
	for number := 0; number <= 1; number++ {
		match := currentMatch(t, e, tournament.ID, number)
		for _, p := range players {
			if _, err := e.votes.CastVote(ctx, session.ID, p.ID, match.ID, *match.SongAID); err != nil {
				t.Fatal(err)
			}
		}
	}
	state, err = e.sessions.Snapshot(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if state.Tournament == nil || state.Tournament.Status != models.TournamentStatusFinished {
		t.Error("snapshot after finish should fall back to the finished tournament")
	}
}

func TestJoinAssignsOrderAndOwner(t *testing.T) {
	e := newEnv(1)
	_, players := setupSession(t, e, "Alice", "Bob", "Cara")

	for i, p := range players {
		if p.JoinOrder != i {
			t.Errorf("%s join order = %d, want %d", p.Name, p.JoinOrder, i)
		}
	}
	if !players[0].IsOwner {
		t.Error("first joiner with the owner account should hold the owner seat")
	}
	if players[1].IsOwner || players[2].IsOwner {
		t.Error("guests must not hold the owner seat")
	}
}

// Any roster of N players yields exactly N-1 matches and a finished
// tournament once every match gets its votes.
func TestLadderFinishesForLargerRosters(t *testing.T) {
	for _, n := range []int{4, 6, 9} {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			e := newEnv(int64(100 + n))
			ctx := context.Background()

			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("Player%02d", i)
			}
			session, players := setupSession(t, e, names...)
			tournament := startRound(t, e, session.ID, players)

			// Everyone backs slot A each match, so the reigning winner
			// climbs the whole ladder without ties.
			for number := 0; number < n-1; number++ {
				match := currentMatch(t, e, tournament.ID, number)
				if match.Status != models.MatchStatusPlaying {
					t.Fatalf("match %d status = %s, want playing", number, match.Status)
				}
				for _, p := range players {
					if _, err := e.votes.CastVote(ctx, session.ID, p.ID, match.ID, *match.SongAID); err != nil {
						t.Fatalf("vote in match %d: %v", number, err)
					}
				}
			}

			matches, err := e.store.Matches().ListByTournament(ctx, tournament.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(matches) != n-1 {
				t.Fatalf("%d songs produced %d matches, want %d", n, len(matches), n-1)
			}
			completed := 0
			for _, m := range matches {
				if m.Status == models.MatchStatusCompleted {
					completed++
				}
			}
			if completed != n-1 {
				t.Errorf("completed matches = %d, want %d", completed, n-1)
			}

			finished, err := e.store.Tournaments().GetByID(ctx, tournament.ID)
			if err != nil {
				t.Fatal(err)
			}
			if finished.Status != models.TournamentStatusFinished {
				t.Errorf("tournament status = %s, want finished", finished.Status)
			}
			if finished.WinningSongID == nil {
				t.Error("finished tournament carries no winning song")
			}
		})
	}
}

func TestArchivedSessionRejectsJoin(t *testing.T) {
	e := newEnv(1)
	ctx := context.Background()
	session, _ := setupSession(t, e, "Alice")

	if err := e.sessions.Archive(ctx, session.ID, ownerAccount); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := e.sessions.Join(ctx, session.ID, "Latecomer", ""); !errors.Is(err, services.ErrSessionArchived) {
		t.Errorf("join archived session: got %v, want ErrSessionArchived", err)
	}
}
