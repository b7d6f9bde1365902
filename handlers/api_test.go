package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/songclash/songclash/brackets"
	"github.com/songclash/songclash/events"
	"github.com/songclash/songclash/handlers"
	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/realtime"
	"github.com/songclash/songclash/repositories/memory"
	"github.com/songclash/songclash/routes"
	"github.com/songclash/songclash/services"
	"github.com/songclash/songclash/spotify"
)

const testJWTSecret = "test-secret"

type staticSearcher struct{}

func (staticSearcher) Search(context.Context, string, int) ([]spotify.Track, error) {
	return []spotify.Track{{SpotifyID: "t1", Name: "Song One", ArtistName: "Artist"}}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := realtime.NewHub(logger)
	bus := events.NewBus(logger)
	locker := services.NewMatchLocker()
	ladder := brackets.NewLadderGenerator(rand.New(rand.NewSource(1)))

	authService := services.NewAuthService(store.Users(), testJWTSecret)
	sessionService := services.NewSessionService(
		store.Sessions(), store.Players(), store.Tournaments(),
		store.Songs(), store.Matches(), hub,
	)
	tournamentService := services.NewTournamentService(
		store.Sessions(), store.Players(), store.Tournaments(),
		store.Songs(), store.Matches(),
		ladder, sessionService, hub, nil, logger,
	)
	voteService := services.NewVoteService(
		store.Players(), store.Tournaments(), store.Matches(), store.Votes(),
		locker, bus, sessionService, hub, logger,
	)
	playbackService := services.NewPlaybackService(
		store.Players(), store.Tournaments(), store.Songs(), store.Matches(),
		nil, hub, logger,
	)
	progression := services.NewProgressionService(
		store.Players(), store.Tournaments(), store.Songs(),
		store.Matches(), store.Votes(),
		ladder, locker, bus, sessionService, hub, logger,
	)
	progression.Register()

	router := chi.NewRouter()
	routes.Setup(router, routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Session:    handlers.NewSessionHandler(sessionService),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Vote:       handlers.NewVoteHandler(voteService),
		Playback:   handlers.NewPlaybackHandler(playbackService),
		Search:     handlers.NewSearchHandler(staticSearcher{}),
		Stream:     handlers.NewStreamHandler(hub, sessionService, logger),
	}, testJWTSecret)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body interface{}, headers map[string]string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	payload := map[string]json.RawMessage{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) > 0 {
		// Some endpoints return 204 with no body.
		_ = json.Unmarshal(raw, &payload)
	}
	return resp, payload
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)

	// Register a host account.
	resp, body := doJSON(t, http.MethodPost, server.URL+"/auth/signup", map[string]string{
		"email":    "host@example.com",
		"nickname": "dj-host",
		"password": "correct horse battery",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", resp.StatusCode)
	}
	var token string
	if err := json.Unmarshal(body["token"], &token); err != nil || token == "" {
		t.Fatalf("signup returned no token: %v", err)
	}
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	// Session creation requires the token.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/sessions", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create status = %d, want 401", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/sessions", nil, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", resp.StatusCode)
	}
	var session models.Session
	if err := json.Unmarshal(body["session"], &session); err != nil {
		t.Fatal(err)
	}

	// The host joins with their token and gets the owner seat.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/sessions/"+session.ID+"/players",
		map[string]string{"name": "Alice"}, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("owner join status = %d, want 201", resp.StatusCode)
	}
	var owner models.Player
	if err := json.Unmarshal(body["player"], &owner); err != nil {
		t.Fatal(err)
	}
	if !owner.IsOwner {
		t.Error("host join did not grant the owner seat")
	}

	// A guest joins without any credentials.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/sessions/"+session.ID+"/players",
		map[string]string{"name": "Bob"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("guest join status = %d, want 201", resp.StatusCode)
	}
	var guest models.Player
	if err := json.Unmarshal(body["player"], &guest); err != nil {
		t.Fatal(err)
	}
	if guest.IsOwner {
		t.Error("guest join granted the owner seat")
	}

	// The aggregate state endpoint sees both players.
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/sessions/"+session.ID+"/state", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state status = %d, want 200", resp.StatusCode)
	}

	// Gameplay routes demand the player header.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/sessions/"+session.ID+"/tournaments", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("round without player header status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/sessions/"+session.ID+"/tournaments", nil,
		map[string]string{"X-Player-ID": owner.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("new round status = %d, want 201", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/search", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("search without query status = %d, want 400", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, server.URL+"/search?q=queen", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, want 200", resp.StatusCode)
	}
	var tracks []spotify.Track
	if err := json.Unmarshal(body["tracks"], &tracks); err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].SpotifyID != "t1" {
		t.Fatalf("unexpected search results: %+v", tracks)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/sessions/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", resp.StatusCode)
	}
}
