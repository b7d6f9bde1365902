package models

import (
	"encoding/json"
	"testing"
)

func TestDecodePushMessageRoundTrip(t *testing.T) {
	song := Song{ID: "s1", Name: "Bohemian Rhapsody", ArtistName: "Queen"}
	messages := []PushMessage{
		NewPlayerJoined(Player{ID: "p1", Name: "Alice"}),
		NewPlayerLeft("p2"),
		NewCategoryAnnounced("80s power ballads"),
		NewSongSubmitted(song),
		NewMatchStarted(MatchStartedData{MatchID: "m1", SongA: &song, DurationSeconds: 30}),
		NewMatchEnded(MatchEndedData{MatchID: "m1", WinnerID: "s1", VotesA: 2, VotesB: 1}),
		NewRoundComplete(3),
		NewGameWinner("s1"),
		NewGameState(GameState{Session: Session{ID: "sess1"}}),
		NewPlaybackStarted(PlaybackStartedData{MatchID: "m1", SongID: "s1"}),
		NewPlaybackStopped("m1"),
	}

	for _, msg := range messages {
		raw, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal %s: %v", msg.Type, err)
		}
		decoded, err := DecodePushMessage(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", msg.Type, err)
		}
		if decoded.Type != msg.Type {
			t.Errorf("decoded type = %s, want %s", decoded.Type, msg.Type)
		}
		if decoded.Data == nil {
			t.Errorf("decoded %s payload is nil", msg.Type)
		}
	}
}

func TestDecodePushMessagePayloadFields(t *testing.T) {
	raw, err := json.Marshal(NewMatchEnded(MatchEndedData{
		MatchID: "m1", WinnerID: "s2", VotesA: 1, VotesB: 3,
	}))
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodePushMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	data, ok := decoded.Data.(*MatchEndedData)
	if !ok {
		t.Fatalf("payload type = %T, want *MatchEndedData", decoded.Data)
	}
	if data.WinnerID != "s2" || data.VotesA != 1 || data.VotesB != 3 {
		t.Errorf("payload fields lost in round trip: %+v", data)
	}
}

func TestDecodePushMessageRejectsUnknownKind(t *testing.T) {
	if _, err := DecodePushMessage([]byte(`{"type":"confetti","data":{}}`)); err == nil {
		t.Error("expected error for unknown message type")
	}
}

func TestDecodePushMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodePushMessage([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed envelope")
	}
}
