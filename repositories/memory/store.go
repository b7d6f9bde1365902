// Package memory holds an in-memory reference implementation of every
// repository interface. It backs the test suite and single-node development
// runs; the cascade rules mirror the foreign keys in db/schema.sql.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/repositories"
)

type Store struct {
	mu sync.RWMutex

	sessions    map[string]models.Session
	players     map[string]models.Player
	tournaments map[string]models.Tournament
	songs       map[string]models.Song
	matches     map[string]models.Match
	users       map[string]models.User
	// votes keyed by matchID then playerID, enforcing the one-vote-per-pair
	// rule by construction.
	votes map[string]map[string]models.Vote

	seq     int64
	inserts map[string]int64 // entity id -> insertion order, for stable sorts
}

func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]models.Session),
		players:     make(map[string]models.Player),
		tournaments: make(map[string]models.Tournament),
		songs:       make(map[string]models.Song),
		matches:     make(map[string]models.Match),
		users:       make(map[string]models.User),
		votes:       make(map[string]map[string]models.Vote),
		inserts:     make(map[string]int64),
	}
}

func (s *Store) nextSeq(id string) {
	s.seq++
	s.inserts[id] = s.seq
}

// Sessions returns the store as a SessionRepository; the sibling accessors
// do the same for the other entity types.
func (s *Store) Sessions() repositories.SessionRepository       { return (*sessionStore)(s) }
func (s *Store) Players() repositories.PlayerRepository         { return (*playerStore)(s) }
func (s *Store) Tournaments() repositories.TournamentRepository { return (*tournamentStore)(s) }
func (s *Store) Songs() repositories.SongRepository             { return (*songStore)(s) }
func (s *Store) Matches() repositories.MatchRepository          { return (*matchStore)(s) }
func (s *Store) Votes() repositories.VoteRepository             { return (*voteStore)(s) }
func (s *Store) Users() repositories.UserRepository             { return (*userStore)(s) }

type sessionStore Store

func (s *sessionStore) Create(_ context.Context, session *models.Session) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	session.CreatedAt = time.Now()
	st.sessions[session.ID] = *session
	st.nextSeq(session.ID)
	return nil
}

func (s *sessionStore) GetByID(_ context.Context, id string) (*models.Session, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	session, ok := st.sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	return &session, nil
}

func (s *sessionStore) Update(_ context.Context, id string, update models.SessionUpdate) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.sessions[id]
	if !ok {
		return repositories.ErrSessionNotFound
	}
	if update.Status != nil {
		session.Status = *update.Status
	}
	st.sessions[id] = session
	return nil
}

func (s *sessionStore) Delete(_ context.Context, id string) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return repositories.ErrSessionNotFound
	}
	for pid, p := range st.players {
		if p.SessionID == id {
			st.deletePlayerLocked(pid)
		}
	}
	for tid, t := range st.tournaments {
		if t.SessionID == id {
			st.deleteTournamentLocked(tid)
		}
	}
	delete(st.sessions, id)
	return nil
}

type playerStore Store

func (s *playerStore) Create(_ context.Context, player *models.Player) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[player.SessionID]; !ok {
		return repositories.ErrPlayerSessionInvalid
	}
	// One past the highest order in the session, never the roster size:
	// after a kick the count would collide with a surviving player.
	player.JoinOrder = 0
	for _, p := range st.players {
		if p.SessionID == player.SessionID && p.JoinOrder >= player.JoinOrder {
			player.JoinOrder = p.JoinOrder + 1
		}
	}
	player.CreatedAt = time.Now()
	st.players[player.ID] = *player
	st.nextSeq(player.ID)
	return nil
}

func (s *playerStore) GetByID(_ context.Context, id string) (*models.Player, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	player, ok := st.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	return &player, nil
}

func (s *playerStore) ListBySession(_ context.Context, sessionID string) ([]*models.Player, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	players := make([]*models.Player, 0)
	for _, p := range st.players {
		if p.SessionID == sessionID {
			player := p
			players = append(players, &player)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinOrder < players[j].JoinOrder
	})
	return players, nil
}

func (s *playerStore) CountBySession(ctx context.Context, sessionID string) (int, error) {
	players, err := s.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return len(players), nil
}

func (s *playerStore) Update(_ context.Context, id string, update models.PlayerUpdate) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	player, ok := st.players[id]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	if update.Name != nil {
		player.Name = *update.Name
	}
	if update.SpotifyDeviceID != nil {
		player.SpotifyDeviceID = update.SpotifyDeviceID
	}
	st.players[id] = player
	return nil
}

func (s *playerStore) Delete(_ context.Context, id string) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.players[id]; !ok {
		return repositories.ErrPlayerNotFound
	}
	st.deletePlayerLocked(id)
	return nil
}

// deletePlayerLocked removes the player but leaves their recorded votes
// and submitted songs in place: tallies keep their history, seeded brackets
// keep their slots, and the post-kick voter threshold is checked against
// the remaining roster.
func (st *Store) deletePlayerLocked(id string) {
	delete(st.players, id)
}

type tournamentStore Store

func (s *tournamentStore) Create(_ context.Context, tournament *models.Tournament) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[tournament.SessionID]; !ok {
		return repositories.ErrTournamentSessionInvalid
	}
	tournament.CreatedAt = time.Now()
	st.tournaments[tournament.ID] = *tournament
	st.nextSeq(tournament.ID)
	return nil
}

func (s *tournamentStore) GetByID(_ context.Context, id string) (*models.Tournament, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	tournament, ok := st.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &tournament, nil
}

func (s *tournamentStore) GetActiveBySession(_ context.Context, sessionID string) (*models.Tournament, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.latestTournamentLocked(sessionID, true)
}

func (s *tournamentStore) GetLatestBySession(_ context.Context, sessionID string) (*models.Tournament, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.latestTournamentLocked(sessionID, false)
}

func (st *Store) latestTournamentLocked(sessionID string, activeOnly bool) (*models.Tournament, error) {
	var latest *models.Tournament
	var latestSeq int64 = -1
	for id, t := range st.tournaments {
		if t.SessionID != sessionID {
			continue
		}
		if activeOnly && t.Status == models.TournamentStatusFinished {
			continue
		}
		if st.inserts[id] > latestSeq {
			tournament := t
			latest = &tournament
			latestSeq = st.inserts[id]
		}
	}
	if latest == nil {
		return nil, repositories.ErrTournamentNotFound
	}
	return latest, nil
}

func (s *tournamentStore) ListBySession(_ context.Context, sessionID string) ([]*models.Tournament, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	tournaments := make([]*models.Tournament, 0)
	for _, t := range st.tournaments {
		if t.SessionID == sessionID {
			tournament := t
			tournaments = append(tournaments, &tournament)
		}
	}
	sort.Slice(tournaments, func(i, j int) bool {
		return st.inserts[tournaments[i].ID] < st.inserts[tournaments[j].ID]
	})
	return tournaments, nil
}

func (s *tournamentStore) Update(_ context.Context, id string, update models.TournamentUpdate) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	tournament, ok := st.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if update.Category != nil {
		tournament.Category = *update.Category
	}
	if update.Status != nil {
		tournament.Status = *update.Status
	}
	if update.CurrentRound != nil {
		tournament.CurrentRound = *update.CurrentRound
	}
	if update.WinningSongID != nil {
		tournament.WinningSongID = update.WinningSongID
	}
	st.tournaments[id] = tournament
	return nil
}

func (s *tournamentStore) Delete(_ context.Context, id string) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	st.deleteTournamentLocked(id)
	return nil
}

func (st *Store) deleteTournamentLocked(id string) {
	for songID, song := range st.songs {
		if song.TournamentID == id {
			delete(st.songs, songID)
		}
	}
	for matchID, match := range st.matches {
		if match.TournamentID == id {
			delete(st.votes, matchID)
			delete(st.matches, matchID)
		}
	}
	delete(st.tournaments, id)
}

type songStore Store

func (s *songStore) Create(_ context.Context, song *models.Song) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.tournaments[song.TournamentID]; !ok {
		return repositories.ErrSongTournamentInvalid
	}
	if _, ok := st.players[song.PlayerID]; !ok {
		return repositories.ErrSongPlayerInvalid
	}
	song.CreatedAt = time.Now()
	st.songs[song.ID] = *song
	st.nextSeq(song.ID)
	return nil
}

func (s *songStore) GetByID(_ context.Context, id string) (*models.Song, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	song, ok := st.songs[id]
	if !ok {
		return nil, repositories.ErrSongNotFound
	}
	return &song, nil
}

func (s *songStore) ListByTournament(_ context.Context, tournamentID string) ([]*models.Song, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	songs := make([]*models.Song, 0)
	for _, song := range st.songs {
		if song.TournamentID == tournamentID {
			item := song
			songs = append(songs, &item)
		}
	}
	sort.Slice(songs, func(i, j int) bool {
		return st.inserts[songs[i].ID] < st.inserts[songs[j].ID]
	})
	return songs, nil
}

func (s *songStore) CountByTournament(ctx context.Context, tournamentID string) (int, error) {
	songs, err := s.ListByTournament(ctx, tournamentID)
	if err != nil {
		return 0, err
	}
	return len(songs), nil
}

func (s *songStore) Delete(_ context.Context, id string) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.songs[id]; !ok {
		return repositories.ErrSongNotFound
	}
	delete(st.songs, id)
	return nil
}

type matchStore Store

func (s *matchStore) Create(_ context.Context, match *models.Match) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.tournaments[match.TournamentID]; !ok {
		return repositories.ErrMatchTournamentInvalid
	}
	match.CreatedAt = time.Now()
	st.matches[match.ID] = *match
	st.nextSeq(match.ID)
	return nil
}

func (s *matchStore) GetByID(_ context.Context, id string) (*models.Match, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	match, ok := st.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &match, nil
}

func (s *matchStore) GetByNumber(_ context.Context, tournamentID string, matchNumber int) (*models.Match, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, match := range st.matches {
		if match.TournamentID == tournamentID && match.MatchNumber == matchNumber {
			found := match
			return &found, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (s *matchStore) ListByTournament(_ context.Context, tournamentID string) ([]*models.Match, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	matches := make([]*models.Match, 0)
	for _, match := range st.matches {
		if match.TournamentID == tournamentID {
			item := match
			matches = append(matches, &item)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].MatchNumber < matches[j].MatchNumber
	})
	return matches, nil
}

func (s *matchStore) Update(_ context.Context, id string, update models.MatchUpdate) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	match, ok := st.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if update.SongAID != nil {
		match.SongAID = update.SongAID
	}
	if update.SongBID != nil {
		match.SongBID = update.SongBID
	}
	if update.WinnerID != nil {
		match.WinnerID = update.WinnerID
	}
	if update.Status != nil {
		match.Status = *update.Status
	}
	if update.VotesA != nil {
		match.VotesA = *update.VotesA
	}
	if update.VotesB != nil {
		match.VotesB = *update.VotesB
	}
	if update.ClearCurrentlyPlaying {
		match.CurrentlyPlayingSongID = nil
	} else if update.CurrentlyPlayingSongID != nil {
		match.CurrentlyPlayingSongID = update.CurrentlyPlayingSongID
	}
	st.matches[id] = match
	return nil
}

func (s *matchStore) Delete(_ context.Context, id string) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.matches[id]; !ok {
		return repositories.ErrMatchNotFound
	}
	delete(st.votes, id)
	delete(st.matches, id)
	return nil
}

type voteStore Store

func (s *voteStore) Upsert(_ context.Context, vote *models.Vote) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.matches[vote.MatchID]; !ok {
		return repositories.ErrVoteMatchInvalid
	}
	byPlayer, ok := st.votes[vote.MatchID]
	if !ok {
		byPlayer = make(map[string]models.Vote)
		st.votes[vote.MatchID] = byPlayer
	}
	if existing, ok := byPlayer[vote.PlayerID]; ok {
		vote.ID = existing.ID
	}
	vote.CreatedAt = time.Now()
	byPlayer[vote.PlayerID] = *vote
	return nil
}

func (s *voteStore) GetByMatchAndPlayer(_ context.Context, matchID, playerID string) (*models.Vote, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	vote, ok := st.votes[matchID][playerID]
	if !ok {
		return nil, repositories.ErrVoteNotFound
	}
	return &vote, nil
}

func (s *voteStore) ListByMatch(_ context.Context, matchID string) ([]*models.Vote, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	votes := make([]*models.Vote, 0)
	for _, vote := range st.votes[matchID] {
		item := vote
		votes = append(votes, &item)
	}
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].CreatedAt.Before(votes[j].CreatedAt)
	})
	return votes, nil
}

func (s *voteStore) CountBySong(_ context.Context, matchID, songID string) (int, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	count := 0
	for _, vote := range st.votes[matchID] {
		if vote.SongID == songID {
			count++
		}
	}
	return count, nil
}

func (s *voteStore) CountDistinctVoters(_ context.Context, matchID string) (int, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.votes[matchID]), nil
}

type userStore Store

func (s *userStore) Create(_ context.Context, user *models.User) error {
	st := (*Store)(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, u := range st.users {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	user.CreatedAt = time.Now()
	st.users[user.ID] = *user
	return nil
}

func (s *userStore) GetByID(_ context.Context, id string) (*models.User, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	user, ok := st.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &user, nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	st := (*Store)(s)
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, user := range st.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}
