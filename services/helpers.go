package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/songclash/songclash/models"
)

// Broadcaster is the slice of the live-update hub the services need. The
// realtime.Hub satisfies it; tests plug in a recording fake.
type Broadcaster interface {
	Broadcast(sessionID string, message models.PushMessage)
	SendToPlayer(sessionID, playerID string, message models.PushMessage)
}

func newID() string {
	return uuid.NewString()
}

// MatchLocker hands out one mutex per match id so vote recording and the
// completion check for a match are serialized against each other. Locks are
// never evicted; matches per process stay in the hundreds.
type MatchLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMatchLocker() *MatchLocker {
	return &MatchLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MatchLocker) Get(matchID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[matchID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[matchID] = lock
	}
	return lock
}
