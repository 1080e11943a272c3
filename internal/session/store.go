package session

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"intentgate/internal/config"
)

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Store is a sharded map of sessions. A shard lock is held only for map
// access, never for the duration of a turn, so sessions in the same shard do
// not wait on each other.
type Store struct {
	shards []*shard
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a store with n shards whose sessions expire after ttl of
// inactivity.
func NewStore(n int, ttl time.Duration) *Store {
	if n <= 0 {
		n = config.SessionShards
	}
	if ttl <= 0 {
		ttl = config.SessionTTL
	}
	s := &Store{shards: make([]*shard, n), ttl: ttl, now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// TTL returns the inactivity timeout.
func (s *Store) TTL() time.Duration { return s.ttl }

// Acquire returns the session for id, creating it on first use, and marks
// it active. created reports whether it is new.
func (s *Store) Acquire(id string) (sess *Session, created bool) {
	sh := s.shardFor(id)
	now := s.now()

	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if ok {
		sess.Touch(now)
		return sess, false
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sess, ok = sh.sessions[id]; ok {
		sess.Touch(now)
		return sess, false
	}
	sess = newSession(id, now)
	sh.sessions[id] = sess
	return sess, true
}

// Get returns an existing session.
func (s *Store) Get(id string) (*Session, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[id]
	return sess, ok
}

// Delete removes a session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[id]; !ok {
		return false
	}
	delete(sh.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// IDs returns the live session ids, sorted.
func (s *Store) IDs() []string {
	var ids []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id := range sh.sessions {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

// ExpirePending closes clarifications open for longer than timeout and
// returns the ids of the sessions it changed.
func (s *Store) ExpirePending(now time.Time, timeout time.Duration) []string {
	var live []*Session
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			live = append(live, sess)
		}
		sh.mu.RUnlock()
	}
	var ids []string
	for _, sess := range live {
		if sess.ExpirePending(now, timeout) {
			ids = append(ids, sess.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Sweep removes sessions idle for longer than the TTL and returns their ids.
// It reads last activity atomically and locks one shard at a time.
func (s *Store) Sweep(now time.Time) []string {
	var expired []string
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if now.Sub(sess.LastActivity()) > s.ttl {
				delete(sh.sessions, id)
				expired = append(expired, id)
			}
		}
		sh.mu.Unlock()
	}
	return expired
}
