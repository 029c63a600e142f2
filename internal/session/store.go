package session

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// Session is the per-sender conversation state record. Handlers receive
// snapshot copies; the store owns the live record.
type Session struct {
	SenderID      string
	Name          string
	ActiveFlow    string
	State         map[string]string
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	ExpiresAt     time.Time
}

// Snapshot returns a deep copy safe to hand to a flow handler.
func (s *Session) Snapshot() Session {
	cp := *s
	cp.State = make(map[string]string, len(s.State))
	for k, v := range s.State {
		cp.State[k] = v
	}
	return cp
}

// ExpireFunc is invoked with a snapshot of each session that is removed
// by the TTL sweep (or found expired on access), before the reset. The
// lead-appointment drop-off lead is emitted from here.
type ExpireFunc func(old Session)

type entry struct {
	mu sync.Mutex // serializes all work for one sender
	s  *Session
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Store is a sharded, TTL-bounded session store. Shard locks only guard
// map membership; a per-sender mutex serializes dispatch work, so
// concurrent senders never contend on a global lock.
type Store struct {
	shards   [shardCount]*shard
	ttl      time.Duration
	onExpire ExpireFunc
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	st := &Store{ttl: ttl, now: time.Now}
	for i := range st.shards {
		st.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return st
}

// OnExpire registers the hook run for sessions removed by expiry.
func (st *Store) OnExpire(fn ExpireFunc) {
	st.onExpire = fn
}

func (st *Store) shardFor(senderID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(senderID))
	return st.shards[h.Sum32()%shardCount]
}

func (st *Store) getOrCreateEntry(senderID string) *entry {
	sh := st.shardFor(senderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[senderID]
	if !ok {
		e = &entry{s: st.fresh(senderID)}
		sh.entries[senderID] = e
	}
	return e
}

func (st *Store) fresh(senderID string) *Session {
	now := st.now()
	return &Session{
		SenderID:      senderID,
		State:         make(map[string]string),
		CreatedAt:     now,
		LastUpdatedAt: now,
		ExpiresAt:     now.Add(st.ttl),
	}
}

// GetOrCreate returns a snapshot of the sender's session, creating a
// fresh one if none exists. Never returns a zero session.
func (st *Store) GetOrCreate(senderID string) Session {
	e := st.getOrCreateEntry(senderID)
	e.mu.Lock()
	defer e.mu.Unlock()
	st.resetIfExpired(e)
	return e.s.Snapshot()
}

// WithSession runs fn while holding the sender's lock, serializing all
// state transitions for one sender. fn mutates the live session; the
// store bumps the freshness timestamps afterwards.
func (st *Store) WithSession(senderID string, fn func(s *Session)) {
	e := st.getOrCreateEntry(senderID)
	e.mu.Lock()
	defer e.mu.Unlock()

	st.resetIfExpired(e)
	fn(e.s)

	now := st.now()
	e.s.LastUpdatedAt = now
	e.s.ExpiresAt = now.Add(st.ttl)
}

// resetIfExpired runs the expiry hook and replaces the record when a
// session outlived its TTL; the caller holds the entry lock.
func (st *Store) resetIfExpired(e *entry) {
	if st.now().Before(e.s.ExpiresAt) {
		return
	}
	if st.onExpire != nil && e.s.ActiveFlow != "" {
		st.onExpire(e.s.Snapshot())
	}
	e.s = st.fresh(e.s.SenderID)
}

// Clear resets the sender to a fresh empty session, preserving nothing.
func (st *Store) Clear(senderID string) {
	e := st.getOrCreateEntry(senderID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s = st.fresh(senderID)
}

// ExpireSweep removes sessions past their ExpiresAt. Expiry hooks run
// outside the shard locks; a session swept mid-use simply reappears
// fresh on next access.
func (st *Store) ExpireSweep(now time.Time) int {
	swept := 0
	for _, sh := range st.shards {
		sh.mu.Lock()
		candidates := make(map[string]*entry)
		for id, e := range sh.entries {
			candidates[id] = e
		}
		sh.mu.Unlock()

		for id, e := range candidates {
			e.mu.Lock()
			if now.Before(e.s.ExpiresAt) {
				e.mu.Unlock()
				continue
			}
			old := e.s.Snapshot()
			e.s = st.fresh(id)
			e.mu.Unlock()

			sh.mu.Lock()
			delete(sh.entries, id)
			sh.mu.Unlock()

			if st.onExpire != nil && old.ActiveFlow != "" {
				st.onExpire(old)
			}
			swept++
		}
	}
	return swept
}

// Len reports the number of live sessions across all shards.
func (st *Store) Len() int {
	n := 0
	for _, sh := range st.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
