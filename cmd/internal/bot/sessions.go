package bot

import (
	"sync"
	"time"

	"pinbot/cmd/internal/reconcile"
	"pinbot/cmd/internal/tier"
)

// followUps tracks which users may still press the buttons of an updateinfo
// reply in a guild, and the member lists their last run produced for paging.
// Expired entries are dropped lazily on access.
type followUps struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[sessionKey]*followUp
}

type sessionKey struct{ guildID, userID string }

type followUp struct {
	deadline time.Time
	missing  map[tier.Tier][]reconcile.Member
}

func newFollowUps(ttl time.Duration) *followUps {
	return &followUps{ttl: ttl, m: make(map[sessionKey]*followUp)}
}

func (f *followUps) open(guildID, userID string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweep(now)
	f.m[sessionKey{guildID, userID}] = &followUp{deadline: now.Add(f.ttl), missing: make(map[tier.Tier][]reconcile.Member)}
}

func (f *followUps) active(guildID, userID string, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweep(now)
	_, ok := f.m[sessionKey{guildID, userID}]
	return ok
}

// remember stores the users-without-pins list of a run for later pages.
func (f *followUps) remember(guildID, userID string, t tier.Tier, users []reconcile.Member, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweep(now)
	if s, ok := f.m[sessionKey{guildID, userID}]; ok {
		s.missing[t] = users
	}
}

// missing returns the remembered list for t; ok is false once the session expired.
func (f *followUps) missing(guildID, userID string, t tier.Tier, now time.Time) ([]reconcile.Member, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweep(now)
	s, ok := f.m[sessionKey{guildID, userID}]
	if !ok {
		return nil, false
	}
	return s.missing[t], true
}

func (f *followUps) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.m)
}

func (f *followUps) sweep(now time.Time) {
	for id, s := range f.m {
		if !now.Before(s.deadline) {
			delete(f.m, id)
		}
	}
}
