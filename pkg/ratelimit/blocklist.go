package ratelimit

import "sync"

// Blocklist is the set of client addresses denied for the remainder of the
// process lifetime. Membership is monotonic: there is deliberately no
// removal operation.
type Blocklist struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

func NewBlocklist() *Blocklist {
	return &Blocklist{members: map[string]struct{}{}}
}

func (b *Blocklist) Add(clientID string) {
	if clientID == "" {
		return
	}
	b.mu.Lock()
	b.members[clientID] = struct{}{}
	b.mu.Unlock()
}

func (b *Blocklist) Contains(clientID string) bool {
	b.mu.RLock()
	_, ok := b.members[clientID]
	b.mu.RUnlock()
	return ok
}

func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.members)
}
