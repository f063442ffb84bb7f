package ratelimit

// Guard is the admission check handed to the HTTP layer: blocklist first,
// then the sliding window. Blocked clients never touch the window, and a
// ceiling rejection optionally blocks the client for the rest of the
// process lifetime.
type Guard struct {
	Limiter       Limiter
	Blocked       *Blocklist
	Limit         int
	BlockOnExceed bool
}

func NewGuard(limiter Limiter, limit int, blockOnExceed bool) *Guard {
	if limit <= 0 {
		limit = 1
	}
	return &Guard{
		Limiter:       limiter,
		Blocked:       NewBlocklist(),
		Limit:         limit,
		BlockOnExceed: blockOnExceed,
	}
}

func (g *Guard) Admit(clientID string) Decision {
	if g.Blocked != nil && g.Blocked.Contains(clientID) {
		return Decision{Allowed: false, Limit: g.Limit}
	}
	if g.Limiter == nil {
		return Decision{Allowed: true, Limit: g.Limit, Remaining: g.Limit}
	}
	decision := g.Limiter.Allow(clientID, g.Limit)
	if !decision.Allowed && g.BlockOnExceed && g.Blocked != nil {
		g.Blocked.Add(clientID)
	}
	return decision
}
