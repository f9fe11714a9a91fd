package session

import "sync"

// Gate hands out at most one ownership token at a time.
type Gate struct {
	mu     sync.Mutex
	holder uint64
	next   uint64
}

// Acquire returns a token, or false when another caller holds the gate.
func (g *Gate) Acquire() (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != 0 {
		return 0, false
	}
	g.next++
	g.holder = g.next
	return g.holder, true
}

// Release frees the gate if token is the current holder. Stale tokens are ignored.
func (g *Gate) Release(token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == token {
		g.holder = 0
	}
}

// Held reports whether a token is outstanding.
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder != 0
}
