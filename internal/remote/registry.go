package remote

import "sync"

// Registry is the shared collection of client sessions. The acceptor
// appends, the reaper removes dead entries, and status queries read counts.
// One mutex serializes all of it; the lock is only ever held across
// in-memory operations, never across socket I/O.
type Registry struct {
	mu       sync.Mutex
	sessions []*session
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) add(s *session) {
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
}

// ConnectedClients counts sessions that are still live.
func (r *Registry) ConnectedClients() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, s := range r.sessions {
		if s.isAlive() {
			count++
		}
	}
	return count
}

// Addresses returns the peer addresses of live sessions.
func (r *Registry) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	addrs := make([]string, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.isAlive() {
			addrs = append(addrs, s.peer)
		}
	}
	return addrs
}

// live snapshots the live sessions so callers can write to them without
// holding the registry lock.
func (r *Registry) live() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.isAlive() {
			out = append(out, s)
		}
	}
	return out
}

// takeDead removes sessions whose read loop has exited and returns them for
// the caller to join. Live sessions are left untouched.
func (r *Registry) takeDead() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []*session
	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if s.isAlive() {
			kept = append(kept, s)
		} else {
			dead = append(dead, s)
		}
	}
	r.sessions = kept
	return dead
}

// drain removes every session, live or not; used on shutdown.
func (r *Registry) drain() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.sessions
	r.sessions = nil
	return out
}
