package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Multiview/internal/core"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Session *core.Session
	Cancel  context.CancelFunc
	// Joined is the room membership. Zero until Join succeeds.
	Joined domain.Role
	seq    uint64
}

// Registry owns admitted sessions and their role-partitioned room membership.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnID]*sessionEntry),
	}
}

// Bind records an admitted session. It does not place it in any room.
func (r *Registry) Bind(sess *core.Session, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess.AdmittedAt.IsZero() {
		sess.AdmittedAt = time.Now()
	}
	if e, ok := r.sessions[sess.ID]; ok {
		e.Session = sess
		e.Cancel = cancel
		return
	}
	r.sessions[sess.ID] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID)).Str("role", string(sess.Role)).Msg("bound session")
}

// Join places sid into the room for role. Re-joining the same role is a no-op;
// a different role is an invariant violation and leaves membership untouched.
func (r *Registry) Join(sid domain.ConnID, role domain.Role) error {
	if !role.Valid() {
		return domain.InvariantViolation("unknown role %q", role)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		e = &sessionEntry{}
		r.sessions[sid] = e
	}
	if e.Session != nil && e.Session.Role != role {
		return domain.InvariantViolation("connection %s was admitted as %s, cannot join %s", sid, e.Session.Role, role.Room()).
			WithDetail("sid", string(sid))
	}
	switch e.Joined {
	case role:
		return nil
	case "":
	default:
		return domain.InvariantViolation("connection %s already in %s", sid, e.Joined.Room()).
			WithDetail("sid", string(sid))
	}
	r.seq++
	e.Joined = role
	e.seq = r.seq
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(role.Room())).Msg("joined room")
	return nil
}

// Leave drops sid from its room and forgets the session. Absent ids are a no-op.
func (r *Registry) Leave(sid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("left")
}

// Members returns a point-in-time snapshot of the room for role, in join order.
func (r *Registry) Members(role domain.Role) []domain.ConnID {
	r.mu.RLock()
	type member struct {
		sid domain.ConnID
		seq uint64
	}
	found := make([]member, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.Joined == role {
			found = append(found, member{sid: sid, seq: e.seq})
		}
	}
	r.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	out := make([]domain.ConnID, len(found))
	for i, m := range found {
		out[i] = m.sid
	}
	return out
}

// RoleOf reports the room sid is currently a member of.
func (r *Registry) RoleOf(sid domain.ConnID) (domain.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Joined == "" {
		return "", false
	}
	return e.Joined, true
}

func (r *Registry) GetSession(sid domain.ConnID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok && e.Session != nil {
		return e.Session, true
	}
	return nil, false
}

// Count returns the number of room members per role.
func (r *Registry) Count(role domain.Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.Joined == role {
			n++
		}
	}
	return n
}

// Cancel stops the transport pumps of sid; the adapter then runs the disconnect flow.
func (r *Registry) Cancel(sid domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
