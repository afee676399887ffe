package app

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Multiview/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoleResolver answers which room a connection belongs to.
type RoleResolver interface {
	RoleOf(sid domain.ConnID) (domain.Role, bool)
}

// StreamEntry is one row of the availability roster.
type StreamEntry struct {
	ConnID         domain.ConnID   `json:"connId"`
	Identity       domain.Identity `json:"identity"`
	AvailableSince time.Time       `json:"availableSince"`
}

type streamRecord struct {
	identity    domain.Identity
	announcedAt time.Time
	seq         uint64
}

// StreamStats summarises the registry for diagnostics.
type StreamStats struct {
	TotalStreams int           `json:"totalStreams"`
	Streams      []StreamEntry `json:"streams"`
}

// Streams tracks which broadcasters have announced live media.
// Absence of an entry means "not currently available".
type Streams struct {
	mu      sync.Mutex
	roles   RoleResolver
	records map[domain.ConnID]*streamRecord
	seq     uint64
	now     func() time.Time
}

func NewStreams(roles RoleResolver) *Streams {
	return &Streams{
		roles:   roles,
		records: make(map[domain.ConnID]*streamRecord),
		now:     time.Now,
	}
}

// MarkAvailable inserts or refreshes the record for a broadcaster.
// An overwrite keeps the entry's roster position.
func (s *Streams) MarkAvailable(sid domain.ConnID, identity domain.Identity) error {
	if role, ok := s.roles.RoleOf(sid); !ok || role != domain.RoleBroadcaster {
		return domain.RoleMismatch("connection %s is not a broadcaster", sid).
			WithDetail("sid", string(sid)).
			WithDetail("role", string(role))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if rec, ok := s.records[sid]; ok {
		rec.identity = identity
		rec.announcedAt = now
	} else {
		s.seq++
		s.records[sid] = &streamRecord{identity: identity, announcedAt: now, seq: s.seq}
	}
	log.Info().Str("module", "app.streams").Str("sid", string(sid)).Str("user", identity.ID).Int("total", len(s.records)).Msg("stream available")
	return nil
}

// MarkUnavailable removes the record and reports whether one existed.
func (s *Streams) MarkUnavailable(sid domain.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[sid]; !ok {
		return false
	}
	delete(s.records, sid)
	log.Info().Str("module", "app.streams").Str("sid", string(sid)).Int("total", len(s.records)).Msg("stream removed")
	return true
}

func (s *Streams) IsAvailable(sid domain.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[sid]
	return ok
}

// Snapshot lists current entries in insertion order of current membership.
func (s *Streams) Snapshot() []StreamEntry {
	s.mu.Lock()
	type row struct {
		entry StreamEntry
		seq   uint64
	}
	rows := make([]row, 0, len(s.records))
	for sid, rec := range s.records {
		rows = append(rows, row{
			entry: StreamEntry{ConnID: sid, Identity: rec.identity, AvailableSince: rec.announcedAt},
			seq:   rec.seq,
		})
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]StreamEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry
	}
	return out
}

// EvictStale removes entries announced more than maxAge ago and returns how many went.
func (s *Streams) EvictStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for sid, rec := range s.records {
		age := now.Sub(rec.announcedAt)
		if age > maxAge {
			delete(s.records, sid)
			removed++
			log.Info().Str("module", "app.streams").Str("sid", string(sid)).Dur("age", age).Msg("stale stream evicted")
		}
	}
	return removed
}

func (s *Streams) Stats() StreamStats {
	snap := s.Snapshot()
	return StreamStats{TotalStreams: len(snap), Streams: snap}
}

func (s *Streams) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
