package app

import (
	"testing"
	"time"

	"github.com/dkeye/Multiview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStreams(t *testing.T) (*Streams, *Registry, *fakeClock) {
	t.Helper()
	r := NewRegistry()
	for _, sid := range []domain.ConnID{"b1", "b2", "b3"} {
		bindSession(r, sid, domain.RoleBroadcaster)
		require.NoError(t, r.Join(sid, domain.RoleBroadcaster))
	}
	bindSession(r, "o1", domain.RoleObserver)
	require.NoError(t, r.Join("o1", domain.RoleObserver))

	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStreams(r)
	s.now = clock.Now
	return s, r, clock
}

func TestStreams_MarkAvailableAndSnapshot(t *testing.T) {
	s, _, clock := newTestStreams(t)

	require.NoError(t, s.MarkAvailable("b2", domain.Identity{ID: "u2"}))
	clock.Advance(time.Second)
	require.NoError(t, s.MarkAvailable("b1", domain.Identity{ID: "u1"}))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, domain.ConnID("b2"), snap[0].ConnID)
	assert.Equal(t, domain.ConnID("b1"), snap[1].ConnID)
	assert.Equal(t, "u1", snap[1].Identity.ID)
	assert.Equal(t, clock.Now(), snap[1].AvailableSince)
}

func TestStreams_ReaddedEntryMovesToNewestPosition(t *testing.T) {
	s, _, _ := newTestStreams(t)
	require.NoError(t, s.MarkAvailable("b1", domain.Identity{ID: "u1"}))
	require.NoError(t, s.MarkAvailable("b2", domain.Identity{ID: "u2"}))
	require.True(t, s.MarkUnavailable("b1"))
	require.NoError(t, s.MarkAvailable("b1", domain.Identity{ID: "u1"}))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, domain.ConnID("b2"), snap[0].ConnID)
	assert.Equal(t, domain.ConnID("b1"), snap[1].ConnID)
}

func TestStreams_OverwriteRefreshesTimestamp(t *testing.T) {
	s, _, clock := newTestStreams(t)
	require.NoError(t, s.MarkAvailable("b1", domain.Identity{ID: "u1"}))
	require.NoError(t, s.MarkAvailable("b2", domain.Identity{ID: "u2"}))
	clock.Advance(time.Minute)
	require.NoError(t, s.MarkAvailable("b1", domain.Identity{ID: "u1"}))

	snap := s.Snapshot()
	assert.Equal(t, domain.ConnID("b1"), snap[0].ConnID)
	assert.Equal(t, clock.Now(), snap[0].AvailableSince)
	assert.Equal(t, 2, s.Len())
}

func TestStreams_MarkUnavailableOnUnknownIsFalse(t *testing.T) {
	s, _, _ := newTestStreams(t)
	assert.False(t, s.MarkUnavailable("b3"))
	assert.False(t, s.MarkUnavailable("ghost"))
	assert.Empty(t, s.Snapshot())
}

func TestStreams_ObserverIsRoleMismatch(t *testing.T) {
	s, _, _ := newTestStreams(t)
	require.NoError(t, s.MarkAvailable("b1", domain.Identity{ID: "u1"}))
	before := s.Snapshot()

	err := s.MarkAvailable("o1", domain.Identity{ID: "admin"})
	assert.Equal(t, domain.KindRoleMismatch, domain.KindOf(err))

	err = s.MarkAvailable("unknown", domain.Identity{ID: "nobody"})
	assert.Equal(t, domain.KindRoleMismatch, domain.KindOf(err))

	assert.Equal(t, before, s.Snapshot())
	assert.False(t, s.IsAvailable("o1"))
}

func TestStreams_EvictStale(t *testing.T) {
	s, _, clock := newTestStreams(t)
	require.NoError(t, s.MarkAvailable("b1", domain.Identity{ID: "u1"}))
	clock.Advance(20 * time.Minute)
	require.NoError(t, s.MarkAvailable("b2", domain.Identity{ID: "u2"}))
	clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, s.EvictStale(30*time.Minute))
	assert.False(t, s.IsAvailable("b1"))
	assert.True(t, s.IsAvailable("b2"))
	assert.Equal(t, 0, s.EvictStale(30*time.Minute))

	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalStreams)
}
