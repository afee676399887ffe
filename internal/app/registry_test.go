package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Multiview/internal/core"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindSession(r *Registry, sid domain.ConnID, role domain.Role) *core.Recorder {
	rec := &core.Recorder{}
	r.Bind(&core.Session{ID: sid, Role: role, Identity: domain.Identity{ID: string(sid)}, Signal: rec}, nil)
	return rec
}

func TestRegistry_JoinAndMembers(t *testing.T) {
	r := NewRegistry()
	bindSession(r, "o1", domain.RoleObserver)
	bindSession(r, "b1", domain.RoleBroadcaster)
	bindSession(r, "b2", domain.RoleBroadcaster)

	require.NoError(t, r.Join("b2", domain.RoleBroadcaster))
	require.NoError(t, r.Join("o1", domain.RoleObserver))
	require.NoError(t, r.Join("b1", domain.RoleBroadcaster))

	assert.Equal(t, []domain.ConnID{"o1"}, r.Members(domain.RoleObserver))
	assert.Equal(t, []domain.ConnID{"b2", "b1"}, r.Members(domain.RoleBroadcaster))
	assert.Equal(t, 2, r.Count(domain.RoleBroadcaster))

	role, ok := r.RoleOf("b1")
	assert.True(t, ok)
	assert.Equal(t, domain.RoleBroadcaster, role)
}

func TestRegistry_RejoinSameRoleIsNoop(t *testing.T) {
	r := NewRegistry()
	bindSession(r, "o1", domain.RoleObserver)
	require.NoError(t, r.Join("o1", domain.RoleObserver))
	require.NoError(t, r.Join("o1", domain.RoleObserver))
	assert.Equal(t, []domain.ConnID{"o1"}, r.Members(domain.RoleObserver))
}

func TestRegistry_RoleChangeIsInvariantViolation(t *testing.T) {
	r := NewRegistry()
	bindSession(r, "o1", domain.RoleObserver)
	require.NoError(t, r.Join("o1", domain.RoleObserver))

	err := r.Join("o1", domain.RoleBroadcaster)
	assert.Equal(t, domain.KindInvariantViolation, domain.KindOf(err))
	assert.Empty(t, r.Members(domain.RoleBroadcaster))
	assert.Equal(t, []domain.ConnID{"o1"}, r.Members(domain.RoleObserver))

	// unbound connections cannot switch rooms either
	require.NoError(t, r.Join("x", domain.RoleBroadcaster))
	err = r.Join("x", domain.RoleObserver)
	assert.Equal(t, domain.KindInvariantViolation, domain.KindOf(err))
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	bindSession(r, "b1", domain.RoleBroadcaster)
	require.NoError(t, r.Join("b1", domain.RoleBroadcaster))

	r.Leave("b1")
	r.Leave("b1")
	r.Leave("never-seen")

	assert.Empty(t, r.Members(domain.RoleBroadcaster))
	_, ok := r.GetSession("b1")
	assert.False(t, ok)
	_, ok = r.RoleOf("b1")
	assert.False(t, ok)
}

func TestRegistry_BoundButNotJoinedIsNotMember(t *testing.T) {
	r := NewRegistry()
	bindSession(r, "o1", domain.RoleObserver)
	assert.Empty(t, r.Members(domain.RoleObserver))
	_, ok := r.RoleOf("o1")
	assert.False(t, ok)
	sess, ok := r.GetSession("o1")
	require.True(t, ok)
	assert.False(t, sess.AdmittedAt.IsZero())
}

func TestRegistry_CancelCallsCancelFunc(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Bind(&core.Session{ID: "o1", Role: domain.RoleObserver}, func() { called = true })
	assert.True(t, r.Cancel("o1"))
	assert.True(t, called)
	assert.False(t, r.Cancel("nope"))
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		sid := domain.ConnID(fmt.Sprintf("o%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Join(sid, domain.RoleObserver)
			_ = r.Members(domain.RoleObserver)
			r.Leave(sid)
		}()
	}
	wg.Wait()
	assert.Empty(t, r.Members(domain.RoleObserver))
}
