package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/Multiview/internal/auth"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSeedAndLoadIdentity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, db))
	require.NoError(t, Seed(ctx, db))

	store := NewStore(db)
	users, err := store.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 5)

	admin, err := store.LoadIdentity(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Admin", admin.DisplayName)
	assert.Equal(t, domain.PrivilegeAdmin, admin.Privilege)
	assert.Nil(t, admin.GroupID)

	p, err := store.LoadIdentity(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "p1.alfa@email.com", p.Email)
	assert.Equal(t, "p1.alfa@email.com", p.DisplayName)
	assert.Equal(t, domain.PrivilegeParticipant, p.Privilege)
	require.NotNil(t, p.GroupID)
	assert.Equal(t, "Desarrollo Frontend", p.GroupName)
}

func TestLoadIdentity_NotFound(t *testing.T) {
	store := NewStore(openTestDB(t))

	_, err := store.LoadIdentity(context.Background(), "404")
	assert.ErrorIs(t, err, auth.ErrSubjectNotFound)

	_, err = store.LoadIdentity(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, auth.ErrSubjectNotFound)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	assert.Error(t, err)
}

type countingDirectory struct {
	calls int
	err   error
}

func (c *countingDirectory) LoadIdentity(_ context.Context, subject string) (domain.Identity, error) {
	c.calls++
	if c.err != nil {
		return domain.Identity{}, c.err
	}
	return domain.Identity{ID: subject, DisplayName: "cam"}, nil
}

func TestCached(t *testing.T) {
	next := &countingDirectory{}
	c := NewCached(next, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := c.LoadIdentity(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, "7", id.ID)
	}
	assert.Equal(t, 1, next.calls)

	c.Forget("7")
	_, err := c.LoadIdentity(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCached_DoesNotCacheFailures(t *testing.T) {
	next := &countingDirectory{err: errors.New("db down")}
	c := NewCached(next, time.Minute)

	_, err := c.LoadIdentity(context.Background(), "7")
	assert.Error(t, err)
	_, err = c.LoadIdentity(context.Background(), "7")
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
}
