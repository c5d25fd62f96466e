package admin

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refledger/entity"
)

type fakeDB struct {
	mu      sync.Mutex
	entries map[int64]*entity.AdminEntry
}

func newFakeDB() *fakeDB {
	return &fakeDB{entries: make(map[int64]*entity.AdminEntry)}
}

func (f *fakeDB) InsertAdmin(_ context.Context, entry *entity.AdminEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[entry.IdentityId]; ok {
		return entity.ErrAdminExists
	}
	clone := *entry
	f.entries[entry.IdentityId] = &clone
	return nil
}

func (f *fakeDB) AdminByIdentity(_ context.Context, id int64) (*entity.AdminEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[id], nil
}

func (f *fakeDB) AdminByToken(_ context.Context, token string) (*entity.AdminEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.Token != "" && entry.Token == token {
			return entry, nil
		}
	}
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	svc := New(newFakeDB(), testLogger())

	entry := &entity.AdminEntry{IdentityId: 10, AccessLevel: entity.AccessFull, Token: "secret"}
	require.NoError(t, svc.Add(ctx, entry))

	err := svc.Add(ctx, &entity.AdminEntry{IdentityId: 10, AccessLevel: entity.AccessLimited})
	require.ErrorIs(t, err, entity.ErrAdminExists)
}

func TestAddValidation(t *testing.T) {
	svc := New(newFakeDB(), testLogger())

	err := svc.Add(context.Background(), &entity.AdminEntry{AccessLevel: entity.AccessFull})
	assert.True(t, entity.IsKind(err, entity.KindValidation), "identity id is required")

	err = svc.Add(context.Background(), &entity.AdminEntry{IdentityId: 10})
	assert.True(t, entity.IsKind(err, entity.KindValidation), "access level is required")
}

func TestIsAdmin(t *testing.T) {
	ctx := context.Background()
	svc := New(newFakeDB(), testLogger())

	ok, err := svc.IsAdmin(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Add(ctx, &entity.AdminEntry{IdentityId: 10, AccessLevel: entity.AccessLimited}))

	ok, err = svc.IsAdmin(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestByToken(t *testing.T) {
	ctx := context.Background()
	svc := New(newFakeDB(), testLogger())
	require.NoError(t, svc.Add(ctx, &entity.AdminEntry{IdentityId: 10, AccessLevel: entity.AccessFull, Token: "secret"}))

	entry, err := svc.ByToken(ctx, "secret")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.HasFullAccess())

	missing, err := svc.ByToken(ctx, "wrong")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = svc.ByToken(ctx, "")
	assert.True(t, entity.IsKind(err, entity.KindValidation))
}
