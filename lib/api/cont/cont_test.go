package cont

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"refledger/entity"
)

func TestAdminRoundTrip(t *testing.T) {
	admin := &entity.AdminEntry{IdentityId: 42, AccessLevel: entity.AccessFull, Token: "secret"}
	ctx := PutAdmin(context.Background(), admin)

	got := GetAdmin(ctx)
	assert.Equal(t, int64(42), got.IdentityId)
	assert.True(t, got.HasFullAccess())
}

func TestGetAdminMissing(t *testing.T) {
	got := GetAdmin(context.Background())
	assert.NotNil(t, got)
	assert.Equal(t, int64(0), got.IdentityId)
}
