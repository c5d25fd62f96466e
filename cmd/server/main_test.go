package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refledger/entity"
)

// scriptedProvisioner replays one report per run, holding the last one
// once the script is exhausted.
type scriptedProvisioner struct {
	reports []*entity.ProvisionReport
	runs    int
}

func (s *scriptedProvisioner) ProvisionSchemas(_ context.Context, _ []entity.SchemaSpec) *entity.ProvisionReport {
	i := s.runs
	if i >= len(s.reports) {
		i = len(s.reports) - 1
	}
	s.runs++
	return s.reports[i]
}

func okReport() *entity.ProvisionReport {
	return &entity.ProvisionReport{Results: []entity.ProvisionResult{
		{Collection: "accounts", Indexes: 3},
	}}
}

func outageReport() *entity.ProvisionReport {
	return &entity.ProvisionReport{Results: []entity.ProvisionResult{
		{Collection: "accounts", Err: entity.WrapE(entity.KindStoreUnavailable,
			"create collection accounts", errors.New("connection reset by peer"))},
	}}
}

func badSpecReport() *entity.ProvisionReport {
	return &entity.ProvisionReport{Results: []entity.ProvisionResult{
		{Collection: "accounts", Indexes: 2},
		{Collection: "admins", Err: errors.New("create index admin_identity_unique on admins: name clash")},
	}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProvisionSchemas(t *testing.T) {
	ctx := context.Background()

	t.Run("clean run passes", func(t *testing.T) {
		prov := &scriptedProvisioner{reports: []*entity.ProvisionReport{okReport()}}
		require.NoError(t, provisionSchemas(ctx, prov, nil, time.Millisecond, testLogger()))
		assert.Equal(t, 1, prov.runs)
	})

	t.Run("definitional spec failures do not block startup", func(t *testing.T) {
		prov := &scriptedProvisioner{reports: []*entity.ProvisionReport{badSpecReport()}}
		require.NoError(t, provisionSchemas(ctx, prov, nil, time.Millisecond, testLogger()))
		assert.Equal(t, 1, prov.runs, "a bad spec is reported, not retried")
	})

	t.Run("store outage is retried then fatal", func(t *testing.T) {
		prov := &scriptedProvisioner{reports: []*entity.ProvisionReport{outageReport()}}
		err := provisionSchemas(ctx, prov, nil, time.Millisecond, testLogger())
		require.Error(t, err)
		assert.Equal(t, connectAttempts, prov.runs)
	})

	t.Run("store outage that recovers passes", func(t *testing.T) {
		prov := &scriptedProvisioner{reports: []*entity.ProvisionReport{outageReport(), okReport()}}
		require.NoError(t, provisionSchemas(ctx, prov, nil, time.Millisecond, testLogger()))
		assert.Equal(t, 2, prov.runs)
	})

	t.Run("cancelled context stops the retry loop", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		prov := &scriptedProvisioner{reports: []*entity.ProvisionReport{outageReport()}}
		err := provisionSchemas(cancelled, prov, nil, time.Minute, testLogger())
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, prov.runs)
	})
}
