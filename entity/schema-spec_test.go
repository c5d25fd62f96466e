package entity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexKeyJSON(t *testing.T) {
	t.Run("marshals as tuple", func(t *testing.T) {
		data, err := json.Marshal(IndexKey{Field: "identity_id", Order: 1})
		require.NoError(t, err)
		assert.JSONEq(t, `["identity_id", 1]`, string(data))
	})

	t.Run("unmarshals from tuple", func(t *testing.T) {
		var k IndexKey
		require.NoError(t, json.Unmarshal([]byte(`["created_at", -1]`), &k))
		assert.Equal(t, IndexKey{Field: "created_at", Order: -1}, k)
	})

	t.Run("rejects wrong arity", func(t *testing.T) {
		var k IndexKey
		assert.Error(t, json.Unmarshal([]byte(`["identity_id"]`), &k))
		assert.Error(t, json.Unmarshal([]byte(`["identity_id", 1, "extra"]`), &k))
	})
}

func TestSchemaSpecJSON(t *testing.T) {
	raw := `{
		"collection": "accounts",
		"validationLevel": "moderate",
		"indexes": [
			{"keys": [["identity_id", 1]], "options": {"name": "identity_id_unique", "unique": true}},
			{"keys": [["account_id", 1], ["created_at", 1]], "options": {"name": "tx_account_created"}}
		]
	}`
	var spec SchemaSpec
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))
	assert.Equal(t, "accounts", spec.Collection)
	require.Len(t, spec.Indexes, 2)
	assert.True(t, spec.Indexes[0].Options.Unique)
	assert.Equal(t, []IndexKey{{Field: "account_id", Order: 1}, {Field: "created_at", Order: 1}}, spec.Indexes[1].Keys)
}

func TestProvisionReport(t *testing.T) {
	var report ProvisionReport
	report.Add(ProvisionResult{Collection: "accounts", Indexes: 3})
	report.Add(ProvisionResult{Collection: "admins", Err: errors.New("index name clash")})
	report.Add(ProvisionResult{Collection: "referral_edges", Indexes: 1})

	assert.False(t, report.Ok())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "admins", failed[0].Collection)

	ok := ProvisionReport{Results: []ProvisionResult{{Collection: "accounts"}}}
	assert.True(t, ok.Ok())
}

func TestProvisionReportStoreUnavailable(t *testing.T) {
	t.Run("definitional failures are not outages", func(t *testing.T) {
		report := ProvisionReport{Results: []ProvisionResult{
			{Collection: "accounts", Indexes: 3},
			{Collection: "admins", Err: errors.New("index name clash")},
		}}
		assert.False(t, report.StoreUnavailable())
	})

	t.Run("store outage among failures is flagged", func(t *testing.T) {
		outage := WrapE(KindStoreUnavailable, "create collection admins", errors.New("connection reset"))
		report := ProvisionReport{Results: []ProvisionResult{
			{Collection: "accounts", Err: errors.New("index name clash")},
			{Collection: "admins", Err: outage},
		}}
		assert.True(t, report.StoreUnavailable())
	})

	t.Run("joined per-step errors are traversed", func(t *testing.T) {
		joined := errors.Join(
			errors.New("index name clash"),
			WrapE(KindStoreUnavailable, "create index tx_id_unique on point_transactions", errors.New("timeout")),
		)
		report := ProvisionReport{Results: []ProvisionResult{{Collection: "point_transactions", Err: joined}}}
		assert.True(t, report.StoreUnavailable())
	})

	t.Run("clean report is not an outage", func(t *testing.T) {
		report := ProvisionReport{Results: []ProvisionResult{{Collection: "accounts"}}}
		assert.False(t, report.StoreUnavailable())
	})
}
