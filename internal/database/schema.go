package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"refledger/entity"
)

// DefaultSchemaSpecs is the compiled-in desired state of the store:
// one spec per collection, uniqueness carried by named indexes so the
// duplicate-key mapping in mongo.go can tell which constraint fired.
func DefaultSchemaSpecs() []entity.SchemaSpec {
	return []entity.SchemaSpec{
		{
			Collection: collectionAccounts,
			Validator: map[string]interface{}{
				"$jsonSchema": map[string]interface{}{
					"bsonType": "object",
					"required": []interface{}{"identity_id", "referral_code", "points", "is_activated", "registered_at"},
					"properties": map[string]interface{}{
						"identity_id":   map[string]interface{}{"bsonType": "long"},
						"referral_code": map[string]interface{}{"bsonType": "string"},
						"points":        map[string]interface{}{"bsonType": "long", "minimum": 0},
						"is_activated":  map[string]interface{}{"bsonType": "bool"},
					},
				},
			},
			ValidationLevel: "moderate",
			Indexes: []entity.IndexSpec{
				{
					Keys:    []entity.IndexKey{{Field: "identity_id", Order: 1}},
					Options: entity.IndexOptions{Name: idxAccountIdentity, Unique: true},
				},
				{
					Keys:    []entity.IndexKey{{Field: "referral_code", Order: 1}},
					Options: entity.IndexOptions{Name: idxReferralCode, Unique: true},
				},
				{
					Keys:    []entity.IndexKey{{Field: "phone", Order: 1}},
					Options: entity.IndexOptions{Name: idxAccountPhone, Unique: true, Sparse: true},
				},
			},
		},
		{
			Collection: collectionEdges,
			Indexes: []entity.IndexSpec{
				{
					Keys:    []entity.IndexKey{{Field: "referred_id", Order: 1}},
					Options: entity.IndexOptions{Name: idxEdgeReferred, Unique: true},
				},
			},
		},
		{
			Collection: collectionTransactions,
			Indexes: []entity.IndexSpec{
				{
					Keys:    []entity.IndexKey{{Field: "tx_id", Order: 1}},
					Options: entity.IndexOptions{Name: idxTxId, Unique: true},
				},
				{
					Keys:    []entity.IndexKey{{Field: "account_id", Order: 1}, {Field: "created_at", Order: 1}},
					Options: entity.IndexOptions{Name: idxTxAccount},
				},
			},
		},
		{
			Collection: collectionAdmins,
			Indexes: []entity.IndexSpec{
				{
					Keys:    []entity.IndexKey{{Field: "identity_id", Order: 1}},
					Options: entity.IndexOptions{Name: idxAdminIdentity, Unique: true},
				},
				{
					Keys:    []entity.IndexKey{{Field: "token", Order: 1}},
					Options: entity.IndexOptions{Name: idxAdminToken, Unique: true, Sparse: true},
				},
			},
		},
	}
}

// LoadSchemaSpecs reads schema spec documents from a directory, one JSON
// file per collection. Files are applied in name order. An empty dir
// falls back to the compiled-in defaults.
func LoadSchemaSpecs(dir string) ([]entity.SchemaSpec, error) {
	if dir == "" {
		return DefaultSchemaSpecs(), nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var specs []entity.SchemaSpec
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read schema spec %s: %w", name, err)
		}
		var spec entity.SchemaSpec
		if err = json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse schema spec %s: %w", name, err)
		}
		if spec.Collection == "" {
			return nil, fmt.Errorf("schema spec %s: collection is empty", name)
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return DefaultSchemaSpecs(), nil
	}
	return specs, nil
}
