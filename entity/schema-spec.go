package entity

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaSpec declares the desired state of one collection: an optional
// validator document with its validation level, and the indexes the
// collection must carry. Specs are external JSON documents consumed once
// at startup by the schema provisioner.
type SchemaSpec struct {
	Collection      string                 `json:"collection"`
	Validator       map[string]interface{} `json:"validator,omitempty"`
	ValidationLevel string                 `json:"validationLevel,omitempty"`
	Indexes         []IndexSpec            `json:"indexes,omitempty"`
}

// IndexSpec is one index definition: ordered field/direction pairs plus
// creation options. Idempotent by name: an identical index already in
// place is a no-op, a same-name index with a different definition is a
// reportable conflict.
type IndexSpec struct {
	Keys    []IndexKey   `json:"keys"`
	Options IndexOptions `json:"options"`
}

type IndexOptions struct {
	Name   string `json:"name,omitempty"`
	Unique bool   `json:"unique,omitempty"`
	Sparse bool   `json:"sparse,omitempty"`
}

// IndexKey serializes as a [field, order] tuple.
type IndexKey struct {
	Field string
	Order int
}

func (k IndexKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{k.Field, k.Order})
}

func (k *IndexKey) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("index key: want [field, order], got %d elements", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &k.Field); err != nil {
		return fmt.Errorf("index key field: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &k.Order); err != nil {
		return fmt.Errorf("index key order: %w", err)
	}
	return nil
}

// ProvisionResult records the outcome of applying one schema spec.
// Err stays nil on success; a failed spec never aborts the others.
type ProvisionResult struct {
	Collection string
	Indexes    int
	Err        error
}

// ProvisionReport aggregates per-spec results of one provisioning run.
type ProvisionReport struct {
	Results []ProvisionResult
}

func (r *ProvisionReport) Add(res ProvisionResult) {
	r.Results = append(r.Results, res)
}

func (r *ProvisionReport) Failed() []ProvisionResult {
	var failed []ProvisionResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

func (r *ProvisionReport) Ok() bool {
	return len(r.Failed()) == 0
}

// StoreUnavailable reports whether any failure was a transient store
// outage rather than a definitional problem with a spec. Provisioning is
// idempotent, so such a run is worth retrying wholesale.
func (r *ProvisionReport) StoreUnavailable() bool {
	for _, res := range r.Failed() {
		var e *Error
		if errors.As(res.Err, &e) && e.Kind == KindStoreUnavailable {
			return true
		}
	}
	return false
}
