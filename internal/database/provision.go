package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"refledger/entity"
	"refledger/lib/sl"
)

// namespaceExists is the server code returned when the collection is
// already there, which provisioning treats as success.
const namespaceExists = 48

// Provision drives the store to the state declared by the specs:
// collections, validators, indexes. Every step is idempotent, so
// re-running on each start (or on racing replicas) converges. A failed
// spec is recorded in the report and never stops the remaining specs.
func (m *MongoDB) Provision(ctx context.Context, specs []entity.SchemaSpec, log *slog.Logger) *entity.ProvisionReport {
	logger := log.With(sl.Module("database.provision"))
	report := &entity.ProvisionReport{}

	for _, spec := range specs {
		res := m.provisionOne(ctx, spec)
		if res.Err != nil {
			logger.Warn("schema spec failed",
				slog.String("collection", res.Collection),
				sl.Err(res.Err),
			)
		} else {
			logger.Debug("schema spec applied",
				slog.String("collection", res.Collection),
				slog.Int("indexes", res.Indexes),
			)
		}
		report.Add(res)
	}
	return report
}

func (m *MongoDB) provisionOne(ctx context.Context, spec entity.SchemaSpec) entity.ProvisionResult {
	res := entity.ProvisionResult{Collection: spec.Collection}
	var errs []error

	if err := m.ensureCollection(ctx, spec.Collection); err != nil {
		errs = append(errs, err)
	} else if len(spec.Validator) > 0 {
		if err := m.applyValidator(ctx, spec); err != nil {
			errs = append(errs, err)
		}
	}

	for _, idx := range spec.Indexes {
		if err := m.ensureIndex(ctx, spec.Collection, idx); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Indexes++
	}

	res.Err = errors.Join(errs...)
	return res
}

func (m *MongoDB) ensureCollection(ctx context.Context, name string) error {
	err := m.db().CreateCollection(ctx, name)
	if err == nil {
		return nil
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == namespaceExists {
		return nil
	}
	return provisionErr(fmt.Sprintf("create collection %s", name), err)
}

// applyValidator runs collMod so the validator lands whether the
// collection was just created or predates this run. Re-applying an
// identical validator is a no-op on the server side.
func (m *MongoDB) applyValidator(ctx context.Context, spec entity.SchemaSpec) error {
	level := spec.ValidationLevel
	if level == "" {
		level = "strict"
	}
	cmd := bson.D{
		{Key: "collMod", Value: spec.Collection},
		{Key: "validator", Value: bson.M(spec.Validator)},
		{Key: "validationLevel", Value: level},
	}
	if err := m.db().RunCommand(ctx, cmd).Err(); err != nil {
		return provisionErr(fmt.Sprintf("apply validator on %s", spec.Collection), err)
	}
	return nil
}

// ensureIndex creates one index. The server treats an identical
// name+definition as a no-op; a same-name index with a different
// definition fails and is reported for this spec only.
func (m *MongoDB) ensureIndex(ctx context.Context, collection string, idx entity.IndexSpec) error {
	keys := bson.D{}
	for _, k := range idx.Keys {
		keys = append(keys, bson.E{Key: k.Field, Value: k.Order})
	}
	opts := options.Index()
	if idx.Options.Name != "" {
		opts.SetName(idx.Options.Name)
	}
	if idx.Options.Unique {
		opts.SetUnique(true)
	}
	if idx.Options.Sparse {
		opts.SetSparse(true)
	}
	model := mongo.IndexModel{Keys: keys, Options: opts}
	if _, err := m.collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		return provisionErr(fmt.Sprintf("create index %s on %s", idx.Options.Name, collection), err)
	}
	return nil
}

// provisionErr keeps transient connectivity failures apart from
// definitional spec problems: only the former are worth retrying
// wholesale, and startup treats them as fatal when they persist.
func provisionErr(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return entity.WrapE(entity.KindStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
