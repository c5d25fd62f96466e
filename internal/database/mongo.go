package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"refledger/entity"
	"refledger/internal/config"
)

const (
	collectionAccounts     = "accounts"
	collectionEdges        = "referral_edges"
	collectionTransactions = "point_transactions"
	collectionAdmins       = "admins"
)

// Index names, shared between the schema specs and duplicate-key mapping.
const (
	idxAccountIdentity = "identity_id_unique"
	idxReferralCode    = "referral_code_unique"
	idxAccountPhone    = "phone_unique"
	idxEdgeReferred    = "referred_id_unique"
	idxAdminIdentity   = "admin_identity_unique"
	idxAdminToken      = "admin_token_unique"
	idxTxId            = "tx_id_unique"
	idxTxAccount       = "tx_account_created"
)

// MongoDB is the document store handle. A single connected client is
// held for the process lifetime and injected into every service; no
// package-level state.
type MongoDB struct {
	client        *mongo.Client
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return entity.WrapE(entity.KindStoreUnavailable, "mongodb connect", err)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return entity.WrapE(entity.KindStoreUnavailable, "mongodb ping", err)
	}
	m.client = client
	return nil
}

func (m *MongoDB) Disconnect(ctx context.Context) {
	if m.client != nil {
		_ = m.client.Disconnect(ctx)
	}
}

func (m *MongoDB) db() *mongo.Database {
	return m.client.Database(m.database)
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.db().Collection(name)
}

// storeErr wraps a driver error as a transient store failure.
func storeErr(op string, err error) error {
	return entity.WrapE(entity.KindStoreUnavailable, "mongodb "+op, err)
}

// findErr maps ErrNoDocuments to plain absence; anything else is a
// transient store failure. Absence is not an error here.
func findErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return storeErr(op, err)
}

// duplicateErr maps a duplicate-key write error onto the uniqueness
// sentinel for the index that fired. Non-duplicate errors come back as
// transient store failures.
func duplicateErr(op string, err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return storeErr(op, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxReferralCode):
		return entity.ErrCodeTaken
	case strings.Contains(msg, idxAccountPhone):
		return entity.ErrPhoneTaken
	case strings.Contains(msg, idxAccountIdentity):
		return entity.ErrIdentityTaken
	case strings.Contains(msg, idxEdgeReferred):
		return entity.ErrEdgeExists
	case strings.Contains(msg, idxAdminIdentity), strings.Contains(msg, idxAdminToken):
		return entity.ErrAdminExists
	default:
		return entity.WrapE(entity.KindConflict, "duplicate key", err)
	}
}
