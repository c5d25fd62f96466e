package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"refledger/entity"
)

// IncrementPoints adds delta to the balance in a single atomic $inc.
// Returns false when no account matched.
func (m *MongoDB) IncrementPoints(ctx context.Context, identityId, delta int64) (bool, error) {
	filter := bson.D{{Key: "identity_id", Value: identityId}}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "points", Value: delta}}}}
	res, err := m.collection(collectionAccounts).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("increment points", err)
	}
	return res.MatchedCount > 0, nil
}

// DecrementPointsIf subtracts amount only when the current balance
// covers it. The balance check sits in the filter; the decrement never
// drives points negative.
func (m *MongoDB) DecrementPointsIf(ctx context.Context, identityId, amount int64) (bool, error) {
	filter := bson.D{
		{Key: "identity_id", Value: identityId},
		{Key: "points", Value: bson.D{{Key: "$gte", Value: amount}}},
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "points", Value: -amount}}}}
	res, err := m.collection(collectionAccounts).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("decrement points", err)
	}
	return res.MatchedCount > 0, nil
}

// ZeroPointsIf sets the balance to zero only if it still equals the
// observed value the caller read.
func (m *MongoDB) ZeroPointsIf(ctx context.Context, identityId, observed int64) (bool, error) {
	filter := bson.D{{Key: "identity_id", Value: identityId}, {Key: "points", Value: observed}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "points", Value: int64(0)}}}}
	res, err := m.collection(collectionAccounts).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("zero points", err)
	}
	return res.MatchedCount > 0, nil
}

func (m *MongoDB) InsertTransaction(ctx context.Context, tx *entity.PointTransaction) error {
	if tx.TxId == "" {
		tx.TxId = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := m.collection(collectionTransactions).InsertOne(ctx, tx)
	if err != nil {
		return duplicateErr("insert transaction", err)
	}
	return nil
}

func (m *MongoDB) TransactionsByAccount(ctx context.Context, identityId int64) ([]*entity.PointTransaction, error) {
	filter := bson.D{{Key: "account_id", Value: identityId}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := m.collection(collectionTransactions).Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer cursor.Close(ctx)

	var txs []*entity.PointTransaction
	if err = cursor.All(ctx, &txs); err != nil {
		return nil, storeErr("decode transactions", err)
	}
	return txs, nil
}
