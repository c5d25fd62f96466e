package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"refledger/entity"
)

func (m *MongoDB) InsertEdge(ctx context.Context, edge *entity.ReferralEdge) error {
	_, err := m.collection(collectionEdges).InsertOne(ctx, edge)
	if err != nil {
		return duplicateErr("insert edge", err)
	}
	return nil
}

func (m *MongoDB) EdgeByReferred(ctx context.Context, referredId int64) (*entity.ReferralEdge, error) {
	var edge entity.ReferralEdge
	filter := bson.D{{Key: "referred_id", Value: referredId}}
	err := m.collection(collectionEdges).FindOne(ctx, filter).Decode(&edge)
	if err != nil {
		return nil, findErr("find edge", err)
	}
	return &edge, nil
}

// ActivateEdgeIfPending transitions the referred account's edge from
// pending to activated. Returns false when no pending edge exists, which
// is not an error: activation stays idempotent with respect to the edge.
func (m *MongoDB) ActivateEdgeIfPending(ctx context.Context, referredId int64, at time.Time) (bool, error) {
	filter := bson.D{{Key: "referred_id", Value: referredId}, {Key: "status", Value: entity.EdgePending}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: entity.EdgeActivated},
		{Key: "activated_at", Value: at},
	}}}
	res, err := m.collection(collectionEdges).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("activate edge", err)
	}
	return res.MatchedCount > 0, nil
}
