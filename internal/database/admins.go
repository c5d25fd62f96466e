package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"refledger/entity"
)

func (m *MongoDB) InsertAdmin(ctx context.Context, admin *entity.AdminEntry) error {
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	_, err := m.collection(collectionAdmins).InsertOne(ctx, admin)
	if err != nil {
		return duplicateErr("insert admin", err)
	}
	return nil
}

func (m *MongoDB) AdminByIdentity(ctx context.Context, identityId int64) (*entity.AdminEntry, error) {
	var admin entity.AdminEntry
	filter := bson.D{{Key: "identity_id", Value: identityId}}
	err := m.collection(collectionAdmins).FindOne(ctx, filter).Decode(&admin)
	if err != nil {
		return nil, findErr("find admin", err)
	}
	return &admin, nil
}

func (m *MongoDB) AdminByToken(ctx context.Context, token string) (*entity.AdminEntry, error) {
	var admin entity.AdminEntry
	filter := bson.D{{Key: "token", Value: token}}
	err := m.collection(collectionAdmins).FindOne(ctx, filter).Decode(&admin)
	if err != nil {
		return nil, findErr("find admin by token", err)
	}
	return &admin, nil
}
