package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"refledger/entity"
)

func (m *MongoDB) InsertAccount(ctx context.Context, account *entity.Account) error {
	_, err := m.collection(collectionAccounts).InsertOne(ctx, account)
	if err != nil {
		return duplicateErr("insert account", err)
	}
	return nil
}

func (m *MongoDB) AccountByIdentity(ctx context.Context, identityId int64) (*entity.Account, error) {
	return m.findAccount(ctx, bson.D{{Key: "identity_id", Value: identityId}})
}

func (m *MongoDB) AccountByPhone(ctx context.Context, phone string) (*entity.Account, error) {
	return m.findAccount(ctx, bson.D{{Key: "phone", Value: phone}})
}

func (m *MongoDB) AccountByReferralCode(ctx context.Context, code string) (*entity.Account, error) {
	return m.findAccount(ctx, bson.D{{Key: "referral_code", Value: code}})
}

func (m *MongoDB) AccountByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return m.findAccount(ctx, bson.D{{Key: "username", Value: username}})
}

func (m *MongoDB) findAccount(ctx context.Context, filter bson.D) (*entity.Account, error) {
	var account entity.Account
	err := m.collection(collectionAccounts).FindOne(ctx, filter).Decode(&account)
	if err != nil {
		return nil, findErr("find account", err)
	}
	return &account, nil
}

func (m *MongoDB) AllAccounts(ctx context.Context) ([]*entity.Account, error) {
	cursor, err := m.collection(collectionAccounts).Find(ctx, bson.D{})
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer cursor.Close(ctx)

	var accounts []*entity.Account
	if err = cursor.All(ctx, &accounts); err != nil {
		return nil, storeErr("decode accounts", err)
	}
	return accounts, nil
}

// SetReferrerIfUnset links a referrer to the account only when no
// referrer is present. The precondition lives in the filter, so two
// concurrent redemptions can never both match.
func (m *MongoDB) SetReferrerIfUnset(ctx context.Context, identityId, referrerId int64) (bool, error) {
	filter := bson.D{
		{Key: "identity_id", Value: identityId},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "referrer_id", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "referrer_id", Value: 0}},
		}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "referrer_id", Value: referrerId}}}}
	res, err := m.collection(collectionAccounts).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("set referrer", err)
	}
	return res.MatchedCount > 0, nil
}

// SetActivatedIfNot flips is_activated false -> true. Returns false when
// the account was already activated (or absent).
func (m *MongoDB) SetActivatedIfNot(ctx context.Context, identityId int64) (bool, error) {
	filter := bson.D{{Key: "identity_id", Value: identityId}, {Key: "is_activated", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "is_activated", Value: true}}}}
	res, err := m.collection(collectionAccounts).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("set activated", err)
	}
	return res.MatchedCount > 0, nil
}
