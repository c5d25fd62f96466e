package entity

import "time"

// EdgeStatus tracks the lifecycle of a referral relationship.
// Transitions pending -> activated exactly once, when the referred
// account is activated by an administrator.
type EdgeStatus string

const (
	EdgePending   EdgeStatus = "pending"
	EdgeActivated EdgeStatus = "activated"
)

// ReferralEdge links a referrer to the account that redeemed their code.
// At most one edge exists per referred account, enforced by a unique
// index on referred_id.
type ReferralEdge struct {
	ReferrerId  int64      `json:"referrer_id" bson:"referrer_id"`
	ReferredId  int64      `json:"referred_id" bson:"referred_id"`
	Status      EdgeStatus `json:"status" bson:"status"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty" bson:"activated_at,omitempty"`
}
