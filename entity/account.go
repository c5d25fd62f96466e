package entity

import (
	"net/http"
	"time"

	"refledger/lib/validate"
)

// Account is a registered user of the referral program.
// IdentityId is the stable external identifier (the chat platform account id).
// Points is a cached projection of the account's point transactions; the
// transaction log is the source of truth.
type Account struct {
	IdentityId   int64     `json:"identity_id" bson:"identity_id" validate:"required"`
	Username     string    `json:"username" bson:"username,omitempty" validate:"omitempty"`
	FullName     string    `json:"full_name" bson:"full_name,omitempty" validate:"omitempty"`
	Phone        string    `json:"phone" bson:"phone,omitempty" validate:"omitempty"`
	ReferralCode string    `json:"referral_code" bson:"referral_code"`
	ReferrerId   int64     `json:"referrer_id,omitempty" bson:"referrer_id,omitempty"`
	Points       int64     `json:"points" bson:"points"`
	IsActivated  bool      `json:"is_activated" bson:"is_activated"`
	RegisteredAt time.Time `json:"registered_at" bson:"registered_at"`
	CodeDeadline time.Time `json:"refcode_deadline" bson:"refcode_deadline"`
}

func (a *Account) Bind(_ *http.Request) error {
	return validate.Struct(a)
}

func (a *Account) HasReferrer() bool {
	return a.ReferrerId != 0
}

// RedeemWindowOpen reports whether the account may still redeem a referral code.
func (a *Account) RedeemWindowOpen(now time.Time) bool {
	return !now.After(a.CodeDeadline)
}

// CreateAccountParams is the registration request accepted by the account store.
// Phone is expected to arrive already normalized by the calling surface.
type CreateAccountParams struct {
	IdentityId int64  `json:"identity_id" validate:"required"`
	Username   string `json:"username" validate:"omitempty"`
	FullName   string `json:"full_name" validate:"omitempty"`
	Phone      string `json:"phone" validate:"omitempty"`
}

func (p *CreateAccountParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}
