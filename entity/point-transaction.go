package entity

import "time"

// TxKind classifies a ledger entry.
type TxKind string

const (
	TxCredit  TxKind = "credit"
	TxDebit   TxKind = "debit"
	TxZeroOut TxKind = "zero-out"
)

// Ledger entry reasons written by the referral graph manager.
const (
	ReasonRedemption = "referral redemption"
	ReasonActivation = "referral activation"
)

// PointTransaction is one immutable ledger entry. Amount is signed:
// positive for credits, negative for debits and zero-outs. An account's
// balance always equals the sum of its transaction amounts.
type PointTransaction struct {
	TxId         string    `json:"tx_id" bson:"tx_id"`
	AccountId    int64     `json:"account_id" bson:"account_id"`
	Amount       int64     `json:"amount" bson:"amount"`
	Kind         TxKind    `json:"kind" bson:"kind"`
	Reason       string    `json:"reason" bson:"reason"`
	RefAccountId int64     `json:"ref_account_id,omitempty" bson:"ref_account_id,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}
