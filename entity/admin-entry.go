package entity

import (
	"net/http"
	"time"

	"refledger/lib/validate"
)

// Admin access levels. Free-form tags; these are the two the bot assigns.
const (
	AccessFull    = "full"
	AccessLimited = "limited"
)

// AdminEntry is one row of the administrative allow-list.
// Token, when set, authenticates the admin on the HTTP API.
type AdminEntry struct {
	IdentityId  int64     `json:"identity_id" bson:"identity_id" validate:"required"`
	Name        string    `json:"name" bson:"name,omitempty" validate:"omitempty"`
	AccessLevel string    `json:"access_level" bson:"access_level" validate:"required"`
	Token       string    `json:"token,omitempty" bson:"token,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

func (a *AdminEntry) Bind(_ *http.Request) error {
	return validate.Struct(a)
}

func (a *AdminEntry) HasFullAccess() bool {
	return a.AccessLevel == AccessFull
}
