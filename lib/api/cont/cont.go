package cont

import (
	"context"

	"refledger/entity"
)

type ctxKey string

const AdminDataKey ctxKey = "adminData"

func PutAdmin(c context.Context, admin *entity.AdminEntry) context.Context {
	return context.WithValue(c, AdminDataKey, *admin)
}

func GetAdmin(c context.Context) *entity.AdminEntry {
	admin, ok := c.Value(AdminDataKey).(entity.AdminEntry)
	if !ok {
		return &entity.AdminEntry{}
	}
	return &admin
}
