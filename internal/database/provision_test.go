package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"refledger/entity"
)

func TestProvisionErr(t *testing.T) {
	t.Run("network errors are transient store failures", func(t *testing.T) {
		netErr := mongo.CommandError{Message: "connection reset by peer", Labels: []string{"NetworkError"}}
		err := provisionErr("create collection accounts", netErr)
		assert.True(t, entity.IsKind(err, entity.KindStoreUnavailable))
	})

	t.Run("definitional errors stay untyped", func(t *testing.T) {
		err := provisionErr("create index referral_code_unique on accounts",
			errors.New("an existing index has the same name as the requested index"))
		var e *entity.Error
		assert.False(t, errors.As(err, &e))
		assert.Contains(t, err.Error(), "referral_code_unique")
	})
}
