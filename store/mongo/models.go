package mongo

import (
	"time"

	"github.com/xraph/grove"
)

// entryModel is one key of the purchase ledger. The key is the document _id.
type entryModel struct {
	grove.BaseModel `grove:"table:iap_kv"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Value     []byte    `grove:"value"      bson:"value"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}
