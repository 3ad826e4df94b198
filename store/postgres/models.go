package postgres

import (
	"time"

	"github.com/xraph/grove"
)

// entryModel is one key of the purchase ledger.
type entryModel struct {
	grove.BaseModel `grove:"table:iap_kv"`

	ID        string    `grove:"id,pk"`
	Value     []byte    `grove:"value,type:bytea"`
	UpdatedAt time.Time `grove:"updated_at"`
}
