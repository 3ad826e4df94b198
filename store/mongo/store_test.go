package mongo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestKeyFilter(t *testing.T) {
	assert.Equal(t, bson.M{"_id": "last_iap_order_id"}, keyFilter("last_iap_order_id"))
}

func TestIsNoDocuments(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct", mongo.ErrNoDocuments, true},
		{"wrapped", fmt.Errorf("mongodriver: find one: %w", mongo.ErrNoDocuments), true},
		{"other", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNoDocuments(tt.err))
		})
	}
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	require.Len(t, idx, 1)
	require.Contains(t, idx, colEntries)
	assert.NotEmpty(t, idx[colEntries])
}

func TestEntryModelDocumentShape(t *testing.T) {
	raw, err := bson.Marshal(entryModel{ID: "k", Value: []byte("v")})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, "k", doc["_id"])
	assert.Contains(t, doc, "value")
	assert.Contains(t, doc, "updated_at")
}
