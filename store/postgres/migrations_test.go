package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/iap/store/postgres"
)

func TestMigrationsGroup(t *testing.T) {
	assert.Equal(t, "iap", postgres.Migrations.Name())

	migs := postgres.Migrations.Migrations()
	require.Len(t, migs, 1)
	assert.Equal(t, "create_iap_kv", migs[0].Name)
	assert.NotNil(t, migs[0].Up)
	assert.NotNil(t, migs[0].Down)
}
