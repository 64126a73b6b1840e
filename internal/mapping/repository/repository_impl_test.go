package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&mappingdomain.CustomerMapping{}))
	return db
}

func TestUpsertConflictUpdatesInPlace(t *testing.T) {
	db := newTestDB(t)
	repo := Provide()
	node, _ := snowflake.NewNode(1)
	ctx := context.Background()

	first := &mappingdomain.CustomerMapping{
		ID:                  node.Generate(),
		PortalCustomerID:    "portal-1",
		ExternalCustomerID:  "ext-a",
		ExternalDisplayName: "Acme",
	}
	require.NoError(t, repo.Upsert(ctx, db, first))

	// A second writer that missed the existing row inserts with a fresh
	// id; the unique index resolves it to an update, never an error.
	second := &mappingdomain.CustomerMapping{
		ID:                  node.Generate(),
		PortalCustomerID:    "portal-1",
		ExternalCustomerID:  "ext-b",
		ExternalDisplayName: "Acme Renamed",
	}
	require.NoError(t, repo.Upsert(ctx, db, second))

	items, err := repo.List(ctx, db)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, first.ID, items[0].ID)
	require.Equal(t, "ext-b", items[0].ExternalCustomerID)
	require.Equal(t, "Acme Renamed", items[0].ExternalDisplayName)

	// The caller's struct reflects the stored row.
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
}
