package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, m *CustomerMapping) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CustomerMapping, error)
	FindByPortalCustomer(ctx context.Context, db *gorm.DB, portalCustomerID string) (*CustomerMapping, error)
	List(ctx context.Context, db *gorm.DB) ([]*CustomerMapping, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
