package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
)

type repo struct{}

func Provide() mappingdomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, m *mappingdomain.CustomerMapping) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	// Single atomic statement; concurrent creates for one portal customer
	// resolve on the unique index instead of racing a read-then-insert.
	// The conflict syntax is shared by postgres and sqlite.
	err := db.WithContext(ctx).Exec(
		`INSERT INTO customer_mappings (
			id, portal_customer_id, external_customer_id, external_display_name,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (portal_customer_id) DO UPDATE SET
			external_customer_id = excluded.external_customer_id,
			external_display_name = excluded.external_display_name,
			updated_at = excluded.updated_at`,
		m.ID,
		m.PortalCustomerID,
		m.ExternalCustomerID,
		m.ExternalDisplayName,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
	if err != nil {
		return err
	}

	// The conflict path keeps the existing row's id and created_at.
	stored, err := r.FindByPortalCustomer(ctx, db, m.PortalCustomerID)
	if err != nil {
		return err
	}
	if stored != nil {
		m.ID = stored.ID
		m.CreatedAt = stored.CreatedAt
		m.UpdatedAt = stored.UpdatedAt
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*mappingdomain.CustomerMapping, error) {
	var m mappingdomain.CustomerMapping
	err := db.WithContext(ctx).Raw(
		`SELECT id, portal_customer_id, external_customer_id, external_display_name,
		 created_at, updated_at
		 FROM customer_mappings WHERE id = ?`,
		id,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) FindByPortalCustomer(ctx context.Context, db *gorm.DB, portalCustomerID string) (*mappingdomain.CustomerMapping, error) {
	var m mappingdomain.CustomerMapping
	err := db.WithContext(ctx).Raw(
		`SELECT id, portal_customer_id, external_customer_id, external_display_name,
		 created_at, updated_at
		 FROM customer_mappings WHERE portal_customer_id = ? LIMIT 1`,
		portalCustomerID,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*mappingdomain.CustomerMapping, error) {
	var items []*mappingdomain.CustomerMapping
	err := db.WithContext(ctx).
		Model(&mappingdomain.CustomerMapping{}).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM customer_mappings WHERE id = ?`,
		id,
	).Error
}
