package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrMappingMissing means the caller has no link to the external
	// billing system. This is the only condition surfaced as a blocking
	// state to the self-service audience.
	ErrMappingMissing = errors.New("customer is not linked to the billing system")

	ErrMappingNotFound = errors.New("mapping not found")
	ErrInvalidMapping  = errors.New("invalid mapping request")
)

// CustomerMapping links a portal customer to its identity in the external
// billing system. At most one mapping exists per portal customer; creating a
// second replaces the first. The cached display name is used when the
// external system is unreachable.
type CustomerMapping struct {
	ID                  snowflake.ID `gorm:"primaryKey;column:id" json:"id"`
	PortalCustomerID    string       `gorm:"column:portal_customer_id;uniqueIndex" json:"portal_customer_id"`
	ExternalCustomerID  string       `gorm:"column:external_customer_id" json:"external_customer_id"`
	ExternalDisplayName string       `gorm:"column:external_display_name" json:"external_display_name"`
	CreatedAt           time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (CustomerMapping) TableName() string {
	return "customer_mappings"
}

type CreateRequest struct {
	PortalCustomerID    string
	ExternalCustomerID  string
	ExternalDisplayName string
}
