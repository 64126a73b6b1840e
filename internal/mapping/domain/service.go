package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Create links a portal customer to an external customer. It is
	// idempotent per portal customer: a second call replaces the prior
	// mapping instead of producing two.
	Create(ctx context.Context, req CreateRequest) (*CustomerMapping, error)

	// Get returns the mapping for a portal customer, or ErrMappingMissing.
	Get(ctx context.Context, portalCustomerID string) (*CustomerMapping, error)

	List(ctx context.Context) ([]*CustomerMapping, error)

	// Remove deletes a mapping and evicts any cached invoice snapshot for
	// it, so invoices never render for an unmapped customer.
	Remove(ctx context.Context, id snowflake.ID) error
}

// SnapshotEvictor is implemented by the invoice snapshot store. The mapping
// service calls it on Remove so the cascade stays in one place.
type SnapshotEvictor interface {
	Evict(ctx context.Context, mappingID snowflake.ID) error
}
