package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    mappingdomain.Repository
	Node    *snowflake.Node
	Evictor mappingdomain.SnapshotEvictor `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    mappingdomain.Repository
	node    *snowflake.Node
	evictor mappingdomain.SnapshotEvictor
}

func New(p Params) mappingdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("mapping.service"),
		repo:    p.Repo,
		node:    p.Node,
		evictor: p.Evictor,
	}
}

func (s *Service) Create(ctx context.Context, req mappingdomain.CreateRequest) (*mappingdomain.CustomerMapping, error) {
	portalID := strings.TrimSpace(req.PortalCustomerID)
	externalID := strings.TrimSpace(req.ExternalCustomerID)
	if portalID == "" || externalID == "" {
		return nil, mappingdomain.ErrInvalidMapping
	}

	m := &mappingdomain.CustomerMapping{
		ID:                  s.node.Generate(),
		PortalCustomerID:    portalID,
		ExternalCustomerID:  externalID,
		ExternalDisplayName: strings.TrimSpace(req.ExternalDisplayName),
	}
	if err := s.repo.Upsert(ctx, s.db, m); err != nil {
		return nil, err
	}

	s.log.Info("mapping upserted",
		zap.String("mapping_id", m.ID.String()),
		zap.String("portal_customer_id", m.PortalCustomerID),
		zap.String("external_customer_id", m.ExternalCustomerID),
	)
	return m, nil
}

func (s *Service) Get(ctx context.Context, portalCustomerID string) (*mappingdomain.CustomerMapping, error) {
	m, err := s.repo.FindByPortalCustomer(ctx, s.db, strings.TrimSpace(portalCustomerID))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, mappingdomain.ErrMappingMissing
	}
	return m, nil
}

func (s *Service) List(ctx context.Context) ([]*mappingdomain.CustomerMapping, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Remove(ctx context.Context, id snowflake.ID) error {
	m, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if m == nil {
		return mappingdomain.ErrMappingNotFound
	}

	if err := s.repo.Delete(ctx, s.db, id); err != nil {
		return err
	}

	if s.evictor != nil {
		if err := s.evictor.Evict(ctx, id); err != nil {
			s.log.Warn("snapshot eviction failed after mapping removal",
				zap.Error(err),
				zap.String("mapping_id", id.String()),
			)
		}
	}

	s.log.Info("mapping removed", zap.String("mapping_id", id.String()))
	return nil
}
