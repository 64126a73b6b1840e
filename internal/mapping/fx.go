package mapping

import (
	"go.uber.org/fx"

	"github.com/ledgerlinklabs/ledgerlink/internal/mapping/repository"
	"github.com/ledgerlinklabs/ledgerlink/internal/mapping/service"
)

var Module = fx.Module("mapping.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
