package billing

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ledgerlinklabs/ledgerlink/internal/billing/client"
	billingdomain "github.com/ledgerlinklabs/ledgerlink/internal/billing/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/config"
)

var Module = fx.Module("billing.client",
	fx.Provide(func(cfg config.Config) billingdomain.TokenProvider {
		return billingdomain.StaticTokenProvider{Value: cfg.Billing.AccessToken}
	}),
	fx.Provide(func(cfg config.Config, tokens billingdomain.TokenProvider, log *zap.Logger) billingdomain.Client {
		return client.NewHTTPClient(cfg, tokens, log)
	}),
)
