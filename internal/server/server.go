package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/ledgerlinklabs/ledgerlink/internal/billing/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/clock"
	"github.com/ledgerlinklabs/ledgerlink/internal/config"
	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/reconcile/repository"
	reconcileservice "github.com/ledgerlinklabs/ledgerlink/internal/reconcile/service"
)

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Start),
)

type Params struct {
	fx.In

	Config     config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Mappings   mappingdomain.Service
	Snapshots  repository.Store
	Refresher  *reconcileservice.Refresher
	Billing    billingdomain.Client
	Registry   *prometheus.Registry
}

type Server struct {
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	mappingSvc mappingdomain.Service
	snapshots  repository.Store
	refresher  *reconcileservice.Refresher
	billing    billingdomain.Client
	registry   *prometheus.Registry
}

func New(p Params) *Server {
	return &Server{
		cfg:        p.Config,
		db:         p.DB,
		log:        p.Log.Named("server"),
		clock:      p.Clock,
		mappingSvc: p.Mappings,
		snapshots:  p.Snapshots,
		refresher:  p.Refresher,
		billing:    p.Billing,
		registry:   p.Registry,
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/readyz", s.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		v1.POST("/mappings", s.CreateMapping)
		v1.GET("/mappings", s.ListMappings)
		v1.DELETE("/mappings/:id", s.RemoveMapping)

		v1.GET("/invoices", s.ListInvoices)
		v1.GET("/invoices/failures", s.ListFetchFailures)
		v1.POST("/invoices/refresh", s.RefreshInvoices)
	}
	return r
}

func Start(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTP.Addr,
		Handler: s.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server exited", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTP.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
