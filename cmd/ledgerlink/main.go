package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/ledgerlinklabs/ledgerlink/internal/billing"
	"github.com/ledgerlinklabs/ledgerlink/internal/clock"
	"github.com/ledgerlinklabs/ledgerlink/internal/config"
	"github.com/ledgerlinklabs/ledgerlink/internal/mapping"
	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/observability"
	"github.com/ledgerlinklabs/ledgerlink/internal/reconcile"
	"github.com/ledgerlinklabs/ledgerlink/internal/scheduler"
	"github.com/ledgerlinklabs/ledgerlink/internal/server"
	"github.com/ledgerlinklabs/ledgerlink/pkg/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ledgerlink",
		Short:   "LedgerLink invoice reconciliation service",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newServeCmd(), newSchedulerCmd(), newAllCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			run(server.Module)
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the background polling loop only",
		RunE: func(cmd *cobra.Command, args []string) error {
			run(fx.Invoke(startScheduler))
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the HTTP API and the polling loop in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			run(server.Module, fx.Invoke(startScheduler))
			return nil
		},
	}
}

func run(extra ...fx.Option) {
	opts := []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		fx.Invoke(autoMigrate),
		clock.Module,
		billing.Module,
		mapping.Module,
		reconcile.Module,
		scheduler.Module,
	}
	opts = append(opts, extra...)
	fx.New(opts...).Run()
}

func autoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&mappingdomain.CustomerMapping{})
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(context.Background())
			return nil
		},
	})
}
