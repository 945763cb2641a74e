package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/internal/articles"
	"github.com/xkilldash9x/newsroom-scraper/internal/browser"
	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/login"
	"github.com/xkilldash9x/newsroom-scraper/internal/observability"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/linkedin"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/twitter"
	"github.com/xkilldash9x/newsroom-scraper/internal/server"
	"github.com/xkilldash9x/newsroom-scraper/internal/store"
)

type serveFlags struct {
	addr     string
	headless bool
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg, flags)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, observability.GetLogger())
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", "", "listen address, overrides server.listen_addr")
	cmd.Flags().BoolVar(&flags.headless, "headless", true, "run browser sessions headless")
	return cmd
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(cmd *cobra.Command, cfg config.Interface, flags serveFlags) {
	if cmd.Flags().Changed("addr") && flags.addr != "" {
		cfg.SetServerListenAddr(flags.addr)
	}
	if cmd.Flags().Changed("headless") {
		cfg.SetBrowserHeadless(flags.headless)
	}
}

// runServe builds every component and serves until ctx is canceled.
func runServe(ctx context.Context, cfg config.Interface, logger *zap.Logger) error {
	factory := browser.NewFactory(ctx, cfg.Browser(), logger)
	defer factory.Shutdown()

	li := linkedin.NewService(cfg.LinkedIn(), cfg.Upstream(), logger)
	defer li.Shutdown()
	tw := twitter.NewService(cfg.Twitter(), cfg.Upstream(), logger)
	defer tw.Shutdown()

	orch := login.New(cfg.Browser(), factory, logger, login.WithProfileResolver(li))
	defer orch.Shutdown()

	deps := server.Deps{
		Login:    orch,
		LinkedIn: li,
		Twitter:  tw,
		Scraper:  articles.New(cfg.Scrape(), factory, nil, cfg.Upstream(), logger),
	}

	if url := cfg.Database().URL; url != "" {
		fetchLog, pool, err := store.Connect(ctx, url, logger)
		if err != nil {
			return fmt.Errorf("failed to open fetch log: %w", err)
		}
		defer pool.Close()
		deps.FetchLog = fetchLog
		logger.Info("Fetch log enabled.")
	} else {
		logger.Info("No database configured; fetch log disabled.")
	}

	srv := server.New(cfg.Server(), deps, cfg.Logger().ServiceName, Version, logger)
	return srv.ListenAndServe(ctx)
}
