package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sophiahq/sophia-gateway/internal/cache"
	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/health"
	"github.com/sophiahq/sophia-gateway/internal/integrations"
	"github.com/sophiahq/sophia-gateway/internal/ledger"
	"github.com/sophiahq/sophia-gateway/internal/llm"
	"github.com/sophiahq/sophia-gateway/internal/logging"
	mcpserver "github.com/sophiahq/sophia-gateway/internal/mcp"
	"github.com/sophiahq/sophia-gateway/internal/scheduler"
	"github.com/sophiahq/sophia-gateway/internal/server"
	"github.com/sophiahq/sophia-gateway/internal/session"
	"github.com/sophiahq/sophia-gateway/internal/tiering"
	"github.com/sophiahq/sophia-gateway/internal/tui"
)

const version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sophia-gateway",
	Short: "LLM routing gateway with provider fallback, watermark ledger, and MCP tools",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	RunE:  runServe,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open a terminal chat against a running gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		return tui.Run(url)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve gateway tools over MCP on stdio",
	RunE:  runMCP,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	chatCmd.Flags().String("url", "http://localhost:8080", "gateway base URL")
	rootCmd.AddCommand(serveCmd, chatCmd, mcpCmd, versionCmd)
}

// services holds everything built from config, shared by serve and mcp
type services struct {
	cfg     *config.Config
	router  *llm.Router
	cache   *cache.Cache
	store   *ledger.Store
	tiering *tiering.Manager
	hubspot *integrations.HubSpotClient
	gong    *integrations.GongClient
	slack   *integrations.SlackClient
}

func buildServices() (*services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.Logging.Level)

	logger := logging.WithComponent("llm")
	router, err := llm.NewRouter(cfg, logger)
	if err != nil {
		return nil, err
	}

	respCache := cache.New(&cfg.Cache, logging.WithComponent("cache"))
	if cfg.Cache.Enabled {
		router.SetCache(respCache)
	}

	store, err := ledger.Open(cfg.Ledger.Path, cfg.Ledger.HistoryLimit)
	if err != nil {
		return nil, err
	}

	svc := &services{
		cfg:     cfg,
		router:  router,
		cache:   respCache,
		store:   store,
		tiering: tiering.New(store, &cfg.Tiering, logging.WithComponent("tiering")),
	}
	if cfg.Integrations.HubSpot.Enabled {
		svc.hubspot = integrations.NewHubSpotClient(&cfg.Integrations.HubSpot)
	}
	if cfg.Integrations.Gong.Enabled {
		svc.gong = integrations.NewGongClient(&cfg.Integrations.Gong)
	}
	if cfg.Integrations.Slack.Enabled {
		svc.slack = integrations.NewSlackClient(&cfg.Integrations.Slack)
	}
	return svc, nil
}

func (s *services) close() {
	_ = s.cache.Close()
	_ = s.store.Close()
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.WithComponent("main")
	logger.Info("starting sophia-gateway", "version", version)

	svc, err := buildServices()
	if err != nil {
		return err
	}
	defer svc.close()
	cfg := svc.cfg

	monitor := health.NewMonitor(&cfg.Health, svc.router.Clients(), logging.WithComponent("health"))
	if monitor != nil {
		svc.router.SetGate(monitor.Available)
		defer monitor.Shutdown()
	}

	sessions := session.NewStore(cfg.Sessions.HistoryLimit, cfg.Sessions.MaxSessions)

	syncer := integrations.NewSyncer(svc.store, svc.hubspot, svc.gong, logging.WithComponent("sync"))
	sched, err := scheduler.New(cfg, svc.store, svc.tiering, syncer, logging.WithComponent("scheduler"))
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	mcpSrv := mcpserver.New(svc.router, svc.store, svc.hubspot, svc.slack, logging.WithComponent("mcp"))

	srv := server.New(cfg, svc.router, svc.cache, svc.store, svc.tiering, monitor, sessions, mcpSrv.SSEHandler(), logging.WithComponent("server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runMCP(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	defer svc.close()

	mcpSrv := mcpserver.New(svc.router, svc.store, svc.hubspot, svc.slack, logging.WithComponent("mcp"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return mcpSrv.RunStdio(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
