package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/easel-ai/easel/internal/config"
	"github.com/easel-ai/easel/internal/event"
	"github.com/easel-ai/easel/internal/logging"
	"github.com/easel-ai/easel/internal/persist"
	"github.com/easel-ai/easel/internal/provider"
	"github.com/easel-ai/easel/internal/server"
	"github.com/easel-ai/easel/internal/session"
	"github.com/easel-ai/easel/internal/storage"
	"github.com/easel-ai/easel/internal/tool"
	"github.com/easel-ai/easel/internal/tool/builtin"
)

var (
	servePort int
	serveHost string
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the easel session server",
	Long: `Start the easel server: an HTTP API for spawning agent sessions,
sending them messages, and streaming their output over SSE.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "hostname", "", "Hostname to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Directory to load project config from")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	workDir := serveDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: logPretty,
	})
	logging.Info().
		Str("version", Version).
		Str("dataDir", cfg.DataDir).
		Str("model", cfg.Model).
		Msg("starting easel server")

	if err := config.GetPaths().EnsurePaths(); err != nil {
		return err
	}

	client, err := provider.NewAnthropicFromAPIKey(cfg.APIKey, cfg.Model, cfg.MaxTokens)
	if err != nil {
		return err
	}

	tools := tool.NewRegistry()
	tools.Register(builtin.NewClockTool())
	tools.Register(builtin.NewStockQuoteTool(""))

	gateway := persist.NewStore(storage.New(cfg.DataDir))
	bus := event.NewBus()
	defer bus.Close()

	registry := session.NewRegistry(client, tools, gateway, bus, session.Options{
		Model:     cfg.Model,
		MaxTurns:  cfg.MaxTurns,
		MaxTokens: cfg.MaxTokens,
	})
	defer registry.KillAll()

	// Re-apply the log level when the global config file changes.
	watcher, err := config.NewWatcher(config.GlobalConfigPath(), func(next *config.Config) {
		logging.SetLevel(logging.ParseLevel(next.LogLevel))
	})
	if err != nil {
		logging.Warn().Err(err).Msg("config watcher unavailable")
	} else if watcher != nil {
		watcher.Start()
		defer watcher.Stop()
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	srv := server.New(serverConfig, registry)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("server shutdown error")
	}
	logging.Info().Msg("server stopped")
	return nil
}
