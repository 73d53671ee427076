package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aleeya2903/zaya-chatbot/internal/audit"
	"github.com/aleeya2903/zaya-chatbot/internal/bitable"
	"github.com/aleeya2903/zaya-chatbot/internal/config"
	"github.com/aleeya2903/zaya-chatbot/internal/conversation"
	"github.com/aleeya2903/zaya-chatbot/internal/db"
	"github.com/aleeya2903/zaya-chatbot/internal/llm"
	"github.com/aleeya2903/zaya-chatbot/internal/logger"
	"github.com/aleeya2903/zaya-chatbot/internal/metrics"
	"github.com/aleeya2903/zaya-chatbot/internal/server"
	"github.com/aleeya2903/zaya-chatbot/internal/zaya"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Zaya chat logging server",
	Long:  `Starts the Zaya backend: the /api/zaya-log endpoint, the local audit trail API, health checks, and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Secrets come from the environment; .env is a convenience for
		// local development.
		_ = godotenv.Load()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if serverPort != 0 {
			cfg.Port = serverPort
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}

		log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

		// Completion provider.
		provider, err := llm.NewProviderFromEnv(cfg.Model)
		if err != nil {
			return fmt.Errorf("creating completion provider: %w", err)
		}

		// Knowledge base, read once at startup.
		knowledge, err := zaya.LoadKnowledge(cfg.KnowledgeFile)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.KnowledgeFile).Msg("knowledge base unavailable, continuing without it")
			knowledge = ""
		}

		// Record store client.
		records := bitable.New(bitable.Config{
			BaseURL:   cfg.Feishu.BaseURL,
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			AppToken:  os.Getenv("FEISHU_TABLE_APP_TOKEN"),
			TableID:   os.Getenv("FEISHU_TABLE_ID"),
		}, log)

		// Local audit database.
		dbPath := filepath.Join(cfg.DataDir, "zaya.db")
		database, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()
		auditStore := audit.NewStore(database)

		// Metrics.
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(registry)

		// Engine and server.
		engine := zaya.NewEngine(conversation.NewStore(), provider, cfg.Model, records, knowledge, auditStore, m, log)

		srv := server.New(server.Config{
			Port:           cfg.Port,
			AllowedOrigins: cfg.AllowedOrigins,
			AllowAll:       cfg.AllowAll,
		}, registry, log)

		zaya.RegisterRoutes(srv.Router(), engine)
		audit.RegisterRoutes(srv.Router(), auditStore)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			log.Info().Msg("shutting down server")
			srv.Shutdown(context.Background())
		}()

		log.Info().
			Str("version", Version).
			Int("port", cfg.Port).
			Str("model", cfg.Model).
			Str("database", dbPath).
			Msg("zaya server starting")

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "override the configured listen port")
	rootCmd.AddCommand(serverCmd)
}
