package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/nuvemsync/nuvemsync/internal/alerter"
	"github.com/nuvemsync/nuvemsync/internal/clock"
	"github.com/nuvemsync/nuvemsync/internal/config"
	"github.com/nuvemsync/nuvemsync/internal/http_api"
	"github.com/nuvemsync/nuvemsync/internal/ingest"
	"github.com/nuvemsync/nuvemsync/internal/platform"
	"github.com/nuvemsync/nuvemsync/internal/repository"
	"github.com/nuvemsync/nuvemsync/internal/syncer"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "nuvemsync",
		Usage: "Nuvemsync keeps a local mirror of a NuvemShop store in sync through webhooks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "platform-base-url", Aliases: []string{"b"}, Usage: "Commerce platform API base URL"},
			&cli.StringFlag{Name: "platform-store-id", Aliases: []string{"s"}, Usage: "Commerce platform store ID"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "API listen port"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("platform-base-url") {
		cfg.PlatformBaseURL = c.String("platform-base-url")
	}
	if c.IsSet("platform-store-id") {
		cfg.PlatformStoreID = c.String("platform-store-id")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log.Named("db"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize operator alerting
	var telegram *alerter.TelegramAlerter
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		telegram, err = alerter.NewTelegramAlerter(log, cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram alerter: %v", err)
		}
	}
	var email *alerter.EmailAlerter
	if cfg.SMTPHost != "" && cfg.AlertEmail != "" {
		email = alerter.NewEmailAlerter(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, cfg.AlertEmail)
	}
	alerts := alerter.NewAlerter(log.Named("alerts"), telegram, email)

	// Initialize platform client
	shop := platform.NewNuvemShop(cfg.PlatformBaseURL, cfg.PlatformStoreID, cfg.PlatformAccessToken, log.Named("platform"))

	// Wire the sync executor
	clk := clock.NewSystem()
	locks := syncer.NewLockManager(db, clk, cfg.LockLease, log.Named("locks"))
	syncService := syncer.NewSyncer(db, shop, locks, alerts, clk, log.Named("syncer"), cfg)

	// Wire the ingestion pipeline
	pipeline := ingest.NewPipeline(db, syncService, cfg.WebhookSecretFor, clk, log.Named("ingest"))

	// Initialize API server
	apiServer := http_api.NewHTTPServer(syncService, pipeline, db, cfg.AdminAPIKey, cfg.APIPort, log.Named("http"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go apiServer.Start()
	// Start the deferred-run queue and the retention sweepers
	go syncService.Start(ctx)

	<-ctx.Done()
	log.Info("Shutdown signal received")
	if err := apiServer.Shutdown(); err != nil {
		log.Error("Failed to shut down API server: ", err)
	}

	return nil
}
