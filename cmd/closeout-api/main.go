package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/diligince/closeout/pkg/cmd"
	"github.com/diligince/closeout/pkg/log"
	"github.com/diligince/closeout/pkg/services"
	"github.com/diligince/closeout/pkg/storage"
)

const defaultPort = 9094

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "closeout-api",
		Usage:                 "Project closure workflow service",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "document-store-path",
				Usage:   "Directory for stored checklist documents and certificates",
				Value:   "./documents",
				Sources: cli.EnvVars("DOCUMENT_STORE_PATH"),
			},
			&cli.StringFlag{
				Name:     "url-signing-secret",
				Usage:    "Secret for signing document view links",
				Required: true,
				Sources:  cli.EnvVars("URL_SIGNING_SECRET"),
			},
			&cli.StringFlag{
				Name:    "signed-url-ttl",
				Usage:   "Lifetime of signed document view links (e.g. 15m)",
				Value:   "15m",
				Sources: cli.EnvVars("SIGNED_URL_TTL"),
			},
			&cli.StringFlag{
				Name:    "checklist-template",
				Usage:   "Path to a checklist template JSON file (built-in default when empty)",
				Sources: cli.EnvVars("CHECKLIST_TEMPLATE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Closeout API")

			template, err := services.LoadChecklistTemplateFile(command.String("checklist-template"))
			if err != nil {
				return err
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			store := storage.NewFilesystemStore(command.String("document-store-path"))
			signer := storage.NewSigner(
				command.String("url-signing-secret"),
				signedURLTTL(command.String("signed-url-ttl")),
			)

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				store,
				signer,
				template,
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
