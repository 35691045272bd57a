package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/internal/database"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/internal/utils"
	"github.com/customeros/inboxsync/server"
	"github.com/customeros/inboxsync/services"
)

const dateLayout = "2006-01-02"

type app struct {
	cfg *config.Config
	log logger.Logger
	db  *gorm.DB
}

func main() {
	a := &app{}

	cliApp := &cli.App{
		Name:  "inboxsync",
		Usage: "support inbox thread ingestion and sync",
		Before: func(c *cli.Context) error {
			return a.init()
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(c *cli.Context) error {
					if err := repository.MigrateDB(a.cfg.DatabaseConfig, a.db); err != nil {
						return fmt.Errorf("database migration failed: %w", err)
					}
					a.log.Info("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Start the application server",
				Action: func(c *cli.Context) error {
					a.log.Info("inboxsync starting up...")
					srv, err := server.NewServer(c.Context, a.cfg, a.log, a.db)
					if err != nil {
						return fmt.Errorf("server setup failed: %w", err)
					}
					return srv.Run(c.Context)
				},
			},
			{
				Name:  "backfill",
				Usage: "Import every thread of a mail account in a date range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Usage: "mail account id", Required: true},
					&cli.StringFlag{Name: "from", Usage: "window start (YYYY-MM-DD)", Required: true},
					&cli.StringFlag{Name: "to", Usage: "window end (YYYY-MM-DD), defaults to today"},
				},
				Action: a.backfill,
			},
			{
				Name:  "sync",
				Usage: "Run one incremental sync pass for a mail account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Usage: "mail account id", Required: true},
				},
				Action: a.incrementalSync,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func (a *app) init() error {
	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return err
	}

	a.cfg, a.log, a.db = cfg, appLogger, db
	return nil
}

func (a *app) initServices(ctx context.Context) (*services.Services, error) {
	return services.InitServices(ctx, a.cfg, a.log, repository.InitRepositories(a.db))
}

func (a *app) backfill(c *cli.Context) error {
	from, err := time.Parse(dateLayout, c.String("from"))
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to := utils.Now()
	if c.String("to") != "" {
		if to, err = time.Parse(dateLayout, c.String("to")); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	ctx := utils.SetAppSourceInContext(c.Context, "cli")
	svcs, err := a.initServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.Close()

	result, err := svcs.SyncService.RunBackfill(ctx, c.String("account"), from, to)
	if result != nil {
		printJSON(result)
	}
	return err
}

func (a *app) incrementalSync(c *cli.Context) error {
	ctx := utils.SetAppSourceInContext(c.Context, "cli")
	svcs, err := a.initServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.Close()

	result, err := svcs.SyncService.RunIncrementalSync(ctx, c.String("account"))
	if result != nil {
		printJSON(result)
	}
	return err
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("could not encode result: %v", err)
		return
	}
	fmt.Println(string(out))
}
