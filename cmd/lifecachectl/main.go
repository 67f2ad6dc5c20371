// Command lifecachectl operates on a LifeCache store directly: it adds and
// inspects memories, schedules and requeues deliveries, runs scheduler ticks
// by hand, imports journal folders, exports memory books and manages store
// snapshots.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/scrypster/lifecache/internal/app"
	"github.com/scrypster/lifecache/internal/config"
	"github.com/scrypster/lifecache/internal/notify"
	"github.com/scrypster/lifecache/pkg/types"
)

func main() {
	_ = godotenv.Load()

	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lifecachectl: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "lifecachectl",
		Usage:  "Manage LifeCache memories and deliveries",
		Writer: w,
		Commands: []*cli.Command{
			addCommand(),
			importCommand(),
			showCommand(),
			listCommand(),
			scheduleCommand(),
			requeueCommand(),
			tickCommand(),
			bookCommand(),
			backupCommand(),
		},
	}
}

// options holds flags shared by every command.
type options struct {
	configPath string
	dataPath   string

	events *notify.EventWriter // set by open
}

func globalFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a YAML config file",
			Sources:     cli.EnvVars("LIFECACHE_CONFIG"),
			Destination: &opts.configPath,
		},
		&cli.StringFlag{
			Name:        "data",
			Aliases:     []string{"d"},
			Usage:       "Data directory (overrides config)",
			Destination: &opts.dataPath,
		},
	}
}

// load reads configuration and applies the --data override.
func (opts *options) load() (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load config", goerr.V("path", opts.configPath))
	}
	if opts.dataPath != "" {
		cfg.Storage.DataPath = opts.dataPath
		if os.Getenv("LIFECACHE_DELIVERY_LOG_PATH") == "" {
			cfg.Delivery.LogPath = filepath.Join(opts.dataPath, "deliveries", "deliveries.log")
		}
		if os.Getenv("LIFECACHE_BACKUP_DIR") == "" {
			cfg.Backup.Dir = filepath.Join(opts.dataPath, "backups")
		}
	}
	return cfg, nil
}

// open loads configuration and starts an engine without the background
// scheduler loop. The caller must Close the result.
func (opts *options) open(ctx context.Context) (*app.App, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}

	a, err := app.Open(ctx, cfg, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open LifeCache")
	}
	if err := a.Engine.Start(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, goerr.Wrap(err, "failed to start engine")
	}

	// A running lifecache-web picks these up and streams them to its clients.
	opts.events = notify.NewEventWriter(cfg.Storage.DataPath)
	a.Engine.SetOnMemoryCreated(func(rec *types.Record) {
		opts.emit(notify.MemoryCreated, rec, nil)
	})
	a.Engine.Scheduler().SetOnDelivered(func(rec *types.Record) {
		opts.emit(notify.DeliveryCompleted, rec, nil)
	})
	a.Engine.Scheduler().SetOnDeliveryFailed(func(rec *types.Record, err error) {
		opts.emit(notify.DeliveryFailed, rec, err)
	})
	return a, nil
}

// emit writes an event for rec. Failures are logged; the command itself
// already succeeded.
func (opts *options) emit(eventType string, rec *types.Record, cause error) {
	if opts.events == nil {
		return
	}
	ev := notify.Event{
		Type:     eventType,
		RecordID: rec.ID,
		Owner:    rec.Owner,
		State:    string(rec.DeliveryState),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := opts.events.Notify(ev); err != nil {
		log.Printf("lifecachectl: %v", err)
	}
}

// withApp runs fn against an opened App and closes it afterwards.
func withApp(ctx context.Context, opts *options, fn func(*app.App) error) error {
	a, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()
	return fn(a)
}

// requireID returns the first positional argument.
func requireID(c *cli.Command) (string, error) {
	if c.Args().Len() < 1 {
		return "", goerr.New("memory ID is required")
	}
	return c.Args().First(), nil
}
