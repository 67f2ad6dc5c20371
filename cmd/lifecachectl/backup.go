package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/scrypster/lifecache/internal/app"
	"github.com/scrypster/lifecache/internal/backup"
)

func backupCommand() *cli.Command {
	var opts options

	service := func() (*backup.Service, error) {
		cfg, err := opts.load()
		if err != nil {
			return nil, err
		}
		svc, err := app.NewBackupService(cfg)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create backup service")
		}
		return svc, nil
	}

	return &cli.Command{
		Name:  "backup",
		Usage: "Snapshot and restore the SQLite store",
		Flags: globalFlags(&opts),
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Write a snapshot now and apply retention",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := service()
					if err != nil {
						return err
					}
					snap, err := svc.BackupNow(ctx)
					if err != nil {
						return goerr.Wrap(err, "backup failed")
					}
					fmt.Fprintf(c.Root().Writer, "Wrote %s (%d bytes, verified: %v)\n", snap.Path, snap.Size, snap.Verified)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List snapshots, newest first",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := service()
					if err != nil {
						return err
					}
					status, err := svc.Status()
					if err != nil {
						return goerr.Wrap(err, "failed to read backup directory")
					}
					snapshots, err := svc.List()
					if err != nil {
						return goerr.Wrap(err, "failed to list snapshots")
					}

					tw := tabwriter.NewWriter(c.Root().Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "TAKEN\tSIZE\tFILE")
					for _, s := range snapshots {
						fmt.Fprintf(tw, "%s\t%d\t%s\n", s.TakenAt.Format(time.RFC3339), s.Size, filepath.Base(s.Path))
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					fmt.Fprintf(c.Root().Writer, "%d snapshots, %d bytes in %s\n", status.Snapshots, status.Bytes, status.Dir)
					return nil
				},
			},
			{
				Name:      "restore",
				Usage:     "Replace the store with a snapshot (default: newest). lifecache-web must be stopped",
				ArgsUsage: "[snapshot]",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := service()
					if err != nil {
						return err
					}
					path, err := resolveSnapshot(svc, c.Args().First())
					if err != nil {
						return err
					}
					if err := svc.Restore(ctx, path); err != nil {
						return goerr.Wrap(err, "restore failed", goerr.V("snapshot", path))
					}
					fmt.Fprintf(c.Root().Writer, "Restored from %s\n", path)
					return nil
				},
			},
		},
	}
}

// resolveSnapshot maps the restore argument to a snapshot file. An empty
// argument selects the newest snapshot; a bare file name is looked up in the
// backup directory.
func resolveSnapshot(svc *backup.Service, arg string) (string, error) {
	if arg == "" {
		snapshots, err := svc.List()
		if err != nil {
			return "", goerr.Wrap(err, "failed to list snapshots")
		}
		if len(snapshots) == 0 {
			return "", goerr.New("no snapshots to restore")
		}
		return snapshots[0].Path, nil
	}

	if _, err := os.Stat(arg); err == nil || filepath.Base(arg) != arg {
		return arg, nil
	}
	status, err := svc.Status()
	if err != nil {
		return "", goerr.Wrap(err, "failed to read backup directory")
	}
	return filepath.Join(status.Dir, arg), nil
}
