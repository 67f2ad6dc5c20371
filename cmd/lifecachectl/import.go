package main

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/scrypster/lifecache/internal/app"
	"github.com/scrypster/lifecache/internal/attribution"
	"github.com/scrypster/lifecache/internal/importer"
	"github.com/scrypster/lifecache/pkg/types"
)

func importCommand() *cli.Command {
	var (
		opts  options
		owner string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Aliases:     []string{"o"},
			Usage:       "Owner for entries without an owner in their frontmatter",
			Destination: &owner,
		},
	}
	flags = append(flags, globalFlags(&opts)...)

	return &cli.Command{
		Name:      "import",
		Usage:     "Import a folder of Markdown or text journal entries, one memory per file",
		ArgsUsage: "<dir>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 1 {
				return goerr.New("journal directory is required")
			}
			dir := c.Args().First()
			defaultOwner, _ := attribution.ResolveOwner(owner)

			return withApp(ctx, &opts, func(a *app.App) error {
				w := c.Root().Writer
				imp := importer.New(a.Engine, defaultOwner)
				imp.OnEntry = func(rel string, rec *types.Record, err error) {
					if err != nil {
						fmt.Fprintf(w, "failed\t%s\t%v\n", rel, err)
						return
					}
					fmt.Fprintf(w, "imported\t%s\t%s\t%s\n", rel, rec.ID, rec.DeliveryState)
				}

				result, err := imp.Import(ctx, dir)
				if err != nil {
					return goerr.Wrap(err, "import failed", goerr.V("dir", dir))
				}
				fmt.Fprintf(w, "%d imported (%d scheduled), %d skipped, %d failed of %d files\n",
					result.Imported, result.Scheduled, result.Skipped, result.Failed, result.FilesFound)
				if result.Imported == 0 && result.Failed > 0 {
					return goerr.New("no entries could be imported", goerr.V("failed", result.Failed))
				}
				return nil
			})
		},
	}
}
