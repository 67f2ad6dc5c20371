package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/scrypster/lifecache/internal/app"
	"github.com/scrypster/lifecache/internal/attribution"
	"github.com/scrypster/lifecache/internal/book"
)

func bookCommand() *cli.Command {
	var (
		opts   options
		owner  string
		title  string
		format string
		out    string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Aliases:     []string{"o"},
			Usage:       "Owner whose memories are compiled (default: $LIFECACHE_OWNER, git user.name or the OS user)",
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "title",
			Usage:       "Book title",
			Destination: &title,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "pdf or xlsx",
			Value:       "pdf",
			Destination: &format,
		},
		&cli.StringFlag{
			Name:        "out",
			Usage:       "Output file (default: memory_book_<owner>.<format>)",
			Destination: &out,
		},
	}
	flags = append(flags, globalFlags(&opts)...)

	return &cli.Command{
		Name:  "book",
		Usage: "Export a memory book",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			owner, ok := attribution.ResolveOwner(owner)
			if !ok {
				return goerr.New("--owner is required")
			}
			format = strings.ToLower(format)
			var render func(io.Writer, *book.Book) error
			switch format {
			case "pdf":
				render = book.RenderPDF
			case "xlsx":
				render = book.RenderXLSX
			default:
				return goerr.New("format must be pdf or xlsx", goerr.V("format", format))
			}
			if out == "" {
				out = fmt.Sprintf("memory_book_%s.%s", owner, format)
			}

			return withApp(ctx, &opts, func(a *app.App) error {
				b, err := a.Engine.CompileBook(ctx, owner, title)
				if err != nil {
					return goerr.Wrap(err, "failed to compile memory book", goerr.V("owner", owner))
				}

				f, err := os.Create(out)
				if err != nil {
					return goerr.Wrap(err, "failed to create output file", goerr.V("path", out))
				}
				if err := render(f, b); err != nil {
					_ = f.Close()
					return goerr.Wrap(err, "failed to render memory book", goerr.V("format", format))
				}
				if err := f.Close(); err != nil {
					return goerr.Wrap(err, "failed to write output file", goerr.V("path", out))
				}

				fmt.Fprintf(c.Root().Writer, "Wrote %q (%d memories, mood: %s) to %s\n",
					b.Title, len(b.Entries), b.DominantEmotion(), out)
				return nil
			})
		},
	}
}
