package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/scrypster/lifecache/internal/app"
	"github.com/scrypster/lifecache/internal/attribution"
	"github.com/scrypster/lifecache/internal/engine"
	"github.com/scrypster/lifecache/internal/storage"
	"github.com/scrypster/lifecache/internal/transcribe"
	"github.com/scrypster/lifecache/pkg/types"
)

func addCommand() *cli.Command {
	var (
		opts      options
		owner     string
		title     string
		content   string
		file      string
		recipient string
		message   string
		at        string
		in        time.Duration
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Aliases:     []string{"o"},
			Usage:       "Owner of the memory (default: $LIFECACHE_OWNER, git user.name or the OS user)",
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "Short title shown in deliveries and the memory book",
			Destination: &title,
		},
		&cli.StringFlag{
			Name:        "content",
			Usage:       "Memory text",
			Destination: &content,
		},
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Read the memory from a text or audio file",
			Destination: &file,
		},
		&cli.StringFlag{
			Name:        "recipient",
			Usage:       "Who receives the memory on delivery",
			Destination: &recipient,
		},
		&cli.StringFlag{
			Name:        "message",
			Usage:       "Note delivered alongside the memory",
			Destination: &message,
		},
	}
	flags = append(flags, whenFlags(&at, &in)...)
	flags = append(flags, globalFlags(&opts)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Analyze and store a new memory",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if (content == "") == (file == "") {
				return goerr.New("exactly one of --content or --file is required")
			}
			owner, ok := attribution.ResolveOwner(owner)
			if !ok {
				return goerr.New("--owner is required")
			}
			deliveryAt, err := parseWhen(at, in, time.Now())
			if err != nil {
				return err
			}

			return withApp(ctx, &opts, func(a *app.App) error {
				var rec *types.Record
				switch {
				case file != "" && transcribe.IsSupported(file):
					f, err := os.Open(file)
					if err != nil {
						return goerr.Wrap(err, "failed to open audio file", goerr.V("path", file))
					}
					defer f.Close()
					rec, err = a.Engine.CreateFromAudio(ctx, engine.AudioRequest{
						Owner:      owner,
						Title:      title,
						Filename:   filepath.Base(file),
						Audio:      f,
						Recipient:  recipient,
						Message:    message,
						DeliveryAt: deliveryAt,
					})
					if err != nil {
						return goerr.Wrap(err, "failed to add audio memory")
					}
				default:
					text := content
					if file != "" {
						data, err := os.ReadFile(file)
						if err != nil {
							return goerr.Wrap(err, "failed to read memory file", goerr.V("path", file))
						}
						text = string(data)
					}
					rec, err = a.Engine.CreateMemory(ctx, engine.CreateRequest{
						Owner:      owner,
						Title:      title,
						Content:    text,
						Recipient:  recipient,
						Message:    message,
						DeliveryAt: deliveryAt,
					})
					if err != nil {
						return goerr.Wrap(err, "failed to add memory")
					}
				}
				return printJSON(c, rec)
			})
		},
	}
}

func showCommand() *cli.Command {
	var (
		opts    options
		related int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "related",
			Usage:       "Also list this many emotionally similar memories",
			Destination: &related,
		},
	}
	flags = append(flags, globalFlags(&opts)...)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a memory with its analysis report",
		ArgsUsage: "<memory-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}

			return withApp(ctx, &opts, func(a *app.App) error {
				rec, err := a.Engine.Get(ctx, id)
				if err != nil {
					return goerr.Wrap(err, "failed to show memory", goerr.V("id", id))
				}
				if err := printJSON(c, rec); err != nil {
					return err
				}
				if related <= 0 {
					return nil
				}

				similar, err := a.Engine.Related(ctx, id, int(related))
				if err != nil {
					return goerr.Wrap(err, "failed to find related memories", goerr.V("id", id))
				}
				fmt.Fprintln(c.Root().Writer, "Related:")
				for _, r := range similar {
					fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n", r.ID, dominant(r), preview(r.Content))
				}
				return nil
			})
		},
	}
}

func listCommand() *cli.Command {
	var (
		opts  options
		owner string
		state string
		page  int64
		limit int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Aliases:     []string{"o"},
			Usage:       "Only memories of this owner",
			Sources:     cli.EnvVars("LIFECACHE_OWNER"),
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "state",
			Usage:       "Only memories in this delivery state (unscheduled, pending, delivered, failed)",
			Destination: &state,
		},
		&cli.IntFlag{
			Name:        "page",
			Usage:       "Page number",
			Value:       1,
			Destination: &page,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Memories per page",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&opts)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List memories",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if state != "" && !types.IsValidDeliveryState(types.DeliveryState(state)) {
				return goerr.New("invalid delivery state", goerr.V("state", state))
			}

			return withApp(ctx, &opts, func(a *app.App) error {
				result, err := a.Engine.List(ctx, storage.ListOptions{
					Page:          int(page),
					Limit:         int(limit),
					Owner:         owner,
					DeliveryState: types.DeliveryState(state),
					SortBy:        "created_at",
					SortOrder:     "asc",
				})
				if err != nil {
					return goerr.Wrap(err, "failed to list memories")
				}

				tw := tabwriter.NewWriter(c.Root().Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tOWNER\tSTATE\tDELIVERY\tMOOD\tPREVIEW")
				for i := range result.Items {
					r := &result.Items[i]
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.ID, r.Owner, r.DeliveryState, formatWhen(r.DeliveryAt), dominant(r), preview(r.Content))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "%d of %d memories (page %d)\n", len(result.Items), result.Total, result.Page)
				return nil
			})
		},
	}
}

func printJSON(c *cli.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal output")
	}
	fmt.Fprintf(c.Root().Writer, "%s\n", data)
	return nil
}

func dominant(r *types.Record) string {
	if r.Report == nil || r.Report.DominantEmotion == "" {
		return "-"
	}
	return r.Report.DominantEmotion
}

func preview(s string) string {
	const max = 40
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max-3]) + "..."
}

func formatWhen(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
