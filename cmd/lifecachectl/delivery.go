package main

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/scrypster/lifecache/internal/app"
	"github.com/scrypster/lifecache/internal/notify"
)

// whenFlags binds --at (RFC3339) and --in (duration from now).
func whenFlags(at *string, in *time.Duration) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "at",
			Usage:       "Delivery date (RFC3339, e.g. 2030-06-01T09:00:00Z)",
			Destination: at,
		},
		&cli.DurationFlag{
			Name:        "in",
			Usage:       "Deliver this long from now (e.g. 8760h)",
			Destination: in,
		},
	}
}

// parseWhen resolves --at or --in. It returns nil when neither is set.
func parseWhen(at string, in time.Duration, now time.Time) (*time.Time, error) {
	switch {
	case at != "" && in != 0:
		return nil, goerr.New("use only one of --at or --in")
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid --at", goerr.V("at", at))
		}
		return &t, nil
	case in != 0:
		if in < 0 {
			return nil, goerr.New("--in must be positive", goerr.V("in", in))
		}
		t := now.Add(in).UTC()
		return &t, nil
	default:
		return nil, nil
	}
}

func scheduleCommand() *cli.Command {
	var (
		opts options
		at   string
		in   time.Duration
	)

	flags := whenFlags(&at, &in)
	flags = append(flags, globalFlags(&opts)...)

	return &cli.Command{
		Name:      "schedule",
		Usage:     "Schedule a memory for delivery",
		ArgsUsage: "<memory-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			when, err := parseWhen(at, in, time.Now())
			if err != nil {
				return err
			}
			if when == nil {
				return goerr.New("one of --at or --in is required")
			}

			return withApp(ctx, &opts, func(a *app.App) error {
				rec, err := a.Engine.ScheduleDelivery(ctx, id, *when)
				if err != nil {
					return goerr.Wrap(err, "failed to schedule memory", goerr.V("id", id))
				}
				opts.emit(notify.MemoryScheduled, rec, nil)
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n", rec.ID, rec.DeliveryState, formatWhen(rec.DeliveryAt))
				return nil
			})
		},
	}
}

func requeueCommand() *cli.Command {
	var opts options

	return &cli.Command{
		Name:      "requeue",
		Usage:     "Return a failed delivery to pending",
		ArgsUsage: "<memory-id>",
		Flags:     globalFlags(&opts),
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}

			return withApp(ctx, &opts, func(a *app.App) error {
				rec, err := a.Engine.Requeue(ctx, id)
				if err != nil {
					return goerr.Wrap(err, "failed to requeue memory", goerr.V("id", id))
				}
				opts.emit(notify.MemoryRequeued, rec, nil)
				fmt.Fprintf(c.Root().Writer, "%s\t%s\tattempts=%d\n", rec.ID, rec.DeliveryState, rec.DeliveryAttempts)
				return nil
			})
		},
	}
}

func tickCommand() *cli.Command {
	var opts options

	return &cli.Command{
		Name:  "tick",
		Usage: "Deliver every memory that is due now",
		Flags: globalFlags(&opts),
		Action: func(ctx context.Context, c *cli.Command) error {
			return withApp(ctx, &opts, func(a *app.App) error {
				result, err := a.Engine.TickNow(ctx)
				if err != nil {
					return goerr.Wrap(err, "scheduler tick failed")
				}

				w := c.Root().Writer
				for _, id := range result.Delivered {
					fmt.Fprintf(w, "delivered\t%s\n", id)
				}
				for _, f := range result.Failed {
					fmt.Fprintf(w, "failed\t%s\t%v\n", f.ID, f.Err)
				}
				for _, id := range result.Skipped {
					fmt.Fprintf(w, "skipped\t%s\n", id)
				}
				fmt.Fprintf(w, "%d delivered, %d failed, %d skipped via %s\n",
					len(result.Delivered), len(result.Failed), len(result.Skipped), a.Channel.Name())
				return nil
			})
		},
	}
}
