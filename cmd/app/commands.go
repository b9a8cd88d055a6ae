package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/starford/folio/internal"
	"github.com/starford/folio/internal/recordservice"
)

// openService opens the configured store with logs on stderr, leaving stdout
// for command output.
func openService(cmd *cli.Command) (*recordservice.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(cfg, os.Stderr)
	store, err := internal.OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return recordservice.New(store, logger), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print one record",
		ArgsUsage: "<type> <id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("usage: get <type> <id>")
			}
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			env, err := svc.Get(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, env)
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List records of a type, or the types when none is given",
		ArgsUsage: "[type]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "Filter expression, e.g. status=open"},
			&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Usage: "Sort keys, e.g. -priority,title"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of records"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			if cmd.NArg() == 0 {
				types, err := svc.Types(ctx)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, types)
			}
			items, total, err := svc.List(ctx, cmd.Args().First(), recordservice.ListOptions{
				Filter: cmd.String("filter"),
				Sort:   cmd.String("sort"),
				Limit:  int(cmd.Int("limit")),
			})
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, map[string]any{"records": items, "total": total})
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Print record changes of a type until interrupted",
		ArgsUsage: "<type>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("usage: watch <type>")
			}
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return svc.Feed(ctx, cmd.Args().First(), func(kind, typ, id string) {
				_ = printJSON(os.Stdout, map[string]string{"kind": kind, "type": typ, "id": id})
			})
		},
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Delete every record in the store",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the reset"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if !cmd.Bool("yes") {
				return fmt.Errorf("reset deletes every record; pass --yes to confirm")
			}
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			return svc.Store().Reset()
		},
	}
}
