package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg    config
		topics []string
		limit  int64
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "topic",
			Aliases:     []string{"t"},
			Usage:       "Only list memories carrying this topic (repeatable)",
			Sources:     cli.EnvVars("ENGRAM_LIST_TOPIC"),
			Destination: &topics,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of memories to list (0 lists all)",
			Value:       0,
			Sources:     cli.EnvVars("ENGRAM_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List stored memories",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.setup(c); err != nil {
				return err
			}

			owner, err := cfg.ownerID()
			if err != nil {
				return err
			}

			uc, err := cfg.newKnowledge(ctx)
			if err != nil {
				return err
			}

			records, err := uc.List(ctx, owner, topics, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list memories")
			}

			printRecords(c.Root().Writer, records)
			return nil
		},
	}
}

func printRecords(w io.Writer, records []*model.MemoryRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No memories stored\n")
		return
	}

	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t[%s]\t%s\n",
			rec.ID, rec.UpdatedAt.Format("2006-01-02 15:04"), strings.Join(rec.Topics, ", "), rec.Content)
	}
}
