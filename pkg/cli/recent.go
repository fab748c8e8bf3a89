package cli

import (
	"context"

	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func recentCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Number of memories to show",
			Value:       memory.DefaultRecentLimit,
			Sources:     cli.EnvVars("ENGRAM_RECENT_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "recent",
		Usage: "Show the most recently updated memories",
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

			records, err := uc.Recent(ctx, owner, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list recent memories")
			}

			printRecords(c.Root().Writer, records)
			return nil
		},
	}
}
