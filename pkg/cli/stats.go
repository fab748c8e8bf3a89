package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show memory count per topic",
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

			stats, err := uc.Stats(ctx, owner)
			if err != nil {
				return goerr.Wrap(err, "failed to collect stats")
			}

			printStats(c.Root().Writer, stats)
			return nil
		},
	}
}

func printStats(w io.Writer, stats *model.MemoryStats) {
	fmt.Fprintf(w, "Total: %d\n", stats.Count)

	topics := make([]string, 0, len(stats.Topics))
	for topic := range stats.Topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		fmt.Fprintf(w, "  %s\t%d\n", topic, stats.Topics[topic])
	}
}
