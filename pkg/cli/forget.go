package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func forgetCommand() *cli.Command {
	var (
		cfg    config
		topics []string
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "topic",
			Aliases:     []string{"t"},
			Usage:       "Delete every memory carrying this topic (repeatable, instead of an ID)",
			Sources:     cli.EnvVars("ENGRAM_FORGET_TOPIC"),
			Destination: &topics,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:      "forget",
		Usage:     "Delete a memory by ID, or memories by topic",
		ArgsUsage: "[memory-id]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.setup(c); err != nil {
				return err
			}

			id := c.Args().First()
			switch {
			case id != "" && len(topics) > 0:
				return goerr.New("memory-id and --topic are mutually exclusive")
			case id == "" && len(topics) == 0:
				return goerr.New("either memory-id or --topic is required")
			}

			owner, err := cfg.ownerID()
			if err != nil {
				return err
			}

			uc, err := cfg.newKnowledge(ctx)
			if err != nil {
				return err
			}

			if id != "" {
				deleted, err := uc.Delete(ctx, owner, model.MemoryID(id))
				if err != nil {
					return goerr.Wrap(err, "failed to delete memory")
				}
				if !deleted {
					fmt.Fprintf(c.Root().Writer, "No memory found with id %s\n", id)
					return nil
				}
				fmt.Fprintf(c.Root().Writer, "Deleted %s\n", id)
				return nil
			}

			count, err := uc.DeleteByTopic(ctx, owner, topics)
			if err != nil {
				return goerr.Wrap(err, "failed to delete memories by topic")
			}
			fmt.Fprintf(c.Root().Writer, "Deleted %d memories\n", count)
			return nil
		},
	}
}
