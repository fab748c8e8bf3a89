package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func clearCommand() *cli.Command {
	var (
		cfg   config
		force bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "Skip the confirmation prompt",
			Sources:     cli.EnvVars("ENGRAM_CLEAR_FORCE"),
			Destination: &force,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all memories of the owner",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.setup(c); err != nil {
				return err
			}

			owner, err := cfg.ownerID()
			if err != nil {
				return err
			}

			if !force {
				fmt.Fprintf(c.Root().Writer, "Delete all memories of %s? [y/N] ", owner)
				scanner := bufio.NewScanner(os.Stdin)
				if !scanner.Scan() || strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
					fmt.Fprintf(c.Root().Writer, "Aborted\n")
					return nil
				}
			}

			uc, err := cfg.newKnowledge(ctx)
			if err != nil {
				return err
			}

			count, err := uc.ClearAll(ctx, owner)
			if err != nil {
				return goerr.Wrap(err, "failed to clear memories")
			}

			fmt.Fprintf(c.Root().Writer, "Deleted %d memories\n", count)
			return nil
		},
	}
}
