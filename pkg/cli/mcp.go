package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/engram/pkg/service/mcp"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the memory tools over MCP on stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.setup(c); err != nil {
				return err
			}

			// Stdout carries protocol frames, so logs must go to stderr as
			// JSON regardless of the configured format.
			logger := logging.NewJSON(cfg.logLevel, os.Stderr)
			logging.SetDefault(logger)
			ctx = logging.With(ctx, logger)

			owner, err := cfg.ownerID()
			if err != nil {
				return err
			}

			uc, err := cfg.newKnowledge(ctx)
			if err != nil {
				return err
			}

			srv := mcp.New(uc, owner)

			logger.Info("starting MCP server", "owner", owner)
			if err := srv.Run(ctx); err != nil {
				return goerr.Wrap(err, "mcp server terminated")
			}
			return nil
		},
	}
}
