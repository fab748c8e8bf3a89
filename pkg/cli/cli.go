package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "engram",
		Usage: "Personal memory store for conversational assistants",
		Commands: []*cli.Command{
			storeCommand(),
			queryCommand(),
			listCommand(),
			recentCommand(),
			forgetCommand(),
			clearCommand(),
			statsCommand(),
			shellCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
