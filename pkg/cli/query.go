package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func queryCommand() *cli.Command {
	var (
		cfg   config
		mode  string
		limit int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "mode",
			Aliases:     []string{"m"},
			Usage:       "Query mode (local, global, hybrid, mix, naive, bypass, auto)",
			Value:       string(model.ModeAuto),
			Sources:     cli.EnvVars("ENGRAM_QUERY_MODE"),
			Destination: &mode,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of local results",
			Value:       5,
			Sources:     cli.EnvVars("ENGRAM_QUERY_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:      "query",
		Usage:     "Answer a question from stored memories",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.setup(c); err != nil {
				return err
			}

			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return goerr.New("question argument is required")
			}

			owner, err := cfg.ownerID()
			if err != nil {
				return err
			}

			uc, err := cfg.newKnowledge(ctx)
			if err != nil {
				return err
			}

			var result *model.QueryResult
			err = withSpinner(" searching memories...", func() error {
				var qerr error
				result, qerr = uc.Query(ctx, owner, text, model.QueryMode(mode), int(limit))
				return qerr
			})
			if err != nil {
				return goerr.Wrap(err, "query failed")
			}

			printQueryResult(c.Root().Writer, result)
			return nil
		},
	}
}

// withSpinner runs fn behind an activity spinner. Progress goes to stderr so
// stdout stays clean for the answer.
func withSpinner(suffix string, fn func() error) error {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = suffix
	sp.Start()
	defer sp.Stop()
	return fn()
}

func printQueryResult(w io.Writer, result *model.QueryResult) {
	if result.Fallback {
		fmt.Fprintf(w, "(%s backend unavailable, answered via %s)\n", otherSource(result.Source), result.Source)
	}
	fmt.Fprintf(w, "%s\n", result.Response)
}

func otherSource(s model.QuerySource) model.QuerySource {
	if s == model.SourceLocal {
		return model.SourceGraph
	}
	return model.SourceLocal
}
