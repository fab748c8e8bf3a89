package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func storeCommand() *cli.Command {
	var (
		cfg        config
		topics     []string
		confidence float64
		proxyAgent string
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "topic",
			Aliases:     []string{"t"},
			Usage:       "Topic label for the memory (repeatable; auto-classified when omitted)",
			Sources:     cli.EnvVars("ENGRAM_STORE_TOPIC"),
			Destination: &topics,
		},
		&cli.FloatFlag{
			Name:        "confidence",
			Usage:       "Confidence in the statement (0.0-1.0)",
			Value:       1.0,
			Sources:     cli.EnvVars("ENGRAM_STORE_CONFIDENCE"),
			Destination: &confidence,
		},
		&cli.StringFlag{
			Name:        "proxy-agent",
			Usage:       "Agent name when storing on behalf of the owner",
			Sources:     cli.EnvVars("ENGRAM_STORE_PROXY_AGENT"),
			Destination: &proxyAgent,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:      "store",
		Usage:     "Store a memory statement",
		ArgsUsage: "<content>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.setup(c); err != nil {
				return err
			}

			content := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(content) == "" {
				return goerr.New("content argument is required")
			}

			owner, err := cfg.ownerID()
			if err != nil {
				return err
			}

			uc, err := cfg.newKnowledge(ctx)
			if err != nil {
				return err
			}

			result, err := uc.Store(ctx, owner, memory.AddInput{
				Content:    content,
				Topics:     topics,
				Confidence: &confidence,
				IsProxy:    proxyAgent != "",
				ProxyAgent: proxyAgent,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to store memory")
			}

			printWriteResult(c.Root().Writer, result)
			return nil
		},
	}
}

// printWriteResult renders a write outcome for the terminal. Rejections are
// reported on stdout, not as command errors; the exit code stays zero because
// a duplicate or validation rejection is an answer, not a failure.
func printWriteResult(w io.Writer, result *model.WriteResult) {
	switch result.Outcome {
	case model.OutcomeSuccess:
		fmt.Fprintf(w, "Stored %s [%s]\n", result.MemoryID, strings.Join(result.Topics, ", "))
	case model.OutcomeSuccessLocalOnly:
		fmt.Fprintf(w, "Stored %s [%s] (local only)\n", result.MemoryID, strings.Join(result.Topics, ", "))
		if result.Message != "" {
			fmt.Fprintf(w, "  %s\n", result.Message)
		}
	case model.OutcomeDuplicateExact, model.OutcomeDuplicateSemantic:
		fmt.Fprintf(w, "Already known (similarity %.2f): %s\n", result.Similarity, result.MatchedContent)
	default:
		if result.Message != "" {
			fmt.Fprintf(w, "Rejected (%s): %s\n", result.Outcome, result.Message)
		} else {
			fmt.Fprintf(w, "Rejected (%s)\n", result.Outcome)
		}
	}
}
