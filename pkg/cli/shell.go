package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/knowledge"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func shellCommand() *cli.Command {
	var (
		cfg  config
		mode string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "mode",
			Aliases:     []string{"m"},
			Usage:       "Initial query mode for the session",
			Value:       string(model.ModeAuto),
			Sources:     cli.EnvVars("ENGRAM_QUERY_MODE"),
			Destination: &mode,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive memory session",
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

			dir, err := cfg.storeDir()
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     filepath.Join(dir, ".shell_history"),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize prompt")
			}
			defer rl.Close()

			sh := &shell{
				uc:    uc,
				owner: owner,
				mode:  model.QueryMode(mode),
				out:   c.Root().Writer,
			}

			fmt.Fprintf(sh.out, "Memory session for %s. Plain text queries, /help for commands.\n", owner)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if len(line) == 0 {
						break
					}
					continue
				} else if errors.Is(err, io.EOF) {
					break
				}

				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}

				if done := sh.dispatch(ctx, line); done {
					break
				}
			}

			fmt.Fprintf(sh.out, "Bye\n")
			return nil
		},
	}
}

// shell holds the state of one interactive session
type shell struct {
	uc    *knowledge.UseCase
	owner model.OwnerID
	mode  model.QueryMode
	out   io.Writer
}

// dispatch handles one input line and reports whether the session should end.
// Command failures are printed, never returned, so the session survives them.
func (s *shell) dispatch(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		s.query(ctx, line)
		return false
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/exit", "/quit":
		return true
	case "/help":
		s.help()
	case "/mode":
		s.setMode(rest)
	case "/store":
		s.store(ctx, rest)
	case "/list":
		s.list(ctx, strings.Fields(rest))
	case "/recent":
		s.recent(ctx)
	case "/forget":
		s.forget(ctx, rest)
	case "/stats":
		s.stats(ctx)
	default:
		fmt.Fprintf(s.out, "Unknown command %s, /help lists commands\n", name)
	}
	return false
}

func (s *shell) help() {
	fmt.Fprintf(s.out, `Plain text is answered from stored memories.
  /store <content>   store a memory statement
  /list [topic...]   list memories, optionally by topic
  /recent            show recently updated memories
  /forget <id>       delete a memory
  /stats             show memory count per topic
  /mode [mode]       show or set the query mode
  /exit              leave the session
`)
}

func (s *shell) setMode(arg string) {
	if arg == "" {
		fmt.Fprintf(s.out, "Current mode: %s\n", s.mode)
		return
	}

	mode := model.QueryMode(arg)
	if err := mode.Validate(); err != nil {
		fmt.Fprintf(s.out, "Unknown mode %q, valid modes: %s\n", arg, joinModes())
		return
	}
	s.mode = mode
	fmt.Fprintf(s.out, "Mode set to %s\n", mode)
}

func (s *shell) query(ctx context.Context, text string) {
	var result *model.QueryResult
	err := withSpinner(" searching memories...", func() error {
		var qerr error
		result, qerr = s.uc.Query(ctx, s.owner, text, s.mode, 0)
		return qerr
	})
	if err != nil {
		fmt.Fprintf(s.out, "Query failed: %s\n", err)
		return
	}

	printQueryResult(s.out, result)
}

func (s *shell) store(ctx context.Context, content string) {
	if content == "" {
		fmt.Fprintf(s.out, "Usage: /store <content>\n")
		return
	}

	var result *model.WriteResult
	err := withSpinner(" storing...", func() error {
		var serr error
		result, serr = s.uc.Store(ctx, s.owner, memory.AddInput{Content: content})
		return serr
	})
	if err != nil {
		fmt.Fprintf(s.out, "Store failed: %s\n", err)
		return
	}

	printWriteResult(s.out, result)
}

func (s *shell) list(ctx context.Context, topics []string) {
	records, err := s.uc.List(ctx, s.owner, topics, 0)
	if err != nil {
		fmt.Fprintf(s.out, "List failed: %s\n", err)
		return
	}
	printRecords(s.out, records)
}

func (s *shell) recent(ctx context.Context) {
	records, err := s.uc.Recent(ctx, s.owner, memory.DefaultRecentLimit)
	if err != nil {
		fmt.Fprintf(s.out, "Recent failed: %s\n", err)
		return
	}
	printRecords(s.out, records)
}

func (s *shell) forget(ctx context.Context, id string) {
	if id == "" {
		fmt.Fprintf(s.out, "Usage: /forget <memory-id>\n")
		return
	}

	deleted, err := s.uc.Delete(ctx, s.owner, model.MemoryID(id))
	if err != nil {
		fmt.Fprintf(s.out, "Forget failed: %s\n", err)
		return
	}
	if !deleted {
		fmt.Fprintf(s.out, "No memory found with id %s\n", id)
		return
	}
	fmt.Fprintf(s.out, "Deleted %s\n", id)
}

func (s *shell) stats(ctx context.Context) {
	stats, err := s.uc.Stats(ctx, s.owner)
	if err != nil {
		fmt.Fprintf(s.out, "Stats failed: %s\n", err)
		return
	}
	printStats(s.out, stats)
}

func joinModes() string {
	modes := model.QueryModes()
	parts := make([]string, 0, len(modes))
	for _, m := range modes {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, ", ")
}
