package app

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	apperr "github.com/mrivas/defi-agent/internal/errors"
)

// newServeCommand keeps one process alive and reads commands from stdin, one
// line per invocation, in the same argument form as the shell surface. The
// quote store is memory-only, so a quote issued by one line stays executable
// by a later execute line only inside this mode.
func (s *runtimeState) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Read commands from stdin line by line, keeping stored quotes alive between them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.serve(cmd.InOrStdin())
		},
	}
}

func (s *runtimeState) serve(in io.Reader) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.quotes.Start(ctx)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		args, err := splitCommandLine(line)
		if err != nil {
			s.emitError(err)
			continue
		}
		if args[0] == "serve" {
			s.emitError(apperr.New(apperr.StepToolExecution, "serve cannot be nested"))
			continue
		}

		sub := s.newRootCommand()
		sub.SetArgs(args)
		sub.SetOut(s.runner.stdout)
		sub.SetErr(s.runner.stderr)
		sub.SilenceUsage = true
		sub.SilenceErrors = true
		if err := sub.Execute(); err != nil {
			s.emitError(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return apperr.Wrap(apperr.StepExecution, "read command stream", err)
	}
	return nil
}

// splitCommandLine splits a line into arguments, honoring double quotes so
// values with spaces survive.
func splitCommandLine(line string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			quoted = true
		case !inQuote && (r == ' ' || r == '\t'):
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(r)
		}
	}
	if inQuote {
		return nil, apperr.New(apperr.StepToolExecution, "unterminated quote in command line")
	}
	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, apperr.New(apperr.StepToolExecution, "empty command line")
	}
	return args, nil
}
