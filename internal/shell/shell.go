// Package shell implements the interactive command loop operators use to
// inspect providers and queue syncs.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/app"
	"github.com/JakeFAU/judge-sync/internal/domain"
)

// Prompt precedes every input line.
const Prompt = "> "

const helpText = `Commands:
  list               show providers and when they were last synced
  update <provider>  queue a sync of the provider (alias: sync)
  tasks              show how many tasks wait for a worker
  help               show this help
  exit               leave the shell`

// Service is the subset of app.Service the shell drives.
type Service interface {
	ListProviders() []app.ProviderStatus
	Sync(name string) error
	PendingTaskCount() int
}

type handler func(args []string) domain.Result[string]

// Shell reads commands line by line and writes their output.
type Shell struct {
	svc      Service
	in       io.Reader
	out      io.Writer
	logger   *zap.Logger
	commands map[string]handler
}

// New builds a Shell reading in and writing out.
func New(svc Service, in io.Reader, out io.Writer, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Shell{svc: svc, in: in, out: out, logger: logger.Named("shell")}
	s.commands = map[string]handler{
		"list":   s.list,
		"update": s.update,
		"sync":   s.update,
		"tasks":  s.tasks,
		"help":   s.help,
	}
	return s
}

// Run prompts until exit, end of input or ctx ends.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		s.printf("%s", Prompt)
		select {
		case <-ctx.Done():
			s.printf("\n")
			return nil
		case line, ok := <-lines:
			if !ok {
				s.printf("\n")
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			if quit := s.Execute(line); quit {
				return nil
			}
		}
	}
}

// Execute runs one input line and reports whether the shell should stop.
func (s *Shell) Execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(fields[0])
	if name == "exit" || name == "quit" {
		return true
	}
	h, ok := s.commands[name]
	if !ok {
		s.printf("Unknown command: '%s'\n", strings.TrimSpace(line))
		return false
	}
	res := h(fields[1:])
	if res.IsErr() {
		s.logger.Debug("command failed",
			zap.String("command", name),
			zap.String("kind", string(res.Kind())),
			zap.String("message", res.Message()),
		)
		s.printf("Error: %s\n", res.Message())
		return false
	}
	if msg, _ := res.Value(); msg != "" {
		s.printf("%s\n", msg)
	}
	return false
}

func (s *Shell) list([]string) domain.Result[string] {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.Header("Provider", "Last synced")
	for _, st := range s.svc.ListProviders() {
		if err := table.Append([]string{st.Name, st.LastSynced()}); err != nil {
			return domain.FromError[string](err)
		}
	}
	if err := table.Render(); err != nil {
		return domain.FromError[string](err)
	}
	return domain.OK(strings.TrimRight(buf.String(), "\n"))
}

func (s *Shell) update(args []string) domain.Result[string] {
	if len(args) != 1 {
		return domain.Fail[string](domain.KindInvalidArgument, "usage: update <provider>")
	}
	name := args[0]
	if err := s.svc.Sync(name); err != nil {
		if errors.Is(err, domain.ErrUnknownProvider) {
			return domain.Fail[string](domain.KindInvalidArgument, fmt.Sprintf("unknown provider '%s'", name))
		}
		return domain.FromError[string](err)
	}
	return domain.OK(fmt.Sprintf("Sync of %s queued", name))
}

func (s *Shell) tasks([]string) domain.Result[string] {
	return domain.OK(fmt.Sprintf("Queued tasks: %d", s.svc.PendingTaskCount()))
}

func (*Shell) help([]string) domain.Result[string] {
	return domain.OK(helpText)
}

func (s *Shell) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(s.out, format, args...); err != nil {
		s.logger.Warn("write shell output", zap.Error(err))
	}
}
