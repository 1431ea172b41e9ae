package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/extract"
	"github.com/leapstack-labs/colresolve/internal/preprocess"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

const (
	shellPrompt     = "colresolve> "
	shellContPrompt = "       ...> "
	historyFileName = ".colresolve_history"
)

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Resolve SQL interactively",
		Long: `Start an interactive session that resolves each SQL statement you type.

Statements end with a semicolon and may span several lines. Dot-commands
change the session settings; type .help to list them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
}

func runShell(cmd *cobra.Command) error {
	c := NewCommandContext(cmd)
	s := newShellSession(cmd.Context(), c)

	historyFile := ""
	if c.Cfg.ProjectRoot != "" {
		historyFile = filepath.Join(c.Cfg.ProjectRoot, historyFileName)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newShellCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	c.Renderer.Printf("colresolve shell (dialect: %s)\n", dialectName(s.dialect))
	c.Renderer.Println("Type .help for commands, .quit to exit")
	c.Renderer.Println("")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.buf.Reset()
			rl.SetPrompt(shellPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		prompt, quit := s.handle(line)
		if quit {
			break
		}
		rl.SetPrompt(prompt)
	}
	return nil
}

// shellSession holds the settings and pending input of a shell.
type shellSession struct {
	ctx        context.Context
	cmdCtx     *CommandContext
	dialect    string
	fallback   resolve.FallbackPolicy
	showScopes bool
	buf        strings.Builder
}

func newShellSession(ctx context.Context, c *CommandContext) *shellSession {
	return &shellSession{
		ctx:      ctx,
		cmdCtx:   c,
		dialect:  c.Cfg.Dialect,
		fallback: c.Cfg.Policy(),
	}
}

// handle processes one input line and returns the next prompt.
func (s *shellSession) handle(line string) (prompt string, quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return s.prompt(), false
	}

	if s.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return shellPrompt, s.dotCommand(line)
	}

	// Accumulate multi-line SQL until semicolon
	s.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.buf.WriteString("\n")
		return shellContPrompt, false
	}

	sql := s.buf.String()
	s.buf.Reset()
	s.run(sql)
	s.cmdCtx.Renderer.Println("")
	return shellPrompt, false
}

func (s *shellSession) prompt() string {
	if s.buf.Len() > 0 {
		return shellContPrompt
	}
	return shellPrompt
}

func (s *shellSession) extractor() *extract.Extractor {
	cfg := *s.cmdCtx.Cfg
	cfg.Dialect = s.dialect
	cfg.FallbackPolicy = string(s.fallback)
	c := *s.cmdCtx
	c.Cfg = &cfg
	return c.Extractor()
}

func (s *shellSession) run(sql string) {
	r := s.cmdCtx.Renderer
	cols, details, err := s.extractor().SQL(s.ctx, sql, "")
	if err != nil {
		r.Error(err.Error())
		return
	}
	resolveText(r, cols, details)

	if s.showScopes {
		d, err := dialect.Lookup(dialect.Normalize(s.dialect))
		if err != nil {
			r.Error(err.Error())
			return
		}
		if s.cmdCtx.Cfg.Preprocess {
			sql = preprocess.Clean(sql)
		}
		r.Println("")
		scopesMarkdown(r, BuildScopes(sql, d))
	}
}

// dotCommand runs a session command and reports whether to quit.
func (s *shellSession) dotCommand(line string) bool {
	r := s.cmdCtx.Renderer
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printShellHelp(r.Writer())

	case ".dialect":
		if len(parts) < 2 {
			r.Println("dialect: " + dialectName(s.dialect))
			break
		}
		name := strings.ToLower(parts[1])
		if name == extract.AutoDialect {
			s.dialect = ""
		} else {
			d, err := dialect.Lookup(name)
			if err != nil {
				r.Error(err.Error())
				break
			}
			s.dialect = d.Name
		}
		r.Success("dialect: " + dialectName(s.dialect))

	case ".dialects":
		r.Println(strings.Join(dialect.List(), ", "))

	case ".fallback":
		if len(parts) < 2 {
			r.Println("fallback: " + string(s.fallback))
			break
		}
		p, err := resolve.ParseFallbackPolicy(parts[1])
		if err != nil {
			r.Error(err.Error())
			break
		}
		s.fallback = p
		r.Success("fallback: " + string(p))

	case ".scopes":
		s.showScopes = !s.showScopes
		state := "off"
		if s.showScopes {
			state = "on"
		}
		r.Success("scopes: " + state)

	default:
		r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .help               Show this help message
  .dialect [name]     Show or set the dialect (auto tries each one)
  .dialects           List dialects
  .fallback [policy]  Show or set the unqualified column fallback
  .scopes             Toggle the scope tree after each result
  .quit / .exit       Exit the shell

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for dot-commands and dialect names
`
	_, _ = fmt.Fprintln(w, help)
}

// newShellCompleter completes dot-commands and their arguments.
func newShellCompleter() *readline.PrefixCompleter {
	dialects := []readline.PrefixCompleterInterface{readline.PcItem(extract.AutoDialect)}
	for _, name := range dialect.List() {
		dialects = append(dialects, readline.PcItem(name))
	}
	var policies []readline.PrefixCompleterInterface
	for _, p := range resolve.FallbackPolicies() {
		policies = append(policies, readline.PcItem(string(p)))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".dialect", dialects...),
		readline.PcItem(".dialects"),
		readline.PcItem(".fallback", policies...),
		readline.PcItem(".scopes"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
