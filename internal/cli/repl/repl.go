package repl

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"webcoder/internal/cli/command"
	"webcoder/internal/cli/config"
	"webcoder/pkg/utils/logger"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"go.uber.org/zap"
)

const prompt = "webcoder> "

// LineReader is the line editor the session reads from.
type LineReader interface {
	Readline() (string, error)
	ReadPassword(prompt string) ([]byte, error)
	SetPrompt(prompt string)
	Close() error
}

// Endpoint is the HTTP target the session can retarget at runtime.
type Endpoint interface {
	BaseURL() string
	SetBaseURL(baseURL string)
	SetTimeout(timeout time.Duration)
}

// Session holds REPL state.
type Session struct {
	reader   LineReader
	app      *command.App
	commands map[string]command.Command
	endpoint Endpoint
	cfg      config.Config
	// interrupt scopes Ctrl-C to a running watch.
	interrupt func(ctx context.Context) (context.Context, context.CancelFunc)
}

func New(reader LineReader, app *command.App, commands map[string]command.Command, endpoint Endpoint, cfg config.Config) *Session {
	return &Session{
		reader:   reader,
		app:      app,
		commands: commands,
		endpoint: endpoint,
		cfg:      cfg,
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// NewReadline opens a line editor with history and command completion.
func NewReadline(historyFile string, commands map[string]command.Command) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       historyFile,
		AutoComplete:      completer(commands),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
}

func completer(commands map[string]command.Command) *readline.PrefixCompleter {
	services := map[string][]readline.PrefixCompleterInterface{}
	var order []string
	for _, cmd := range command.Sorted(commands) {
		if _, ok := services[cmd.Service]; !ok {
			order = append(order, cmd.Service)
		}
		var fields []readline.PrefixCompleterInterface
		for _, f := range cmd.Fields {
			fields = append(fields, readline.PcItem(f.Name+"="))
		}
		services[cmd.Service] = append(services[cmd.Service], readline.PcItem(cmd.Action, fields...))
	}
	items := make([]readline.PrefixCompleterInterface, 0, len(order)+5)
	for _, svc := range order {
		items = append(items, readline.PcItem(svc, services[svc]...))
	}
	items = append(items,
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout"), readline.PcItem("token")),
		readline.PcItem("show", readline.PcItem("token"), readline.PcItem("config")),
	)
	return readline.NewPrefixCompleter(items...)
}

// Run reads commands until exit or end of input.
func (s *Session) Run(ctx context.Context) {
	for {
		s.reader.SetPrompt(prompt)
		line, err := s.reader.Readline()
		if stderrors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				s.printLine("read input failed: %v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		handled, exit := s.handleSystemCommand(line)
		if exit {
			s.printLine("bye")
			return
		}
		if handled {
			continue
		}

		if err := s.handleCommand(ctx, line); err != nil {
			s.app.Out.Error(err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) (handled, exit bool) {
	switch line {
	case "exit", "quit":
		return true, true
	case "help":
		s.printHelp()
		return true, false
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true, false
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return true, false
	}
	return false, false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|token|timeout")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8000/api/v1")
			return
		}
		s.endpoint.SetBaseURL(parts[1])
		s.cfg.BaseURL = s.endpoint.BaseURL()
		s.printLine("base set to %s", s.cfg.BaseURL)
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil || dur <= 0 {
			s.printLine("invalid duration: %s", parts[1])
			return
		}
		s.endpoint.SetTimeout(dur)
		s.cfg.Timeout = dur
		s.printLine("timeout set to %s", dur)
	case "token":
		if len(parts) < 2 {
			s.printLine("usage: set token <access_token>")
			return
		}
		if err := s.app.Session.SetTokens(parts[1], ""); err != nil {
			s.printLine("save token failed: %v", err)
			return
		}
		s.printLine("token updated")
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "token":
		st := s.app.Session.State()
		if st.AccessToken == "" {
			s.printLine("token: <empty>")
			return
		}
		s.printLine("token: %s", mask(st.AccessToken))
		if st.Username != "" {
			s.printLine("user: %s", st.Username)
		}
		if !st.AccessExpiresAt.IsZero() {
			s.printLine("expires: %s", st.AccessExpiresAt.Local().Format(time.RFC3339))
		}
	case "config":
		s.printLine("baseURL: %s", s.cfg.BaseURL)
		s.printLine("timeout: %s", s.cfg.Timeout)
		s.printLine("tokenStatePath: %s", s.cfg.TokenStatePath)
		s.printLine("poll: every %s, maxAttempts %d, maxDuration %s", s.cfg.Poll.Interval, s.cfg.Poll.MaxAttempts, s.cfg.Poll.MaxDuration)
		s.printLine("snapshotStore: %s", s.cfg.SnapshotStore.Driver)
	default:
		s.printLine("usage: show token|config")
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	key := fmt.Sprintf("%s %s", tokens[0], tokens[1])
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s", key)
	}
	params, err := command.ParseArgs(tokens[2:])
	if err != nil {
		return err
	}
	params.Canonicalize(cmd.Fields)
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}

	if cmd.Watches {
		var stop context.CancelFunc
		ctx, stop = s.interrupt(ctx)
		defer stop()
	}
	logger.Debug(ctx, "run command", zap.String("command", key))
	return command.Execute(ctx, s.app, cmd, params)
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range command.Missing(cmd, params) {
		label := field.Prompt
		if field.OneOf != "" {
			label = fmt.Sprintf("%s (or pass %s=)", field.Prompt, field.OneOf)
		}
		value, err := s.promptValue(label, field.Type == command.FieldSecret)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(label string, secret bool) (string, error) {
	if secret {
		data, err := s.reader.ReadPassword(label + ": ")
		if err != nil {
			return "", fmt.Errorf("read input failed: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	s.reader.SetPrompt(label + ": ")
	line, err := s.reader.Readline()
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout|token | show token|config")
	for _, cmd := range command.Sorted(s.commands) {
		s.printLine("  %-16s %s", cmd.Key(), cmd.Summary)
	}
	s.printLine("examples:")
	for _, cmd := range command.Sorted(s.commands) {
		if cmd.Example != "" {
			s.printLine("  %s", cmd.Example)
		}
	}
}

func (s *Session) printLine(format string, args ...interface{}) {
	s.app.Out.Line(format, args...)
}

func mask(token string) string {
	if len(token) > 12 {
		return token[:6] + "..." + token[len(token)-4:]
	}
	return token
}
