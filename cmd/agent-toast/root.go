package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/777genius/agent-toast/internal/daemon"
	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/hookinput"
	"github.com/777genius/agent-toast/internal/logging"
	"github.com/777genius/agent-toast/internal/proctree"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	stdinTimeout = 500 * time.Millisecond
)

type usageError struct{ error }

type windowResolver interface {
	Resolve(pid uint32, titleHint string) proctree.Resolution
}

// app carries the process-level dependencies so commands can be tested
// without a desktop or a running server.
type app struct {
	stdin      io.Reader
	stdinIsTTY func() bool
	stdout     io.Writer
	stderr     io.Writer
	resolver   windowResolver
	parentPID  func() uint32
	logPath    func() (string, error)

	// deliver elects a server or hands msg to the running one.
	deliver func(ctx context.Context, msg daemon.Message) error
	// send only talks to a running server.
	send func(msg daemon.Message) error
}

func newApp() *app {
	return &app{
		stdin:      os.Stdin,
		stdinIsTTY: stdinIsTerminal,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		resolver:   proctree.NewResolver(),
		parentPID:  proctree.ParentPID,
		logPath:    logging.DefaultPath,
		deliver: func(ctx context.Context, msg daemon.Message) error {
			coord := daemon.NewCoordinator(daemon.DefaultLock(), daemon.NewClient(daemon.DefaultChannel()))
			return coord.Run(ctx, msg, runServer)
		},
		send: func(msg daemon.Message) error {
			return daemon.NewClient(daemon.DefaultChannel()).Send(msg)
		},
	}
}

func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// execute runs the command line and maps errors to exit codes.
func execute(args []string, a *app) int {
	if path, err := a.logPath(); err == nil {
		if err := logging.Init(path); err != nil {
			fmt.Fprintf(a.stderr, "warning: logging disabled: %v\n", err)
		}
	}
	defer logging.Close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	logging.Error("%v", err)

	var uerr usageError
	if errors.As(err, &uerr) {
		return exitUsage
	}
	return exitFailure
}

type rootOptions struct {
	pid     uint32
	event   string
	message string
	title   string
	daemon  bool
	setup   bool
	codex   bool
}

func newRootCmd(a *app) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "agent-toast [codex-json]",
		Short: "Smart notifications for AI coding agents",
		Long: `agent-toast shows a desktop notification when an AI coding agent finishes,
needs input or fails, and brings its terminal back to the front when clicked.

The first invocation becomes a background server; later invocations hand their
notification to it and exit.`,
		Example: `  # From a Claude hook
  agent-toast --event task_complete --message "Build done"

  # From Codex's notify setting
  agent-toast --codex '{"type":"agent-turn-complete","cwd":"/src/api"}'

  # Start the server without a notification
  agent-toast --daemon`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRoot(cmd.Context(), opts, args)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	f := cmd.Flags()
	f.Uint32Var(&opts.pid, "pid", 0, "PID of the source terminal or editor (default: parent process)")
	f.StringVar(&opts.event, "event", "", "Event kind, e.g. task_complete, user_input_required, error")
	f.StringVar(&opts.message, "message", "", "Message text")
	f.StringVar(&opts.title, "title", "", "Title hint used to pick the source window")
	f.BoolVar(&opts.daemon, "daemon", false, "Start the server without showing a notification")
	f.BoolVar(&opts.setup, "setup", false, "Open the settings file")
	f.BoolVar(&opts.codex, "codex", false, "Read a Codex notify JSON payload from the positional argument")
	cmd.MarkFlagsMutuallyExclusive("daemon", "setup", "codex")

	cmd.AddCommand(newTestCmd(a), newStopCmd(a), newSoundsCmd(a))
	return cmd
}

func (a *app) runRoot(ctx context.Context, opts *rootOptions, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.codex:
		raw := "{}"
		if len(args) == 1 {
			raw = args[0]
		}
		req, err := a.codexRequest(raw, opts.pid)
		if err != nil {
			return usageError{err}
		}
		return a.deliver(ctx, daemon.NewMessage(daemon.MessageTypeNotify, req))

	case len(args) > 0:
		return usageError{fmt.Errorf("unexpected argument %q (did you mean --codex?)", args[0])}

	case opts.daemon:
		return a.deliver(ctx, daemon.NewMessage(daemon.MessageTypePing, nil))

	case opts.setup:
		return a.deliver(ctx, daemon.NewMessage(daemon.MessageTypeSettings, nil))
	}

	payload := a.readPayload()
	event := opts.event
	if event == "" {
		event = hookinput.EventForHook(payload.HookEventName)
	}
	if event == "" {
		return a.deliver(ctx, daemon.NewMessage(daemon.MessageTypeSettings, nil))
	}

	req := a.claudeRequest(opts, event, payload)
	return a.deliver(ctx, daemon.NewMessage(daemon.MessageTypeNotify, req))
}

// readPayload reads a Claude hook payload from stdin when stdin is not a
// terminal. A writer that never closes stdin is given up on.
func (a *app) readPayload() hookinput.ClaudePayload {
	if a.stdin == nil || a.stdinIsTTY() {
		return hookinput.ClaudePayload{}
	}

	type result struct {
		p   hookinput.ClaudePayload
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := hookinput.ReadClaude(a.stdin)
		ch <- result{p, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			logging.Debug("ignoring stdin: %v", r.err)
		}
		return r.p
	case <-time.After(stdinTimeout):
		logging.Debug("stdin not closed after %s, ignoring", stdinTimeout)
		return hookinput.ClaudePayload{}
	}
}

func (a *app) claudeRequest(opts *rootOptions, event string, payload hookinput.ClaudePayload) *daemon.NotifyRequest {
	pid := opts.pid
	if pid == 0 {
		pid = a.parentPID()
	}

	message := opts.message
	if message == "" {
		message = hookinput.Truncate(payload.Message, hookinput.MaxMessageRunes)
	}
	if message == "" && payload.TranscriptPath != "" {
		summary, err := hookinput.TranscriptSummary(payload.TranscriptPath)
		if err != nil {
			logging.Debug("transcript unavailable: %v", err)
		}
		message = summary
	}

	req := &daemon.NotifyRequest{
		PID:       pid,
		Event:     event,
		Message:   message,
		TitleHint: hookinput.TitleHint(opts.title, payload),
		Source:    daemon.SourceClaude,
	}
	a.resolve(req)
	return req
}

func (a *app) codexRequest(raw string, pid uint32) (*daemon.NotifyRequest, error) {
	payload, err := hookinput.ParseCodex(raw)
	if err != nil {
		return nil, err
	}
	if pid == 0 {
		pid = a.parentPID()
	}
	req := &daemon.NotifyRequest{
		PID:       pid,
		Event:     payload.Event(),
		Message:   payload.Message(),
		TitleHint: payload.TitleHint(),
		Source:    daemon.SourceCodex,
	}
	a.resolve(req)
	return req, nil
}

// resolve walks the process tree now, while the source process is alive.
func (a *app) resolve(req *daemon.NotifyRequest) {
	if req.Source.Internal() || req.PID == 0 {
		return
	}
	res := a.resolver.Resolve(req.PID, req.TitleHint)
	req.ProcessTree = res.Chain
	req.Window = uint64(res.Window)
	req.WindowTitle = res.Title
	req.Terminal = desktop.TerminalName()
	logging.Debug("resolved pid %d: window=%s chain=%v", req.PID, res.Window, res.Chain)
}
