package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/777genius/agent-toast/internal/daemon"
	"github.com/777genius/agent-toast/internal/sound"
)

func newTestCmd(a *app) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Show a sample notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := &daemon.NotifyRequest{
				PID:       a.parentPID(),
				Event:     "task_complete",
				Message:   "agent-toast is working. Click to return to this terminal.",
				TitleHint: title,
				Source:    daemon.SourceClaude,
			}
			a.resolve(req)
			return a.deliver(cmd.Context(), daemon.NewMessage(daemon.MessageTypeNotify, req))
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title hint used to pick the source window")
	return cmd
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.send(daemon.NewMessage(daemon.MessageTypeStop, nil))
			if errors.Is(err, daemon.ErrNoServer) {
				return fmt.Errorf("agent-toast is not running")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
			return nil
		},
	}
}

func newSoundsCmd(a *app) *cobra.Command {
	var (
		play   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "sounds",
		Short: "List sound files usable as sound_file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			available := sound.Discover(sound.SearchDirs())
			out := cmd.OutOrStdout()

			if play != "" {
				s, ok := sound.FindByName(play, available)
				if !ok {
					return fmt.Errorf("sound %q not found", play)
				}
				fmt.Fprintf(out, "Playing: %s\n", s.Path)
				p := sound.New()
				defer p.Close()
				return p.PlayNow(s.Path)
			}

			if asJSON {
				if available == nil {
					available = []sound.Info{}
				}
				data, err := json.MarshalIndent(available, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(available) == 0 {
				fmt.Fprintln(out, "No sounds found.")
				return nil
			}
			for _, s := range available {
				fmt.Fprintf(out, "  %-8s %s.%s  %s\n", s.Source, s.Name, s.Format, s.Path)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, `Set one in ~/.claude/settings.json: {"agent_toast": {"sound_file": "<path>"}}`)
			return nil
		},
	}
	cmd.Flags().StringVar(&play, "play", "", "Play a sound by name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}
