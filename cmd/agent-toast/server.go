package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/skratchdot/open-golang/open"

	"github.com/777genius/agent-toast/internal/config"
	"github.com/777genius/agent-toast/internal/daemon"
	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/errorhandler"
	"github.com/777genius/agent-toast/internal/focus"
	"github.com/777genius/agent-toast/internal/lifecycle"
	"github.com/777genius/agent-toast/internal/logging"
	"github.com/777genius/agent-toast/internal/notifier"
	"github.com/777genius/agent-toast/internal/placement"
	"github.com/777genius/agent-toast/internal/sound"
	"github.com/777genius/agent-toast/internal/tray"
)

// managerCallbacks lets the presenter be built before the manager it
// reports to.
type managerCallbacks struct {
	mgr atomic.Pointer[lifecycle.Manager]
}

func (c *managerCallbacks) Close(id string) {
	if m := c.mgr.Load(); m != nil {
		m.Close(id)
	}
}

func (c *managerCallbacks) Activate(window desktop.Handle, id string) {
	if m := c.mgr.Load(); m != nil {
		m.Activate(window, id)
	}
}

// runServer is the elected process. It returns after SIGINT, SIGTERM, a
// stop message or Quit from the tray. Only a failure to listen is fatal.
func runServer(ctx context.Context, initial daemon.Message) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logging.Info("server starting (pid %d)", os.Getpid())

	settingsPath, err := config.SettingsPath()
	if err != nil {
		logging.Warn("settings unavailable, using defaults: %v", err)
	}
	watcher := config.NewWatcher(settingsPath)
	if settingsPath != "" {
		errorhandler.SafeGo(func() {
			if err := watcher.Run(ctx); err != nil {
				logging.Warn("settings will not reload: %v", err)
			}
		})
	}

	sys := desktop.System{}
	player := sound.New()
	defer player.Close()

	var shown atomic.Int32
	var trayIcon *tray.Tray

	cb := &managerCallbacks{}
	presenter := notifier.New(cb, "")
	mgr := lifecycle.NewManager(lifecycle.Options{
		Presenter:  presenter,
		Activator:  sys,
		Foreground: sys,
		Placer:     placement.NewPlacer(sys, placement.DefaultLayout),
		Sound:      player,
		Settings:   watcher.Current,
		OnTransition: func(r lifecycle.Record, from lifecycle.State) {
			switch {
			case r.State == lifecycle.StateShown:
				shown.Add(1)
			case from == lifecycle.StateShown:
				shown.Add(-1)
			default:
				return
			}
			if trayIcon != nil {
				trayIcon.SetShown(int(shown.Load()))
			}
		},
		OnSettings: func() { openSettings(settingsPath) },
		OnStop:     cancel,
	})
	cb.mgr.Store(mgr)

	scfg := daemon.DefaultServerConfig()
	scfg.NotifyPerMinute = watcher.Current().RateLimitPerMinute
	server := daemon.NewServer(daemon.DefaultChannel(), mgr, scfg)
	if err := server.Listen(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	monitor := focus.NewMonitor(desktop.NewForegroundHook(), 0)
	var focusEvents <-chan desktop.FocusEvent
	if err := monitor.Start(); err != nil {
		logging.Warn("focus tracking unavailable, notifications close only manually or by timer: %v", err)
	} else {
		focusEvents = monitor.Events()
	}

	trayIcon = tray.Start(tray.Menu{
		OnSettings: func() { openSettings(settingsPath) },
		OnQuit:     cancel,
	})
	defer trayIcon.Stop()

	serveDone := make(chan struct{})
	errorhandler.SafeGo(func() {
		defer close(serveDone)
		if err := server.Serve(ctx); err != nil {
			logging.Error("accept loop stopped: %v", err)
		}
	})

	// Teardown order: listener and in-flight handlers, focus subscription,
	// then the manager hides what is still shown.
	mgrCtx, stopManager := context.WithCancel(context.Background())
	defer stopManager()
	errorhandler.SafeGo(func() {
		<-ctx.Done()
		logging.Info("server stopping")
		server.Shutdown()
		<-serveDone
		if err := monitor.Stop(); err != nil {
			logging.Warn("focus unsubscribe: %v", err)
		}
		if d := monitor.Dropped(); d > 0 {
			logging.Debug("%d focus events dropped", d)
		}
		stopManager()
	})

	if initial.Type != "" && initial.Type != daemon.MessageTypePing {
		mgr.HandleMessage(initial)
	}

	err = mgr.Run(mgrCtx, focusEvents)
	if c, ok := presenter.(interface{ Close() error }); ok {
		c.Close()
	}
	logging.Info("server stopped")
	return err
}

// openSettings creates the settings file if needed and opens it with the
// default handler.
func openSettings(path string) {
	if path == "" {
		logging.Warn("no settings path")
		return
	}
	if err := config.EnsureSettingsFile(path); err != nil {
		logging.Warn("could not create %s: %v", path, err)
	}
	if err := open.Run(path); err != nil {
		logging.Warn("could not open %s: %v", path, err)
	}
}
