package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/gish-sh/gish/internal/app"
	"github.com/gish-sh/gish/internal/config"
	"github.com/gish-sh/gish/internal/feed"
	"github.com/gish-sh/gish/internal/history"
	"github.com/gish-sh/gish/internal/logging"
	"github.com/gish-sh/gish/internal/session"
	"github.com/gish-sh/gish/internal/term"
	"github.com/gish-sh/gish/internal/vcs"
	"github.com/gish-sh/gish/internal/vcs/git"
	"github.com/gish-sh/gish/internal/watch"
)

// paneLabels are the pane titles, by role.
var paneLabels = map[string]string{
	config.RoleLog:    "Git Log",
	config.RoleStatus: "Git Status",
	config.RoleBranch: "Git Branch",
}

// addRunFlags registers the flags shared by the interactive and watch modes.
func addRunFlags(cmd *cobra.Command) {
	def := config.Default()
	f := cmd.Flags()
	f.Duration("quiet-window", def.QuietWindow, "Minimum spacing between refreshes")
	f.String("debounce-mode", def.DebounceMode, "Debounce mode: fixed or sliding")
	f.String("watch-strategy", def.WatchStrategy, "Watch strategy: recursive or per-entry")
	f.String("registration-policy", def.RegistrationPolicy, "On a failed watch: fail or skip")
	f.String("shell", def.Shell, "Shell for all sessions (default $SHELL)")
	f.Duration("spawn-timeout", def.SpawnTimeout, "Bound on starting one session")
	f.String("feed-addr", def.Feed.Addr, "Serve the WebSocket event feed on this address")
	f.String("log-file", def.Log.File, "Log file")
	f.Bool("no-history", false, "Do not record refreshes")
}

// resolveRepo validates the PATH argument: exit 2 without a path, exit 1
// outside a work tree.
func resolveRepo(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", &exitError{code: 2, msg: "Please supply a path to a git repository."}
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return "", err
	}
	ok, err := git.IsWorkTree(ctx, root)
	if vcs.IsFatal(err) {
		return "", fmt.Errorf("cannot check %s: %w", root, err)
	}
	if err != nil || !ok {
		return "", &exitError{code: 1, msg: "Directory is not a git repository."}
	}
	return root, nil
}

// runEnv holds what both run modes build from the configuration.
type runEnv struct {
	cfg    *config.Config
	root   string
	sink   *logging.Sink
	logger *log.Logger

	feed    *feed.Server
	history *history.DB
}

func setup(ctx context.Context, cmd *cobra.Command, args []string, tee bool) (*runEnv, error) {
	root, err := resolveRepo(ctx, args)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	sink, err := logging.Open(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Verbose:    tee && verbose,
	})
	if err != nil {
		return nil, err
	}
	rt := &runEnv{cfg: cfg, root: root, sink: sink, logger: sink.Logger("app")}

	if v, err := git.CheckVersion(ctx, git.MinVersion); err != nil {
		if !errors.Is(err, vcs.ErrVersionTooOld) {
			rt.close()
			return nil, err
		}
		rt.logger.Printf("WARNING: %v; pane output may differ", err)
	} else {
		rt.logger.Printf("starting in %s (git %s)", root, v)
	}
	if repo, err := vcs.Find(root); err == nil {
		if repo.Root != root {
			rt.logger.Printf("%s is inside repository %s", root, repo.Root)
		}
		if repo.Linked {
			rt.logger.Printf("linked worktree of %s", repo.MainRoot)
		}
	}

	if cfg.History.Enabled {
		db, err := history.Open(cfg.History.Path, sink.Logger("history"))
		if err != nil {
			// history is optional; run without it
			rt.logger.Printf("WARNING: history disabled: %v", err)
		} else {
			rt.history = db
			rt.logger.Printf("recording refreshes in %s", db.Path())
		}
	}

	if cfg.Feed.Addr != "" {
		srv := feed.NewServer(&feed.Config{Addr: cfg.Feed.Addr, Logger: sink.Logger("feed")})
		if err := srv.Start(); err != nil {
			rt.close()
			return nil, fmt.Errorf("failed to start event feed: %w", err)
		}
		rt.feed = srv
		rt.logger.Printf("event feed on ws://%s/ws", srv.Addr())
	}
	return rt, nil
}

func (rt *runEnv) close() {
	if rt.feed != nil {
		if err := rt.feed.Stop(); err != nil {
			rt.logger.Printf("ERROR: stopping event feed: %v", err)
		}
	}
	if rt.history != nil {
		if err := rt.history.Close(); err != nil {
			rt.logger.Printf("ERROR: closing history: %v", err)
		}
	}
	_ = rt.sink.Close()
}

func (rt *runEnv) watchConfig() (*watch.Config, error) {
	strategy, err := watch.ParseStrategy(rt.cfg.WatchStrategy)
	if err != nil {
		return nil, err
	}
	policy, err := watch.ParsePolicy(rt.cfg.RegistrationPolicy)
	if err != nil {
		return nil, err
	}
	mode, err := watch.ParseMode(rt.cfg.DebounceMode)
	if err != nil {
		return nil, err
	}
	return &watch.Config{
		Strategy:    strategy,
		Policy:      policy,
		QuietWindow: rt.cfg.QuietWindow,
		Mode:        mode,
		Logger:      rt.sink.Logger("watch"),
	}, nil
}

func (rt *runEnv) sessionConfig() *session.Config {
	order := make([]session.Role, 0, len(rt.cfg.RefreshOrder))
	for _, r := range rt.cfg.RefreshOrder {
		order = append(order, session.Role(r))
	}
	return &session.Config{
		Shell:        session.ResolveShell(rt.cfg.Shell),
		SpawnTimeout: rt.cfg.SpawnTimeout,
		Env:          rt.cfg.SessionEnv,
		Order:        order,
		Logger:       rt.sink.Logger("session"),
	}
}

// panes builds one pane per configured role, sized for paneWidth x
// paneHeight of screen space.
func (rt *runEnv) panes(paneWidth, paneHeight int) ([]app.Pane, []app.DisplayPane) {
	roles := []string{config.RoleLog, config.RoleStatus, config.RoleBranch}
	cols := paneWidth/len(roles) - 2
	rows := paneHeight - 3
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	logger := rt.sink.Logger("session")
	var panes []app.Pane
	var views []app.DisplayPane
	for _, role := range roles {
		p := term.NewPane(paneLabels[role], term.DefaultPaneLines)
		panes = append(panes, app.Pane{
			Role:    session.Role(role),
			Label:   paneLabels[role],
			Command: rt.cfg.Sessions.Command(role),
			Surface: term.NewPaneSurface(p, uint16(cols), uint16(rows), logger),
		})
		views = append(views, app.DisplayPane{Role: session.Role(role), Pane: p})
	}
	return panes, views
}

// observers returns the feed and display observers.
func (rt *runEnv) observers(display *app.Display, views []app.DisplayPane) []app.Observer {
	obs := []app.Observer{display}
	if rt.feed != nil {
		snap := make(map[session.Role]*term.Pane, len(views))
		for _, v := range views {
			snap[v.Role] = v.Pane
		}
		obs = append(obs, feed.NewHandler(rt.feed, rt.root, func(role session.Role) string {
			if p := snap[role]; p != nil {
				return p.Snapshot()
			}
			return ""
		}, rt.sink.Logger("feed")))
	}
	return obs
}

func (rt *runEnv) recorder() app.Recorder {
	if rt.history == nil {
		return nil
	}
	return rt.history
}

// paneRows picks the pane area height for a terminal of height rows.
func paneRows(height int) int {
	rows := height * 2 / 5
	if rows < 6 {
		rows = 6
	}
	if rows > 24 {
		rows = 24
	}
	return rows
}

// startupTimeout bounds the git probes before the UI takes over.
const startupTimeout = 15 * time.Second
