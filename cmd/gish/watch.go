package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	xterm "golang.org/x/term"

	"github.com/gish-sh/gish/internal/app"
	"github.com/gish-sh/gish/internal/term"
)

var watchCmd = &cobra.Command{
	Use:   "watch PATH",
	Short: "Show the status panes without a shell",
	Long: `Render the log, status and branch panes for PATH and refresh them on every
change, without starting an interactive shell.

Useful in a second terminal, a tmux split, or with --feed-addr as a backend
for another viewer. Stop it with Ctrl+C.

Example usage:
  gish watch .
  gish watch --feed-addr 127.0.0.1:7777 --verbose ~/src/project`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWatch,
}

func init() {
	addRunFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	setupCtx, setupCancel := context.WithTimeout(ctx, startupTimeout)
	rt, err := setup(setupCtx, cmd, args, true)
	setupCancel()
	if err != nil {
		return err
	}
	defer rt.close()

	size := func() (int, int) {
		w, h, err := xterm.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			return 120, 24
		}
		return w, h - 1
	}
	out := termenv.NewOutput(os.Stdout)
	draw := func(frame string) {
		var buf bytes.Buffer
		o := termenv.NewOutput(&buf)
		o.ClearScreen()
		o.MoveCursor(1, 1)
		buf.WriteString(frame)
		buf.WriteString("\n")
		_, _ = os.Stdout.Write(buf.Bytes())
	}

	width, height := size()
	panes, views := rt.panes(width, height)
	display := app.NewDisplay(term.NewRenderer(os.Stdout), size, draw, views)

	watchCfg, err := rt.watchConfig()
	if err != nil {
		return err
	}
	a, err := app.New(app.Options{
		Root:      rt.root,
		Panes:     panes,
		Session:   rt.sessionConfig(),
		Watch:     watchCfg,
		Observers: rt.observers(display, views),
		History:   rt.recorder(),
		Logger:    rt.logger,
	})
	if err != nil {
		return err
	}

	out.AltScreen()
	out.HideCursor()
	defer func() {
		out.ShowCursor()
		out.ExitAltScreen()
		st := a.WatchStats()
		fmt.Printf("gish: %d refresh(es) in %s (%d watches, %d skipped)\n", a.Cycles(), rt.root, st.Targets, st.Skipped)
	}()

	drawCtx, stopDraw := context.WithCancel(ctx)
	drawn := make(chan struct{})
	go func() {
		display.Run(drawCtx)
		close(drawn)
	}()
	stopResize := onResize(display.Kick)

	err = a.Run(ctx)
	stopResize()
	stopDraw()
	<-drawn
	return err
}
