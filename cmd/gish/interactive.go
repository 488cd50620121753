package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	xterm "golang.org/x/term"

	"github.com/gish-sh/gish/internal/app"
	"github.com/gish-sh/gish/internal/term"
)

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	setupCtx, setupCancel := context.WithTimeout(ctx, startupTimeout)
	rt, err := setup(setupCtx, cmd, args, false)
	setupCancel()
	if err != nil {
		return err
	}
	defer rt.close()

	_, height, err := xterm.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return fmt.Errorf("gish needs a terminal: %w", err)
	}
	screen, err := term.OpenScreen(os.Stdin, os.Stdout, paneRows(height))
	if err != nil {
		if errors.Is(err, term.ErrNotTerminal) {
			return fmt.Errorf("gish needs a terminal; try 'gish watch %s'", rt.root)
		}
		return err
	}
	defer screen.Close()

	width, areaHeight := screen.PaneArea()
	panes, views := rt.panes(width, areaHeight)
	display := app.NewDisplay(term.NewRenderer(os.Stdout), screen.PaneArea, screen.DrawPanes, views)
	shell := term.NewShellSurface(screen, os.Stdin, rt.sink.Logger("session"))

	watchCfg, err := rt.watchConfig()
	if err != nil {
		return err
	}
	a, err := app.New(app.Options{
		Root:      rt.root,
		Primary:   shell,
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

	drawCtx, stopDraw := context.WithCancel(ctx)
	drawn := make(chan struct{})
	go func() {
		display.Run(drawCtx)
		close(drawn)
	}()
	stopResize := onResize(func() {
		if err := screen.Resize(); err != nil {
			rt.logger.Printf("WARNING: resize: %v", err)
			return
		}
		if err := shell.Resize(); err != nil {
			rt.logger.Printf("WARNING: resize shell: %v", err)
		}
		display.Kick()
	})

	err = a.Run(ctx)
	stopResize()
	stopDraw()
	<-drawn
	return err
}
