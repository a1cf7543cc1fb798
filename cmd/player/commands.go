package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/connectivity"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/server"
)

var errUsage = errors.New("invalid usage")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "leaderboard":
		return printJSON(os.Stdout, a.svc.Leaderboard(ctx))
	case "sync":
		return a.sync(ctx)
	case "lookup":
		return a.lookup(ctx, args)
	case "status":
		return a.status(ctx)
	case "watch":
		return a.watch(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var in record.RegistrationInput
	fs.StringVar(&in.Name, "name", "", "student name")
	fs.StringVar(&in.Roll, "roll", "", "roll number")
	fs.StringVar(&in.Branch, "branch", "", "branch")
	fs.StringVar(&in.Session, "session", "", "academic session")
	fs.StringVar(&in.Contact, "contact", "", "10 digit contact number")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	res, err := a.svc.Register(ctx, in)
	if err != nil {
		return err
	}
	if res.Degraded {
		a.logger.Warn("registered locally only", zap.Error(res.RemoteErr))
	}
	if err := printJSON(os.Stdout, res); err != nil {
		return err
	}

	// The game starts after the confirmation has been shown.
	select {
	case <-time.After(res.ProceedAfter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	points := fs.Int64("points", 0, "points to add")
	minLevel := fs.Int("min-level", 0, "raise the level to at least this value; 0 leaves it")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	var lvl *int
	if *minLevel > 0 {
		lvl = minLevel
	}
	res, err := a.svc.UpdateScore(ctx, *points, lvl)
	if err != nil {
		return err
	}
	switch {
	case res.RemoteErr != nil:
		a.logger.Warn("score saved locally", zap.Error(res.RemoteErr))
	case res.Skipped:
		a.logger.Info("score saved locally, will sync when back online")
	}
	return printJSON(os.Stdout, res)
}

func (a *app) sync(ctx context.Context) error {
	res, err := a.svc.Sync(ctx)
	if err != nil {
		return err
	}
	if res.Pending && !res.Synced {
		a.logger.Warn("sync did not complete", zap.Error(res.RemoteErr))
	}
	return printJSON(os.Stdout, res)
}

func (a *app) lookup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	roll := fs.Int64("roll", 0, "roll number")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *roll <= 0 {
		return fmt.Errorf("%w: -roll is required", errUsage)
	}

	rec, err := a.svc.Lookup(ctx, *roll)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, rec)
}

func (a *app) status(ctx context.Context) error {
	st, err := a.svc.Status(ctx)
	if err != nil {
		return err
	}
	if g := st.Greeting(); g != "" {
		fmt.Fprintln(os.Stderr, g)
	}
	return printJSON(os.Stdout, st)
}

// watch runs until interrupted: connectivity changes drive sync, and the
// leaderboard and status are served over HTTP.
func (a *app) watch(ctx context.Context) error {
	monitor := connectivity.NewMonitor(a.remote, a.cfg.Connectivity.ProbeInterval, a.logger)

	srv := server.New(a.cfg.Server.Addr, a.logger,
		server.WithReadyCheck("sheetdb", a.svc.Ping),
		server.WithJSON("/leaderboard", func(ctx context.Context) (interface{}, error) {
			return a.svc.Leaderboard(ctx), nil
		}),
		server.WithJSON("/status", func(ctx context.Context) (interface{}, error) {
			return a.svc.Status(ctx)
		}),
	)
	go func() {
		if err := srv.Start(); err != nil {
			a.logger.Error("observability server failed", err)
		}
	}()

	a.logger.Info("player watch starting", zap.Duration("probe_interval", a.cfg.Connectivity.ProbeInterval))
	err := a.svc.Watch(ctx, monitor)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		a.logger.Warn("observability server shutdown failed", zap.Error(serr))
	}
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
