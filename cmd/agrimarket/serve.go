package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/agrimarket/agrimarket-ui/internal/bootstrap"
	httpx "github.com/agrimarket/agrimarket-ui/internal/http"
)

func runServe(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Stderr)
	addr := fs.String("addr", cmdCtx.Config.HTTP.Addr, "Address for the local web shell")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := cmdCtx.Config
	cfg.HTTP.Addr = *addr

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	nav := &httpx.PendingNavigation{}
	app, err := cmdCtx.openApp(nav)
	if err != nil {
		return err
	}
	defer closeApp(cmdCtx, app)

	cmdCtx.Logger.InfoContext(ctx, "starting agrimarket shell",
		"addr", cfg.HTTP.Addr,
		"auth_mode", cfg.Auth.Mode,
		"credential_store", cfg.Store.Kind,
		"metrics", cfg.Observability.MetricsEnabled)

	return bootstrap.RunShell(ctx, bootstrap.ShellConfig{
		Config:     &cfg,
		App:        app,
		Navigation: nav,
		Logger:     cmdCtx.Logger,
	})
}
