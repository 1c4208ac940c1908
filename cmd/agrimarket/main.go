package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/agrimarket/agrimarket-ui/internal/apiclient"
	"github.com/agrimarket/agrimarket-ui/internal/bootstrap"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// newApp builds the wired client; replaced in tests.
	newApp func(ctx *commandContext, nav ports.Navigator) (*bootstrap.App, error)
}

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		if werr := writef(os.Stderr, "agrimarket %s: %v\n", cmdName, runErr); werr != nil {
			logger.Error("print command error failed", "error", werr)
		}
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"serve": {
			name:        "serve",
			description: "Run the local web shell with role-gated dashboards",
			run:         runServe,
		},
		"login": {
			name:        "login",
			description: "Sign in and store the session credential",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create an account and sign in",
			run:         runRegister,
		},
		"logout": {
			name:        "logout",
			description: "Sign out and clear the stored credential",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Verify the stored credential and show the signed-in user",
			run:         runWhoami,
		},
		"authorize": {
			name:        "authorize",
			description: "Show the access decision for a path, e.g. authorize /farmer-dashboard",
			run:         runAuthorize,
		},
		"dashboard": {
			name:        "dashboard",
			description: "Print the live figures of your role's dashboard",
			run:         runDashboard,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: agrimarket <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// openApp builds the client with nav receiving forced sign-out redirects.
func (c *commandContext) openApp(nav ports.Navigator) (*bootstrap.App, error) {
	if c.newApp != nil {
		return c.newApp(c, nav)
	}
	return bootstrap.NewApp(c.Ctx, bootstrap.AppDeps{
		Config:    &c.Config,
		Navigator: nav,
		Logger:    c.Logger,
	})
}

// openCLIApp builds the client for one-shot commands, which report forced sign-outs on stderr.
func (c *commandContext) openCLIApp() (*bootstrap.App, error) {
	return c.openApp(&apiclient.WriterNavigator{W: c.Stderr})
}

func closeApp(c *commandContext, app *bootstrap.App) {
	if err := app.Close(); err != nil {
		c.Logger.Warn("close app", "error", err)
	}
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
