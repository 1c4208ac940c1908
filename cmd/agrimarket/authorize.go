package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/domain/authz"
	httpx "github.com/agrimarket/agrimarket-ui/internal/http"
)

// errNotSignedIn is returned by commands that need a session when none exists.
var errNotSignedIn = errors.New("not signed in; run `agrimarket login` first")

type authorizeOptions struct {
	JSON    bool
	Timeout time.Duration
}

// requirementFor resolves path against the shell's route table. The dashboard alias
// admits any signed-in user.
func requirementFor(path string) (authz.Requirement, bool) {
	if rt, ok := httpx.LookupRoute(path); ok {
		return rt.Requirement, true
	}
	if p := strings.SplitN(path, "?", 2)[0]; p == "/dashboard" || p == "/" {
		return authz.Authenticated(), true
	}
	return nil, false
}

func runAuthorize(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("authorize", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Stderr)
	var opts authorizeOptions
	fs.BoolVar(&opts.JSON, "json", false, "Print the decision as JSON")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum time to wait for the server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: agrimarket authorize [--json] <path>")
	}
	path := fs.Arg(0)
	req, ok := requirementFor(path)
	if !ok {
		return fmt.Errorf("unknown path %q", path)
	}

	ctx, cancel := contextWithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	app, err := cmdCtx.openCLIApp()
	if err != nil {
		return err
	}
	defer closeApp(cmdCtx, app)

	sess, verifyErr := app.Sessions.Verify(ctx)
	if verifyErr != nil {
		cmdCtx.Logger.Warn("session verification failed", "error", verifyErr)
	}

	d := authz.Authorize(req, sess, authz.WithReturnTo(path))
	if opts.JSON {
		return json.NewEncoder(cmdCtx.Stdout).Encode(d)
	}
	return printDecision(cmdCtx.Stdout, path, req, d)
}

func printDecision(w io.Writer, path string, req authz.Requirement, d authz.Decision) error {
	switch d.Outcome {
	case authz.Allow:
		return writef(w, "allow: %s is open to you\n", path)
	case authz.Redirect:
		return writef(w, "redirect: sign in first (%s)\n", d.RedirectURL())
	case authz.Deny:
		return writef(w, "deny: %s requires %s; you are signed in as %s. Go to %s\n",
			path, req, d.CurrentRole, d.CorrectivePath)
	default:
		return writef(w, "pending: the session has not been verified yet\n")
	}
}

func runDashboard(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Stderr)
	var opts authorizeOptions
	fs.BoolVar(&opts.JSON, "json", false, "Print the raw summary as JSON")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum time to wait for the server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	app, err := cmdCtx.openCLIApp()
	if err != nil {
		return err
	}
	defer closeApp(cmdCtx, app)

	sess, verifyErr := app.Sessions.Verify(ctx)
	if verifyErr != nil {
		cmdCtx.Logger.Warn("session verification failed", "error", verifyErr)
	}
	if sess.Principal == nil {
		return errNotSignedIn
	}

	rt, ok := httpx.LookupRoute(domainauth.DashboardFor(sess.Principal.Role))
	if !ok || rt.SummaryPath == "" {
		return fmt.Errorf("no dashboard for role %q", sess.Principal.Role)
	}
	if app.API == nil {
		return errors.New("MARKETPLACE_API_URL is not configured")
	}

	summary := map[string]any{}
	if err := app.API.GetJSON(ctx, rt.SummaryPath, &summary); err != nil {
		if errors.Is(err, domainauth.ErrUnauthorized) {
			return errNotSignedIn
		}
		return fmt.Errorf("load %s: %w", rt.Title, err)
	}

	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	return printSummary(cmdCtx.Stdout, rt.Title, sess.Stale, summary)
}

func printSummary(w io.Writer, title string, stale bool, summary map[string]any) error {
	if err := writeln(w, title); err != nil {
		return err
	}
	if stale {
		if err := writeln(w, "(offline: the session could not be re-checked)"); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		if err := writef(tw, "%s\t%v\n", k, summary[k]); err != nil {
			return fmt.Errorf("write summary row %q: %w", k, err)
		}
	}
	return tw.Flush()
}

func contextWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
