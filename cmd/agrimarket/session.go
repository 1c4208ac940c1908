package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	apperrors "github.com/agrimarket/agrimarket-ui/internal/errors"
)

const defaultCommandTimeout = 30 * time.Second

type loginOptions struct {
	Email         string
	Password      string
	PasswordStdin bool
	Timeout       time.Duration
}

type registerOptions struct {
	loginOptions
	Name     string
	Role     string
	Phone    string
	Location string
}

type whoamiOptions struct {
	JSON    bool
	Timeout time.Duration
}

func parseLoginFlags(args []string, stderr io.Writer) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts loginOptions
	bindCredentialFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return opts, errors.New("--email is required")
	}
	return opts, nil
}

func parseRegisterFlags(args []string, stderr io.Writer) (registerOptions, error) {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts registerOptions
	bindCredentialFlags(fs, &opts.loginOptions)
	fs.StringVar(&opts.Name, "name", "", "Full name (required)")
	fs.StringVar(&opts.Role, "role", "", "Account role: "+roleList())
	fs.StringVar(&opts.Phone, "phone", "", "Optional phone number")
	fs.StringVar(&opts.Location, "location", "", "Optional location")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return opts, errors.New("--email is required")
	}
	return opts, nil
}

func bindCredentialFlags(fs *flag.FlagSet, opts *loginOptions) {
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Password (prefer --password-stdin)")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from the first line of stdin")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum time to wait for the server")
}

func roleList() string {
	roles := domainauth.Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// readSecret returns the password from flags or the first line of stdin.
func readSecret(opts loginOptions, stdin io.Reader) (string, error) {
	if !opts.PasswordStdin {
		return opts.Password, nil
	}
	if opts.Password != "" {
		return "", errors.New("--password and --password-stdin are mutually exclusive")
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args, cmdCtx.Stderr)
	if err != nil {
		return err
	}
	secret, err := readSecret(opts, cmdCtx.Stdin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := contextWithTimeout(ctx, opts.Timeout)
	defer cancel()

	app, err := cmdCtx.openCLIApp()
	if err != nil {
		return err
	}
	defer closeApp(cmdCtx, app)

	p, err := app.Sessions.Login(ctx, opts.Email, secret)
	if err != nil {
		return userFacing(err)
	}
	return printSignedIn(cmdCtx.Stdout, p)
}

func runRegister(cmdCtx *commandContext, args []string) error {
	opts, err := parseRegisterFlags(args, cmdCtx.Stderr)
	if err != nil {
		return err
	}
	secret, err := readSecret(opts.loginOptions, cmdCtx.Stdin)
	if err != nil {
		return err
	}
	role, err := domainauth.ParseRole(opts.Role)
	if err != nil {
		return fmt.Errorf("--role: %w (valid roles: %s)", err, roleList())
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := contextWithTimeout(ctx, opts.Timeout)
	defer cancel()

	app, err := cmdCtx.openCLIApp()
	if err != nil {
		return err
	}
	defer closeApp(cmdCtx, app)

	p, err := app.Sessions.Register(ctx, domainauth.Registration{
		Name:     opts.Name,
		Email:    opts.Email,
		Password: secret,
		Role:     role,
		Phone:    opts.Phone,
		Location: opts.Location,
	})
	if err != nil {
		return userFacing(err)
	}
	return printSignedIn(cmdCtx.Stdout, p)
}

func runLogout(cmdCtx *commandContext, _ []string) error {
	app, err := cmdCtx.openCLIApp()
	if err != nil {
		return err
	}
	defer closeApp(cmdCtx, app)

	if !app.Sessions.Session().HasToken() {
		return writeln(cmdCtx.Stdout, "Not signed in.")
	}
	// Logout never fails: local state is cleared even when revocation does not reach the server.
	_ = app.Sessions.Logout(cmdCtx.Ctx)
	return writeln(cmdCtx.Stdout, "Signed out.")
}

func runWhoami(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Stderr)
	var opts whoamiOptions
	fs.BoolVar(&opts.JSON, "json", false, "Print the session as JSON")
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

	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	}
	return printSession(cmdCtx.Stdout, sess)
}

func printSignedIn(w io.Writer, p domainauth.Principal) error {
	return writef(w, "Signed in as %s (%s). Your dashboard: %s\n",
		p.DisplayName(), p.Role.Label(), domainauth.DashboardFor(p.Role))
}

func printSession(w io.Writer, sess domainauth.Session) error {
	if sess.Principal == nil {
		return writeln(w, "Not signed in. Run `agrimarket login` to sign in.")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Name", sess.Principal.DisplayName()},
		{"Email", sess.Principal.Email},
		{"Role", sess.Principal.Role.Label()},
		{"Dashboard", domainauth.DashboardFor(sess.Principal.Role)},
	}
	if !sess.VerifiedAt.IsZero() {
		rows = append(rows, [2]string{"Verified", sess.VerifiedAt.Local().Format(time.RFC1123)})
	}
	if !sess.ExpiresAt.IsZero() {
		rows = append(rows, [2]string{"Expires", sess.ExpiresAt.Local().Format(time.RFC1123)})
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write %s: %w", strings.ToLower(row[0]), err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush session table: %w", err)
	}
	if sess.Stale {
		return writeln(w, "Note: the server could not be reached; showing the last known session.")
	}
	return nil
}

// userFacing strips internal wrapping so the rejection reason reads cleanly on a terminal.
func userFacing(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return errors.New(appErr.Message)
	}
	return err
}
