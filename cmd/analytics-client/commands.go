package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"event-analytics/client/internal/authapi"
	"event-analytics/client/internal/gate"
	"event-analytics/client/internal/session"
	"event-analytics/client/internal/telemetry"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"status":         runStatus,
	"login":          runLogin,
	"register":       runRegister,
	"logout":         runLogout,
	"track":          runTrack,
	"visit":          runVisit,
	"analytics":      runAnalytics,
	"reset-identity": runResetIdentity,
}

// readPassword is replaced in tests.
var readPassword = promptPassword

func runStatus(ctx context.Context, a *app, args []string) error {
	<-a.session.Settled()
	st := a.session.State()

	fmt.Fprintf(a.out, "status:     %s\n", st.Status)
	if st.User != nil {
		role := "user"
		if st.User.IsSuperuser {
			role = "superuser"
		}
		fmt.Fprintf(a.out, "user:       %s <%s> (%s)\n", st.User.Username, st.User.Email, role)
	}
	if st.Token != "" {
		if info, err := authapi.InspectToken(st.Token); err == nil {
			fmt.Fprintf(a.out, "token:      sub=%s expires=%s", info.Subject, info.ExpiresAt.Format(time.RFC3339))
			if info.Expired(time.Now()) {
				fmt.Fprint(a.out, " (expired)")
			}
			fmt.Fprintln(a.out)
		} else {
			fmt.Fprintln(a.out, "token:      opaque")
		}
	}
	fmt.Fprintf(a.out, "visitor:    %s\n", a.identity.VisitorID(ctx))
	fmt.Fprintf(a.out, "session id: %s\n", a.identity.BrowserSessionID(ctx))
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	var username, password string
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	fs.StringVarP(&username, "username", "u", "", "username")
	fs.StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if username == "" {
		return errors.New("login: --username is required")
	}
	if password == "" {
		var err error
		if password, err = readPassword(); err != nil {
			return err
		}
	}

	a.history.Push("/login")
	<-a.session.Settled()

	token, err := a.auth.Login(ctx, username, password)
	a.dispatcher.TrackLogin(ctx, err == nil, username)
	if err != nil {
		return errors.New(authapi.Message(err))
	}
	if err := a.session.Login(ctx, token); err != nil {
		return err
	}
	st := a.session.State()
	if st.User != nil {
		fmt.Fprintf(a.out, "logged in as %s\n", st.User.Username)
	} else {
		fmt.Fprintln(a.out, "logged in (profile unavailable)")
	}
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	var req authapi.RegisterRequest
	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	fs.StringVarP(&req.Username, "username", "u", "", "username")
	fs.StringVarP(&req.Email, "email", "e", "", "email")
	fs.StringVarP(&req.Password, "password", "p", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Username == "" || req.Email == "" {
		return errors.New("register: --username and --email are required")
	}
	if req.Password == "" {
		var err error
		if req.Password, err = readPassword(); err != nil {
			return err
		}
	}

	a.history.Push("/register")
	err := a.auth.Register(ctx, req)
	a.dispatcher.TrackRegistration(ctx, err == nil, req.Username)
	if err != nil {
		return errors.New(authapi.Message(err))
	}
	fmt.Fprintln(a.out, "Registration successful! Please login.")
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	<-a.session.Settled()
	a.session.Logout(ctx)
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func runTrack(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("track: event type is required")
	}
	attrs, err := parseAttributes(args[1:])
	if err != nil {
		return err
	}
	a.dispatcher.Dispatch(ctx, args[0], attrs)
	return nil
}

func runVisit(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("visit: at least one path is required")
	}
	for _, step := range args {
		switch step {
		case "back":
			a.history.Back()
		case "forward":
			a.history.Forward()
		default:
			if !strings.HasPrefix(step, "/") {
				return fmt.Errorf("visit: path %q must start with /", step)
			}
			a.history.Push(step)
		}
		fmt.Fprintln(a.out, a.history.Current())
	}
	return nil
}

func runAnalytics(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("analytics: exactly one endpoint is required (e.g. events/count)")
	}
	a.history.Push(session.AdminPath)
	<-a.session.Settled()

	switch a.gate.Decide(ctx, gate.ViewAdmin, a.session.State()) {
	case gate.Render:
	case gate.Login:
		return errors.New("analytics: login required")
	case gate.Forbidden:
		return errors.New("analytics: superuser privileges required")
	default:
		return errors.New("analytics: session is still loading")
	}

	raw, err := a.analytics.Fetch(ctx, args[0])
	if err != nil {
		return err
	}
	var pretty any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

func runResetIdentity(ctx context.Context, a *app, args []string) error {
	if err := a.identity.Reset(ctx); err != nil {
		return fmt.Errorf("reset identity: %w", err)
	}
	fmt.Fprintf(a.out, "visitor:    %s\n", a.identity.VisitorID(ctx))
	fmt.Fprintf(a.out, "session id: %s\n", a.identity.BrowserSessionID(ctx))
	return nil
}

// parseAttributes turns key=value pairs into attributes. Values that parse as bool, integer or
// float keep that type; everything else is a string.
func parseAttributes(pairs []string) (telemetry.Attributes, error) {
	attrs := telemetry.Attributes{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("track: attribute %q must be key=value", pair)
		}
		attrs[key] = parseValue(value)
	}
	return attrs, nil
}

func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	// NaN and Inf have no JSON encoding.
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for password prompt (use --password)")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}
