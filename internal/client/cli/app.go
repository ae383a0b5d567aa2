package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/client/client"
	"github.com/dmitrijs2005/gatekeeper/internal/client/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

var ErrUsage = errors.New("usage: gatekeeper [-a addr] [-s session-file] register|login|whoami|passwd|profile|set-status <user-id> <status>|logout")

type App struct {
	client      client.Client
	sessionFile string
	in          *bufio.Reader
	out         io.Writer
}

func NewApp(cfg *config.Config) (*App, error) {
	c, err := client.NewGatekeeperClient(cfg.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return newApp(c, cfg.SessionFile, os.Stdin, os.Stdout), nil
}

func newApp(c client.Client, sessionFile string, in io.Reader, out io.Writer) *App {
	return &App{client: c, sessionFile: sessionFile, in: bufio.NewReader(in), out: out}
}

func (a *App) Close() error {
	return a.client.Close()
}

// Run executes one command. The stored session handle, if any, is used for
// the call; login and logout update the file.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	if err := a.restoreSession(); err != nil {
		return err
	}

	switch args[0] {
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "whoami":
		u, err := a.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		a.printUser(u)
		return nil
	case "passwd":
		return a.changePassword(ctx)
	case "profile":
		return a.updateProfile(ctx)
	case "set-status":
		if len(args) != 3 {
			return ErrUsage
		}
		u, err := a.client.SetUserStatus(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		a.printUser(u)
		return nil
	case "logout":
		err := a.client.Logout(ctx)
		if rmErr := os.Remove(a.sessionFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return rmErr
		}
		return err
	default:
		return ErrUsage
	}
}

func (a *App) register(ctx context.Context) error {
	username, err := GetSimpleText(a.in, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}
	confirm, err := GetPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}

	u, err := a.client.Register(ctx, username, password, confirm, email)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Registered.")
	a.printUser(u)
	return nil
}

func (a *App) login(ctx context.Context) error {
	username, err := GetSimpleText(a.in, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}

	u, err := a.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.sessionFile, []byte(a.client.Session()), 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(a.out, "Welcome, %s.\n", displayName(u))
	return nil
}

func (a *App) changePassword(ctx context.Context) error {
	oldPassword, err := GetPassword(a.out, "Old password")
	if err != nil {
		return err
	}
	newPassword, err := GetPassword(a.out, "New password")
	if err != nil {
		return err
	}
	confirm, err := GetPassword(a.out, "Repeat new password")
	if err != nil {
		return err
	}

	if err := a.client.ChangePassword(ctx, oldPassword, newPassword, confirm); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed.")
	return nil
}

func (a *App) updateProfile(ctx context.Context) error {
	fmt.Fprintln(a.out, "Leave a field empty to keep its current value.")
	var p client.Profile
	for _, f := range []struct {
		prompt string
		dst    *string
	}{
		{"Display name", &p.DisplayName},
		{"Email", &p.Email},
		{"Avatar", &p.AvatarRef},
		{"Bio", &p.Bio},
	} {
		v, err := GetSimpleText(a.in, f.prompt, a.out)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		*f.dst = v
	}

	u, err := a.client.UpdateProfile(ctx, p)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) restoreSession() error {
	b, err := os.ReadFile(a.sessionFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session: %w", err)
	}
	a.client.SetSession(strings.TrimSpace(string(b)))
	return nil
}

func (a *App) printUser(u *models.UserView) {
	fmt.Fprintf(a.out, "id:       %s\nusername: %s\nemail:    %s\nrole:     %s\nstatus:   %s\n",
		u.ID, u.Username, u.Email, u.Role, u.Status)
	if u.LastLoginAt != nil {
		fmt.Fprintf(a.out, "last login: %s (%s)\n", u.LastLoginAt.Local().Format("2006-01-02 15:04:05"), u.LastLoginLocation)
	}
}

func displayName(u *models.UserView) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
