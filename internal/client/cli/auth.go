package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/server/auth"
)

// Login mints an access token for the user and checks it against the server.
// The user comes from args, then from config, then from a prompt.
func (a *App) Login(ctx context.Context, args []string) error {
	userID := a.config.UserID
	if len(args) > 0 {
		userID = args[0]
	}
	if userID == "" {
		var err error
		if userID, err = getSimpleText(a.reader, "Enter user id", a.out); err != nil {
			return err
		}
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	secret, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer clear(secret)

	token, err := auth.GenerateToken(userID, secret, a.config.TokenTTL)
	if err != nil {
		return err
	}

	cl, err := a.dial(token)
	if err != nil {
		return err
	}
	if _, err := cl.Usage(ctx); err != nil {
		cl.Close()
		return err
	}

	a.swapClient(cl)
	a.userID = userID
	fmt.Fprintln(a.out, "Logged in as", userID)
	return nil
}

// Logout drops the token and keeps an anonymous connection for pings.
func (a *App) Logout(ctx context.Context, _ []string) error {
	cl, err := a.dial("")
	if err != nil {
		return err
	}
	a.swapClient(cl)
	a.userID = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) swapClient(cl api) {
	a.mu.Lock()
	old := a.client
	a.client = cl
	a.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (a *App) conn() api {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}
