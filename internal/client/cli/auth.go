package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/cuesync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a user name and password and creates the account
// on the server. The password is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, userName, password); err != nil {
		return err
	}

	a.say("Success!")
	return nil
}

// Login prompts for credentials and tries the server first. When the
// server is unreachable it falls back to the credentials cached by the
// last online login. A successful login starts the background probe and
// the push listener.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	err = a.authService.OnlineLogin(ctx, userName, password)
	switch {
	case err == nil:
		a.say("Login successful")
	case errors.Is(err, common.ErrUnreachable):
		a.say("Server unavailable, trying offline login...")
		if err := a.authService.OfflineLogin(ctx, userName, password); err != nil {
			a.say("Offline login unsuccessful:", err)
			return err
		}
		a.say("Offline login successful")
	default:
		a.say("Login unsuccessful:", err)
		return err
	}

	a.userName = userName
	a.loggedIn = true
	a.startBackground(ctx)
	return nil
}

// Logout forgets the cached credentials. Local records and unsynced
// changes stay in place.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	a.loggedIn = false
	return nil
}
