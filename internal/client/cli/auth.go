package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/backend"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
)

// getSimpleText, getPassword and getSecret are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getSecret     = GetSecret
	getMultiline  = GetMultiline
)

// Login prompts for credentials and signs in. The resulting SIGNED_IN event
// drives the session controller; Login only reports the outcome.
//
// The password is wiped before returning. A backend that cannot be reached
// switches the app to offline mode.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	_, err = a.backend.SignInWithPassword(ctx, email, string(password))
	switch {
	case err == nil:
		a.setMode(ModeOnline)
		a.ui.printf("Logged in as %s.\n", email)
		return nil
	case errors.Is(err, backend.ErrInvalidCredentials):
		a.ui.printf("Login failed: wrong email or password.\n")
	case errors.Is(err, common.ErrUnavailable):
		a.setMode(ModeOffline)
		a.ui.printf("Backend unavailable, try again later.\n")
	default:
		a.ui.printf("Login failed: %v\n", err)
	}
	return fmt.Errorf("login: %w", err)
}

// Logout signs out and locks the doctor view.
func (a *App) Logout(ctx context.Context) error {
	a.guard.Lock()
	a.ui.show(viewNone)
	if err := a.backend.SignOut(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.ui.printf("Logged out.\n")
	return nil
}
