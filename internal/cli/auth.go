package cli

import (
	"context"
	"os"
)

// Login authenticates against the user store and opens a session. When the
// account is flagged for a forced password change, the change is performed
// immediately.
func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", os.Stdout)
	if err != nil {
		return err
	}
	senha, err := GetPassword("Enter password", os.Stdout)
	if err != nil {
		return err
	}

	u, err := a.session.SignIn(ctx, email, senha)
	if err != nil {
		printlnFn("Login failed:", err.Error())
		return err
	}
	a.current = u
	printlnFn("Logged in as", u.Nome)

	if u.PrimeiroAcesso {
		printlnFn("You must change your password before continuing")
		return a.changeOwnSecret(ctx, senha)
	}
	return nil
}

// Logout closes the session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.SignOut(ctx); err != nil {
		return err
	}
	a.current = nil
	printlnFn("Logged out")
	return nil
}

// Passwd changes the current user's own secret.
func (a *App) Passwd(ctx context.Context) error {
	old, err := GetPassword("Current password", os.Stdout)
	if err != nil {
		return err
	}
	return a.changeOwnSecret(ctx, old)
}

func (a *App) changeOwnSecret(ctx context.Context, oldSecret string) error {
	newSecret, err := GetPassword("New password", os.Stdout)
	if err != nil {
		return err
	}
	confirm, err := GetPassword("Repeat new password", os.Stdout)
	if err != nil {
		return err
	}
	if newSecret != confirm {
		printlnFn("Passwords do not match")
		return nil
	}

	if err := a.users.ChangeSecret(ctx, a.current.ID, oldSecret, newSecret); err != nil {
		printlnFn("Password change failed:", err.Error())
		return err
	}

	// refresh the cached record so PrimeiroAcesso is current
	u, err := a.users.FindByID(ctx, a.current.ID)
	if err != nil {
		return err
	}
	a.current = u
	printlnFn("Password changed")
	return nil
}
