package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mfsolucoes/backoffice/internal/filex"
	"github.com/mfsolucoes/backoffice/internal/users"
)

// List prints every user record without secrets.
func (a *App) List(ctx context.Context) error {
	for _, u := range a.users.Export(ctx) {
		flags := ""
		if u.IsAdmin {
			flags += " [admin]"
		}
		if !u.Ativo {
			flags += " [inactive]"
		}
		printlnFn(fmt.Sprintf("%s  %-20s %s%s", u.ID, u.Nome, u.Email, flags))
	}
	return nil
}

// Add creates a new user record. Administrators only.
func (a *App) Add(ctx context.Context) error {
	if !a.isAdmin() {
		printlnFn("Only administrators can add users")
		return nil
	}

	nome, err := GetSimpleText(a.reader, "Name", os.Stdout)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email", os.Stdout)
	if err != nil {
		return err
	}
	senha, err := GetPassword("Initial password", os.Stdout)
	if err != nil {
		return err
	}
	isAdmin, err := GetConfirm(a.reader, "Administrator?", os.Stdout)
	if err != nil {
		return err
	}

	u, err := a.users.Add(ctx, users.User{
		Nome:           nome,
		Email:          email,
		Senha:          senha,
		IsAdmin:        isAdmin,
		Ativo:          true,
		PrimeiroAcesso: true,
	})
	if err != nil {
		printlnFn("Add failed:", err.Error())
		return err
	}
	printlnFn("Created", u.ID)
	return nil
}

// Edit updates selected fields of a record. Empty input keeps the current
// value. Administrators only.
func (a *App) Edit(ctx context.Context) error {
	if !a.isAdmin() {
		printlnFn("Only administrators can edit users")
		return nil
	}

	id, err := GetSimpleText(a.reader, "User id", os.Stdout)
	if err != nil {
		return err
	}
	existing, err := a.users.FindByID(ctx, id)
	if err != nil {
		printlnFn("User not found:", id)
		return err
	}

	nome, err := GetSimpleText(a.reader, "Name ["+existing.Nome+"]", os.Stdout)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email ["+existing.Email+"]", os.Stdout)
	if err != nil {
		return err
	}
	activeDefault := "n"
	if existing.Ativo {
		activeDefault = "y"
	}
	answer, err := GetSimpleText(a.reader, "Active? (y/n) ["+activeDefault+"]", os.Stdout)
	if err != nil {
		return err
	}
	active := existing.Ativo
	if answer != "" {
		answer = strings.ToLower(answer)
		active = answer == "y" || answer == "yes"
	}

	patch := users.Patch{Ativo: &active}
	if nome != "" {
		patch.Nome = &nome
	}
	if email != "" {
		patch.Email = &email
	}

	if err := a.users.Update(ctx, id, patch); err != nil {
		printlnFn("Update failed:", err.Error())
		return err
	}
	printlnFn("Updated", id)
	return nil
}

// Remove deletes a record. The manager refuses the reserved administrator,
// self-removal, and the last active administrator. Administrators only.
func (a *App) Remove(ctx context.Context) error {
	if !a.isAdmin() {
		printlnFn("Only administrators can remove users")
		return nil
	}

	id, err := GetSimpleText(a.reader, "User id", os.Stdout)
	if err != nil {
		return err
	}
	sure, err := GetConfirm(a.reader, "Remove "+id+"?", os.Stdout)
	if err != nil {
		return err
	}
	if !sure {
		return nil
	}

	if err := a.users.Remove(ctx, id, a.current.ID); err != nil {
		printlnFn("Remove failed:", err.Error())
		return err
	}
	printlnFn("Removed", id)
	return nil
}

// Reset sets a new temporary secret on another account and flags it for a
// forced change on next login. Administrators only.
func (a *App) Reset(ctx context.Context) error {
	if !a.isAdmin() {
		printlnFn("Only administrators can reset passwords")
		return nil
	}

	id, err := GetSimpleText(a.reader, "User id", os.Stdout)
	if err != nil {
		return err
	}
	senha, err := GetPassword("Temporary password", os.Stdout)
	if err != nil {
		return err
	}

	firstAccess := true
	if err := a.users.Update(ctx, id, users.Patch{Senha: &senha, PrimeiroAcesso: &firstAccess}); err != nil {
		printlnFn("Reset failed:", err.Error())
		return err
	}
	printlnFn("Password reset for", id)
	return nil
}

// Check prints the integrity report.
func (a *App) Check(ctx context.Context) error {
	report := a.users.CheckIntegrity(ctx)
	printlnFn(fmt.Sprintf("total=%d admin=%v duplicates=%v invalid=%v ok=%v",
		report.Total, report.AdminExists, report.DuplicatedEmails, report.InvalidRecords, report.OK))
	return nil
}

// Repair fixes integrity problems in place.
func (a *App) Repair(ctx context.Context) error {
	if err := a.users.Repair(ctx); err != nil {
		printlnFn("Repair failed:", err.Error())
		return err
	}
	printlnFn("Integrity repaired")
	return nil
}

// CountUsers prints collection statistics.
func (a *App) CountUsers(ctx context.Context) error {
	s := a.users.Count(ctx)
	printlnFn(fmt.Sprintf("total=%d ativos=%d admins=%d", s.Total, s.Ativos, s.Admins))
	return nil
}

// Export writes the secret-stripped records to a JSON file in the exports
// directory.
func (a *App) Export(ctx context.Context) error {
	dir, err := filex.EnsureSubDir("exports")
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(a.users.Export(ctx), "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf("usuarios-%d.json", time.Now().UnixMilli()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	printlnFn("Exported to", path)
	return nil
}
