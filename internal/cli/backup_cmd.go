package cli

import (
	"context"
	"fmt"
	"os"
)

// Backup takes an immediate snapshot of the critical slots.
func (a *App) Backup(ctx context.Context) error {
	if err := a.keeper.BackupAll(ctx); err != nil {
		printlnFn("Backup failed:", err.Error())
		return err
	}
	printlnFn("Backup complete")
	return nil
}

// Restore puts the most recent snapshot back into the store.
func (a *App) Restore(ctx context.Context) error {
	if !a.isAdmin() {
		printlnFn("Only administrators can restore backups")
		return nil
	}

	sure, err := GetConfirm(a.reader, "Overwrite current data with the latest snapshot?", os.Stdout)
	if err != nil {
		return err
	}
	if !sure {
		return nil
	}

	if err := a.keeper.RestoreLatest(ctx); err != nil {
		printlnFn("Restore failed:", err.Error())
		return err
	}
	printlnFn("Snapshot restored")
	return nil
}

// History lists the recorded snapshots, most recent first.
func (a *App) History(ctx context.Context) error {
	history, err := a.keeper.History(ctx)
	if err != nil {
		printlnFn("History unavailable:", err.Error())
		return err
	}
	if len(history) == 0 {
		printlnFn("No snapshots recorded")
		return nil
	}
	for _, entry := range history {
		printlnFn(fmt.Sprintf("%s  v%s  %s  %d bytes", entry.ID, entry.Version, entry.Date, entry.Size))
	}
	return nil
}
