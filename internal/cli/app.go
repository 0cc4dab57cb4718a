// Package cli implements the interactive administration console: user
// management, integrity tooling, and store backups, all routed through the
// user store manager.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"os"

	"github.com/mfsolucoes/backoffice/internal/config"
	"github.com/mfsolucoes/backoffice/internal/logging"
	"github.com/mfsolucoes/backoffice/internal/preservation"
	"github.com/mfsolucoes/backoffice/internal/session"
	"github.com/mfsolucoes/backoffice/internal/storage"
	"github.com/mfsolucoes/backoffice/internal/users"

	_ "modernc.org/sqlite"
)

// Version is the data version stamped on preservation snapshots.
const Version = "3.1.8"

type App struct {
	config  *config.Config
	users   *users.Manager
	session *session.Service
	keeper  *preservation.Keeper
	log     logging.Logger
	current *users.User
	reader  *bufio.Reader
	db      *sql.DB
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	store, db, err := storage.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, err
	}

	manager := users.NewManager(store, log)
	sess := session.NewService(store, manager, log, c.SessionTTL)
	keeper := preservation.NewKeeper(store, log, Version)

	return &App{
		config:  c,
		users:   manager,
		session: sess,
		keeper:  keeper,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		db:      db,
	}, nil
}

// Run bootstraps the store, starts the periodic backup loop, and enters the
// REPL. It returns when the user exits or the context is canceled.
func (a *App) Run(ctx context.Context) error {
	if err := a.session.Bootstrap(ctx); err != nil {
		return err
	}
	if err := a.keeper.Init(ctx); err != nil {
		return err
	}

	go a.keeper.Run(ctx, a.config.BackupInterval)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)

	return a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.current != nil
}

func (a *App) isAdmin() bool {
	return a.current != nil && a.current.IsAdmin
}

func (a *App) status() string {
	if a.current == nil {
		return "not logged in"
	}
	return a.current.Email
}
