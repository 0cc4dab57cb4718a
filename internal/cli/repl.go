package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn and printFn are test seams for user-facing output. In tests,
// replace them with stubs.
var (
	printlnFn = fmt.Println
	printFn   = fmt.Print
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	List(ctx context.Context) error
	Add(ctx context.Context) error
	Edit(ctx context.Context) error
	Remove(ctx context.Context) error
	Passwd(ctx context.Context) error
	Reset(ctx context.Context) error
	Check(ctx context.Context) error
	Repair(ctx context.Context) error
	CountUsers(ctx context.Context) error
	Export(ctx context.Context) error
	Backup(ctx context.Context) error
	Restore(ctx context.Context) error
	History(ctx context.Context) error
}

// runREPL starts a read–eval–print loop for the administration console.
//
// It reads a line from the scanner, parses the first token as the command,
// and dispatches to methods on 'a'. Unknown commands are reported back to the
// user. The loop exits on scanner EOF, context cancellation, or when the user
// types "exit" or "quit".
//
// Errors returned by command handlers are ignored here; handlers print their
// own messages. This keeps the loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printFn(fmt.Sprintf("backoffice> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: list, add, edit, rm, passwd, reset, check, repair, count, export, backup, restore, history, logout, exit")
			} else {
				printlnFn("Available commands: login, exit")
			}
		case "exit", "quit":
			return
		case "login":
			_ = a.Login(ctx)
		case "logout":
			requireLogin(ctx, a, a.Logout)
		case "list":
			requireLogin(ctx, a, a.List)
		case "add":
			requireLogin(ctx, a, a.Add)
		case "edit":
			requireLogin(ctx, a, a.Edit)
		case "rm":
			requireLogin(ctx, a, a.Remove)
		case "passwd":
			requireLogin(ctx, a, a.Passwd)
		case "reset":
			requireLogin(ctx, a, a.Reset)
		case "check":
			requireLogin(ctx, a, a.Check)
		case "repair":
			requireLogin(ctx, a, a.Repair)
		case "count":
			requireLogin(ctx, a, a.CountUsers)
		case "export":
			requireLogin(ctx, a, a.Export)
		case "backup":
			requireLogin(ctx, a, a.Backup)
		case "restore":
			requireLogin(ctx, a, a.Restore)
		case "history":
			requireLogin(ctx, a, a.History)
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func requireLogin(ctx context.Context, a execIface, fn func(context.Context) error) {
	if !a.isLoggedIn() {
		printlnFn("Please login first")
		return
	}
	_ = fn(ctx)
}
