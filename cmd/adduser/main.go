// Command adduser creates an account from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/core"
	"spendwise/internal/services"
	"spendwise/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", "", "SQLite database path (defaults to SQLITE_DB_PATH)")
	databaseURL := fs.String("database-url", "", "Postgres URL; takes precedence over -db")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*username) == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> [-password <password>] [-db <db_path> | -database-url <url>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	ctx := context.Background()
	repo, err := openRepository(ctx, *dbPath, *databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	u, err := services.NewAccountService(repo, nil, 0).Register(ctx, *username, password)
	switch {
	case errors.Is(err, core.ErrUsernameTaken):
		return fmt.Errorf("user %s already exists", strings.TrimSpace(*username))
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", u.Username, u.ID)
	return nil
}

// openRepository prefers explicit flags and falls back to the environment.
func openRepository(ctx context.Context, dbPath, databaseURL string) (*storage.Repository, error) {
	if databaseURL != "" {
		return storage.NewPostgresRepository(ctx, databaseURL)
	}
	if dbPath != "" {
		return storage.NewSQLiteRepository(dbPath)
	}

	cfg := config.Load()
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	switch cfg.DataBackend {
	case "postgres":
		return storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
	case "memory":
		return nil, fmt.Errorf("the memory backend does not persist users; pass -db or -database-url")
	default:
		return storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	}
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
