// Command seed wipes the database and loads a demo account with six months
// of sample expenses.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/core"
	"spendwise/internal/services"
	"spendwise/internal/storage"
)

const (
	demoUsername = "admin"
	demoPassword = "admin"
	perMonth     = 12
	minCents     = 3000
	stddevCents  = 20000
)

var sampleCategories = []string{"Food", "Travel", "Bills", "Shopping", "Entertainment"}

// sampleMonths pins each month's expenses to one day and sets the mean total.
var sampleMonths = []struct {
	Date  core.Date
	Total core.Money
}{
	{core.NewDate(2025, 5, 5), core.Money{Cents: 800000}},
	{core.NewDate(2025, 6, 3), core.Money{Cents: 950000}},
	{core.NewDate(2025, 7, 4), core.Money{Cents: 1100000}},
	{core.NewDate(2025, 8, 6), core.Money{Cents: 700000}},
	{core.NewDate(2025, 9, 8), core.Money{Cents: 1250000}},
	{core.NewDate(2025, 10, 10), core.Money{Cents: 900000}},
}

func main() {
	cli.LoadEnvFile()
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "SQLite database path (defaults to SQLITE_DB_PATH)")
	databaseURL := fs.String("database-url", "", "Postgres URL; takes precedence over -db")
	randSeed := fs.Uint64("rand", uint64(time.Now().UnixNano()), "random seed for sample amounts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cli.SetupLogger(slog.LevelWarn)

	ctx := context.Background()
	store, err := openStore(ctx, *dbPath, *databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	u, n, err := seed(ctx, store, rand.New(rand.NewPCG(*randSeed, *randSeed>>1)))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Seeded %d sample expenses and created user '%s' (ID %d) with password '%s'\n",
		n, u.Username, u.ID, demoPassword)
	return nil
}

// seed clears all data, registers the demo user and inserts its expenses.
func seed(ctx context.Context, store storage.Store, rng *rand.Rand) (core.User, int, error) {
	if err := store.Reset(ctx); err != nil {
		return core.User{}, 0, fmt.Errorf("reset database: %w", err)
	}

	u, err := services.NewAccountService(store, nil, 0).Register(ctx, demoUsername, demoPassword)
	if err != nil {
		return core.User{}, 0, fmt.Errorf("create demo user: %w", err)
	}

	expenses := services.NewExpenseService(store)
	userCtx := auth.WithUser(ctx, u)
	samples := sampleExpenses(rng)
	for _, e := range samples {
		if _, err := expenses.Create(userCtx, e); err != nil {
			return core.User{}, 0, fmt.Errorf("create sample expense: %w", err)
		}
	}
	return u, len(samples), nil
}

// sampleExpenses draws perMonth normally distributed amounts per sample month,
// floored at minCents.
func sampleExpenses(rng *rand.Rand) []core.Expense {
	out := make([]core.Expense, 0, len(sampleMonths)*perMonth)
	for _, m := range sampleMonths {
		mean := float64(m.Total.Cents) / perMonth
		for i := 0; i < perMonth; i++ {
			cents := int64(math.Round(math.Max(minCents, rng.NormFloat64()*stddevCents+mean)))
			cat := sampleCategories[rng.IntN(len(sampleCategories))]
			out = append(out, core.Expense{
				Amount:      core.Money{Cents: cents},
				Category:    cat,
				Description: "Sample " + cat,
				Date:        m.Date,
			})
		}
	}
	return out
}

func openStore(ctx context.Context, dbPath, databaseURL string) (storage.Store, error) {
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
		return nil, fmt.Errorf("seeding the memory backend has no effect; pass -db or -database-url")
	default:
		return storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	}
}
