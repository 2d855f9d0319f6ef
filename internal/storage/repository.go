package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"spendwise/internal/core"
)

// Repository is the relational Store shared by the SQLite and Postgres dialects.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	dsn     string
}

var _ Store = (*Repository)(nil)

// Open connects, pings and migrates the database.
func Open(ctx context.Context, d Dialect, dsn string) (*Repository, error) {
	db, err := openDB(d, dsn)
	if err != nil {
		return nil, err
	}
	if d == DialectSQLite {
		// One writer at a time; avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: d, dsn: dsn}, nil
}

// NewSQLiteRepository opens (creating if needed) the SQLite file at dbPath.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	return Open(context.Background(), DialectSQLite, dbPath)
}

// NewPostgresRepository connects to the database at a postgres:// URL.
func NewPostgresRepository(ctx context.Context, url string) (*Repository, error) {
	return Open(ctx, DialectPostgres, url)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return core.Persistence("ping", r.db.PingContext(ctx))
}

func (r *Repository) Reset(ctx context.Context) error {
	if err := ResetSchema(r.dialect, r.dsn); err != nil {
		return core.Persistence("reset schema", err)
	}
	slog.WarnContext(ctx, "Database schema reset", "dialect", r.dialect)
	return nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

// Users

const userColumns = "id, username, password_hash, created_at"

func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string, createdAt time.Time) (core.User, error) {
	var id int64
	err := r.queryRow(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id",
		username, passwordHash, createdAt.Unix(),
	).Scan(&id)
	if err != nil {
		return core.User{}, core.Persistence("create user", translate(err))
	}
	return core.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Unix(createdAt.Unix(), 0).UTC(),
	}, nil
}

func (r *Repository) UserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	return u, core.Persistence("get user", translate(err))
}

func (r *Repository) UserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
	return u, core.Persistence("get user by username", translate(err))
}

func (r *Repository) UpdateUsername(ctx context.Context, id int64, username string) error {
	res, err := r.exec(ctx, "UPDATE users SET username = ? WHERE id = ?", username, id)
	return core.Persistence("update username", affectedOne(res, translate(err)))
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.exec(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	return core.Persistence("update password", affectedOne(res, translate(err)))
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Persistence("begin delete user", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM sessions WHERE user_id = ?",
		"DELETE FROM expenses WHERE user_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, r.dialect.rebind(q), id); err != nil {
			return core.Persistence("delete user data", err)
		}
	}
	res, err := tx.ExecContext(ctx, r.dialect.rebind("DELETE FROM users WHERE id = ?"), id)
	if err := affectedOne(res, err); err != nil {
		return core.Persistence("delete user", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Persistence("commit delete user", err)
	}
	return nil
}

// Expenses

const expenseColumns = "id, user_id, amount_cents, category, description, spent_on"

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	var id int64
	err := r.queryRow(ctx,
		"INSERT INTO expenses (user_id, amount_cents, category, description, spent_on) VALUES (?, ?, ?, ?, ?) RETURNING id",
		e.UserID, e.Amount.Cents, e.Category, e.Description, e.Date.String(),
	).Scan(&id)
	if err != nil {
		return 0, core.Persistence("create expense", translate(err))
	}
	return id, nil
}

func (r *Repository) ExpenseByID(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(r.queryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
	return e, core.Persistence("get expense", translate(err))
}

func (r *Repository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx, "list expenses",
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? ORDER BY spent_on, id", userID)
}

func (r *Repository) RecentExpenses(ctx context.Context, userID int64, limit int) ([]core.Expense, error) {
	return r.queryExpenses(ctx, "recent expenses",
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? ORDER BY spent_on DESC, id DESC LIMIT ?", userID, limit)
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.exec(ctx, "DELETE FROM expenses WHERE id = ? AND user_id = ?", id, userID)
	return core.Persistence("delete expense", affectedOne(res, err))
}

func (r *Repository) queryExpenses(ctx context.Context, op, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, core.Persistence(op, err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, core.Persistence(op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence(op, err)
	}
	return out, nil
}

// Sessions

func (r *Repository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.exec(ctx,
		"INSERT INTO sessions (id, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		s.ID, s.UserID, s.ExpiresAt.Unix(), s.LastActivity.Unix(),
	)
	return core.Persistence("create session", err)
}

func (r *Repository) SessionByID(ctx context.Context, id string) (core.Session, error) {
	var (
		s                     core.Session
		expires, lastActivity int64
	)
	err := r.queryRow(ctx,
		"SELECT id, user_id, expires_at, last_activity FROM sessions WHERE id = ?", id,
	).Scan(&s.ID, &s.UserID, &expires, &lastActivity)
	if err != nil {
		return core.Session{}, core.Persistence("get session", translate(err))
	}
	s.ExpiresAt = time.Unix(expires, 0).UTC()
	s.LastActivity = time.Unix(lastActivity, 0).UTC()
	return s, nil
}

func (r *Repository) TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	res, err := r.exec(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE id = ?",
		lastActivity.Unix(), expiresAt.Unix(), id,
	)
	return core.Persistence("touch session", affectedOne(res, err))
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return core.Persistence("delete session", err)
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.exec(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.Unix())
	if err != nil {
		return 0, core.Persistence("delete expired sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// translate maps driver errors onto domain sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	case isUniqueViolation(err):
		return core.ErrUsernameTaken
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// affectedOne turns "no rows affected" into core.ErrNotFound.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
