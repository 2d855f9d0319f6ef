package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendwise/internal/core"
)

// RepositoryTestSuite runs against a fresh SQLite file per test, and against
// Postgres when SPENDWISE_TEST_DATABASE_URL is set.
type RepositoryTestSuite struct {
	suite.Suite
	dialect Dialect
	repo    *Repository
	ctx     context.Context
}

func TestSQLiteRepository(t *testing.T) {
	suite.Run(t, &RepositoryTestSuite{dialect: DialectSQLite})
}

func TestPostgresRepository(t *testing.T) {
	if os.Getenv("SPENDWISE_TEST_DATABASE_URL") == "" {
		t.Skip("SPENDWISE_TEST_DATABASE_URL not set")
	}
	suite.Run(t, &RepositoryTestSuite{dialect: DialectPostgres})
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()

	dsn := filepath.Join(s.T().TempDir(), "spendwise.db")
	if s.dialect == DialectPostgres {
		dsn = os.Getenv("SPENDWISE_TEST_DATABASE_URL")
	}

	repo, err := Open(s.ctx, s.dialect, dsn)
	require.NoError(s.T(), err, "failed to open test database")
	if s.dialect == DialectPostgres {
		require.NoError(s.T(), repo.Reset(s.ctx))
	}
	s.repo = repo
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) createUser(name string) core.User {
	u, err := s.repo.CreateUser(s.ctx, name, "hash-"+name, time.Now())
	require.NoError(s.T(), err)
	return u
}

func (s *RepositoryTestSuite) createExpense(userID int64, cents int64, category string, date core.Date) int64 {
	id, err := s.repo.CreateExpense(s.ctx, core.Expense{
		UserID:   userID,
		Amount:   core.Money{Cents: cents},
		Category: category,
		Date:     date,
	})
	require.NoError(s.T(), err)
	return id
}

func (s *RepositoryTestSuite) TestCreateAndLookupUser() {
	u := s.createUser("alice")
	assert.NotZero(s.T(), u.ID)

	byName, err := s.repo.UserByUsername(s.ctx, "alice")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, byName.ID)
	assert.Equal(s.T(), "hash-alice", byName.PasswordHash)

	byID, err := s.repo.UserByID(s.ctx, u.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "alice", byID.Username)
	assert.Equal(s.T(), u.CreatedAt, byID.CreatedAt)
}

func (s *RepositoryTestSuite) TestUnknownUserIsNotFound() {
	_, err := s.repo.UserByUsername(s.ctx, "ghost")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)

	_, err = s.repo.UserByID(s.ctx, 4242)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestDuplicateUsernameIsRejected() {
	s.createUser("alice")

	_, err := s.repo.CreateUser(s.ctx, "alice", "other", time.Now())
	assert.ErrorIs(s.T(), err, core.ErrUsernameTaken)

	bob := s.createUser("bob")
	err = s.repo.UpdateUsername(s.ctx, bob.ID, "alice")
	assert.ErrorIs(s.T(), err, core.ErrUsernameTaken)
}

func (s *RepositoryTestSuite) TestUpdateUsernameAndPassword() {
	u := s.createUser("alice")

	require.NoError(s.T(), s.repo.UpdateUsername(s.ctx, u.ID, "alice2"))
	require.NoError(s.T(), s.repo.UpdatePasswordHash(s.ctx, u.ID, "new-hash"))

	got, err := s.repo.UserByID(s.ctx, u.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "alice2", got.Username)
	assert.Equal(s.T(), "new-hash", got.PasswordHash)

	assert.ErrorIs(s.T(), s.repo.UpdateUsername(s.ctx, 9999, "x"), core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestExpenseRoundTrip() {
	u := s.createUser("alice")
	id, err := s.repo.CreateExpense(s.ctx, core.Expense{
		UserID:      u.ID,
		Amount:      core.Money{Cents: 4250},
		Category:    "Food",
		Description: "groceries",
		Date:        core.NewDate(2025, 1, 15),
	})
	require.NoError(s.T(), err)

	e, err := s.repo.ExpenseByID(s.ctx, id)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), core.Expense{
		ID:          id,
		UserID:      u.ID,
		Amount:      core.Money{Cents: 4250},
		Category:    "Food",
		Description: "groceries",
		Date:        core.NewDate(2025, 1, 15),
	}, e)
}

func (s *RepositoryTestSuite) TestListAndRecentOrdering() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	s.createExpense(alice.ID, 100, "Food", core.NewDate(2025, 2, 1))
	s.createExpense(alice.ID, 200, "Bills", core.NewDate(2024, 12, 31))
	s.createExpense(alice.ID, 300, "Travel", core.NewDate(2025, 1, 10))
	s.createExpense(bob.ID, 999, "Food", core.NewDate(2025, 1, 1))

	all, err := s.repo.ListExpenses(s.ctx, alice.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 3)
	assert.Equal(s.T(), "2024-12-31", all[0].Date.String())
	assert.Equal(s.T(), "2025-01-10", all[1].Date.String())
	assert.Equal(s.T(), "2025-02-01", all[2].Date.String())

	recent, err := s.repo.RecentExpenses(s.ctx, alice.ID, 2)
	require.NoError(s.T(), err)
	require.Len(s.T(), recent, 2)
	assert.Equal(s.T(), int64(100), recent[0].Amount.Cents)
	assert.Equal(s.T(), int64(300), recent[1].Amount.Cents)

	none, err := s.repo.ListExpenses(s.ctx, 12345)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), none)
}

func (s *RepositoryTestSuite) TestDeleteExpenseRequiresOwner() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	id := s.createExpense(alice.ID, 500, "Food", core.NewDate(2025, 1, 1))

	err := s.repo.DeleteExpense(s.ctx, bob.ID, id)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)

	_, err = s.repo.ExpenseByID(s.ctx, id)
	require.NoError(s.T(), err, "expense must survive a foreign delete")

	require.NoError(s.T(), s.repo.DeleteExpense(s.ctx, alice.ID, id))
	_, err = s.repo.ExpenseByID(s.ctx, id)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestDeleteUserCascades() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	s.createExpense(alice.ID, 100, "Food", core.NewDate(2025, 1, 1))
	s.createExpense(alice.ID, 200, "Food", core.NewDate(2025, 2, 1))
	bobExpense := s.createExpense(bob.ID, 300, "Food", core.NewDate(2025, 1, 1))
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, core.Session{
		ID: "sess-alice", UserID: alice.ID, ExpiresAt: time.Now().Add(time.Hour), LastActivity: time.Now(),
	}))

	require.NoError(s.T(), s.repo.DeleteUser(s.ctx, alice.ID))

	_, err := s.repo.UserByID(s.ctx, alice.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	left, err := s.repo.ListExpenses(s.ctx, alice.ID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), left)
	_, err = s.repo.SessionByID(s.ctx, "sess-alice")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)

	_, err = s.repo.ExpenseByID(s.ctx, bobExpense)
	assert.NoError(s.T(), err, "other users' data is untouched")

	assert.ErrorIs(s.T(), s.repo.DeleteUser(s.ctx, alice.ID), core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestSessionLifecycle() {
	u := s.createUser("alice")
	now := time.Unix(1_700_000_000, 0).UTC()

	require.NoError(s.T(), s.repo.CreateSession(s.ctx, core.Session{
		ID: "a", UserID: u.ID, ExpiresAt: now.Add(time.Hour), LastActivity: now,
	}))
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, core.Session{
		ID: "b", UserID: u.ID, ExpiresAt: now.Add(-time.Minute), LastActivity: now.Add(-time.Hour),
	}))

	got, err := s.repo.SessionByID(s.ctx, "a")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, got.UserID)
	assert.Equal(s.T(), now.Add(time.Hour), got.ExpiresAt)

	later := now.Add(10 * time.Minute)
	require.NoError(s.T(), s.repo.TouchSession(s.ctx, "a", later, later.Add(time.Hour)))
	got, err = s.repo.SessionByID(s.ctx, "a")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), later, got.LastActivity)

	n, err := s.repo.DeleteExpiredSessions(s.ctx, now)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), n)

	require.NoError(s.T(), s.repo.DeleteSession(s.ctx, "a"))
	_, err = s.repo.SessionByID(s.ctx, "a")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestResetDropsData() {
	s.createUser("alice")

	require.NoError(s.T(), s.repo.Reset(s.ctx))

	_, err := s.repo.UserByUsername(s.ctx, "alice")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	s.createUser("alice")
}

func (s *RepositoryTestSuite) TestPing() {
	assert.NoError(s.T(), s.repo.Ping(s.ctx))
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", DialectPostgres.rebind(q))
}

func TestDateColumnScan(t *testing.T) {
	var d core.Date
	col := dateColumn{&d}

	require.NoError(t, col.Scan("2025-03-09"))
	assert.Equal(t, core.NewDate(2025, 3, 9), d)

	require.NoError(t, col.Scan([]byte("2024-02-29T00:00:00Z")))
	assert.Equal(t, core.NewDate(2024, 2, 29), d)

	require.NoError(t, col.Scan(time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, core.NewDate(2023, 7, 1), d)

	assert.Error(t, col.Scan(42))
	assert.Error(t, col.Scan("not a date"))
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(sql.ErrNoRows), core.ErrNotFound)

	other := errors.New("disk I/O error")
	assert.Equal(t, other, translate(other))
}
