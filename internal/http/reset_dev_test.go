//go:build dev

package http

import (
	"context"
	"net/http"

	"spendwise/internal/core"
	"spendwise/internal/services"
)

func (s *ServerTestSuite) TestResetDropsDataAndCachedLists() {
	b := s.signUp("alice")
	s.addExpense(b, "50", "Food", "2025-01-15")
	s.Require().Equal(http.StatusOK, b.get("/").Code)

	id := s.userID("alice")
	_, cached := s.cache.Get(services.ExpenseCacheKey(id))
	s.Require().True(cached)

	rec := s.newBrowser().get("/reset-db")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("DB reset done", rec.Body.String())
	s.Equal(1, s.purges)

	_, cached = s.cache.Get(services.ExpenseCacheKey(id))
	s.False(cached, "a reset must not leave cached lists for reused user IDs")

	_, err := s.store.UserByUsername(context.Background(), "alice")
	s.ErrorIs(err, core.ErrNotFound)
}
