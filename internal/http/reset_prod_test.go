//go:build !dev

package http

import "net/http"

func (s *ServerTestSuite) TestResetRouteAbsent() {
	rec := s.newBrowser().get("/reset-db")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Zero(s.purges)
}
