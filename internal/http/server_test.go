package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendwise/internal/auth"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
	"spendwise/internal/storage/memory"
)

const testOrigin = "https://app.example"

// browser replays cookies between requests the way a user agent would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) do(method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, "", nil)
}

func (b *browser) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, target, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (b *browser) postJSON(target, body string) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, target, "application/json", strings.NewReader(body))
}

type ServerTestSuite struct {
	suite.Suite
	store  *memory.Store
	cache  *cache.LRUCache[[]core.Expense]
	server *Server
	purges int
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	s.store = memory.New()
	s.cache = cache.NewLRUCache[[]core.Expense](16, time.Minute)

	codec := auth.NewSessionCodec([]byte("http-test-secret-key"))
	opts := []services.Option{services.WithExpenseCache(s.cache)}

	s.purges = 0
	srv, err := NewServer(Config{
		CORSOrigins:    []string{testOrigin},
		RequestTimeout: 5 * time.Second,
	}, Deps{
		Accounts:   services.NewAccountService(s.store, codec, 0, opts...),
		Expenses:   services.NewExpenseService(s.store, opts...),
		Insights:   services.NewInsightsService(s.store, opts...),
		Store:      s.store,
		Logger:     log.New(log.Config{Output: io.Discard}),
		CacheStats: s.cache.Stats,
		Now:        func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) },
		PurgeCache: func() {
			s.purges++
			s.cache.Purge()
		},
	})
	require.NoError(s.T(), err)
	s.server = srv
}

func (s *ServerTestSuite) TearDownTest() {
	_ = s.server.Shutdown(context.Background())
}

func (s *ServerTestSuite) newBrowser() *browser {
	return &browser{t: s.T(), handler: s.server.Handler, cookies: map[string]*http.Cookie{}}
}

// signUp registers name and logs in, returning a browser holding the session.
func (s *ServerTestSuite) signUp(name string) *browser {
	b := s.newBrowser()
	rec := b.postForm("/register", url.Values{"username": {name}, "password": {"secret-" + name}})
	s.Require().Equal(http.StatusFound, rec.Code, rec.Body.String())

	rec = b.postForm("/login", url.Values{"username": {name}, "password": {"secret-" + name}})
	s.Require().Equal(http.StatusFound, rec.Code, rec.Body.String())
	s.Require().Contains(b.cookies, sessionCookieName)
	return b
}

func (s *ServerTestSuite) addExpense(b *browser, amount, category, date string) {
	rec := b.postForm("/add", url.Values{"amount": {amount}, "category": {category}, "date": {date}})
	s.Require().Equal(http.StatusFound, rec.Code, rec.Body.String())
	s.Require().Equal("/", rec.Header().Get("Location"))
}

func (s *ServerTestSuite) userID(name string) int64 {
	u, err := s.store.UserByUsername(context.Background(), name)
	s.Require().NoError(err)
	return u.ID
}

func (s *ServerTestSuite) TestAnonymousVisitorsAreSentToLogin() {
	b := s.newBrowser()

	tests := []struct {
		path     string
		location string
	}{
		{"/", "/login"},
		{"/add", "/login?next=%2Fadd"},
		{"/predict", "/login?next=%2Fpredict"},
		{"/profile", "/login?next=%2Fprofile"},
	}
	for _, tt := range tests {
		rec := b.get(tt.path)
		assert.Equal(s.T(), http.StatusFound, rec.Code, tt.path)
		assert.Equal(s.T(), tt.location, rec.Header().Get("Location"), tt.path)
	}
}

func (s *ServerTestSuite) TestRegisterLoginFlow() {
	b := s.newBrowser()

	rec := b.get("/register")
	s.Equal(http.StatusOK, rec.Code)

	rec = b.postForm("/register", url.Values{"username": {" alice "}, "password": {"wonderland"}})
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/login", rec.Header().Get("Location"))

	rec = b.get("/login")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Registration successful. Please log in.")

	rec = b.postForm("/login", url.Values{"username": {"alice"}, "password": {"wonderland"}})
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/", rec.Header().Get("Location"))

	session := b.cookies[sessionCookieName]
	s.Require().NotNil(session)
	s.True(session.HttpOnly)
	s.Equal(http.SameSiteLaxMode, session.SameSite)

	rec = b.get("/")
	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, "Logged in successfully.")
	s.Contains(body, "alice")
	s.Equal("no-store", rec.Header().Get("Cache-Control"))

	// Signed-in users never see the login or register pages.
	for _, path := range []string{"/login", "/register"} {
		rec = b.get(path)
		s.Equal(http.StatusFound, rec.Code, path)
		s.Equal("/", rec.Header().Get("Location"), path)
	}
}

func (s *ServerTestSuite) TestRegisterRejectsBadInput() {
	s.signUp("alice")
	b := s.newBrowser()

	rec := b.postForm("/register", url.Values{"username": {"alice"}, "password": {"x"}})
	s.Equal(http.StatusConflict, rec.Code)
	s.Contains(rec.Body.String(), "Username already exists")

	rec = b.postForm("/register", url.Values{"username": {"   "}, "password": {"x"}})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Contains(rec.Body.String(), "Please provide username and password")
}

func (s *ServerTestSuite) TestLoginFailure() {
	s.signUp("alice")
	b := s.newBrowser()

	rec := b.postForm("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Body.String(), "Invalid username or password")
	s.NotContains(b.cookies, sessionCookieName)

	rec = b.postForm("/login", url.Values{"username": {"nobody"}, "password": {"wrong"}})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerTestSuite) TestLoginHonoursLocalNext() {
	s.signUp("alice")

	tests := []struct {
		next string
		want string
	}{
		{"/predict", "/predict"},
		{"//evil.example/", "/"},
		{"https://evil.example/", "/"},
		{"", "/"},
	}
	for _, tt := range tests {
		b := s.newBrowser()
		rec := b.postForm("/login?next="+url.QueryEscape(tt.next),
			url.Values{"username": {"alice"}, "password": {"secret-alice"}})
		s.Equal(http.StatusFound, rec.Code)
		s.Equal(tt.want, rec.Header().Get("Location"), "next=%q", tt.next)
	}
}

func (s *ServerTestSuite) TestInvalidSessionCookieIsCleared() {
	b := s.newBrowser()
	b.cookies[sessionCookieName] = &http.Cookie{Name: sessionCookieName, Value: "not-a-token"}

	rec := b.get("/")
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/login", rec.Header().Get("Location"))
	s.NotContains(b.cookies, sessionCookieName)
}

func (s *ServerTestSuite) TestLogout() {
	b := s.signUp("alice")

	rec := b.get("/logout")
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/login", rec.Header().Get("Location"))
	s.NotContains(b.cookies, sessionCookieName)

	rec = b.get("/login")
	s.Contains(rec.Body.String(), "Logged out.")

	rec = b.get("/")
	s.Equal(http.StatusFound, rec.Code)
}

func (s *ServerTestSuite) TestDashboardAndForecast() {
	b := s.signUp("alice")

	rec := b.get("/predict")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Not enough historical data (need at least 2 months).")

	s.addExpense(b, "50", "Food", "2025-01-15")

	rec = b.get("/predict")
	s.Contains(rec.Body.String(), "Not enough historical data (need at least 2 months).")

	s.addExpense(b, "70", "Food", "2025-02-15")

	rec = b.get("/")
	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, "Expense added.")
	s.Contains(body, `<strong id="all-time-total">120.00</strong>`)
	s.Contains(body, `<strong id="month-total">0.00</strong>`)
	s.Contains(body, `"months":["2025-01","2025-02"]`)
	s.Contains(body, `"categories":["Food"]`)

	rec = b.get("/predict")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `<strong id="prediction">90.00</strong>`)
}

func (s *ServerTestSuite) TestAddDefaultsDateToToday() {
	b := s.signUp("alice")

	rec := b.get("/add")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `value="2025-03-10"`)

	rec = b.postForm("/add", url.Values{"amount": {"12,50"}, "category": {"Bills"}})
	s.Equal(http.StatusFound, rec.Code)

	all, err := s.store.ListExpenses(context.Background(), s.userID("alice"))
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal("2025-03-10", all[0].Date.String())
	s.Equal(int64(1250), all[0].Amount.Cents)

	rec = b.get("/")
	s.Contains(rec.Body.String(), `<strong id="month-total">12.50</strong>`)
}

func (s *ServerTestSuite) TestAddRejectsInvalidInput() {
	b := s.signUp("alice")

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"bad amount", url.Values{"amount": {"abc"}, "category": {"Food"}}, "amount must be a positive number"},
		{"negative amount", url.Values{"amount": {"-5"}, "category": {"Food"}}, "amount must be a positive number"},
		{"missing category", url.Values{"amount": {"5"}}, "category is required"},
		{"bad date", url.Values{"amount": {"5"}, "category": {"Food"}, "date": {"yesterday"}}, "date must be in YYYY-MM-DD format"},
	}
	for _, tt := range tests {
		rec := b.postForm("/add", tt.form)
		s.Equal(http.StatusUnprocessableEntity, rec.Code, tt.name)
		s.Contains(rec.Body.String(), tt.want, tt.name)
	}

	all, err := s.store.ListExpenses(context.Background(), s.userID("alice"))
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *ServerTestSuite) TestDeleteExpense() {
	alice := s.signUp("alice")
	bob := s.signUp("bob")
	s.addExpense(alice, "50", "Food", "2025-01-15")

	all, err := s.store.ListExpenses(context.Background(), s.userID("alice"))
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	target := "/delete/" + strconv.FormatInt(all[0].ID, 10)

	rec := bob.get(target)
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/", rec.Header().Get("Location"))
	s.Contains(bob.get("/").Body.String(), "Not allowed!")
	_, err = s.store.ExpenseByID(context.Background(), all[0].ID)
	s.NoError(err, "a foreign delete must leave the expense in place")

	rec = alice.get(target)
	s.Equal(http.StatusFound, rec.Code)
	s.Contains(alice.get("/").Body.String(), "Expense deleted successfully!")
	_, err = s.store.ExpenseByID(context.Background(), all[0].ID)
	s.ErrorIs(err, core.ErrNotFound)

	s.Equal(http.StatusNotFound, alice.get(target).Code)
	s.Equal(http.StatusNotFound, alice.get("/delete/abc").Code)
}

func (s *ServerTestSuite) TestProfileUpdates() {
	s.signUp("bob")
	b := s.signUp("alice")

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"taken username", url.Values{"action": {"change_username"}, "new_username": {"bob"}}, "This username is already taken."},
		{"empty username", url.Values{"action": {"change_username"}, "new_username": {"  "}}, "Username cannot be empty."},
		{"rename", url.Values{"action": {"change_username"}, "new_username": {"alicia"}}, "Username updated successfully!"},
		{"wrong old password", url.Values{"action": {"change_password"}, "old_password": {"nope"}, "new_password": {"longenough"}}, "Old password is incorrect."},
		{"short new password", url.Values{"action": {"change_password"}, "old_password": {"secret-alice"}, "new_password": {"abc"}}, "Password must be at least 6 characters long."},
		{"change password", url.Values{"action": {"change_password"}, "old_password": {"secret-alice"}, "new_password": {"longenough"}}, "Password changed successfully!"},
		{"unknown action", url.Values{"action": {"explode"}}, "Unknown action."},
	}
	for _, tt := range tests {
		rec := b.postForm("/profile", tt.form)
		s.Equal(http.StatusFound, rec.Code, tt.name)
		s.Equal("/profile", rec.Header().Get("Location"), tt.name)

		rec = b.get("/profile")
		s.Equal(http.StatusOK, rec.Code, tt.name)
		s.Contains(rec.Body.String(), tt.want, tt.name)
	}

	fresh := s.newBrowser()
	rec := fresh.postForm("/login", url.Values{"username": {"alicia"}, "password": {"longenough"}})
	s.Equal(http.StatusFound, rec.Code)
}

func (s *ServerTestSuite) TestDeleteAccount() {
	b := s.signUp("alice")
	s.addExpense(b, "50", "Food", "2025-01-15")
	s.addExpense(b, "70", "Food", "2025-02-15")
	id := s.userID("alice")
	oldSession := b.cookies[sessionCookieName].Value

	rec := b.postForm("/delete-account", url.Values{"password": {"wrong"}})
	s.Equal(http.StatusFound, rec.Code)
	s.Contains(b.get("/profile").Body.String(), "Incorrect password. Account not deleted.")

	rec = b.postForm("/delete-account", url.Values{"password": {"secret-alice"}})
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/login", rec.Header().Get("Location"))
	s.NotContains(b.cookies, sessionCookieName)
	s.Contains(b.get("/login").Body.String(), "Your account has been permanently deleted.")

	left, err := s.store.ListExpenses(context.Background(), id)
	s.Require().NoError(err)
	s.Empty(left)

	replay := s.newBrowser()
	replay.cookies[sessionCookieName] = &http.Cookie{Name: sessionCookieName, Value: oldSession}
	rec = replay.get("/")
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/login", rec.Header().Get("Location"))
}

func (s *ServerTestSuite) TestAPIAdd() {
	b := s.signUp("alice")

	rec := b.postJSON("/api/add", `{"amount": 12.5, "category": "Food", "description": "lunch", "date": "2025-01-15"}`)
	s.Equal(http.StatusOK, rec.Code)
	var ok APIResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &ok))
	s.Equal("ok", ok.Status)
	s.NotZero(ok.ID)

	e, err := s.store.ExpenseByID(context.Background(), ok.ID)
	s.Require().NoError(err)
	s.Equal(int64(1250), e.Amount.Cents)
	s.Equal("lunch", e.Description)
	s.Equal(s.userID("alice"), e.UserID)

	rec = b.postJSON("/api/add", `{"amount": "8.00", "category": "Travel", "date": "2025-01-16"}`)
	s.Equal(http.StatusOK, rec.Code)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing date", `{"amount": 5, "category": "Food"}`, "missing field: date"},
		{"bad amount", `{"amount": "lots", "category": "Food", "date": "2025-01-15"}`, "amount must be a positive number"},
		{"bad date", `{"amount": 5, "category": "Food", "date": "15-01-2025"}`, "date must be in YYYY-MM-DD format"},
		{"not json", `{"amount": `, "request body is not a JSON object"},
	}
	for _, tt := range tests {
		rec := b.postJSON("/api/add", tt.body)
		s.Equal(http.StatusBadRequest, rec.Code, tt.name)
		var got APIResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got), tt.name)
		s.Equal("error", got.Status, tt.name)
		s.Equal(tt.want, got.Message, tt.name)
	}
}

func (s *ServerTestSuite) TestAPIRequiresSession() {
	rec := s.newBrowser().postJSON("/api/add", `{"amount": 5, "category": "Food", "date": "2025-01-15"}`)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.JSONEq(`{"status":"error","message":"authentication required"}`, rec.Body.String())
}

func (s *ServerTestSuite) TestAPICORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/add", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/add", nil)
	req.Header.Set("Origin", "https://other.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	s.Empty(rec.Header().Get("Access-Control-Allow-Origin"))
}

func (s *ServerTestSuite) TestOperationalEndpoints() {
	b := s.newBrowser()

	rec := b.get("/healthz")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"ok"`)

	rec = b.get("/readyz")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"ready"`)

	rec = b.get("/metrics")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "http_requests_total")
	s.Contains(rec.Body.String(), "insights_cache_entries")

	rec = b.get("/static/style.css")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = b.get("/no-such-page")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerTestSuite) TestSecurityHeadersAndRequestID() {
	rec := s.newBrowser().get("/login")

	s.Equal("DENY", rec.Header().Get("X-Frame-Options"))
	s.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
}

func (s *ServerTestSuite) TestCredentialPostsAreRateLimited() {
	b := s.newBrowser()
	form := url.Values{"username": {"ghost"}, "password": {"nope"}}

	var last int
	for i := 0; i < 11; i++ {
		last = b.postForm("/login", form).Code
	}
	s.Equal(http.StatusTooManyRequests, last)
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/predict", "/predict"},
		{"/add?x=1", "/add?x=1"},
		{"", "/"},
		{"predict", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"https://evil.example/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeNext(tt.in), "safeNext(%q)", tt.in)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Field: "amount", Msg: "bad"}, http.StatusUnprocessableEntity},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrForbidden, http.StatusForbidden},
		{core.ErrUnauthenticated, http.StatusUnauthorized},
		{core.ErrUsernameTaken, http.StatusConflict},
		{core.Persistence("create expense", io.ErrUnexpectedEOF), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
	assert.Equal(t, genericErrorMessage, userMessage(core.Persistence("x", io.ErrUnexpectedEOF)))
	assert.Equal(t, "bad", userMessage(&core.ValidationError{Field: "amount", Msg: "bad"}))
}

func TestBars(t *testing.T) {
	got := bars([]string{"a", "b", "c"}, []core.Money{{Cents: 1000}, {Cents: 500}, {Cents: 1}})
	require.Len(t, got, 3)
	assert.Equal(t, 100, got[0].Width)
	assert.Equal(t, 50, got[1].Width)
	assert.Equal(t, 2, got[2].Width, "tiny values stay visible")
	assert.Empty(t, bars(nil, nil))
}
