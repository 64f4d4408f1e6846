package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identityhub/pkg/authclient"
	"identityhub/pkg/authrpc"
)

// identityStub plays the identity service: one hardcoded valid token.
func identityStub(t *testing.T, valid string, userID uint, role string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, authrpc.PathValidateToken, r.URL.Path)

		var req authrpc.TokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.AccessToken == valid {
			json.NewEncoder(w).Encode(authrpc.TokenResponse{IsValid: true, UserID: userID, Role: role})
			return
		}
		json.NewEncoder(w).Encode(authrpc.TokenResponse{})
	}))
}

func guardedEcho(g *Guard, roleRequired ...string) *echo.Echo {
	e := echo.New()
	mw := []echo.MiddlewareFunc{g.RequireAuth}
	if len(roleRequired) > 0 {
		mw = append(mw, RequireRole(roleRequired...))
	}
	grp := e.Group("", mw...)
	grp.GET("/protected", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"user_id": c.Get(CtxUserID),
			"role":    c.Get(CtxRole),
		})
	})
	return e
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	t.Parallel()

	srv := identityStub(t, "good-token", 5, "user")
	defer srv.Close()

	e := guardedEcho(NewGuard(authclient.NewClient(srv.URL)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_NonBearerScheme(t *testing.T) {
	t.Parallel()

	srv := identityStub(t, "good-token", 5, "user")
	defer srv.Close()

	e := guardedEcho(NewGuard(authclient.NewClient(srv.URL)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Basic Zm9vOmJhcg==")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	t.Parallel()

	srv := identityStub(t, "good-token", 5, "user")
	defer srv.Close()

	e := guardedEcho(NewGuard(authclient.NewClient(srv.URL)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer bad-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ValidTokenAttachesIdentity(t *testing.T) {
	t.Parallel()

	srv := identityStub(t, "good-token", 5, "user")
	defer srv.Close()

	e := guardedEcho(NewGuard(authclient.NewClient(srv.URL)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint(5), body.UserID)
	assert.Equal(t, "user", body.Role)
}

// identity service unreachable: the guard fails closed as unauthenticated.
func TestRequireAuth_TransportFailureFailsClosed(t *testing.T) {
	t.Parallel()

	srv := identityStub(t, "good-token", 5, "user")
	srv.Close()

	e := guardedEcho(NewGuard(authclient.NewClient(srv.URL)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_RejectsInsufficientRole(t *testing.T) {
	t.Parallel()

	srv := identityStub(t, "user-token", 5, "user")
	defer srv.Close()

	e := guardedEcho(NewGuard(authclient.NewClient(srv.URL)), "admin")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer user-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRole_AcceptsMatchingRole(t *testing.T) {
	t.Parallel()

	srv := identityStub(t, "admin-token", 7, "admin")
	defer srv.Close()

	e := guardedEcho(NewGuard(authclient.NewClient(srv.URL)), "admin")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer admin-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// An unauthenticated caller must see 401, never 403: identity is
// established before any role decision.
func TestRequireRole_UnauthenticatedIs401NotForbidden(t *testing.T) {
	t.Parallel()

	srv := identityStub(t, "admin-token", 7, "admin")
	defer srv.Close()

	e := guardedEcho(NewGuard(authclient.NewClient(srv.URL)), "admin")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer bad-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	mk := func(v string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if v != "" {
			r.Header.Set(echo.HeaderAuthorization, v)
		}
		return r
	}

	assert.Equal(t, "abc", BearerToken(mk("Bearer abc")))
	assert.Equal(t, "abc", BearerToken(mk("bearer abc")))
	assert.Empty(t, BearerToken(mk("")))
	assert.Empty(t, BearerToken(mk("Bearer")))
	assert.Empty(t, BearerToken(mk("Basic abc")))
}
