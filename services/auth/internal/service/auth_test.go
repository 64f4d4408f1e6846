package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"identityhub/pkg/hash"
	"identityhub/pkg/tokens"
	"identityhub/services/auth/internal/audit"
	"identityhub/services/auth/internal/models"
	"identityhub/services/auth/internal/repo"
)

type capturedEvent struct {
	key   string
	event map[string]interface{}
}

type fakeEvents struct {
	err    error
	events []capturedEvent
}

func (f *fakeEvents) PublishEvent(_ context.Context, key string, event interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, capturedEvent{key: key, event: event.(map[string]interface{})})
	return nil
}

type capturedRecord struct {
	index    string
	message  string
	userID   uint
	username string
}

type fakeAudit struct {
	err     error
	records []capturedRecord
}

func (f *fakeAudit) Record(_ context.Context, index, message string, userID uint, username string) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, capturedRecord{index: index, message: message, userID: userID, username: username})
	return nil
}

func newTestService(t *testing.T) *AuthService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	return &AuthService{
		Repo:          &repo.GormRepo{DB: db},
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func mustRegister(t *testing.T, svc *AuthService, username, password string) *models.User {
	t.Helper()

	user, err := svc.Register(context.Background(), username, password)
	require.NoError(t, err)
	return user
}

func TestRegister_DuplicateUsername(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	mustRegister(t, svc, "alice", "Secret123!")

	_, err := svc.Register(context.Background(), "alice", "Other456!")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_AssignsUserRoleAndHashesPassword(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := mustRegister(t, svc, "alice", "Secret123!")

	assert.Equal(t, "user", user.Role)
	assert.NotEqual(t, "Secret123!", user.PasswordHash)
	assert.True(t, hash.CheckPassword(user.PasswordHash, "Secret123!"))
}

func TestLogin_Success_TokensCarryIdentity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := mustRegister(t, svc, "alice", "Secret123!")

	res, err := svc.Login(context.Background(), "alice", "Secret123!")
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)

	accessClaims, err := tokens.AccessClaimsFromToken(res.AccessToken, svc.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, "user", accessClaims.Role)
	id, err := accessClaims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	refreshClaims, err := tokens.RefreshClaimsFromToken(res.RefreshToken, svc.RefreshSecret)
	require.NoError(t, err)
	rid, err := refreshClaims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, rid)
}

func TestLogin_InvalidPassword_UniformError(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	mustRegister(t, svc, "alice", "Secret123!")

	res, err := svc.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// unknown user yields the very same sentinel, no existence leak
	_, err = svc.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh_Success_MintsNewAccessToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := mustRegister(t, svc, "alice", "Secret123!")

	res, err := svc.Login(context.Background(), "alice", "Secret123!")
	require.NoError(t, err)

	access, err := svc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, access)

	claims, err := tokens.AccessClaimsFromToken(access, svc.AccessSecret)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, "user", claims.Role)
}

// Pins current behavior: refresh mints a new access token but does not
// rotate the refresh token, so the same refresh token keeps working until
// the next login replaces it.
func TestRefresh_DoesNotRotateRefreshToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	mustRegister(t, svc, "alice", "Secret123!")

	res, err := svc.Login(context.Background(), "alice", "Secret123!")
	require.NoError(t, err)

	first, err := svc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, second)
	_ = first
}

func TestRefresh_SecondLoginInvalidatesFirstRefreshToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	mustRegister(t, svc, "alice", "Secret123!")
	ctx := context.Background()

	firstLogin, err := svc.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	secondLogin, err := svc.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	// the first token still decodes fine, only the store says no
	_, err = tokens.RefreshClaimsFromToken(firstLogin.RefreshToken, svc.RefreshSecret)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, firstLogin.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	_, err = svc.Refresh(ctx, secondLogin.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_ExpiredTokenRejectedRegardlessOfStore(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := mustRegister(t, svc, "alice", "Secret123!")
	ctx := context.Background()

	expired, err := tokens.SignRefreshToken(user.ID, time.Now().Add(-time.Minute), svc.RefreshSecret)
	require.NoError(t, err)

	// even a store row matching the expired token must not save it
	require.NoError(t, svc.Repo.UpsertRefreshToken(ctx, user.ID, tokens.Sha256Hex(expired), "jti", time.Now().Add(time.Hour)))

	_, err = svc.Refresh(ctx, expired)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_GarbageToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout_BlocksRefreshButNotAccessToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := mustRegister(t, svc, "alice", "Secret123!")
	ctx := context.Background()

	res, err := svc.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	userID, role, err := svc.Logout(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, "user", role)

	_, err = svc.Refresh(ctx, res.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	// known trust window: the access token stays valid until its own expiry
	id, gotRole, ok := svc.Validate(res.AccessToken)
	assert.True(t, ok)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, "user", gotRole)
}

func TestLogout_InvalidAccessToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, _, err := svc.Logout(context.Background(), "garbage")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestModifyPassword_RehashesWithoutRevokingTokens(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	mustRegister(t, svc, "alice", "Secret123!")
	ctx := context.Background()

	res, err := svc.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	require.NoError(t, svc.ModifyPassword(ctx, res.AccessToken, "NewSecret456!"))

	_, err = svc.Login(ctx, "alice", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// outstanding refresh token is deliberately untouched
	_, err = svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "NewSecret456!")
	require.NoError(t, err)
}

func TestModifyPassword_InvalidToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	err := svc.ModifyPassword(context.Background(), "garbage", "NewSecret456!")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_MapsAllFailuresToFalse(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	_, _, ok := svc.Validate("garbage")
	assert.False(t, ok)

	expired, err := tokens.SignAccessToken(1, "user", time.Now().Add(-time.Minute), svc.AccessSecret)
	require.NoError(t, err)
	_, _, ok = svc.Validate(expired)
	assert.False(t, ok)

	wrongSecret, err := tokens.SignAccessToken(1, "user", time.Now().Add(time.Hour), []byte("other"))
	require.NoError(t, err)
	_, _, ok = svc.Validate(wrongSecret)
	assert.False(t, ok)
}

func TestEventsAndAudit_FireAcrossTheLifecycle(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	events := &fakeEvents{}
	sink := &fakeAudit{}
	svc.Events = events
	svc.Audit = sink
	ctx := context.Background()

	user := mustRegister(t, svc, "alice", "Secret123!")

	res, err := svc.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	_, _, err = svc.Logout(ctx, res.AccessToken)
	require.NoError(t, err)

	require.Len(t, events.events, 3)
	assert.Equal(t, "user.registered", events.events[0].event["type"])
	assert.Equal(t, "user.logged_in", events.events[1].event["type"])
	assert.Equal(t, "user.logged_out", events.events[2].event["type"])
	for _, e := range events.events {
		assert.Equal(t, "alice", e.key)
		assert.Equal(t, "alice", e.event["username"])
	}

	require.Len(t, sink.records, 3)
	assert.Equal(t, audit.IndexRegister, sink.records[0].index)
	assert.Equal(t, audit.IndexLogin, sink.records[1].index)
	assert.Equal(t, audit.IndexLogout, sink.records[2].index)
	for _, r := range sink.records {
		assert.Equal(t, user.ID, r.userID)
		assert.Equal(t, "alice", r.username)
	}
}

func TestEventsAndAudit_FailedLoginIsAudited(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	sink := &fakeAudit{}
	svc.Audit = sink
	ctx := context.Background()

	user := mustRegister(t, svc, "alice", "Secret123!")

	_, err := svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.Len(t, sink.records, 3)
	assert.Equal(t, capturedRecord{index: audit.IndexLogin, message: "login failed", userID: user.ID, username: "alice"}, sink.records[1])
	assert.Equal(t, capturedRecord{index: audit.IndexLogin, message: "login failed", userID: 0, username: "nobody"}, sink.records[2])
}

func TestEventsAndAudit_BestEffortNeverFailsTheFlow(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	svc.Events = &fakeEvents{err: errors.New("broker down")}
	svc.Audit = &fakeAudit{err: errors.New("index unreachable")}
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Secret123!")
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	res, err := svc.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	userID, _, err := svc.Logout(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

// The alice walkthrough: login -> R1; refresh(R1) works repeatedly (no
// rotation on refresh); a second login issues R2 and R1 dies.
func TestLoginRefreshLifecycle(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	mustRegister(t, svc, "alice", "Secret123!")
	ctx := context.Background()

	login1, err := svc.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	// exp claims have second granularity, make sure the minted tokens differ
	time.Sleep(1100 * time.Millisecond)

	a2, err := svc.Refresh(ctx, login1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login1.AccessToken, a2)

	_, err = svc.Refresh(ctx, login1.RefreshToken)
	require.NoError(t, err)

	login2, err := svc.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, login1.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	_, err = svc.Refresh(ctx, login2.RefreshToken)
	require.NoError(t, err)
}
