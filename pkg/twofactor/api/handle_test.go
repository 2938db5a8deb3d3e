package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-2fa/pkg/account"
	"github.com/tendant/simple-2fa/pkg/client"
	"github.com/tendant/simple-2fa/pkg/logingate"
	"github.com/tendant/simple-2fa/pkg/session"
	"github.com/tendant/simple-2fa/pkg/tokengenerator"
	"github.com/tendant/simple-2fa/pkg/twofactor"
)

type testServer struct {
	handler  http.Handler
	tokens   *tokengenerator.JwtTokenGenerator
	lastCode string
	sendErr  error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	repo := account.NewInMemoryRepository()
	hash, err := account.HashCredential(account.Digest("pw"))
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, account.CreateUserParams{
		Username: "alice", Email: "alice@example.com", Phone: "+15550100", PasswordHash: hash, TwoFactorEnabled: true,
	})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, account.CreateUserParams{Username: "bob", PasswordHash: hash})
	require.NoError(t, err)

	ts := &testServer{tokens: tokengenerator.NewJwtTokenGenerator("secret", "test")}
	verifier := account.NewBcryptVerifier()
	manager := session.NewManager(logingate.New(), ts.tokens, repo, verifier)
	sender := twofactor.CodeSenderFunc(func(ctx context.Context, user account.User, code string, method twofactor.Method) error {
		if ts.sendErr != nil {
			return ts.sendErr
		}
		ts.lastCode = code
		return nil
	})
	svc := twofactor.NewTwoFactorService(repo, verifier, manager, twofactor.Settings{Enabled: true}, twofactor.WithCodeSender(sender))
	ts.handler = NewHandler(svc).Routes()
	return ts
}

func (ts *testServer) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	return ts.postWithContext(t, context.Background(), path, body)
}

func (ts *testServer) postWithContext(t *testing.T, ctx context.Context, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

var alice = account.Identity{Username: "alice"}

func TestLogin_ListsMethods(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/login", LoginRequest{User: alice, Password: account.Digest("pw")})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp LoginResponse
	decodeBody(t, rr, &resp)
	assert.False(t, resp.LoggedIn)
	assert.Empty(t, resp.Token)
	require.NotNil(t, resp.AvailableMethods)
	assert.True(t, resp.AvailableMethods.Email)
	assert.True(t, resp.AvailableMethods.Phone)
}

func TestLogin_WithoutSecondFactor(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/login", LoginRequest{User: account.Identity{Username: "bob"}, Password: account.Digest("pw")})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp LoginResponse
	decodeBody(t, rr, &resp)
	assert.True(t, resp.LoggedIn)
	require.NotEmpty(t, resp.Token)
	assert.NotNil(t, resp.ExpiresAt)

	claims, err := ts.tokens.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, logingate.TypeTwoFactorLogin, claims.LoginType)
	assert.Equal(t, resp.UserID, claims.UserID)
}

func TestCodeVerifyFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/code", SendCodeRequest{User: alice, Password: account.Digest("pw"), Method: "email"})
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, ts.lastCode, twofactor.CodeLength)

	wrong := "000000"
	if ts.lastCode == wrong {
		wrong = "111111"
	}
	rr = ts.post(t, "/verify", VerifyRequest{User: alice, Password: account.Digest("pw"), Code: wrong})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	var errResp ErrorResponse
	decodeBody(t, rr, &errResp)
	assert.Equal(t, "invalid code", errResp.Error)

	rr = ts.post(t, "/verify", VerifyRequest{User: alice, Password: account.Digest("pw"), Code: ts.lastCode})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp LoginResponse
	decodeBody(t, rr, &resp)
	assert.True(t, resp.LoggedIn)
	assert.NotEmpty(t, resp.Token)
}

func TestLogin_WithMethodSendsCode(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/login", LoginRequest{User: alice, Password: account.Digest("pw"), Method: "sms"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp LoginResponse
	decodeBody(t, rr, &resp)
	assert.True(t, resp.ChallengeIssued)
	assert.NotEmpty(t, ts.lastCode)
}

func TestAbort(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/code", SendCodeRequest{User: alice, Password: account.Digest("pw"), Method: "email"})
	require.Equal(t, http.StatusNoContent, rr.Code)
	code := ts.lastCode

	rr = ts.post(t, "/abort", AbortRequest{User: alice, Password: account.Digest("pw")})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.post(t, "/abort", AbortRequest{User: alice, Password: account.Digest("pw")})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.post(t, "/verify", VerifyRequest{User: alice, Password: account.Digest("pw"), Code: code})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{
			name:     "two identity fields",
			path:     "/login",
			body:     LoginRequest{User: account.Identity{Username: "alice", Email: "alice@example.com"}, Password: account.Digest("pw")},
			wantCode: http.StatusBadRequest,
			wantErr:  "user must have exactly one field",
		},
		{
			name:     "empty identity field present",
			path:     "/login",
			body:     json.RawMessage(`{"user":{"id":"","username":"alice"},"password":{"digest":"x","algorithm":"sha-256"}}`),
			wantCode: http.StatusBadRequest,
			wantErr:  "user must have exactly one field",
		},
		{
			name:     "unknown identity field",
			path:     "/login",
			body:     json.RawMessage(`{"user":{"username":"alice","extra":1},"password":{"digest":"x","algorithm":"sha-256"}}`),
			wantCode: http.StatusBadRequest,
			wantErr:  "user must have exactly one field",
		},
		{
			name:     "wrong password",
			path:     "/login",
			body:     LoginRequest{User: alice, Password: account.Digest("nope")},
			wantCode: http.StatusForbidden,
			wantErr:  "invalid login credentials",
		},
		{
			name:     "unknown user",
			path:     "/verify",
			body:     VerifyRequest{User: account.Identity{Username: "zed"}, Password: account.Digest("pw"), Code: "123456"},
			wantCode: http.StatusForbidden,
			wantErr:  "invalid login credentials",
		},
		{
			name:     "unknown method",
			path:     "/code",
			body:     SendCodeRequest{User: alice, Password: account.Digest("pw"), Method: "pigeon"},
			wantCode: http.StatusBadRequest,
			wantErr:  "unknown method: pigeon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.post(t, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rr.Code)
			var resp ErrorResponse
			decodeBody(t, rr, &resp)
			assert.Equal(t, tt.wantErr, resp.Error)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliveryFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.sendErr = errors.New("smtp: connection refused")

	rr := ts.post(t, "/code", SendCodeRequest{User: alice, Password: account.Digest("pw"), Method: "email"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "failed to deliver code", resp.Error)
}

func TestAuthenticatedCallerIsRejected(t *testing.T) {
	ts := newTestServer(t)
	ctx := client.WithAuthUser(context.Background(), &client.AuthUser{UserId: "someone"})

	rr := ts.postWithContext(t, ctx, "/login", LoginRequest{User: alice, Password: account.Digest("pw")})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "permission denied", resp.Error)
}
