package twofactorclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-2fa/pkg/account"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/logingate"
	"github.com/tendant/simple-2fa/pkg/session"
	"github.com/tendant/simple-2fa/pkg/tokengenerator"
	"github.com/tendant/simple-2fa/pkg/twofactor"
	"github.com/tendant/simple-2fa/pkg/twofactor/api"
)

type MockTransport struct {
	LoginFunc    func(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error)
	SendCodeFunc func(ctx context.Context, req api.SendCodeRequest) (api.LoginResponse, error)
	VerifyFunc   func(ctx context.Context, req api.VerifyRequest) (api.LoginResponse, error)
	AbortFunc    func(ctx context.Context, req api.AbortRequest) error

	Logins   []api.LoginRequest
	Sends    []api.SendCodeRequest
	Verifies []api.VerifyRequest
	Aborts   []api.AbortRequest
}

func (m *MockTransport) Login(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error) {
	m.Logins = append(m.Logins, req)
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, req)
	}
	return api.LoginResponse{AvailableMethods: &twofactor.AvailableMethods{Email: true}}, nil
}

func (m *MockTransport) SendCode(ctx context.Context, req api.SendCodeRequest) (api.LoginResponse, error) {
	m.Sends = append(m.Sends, req)
	if m.SendCodeFunc != nil {
		return m.SendCodeFunc(ctx, req)
	}
	return api.LoginResponse{}, nil
}

func (m *MockTransport) Verify(ctx context.Context, req api.VerifyRequest) (api.LoginResponse, error) {
	m.Verifies = append(m.Verifies, req)
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, req)
	}
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return api.LoginResponse{LoggedIn: true, UserID: "u1", Token: "tok", ExpiresAt: &expires}, nil
}

func (m *MockTransport) Abort(ctx context.Context, req api.AbortRequest) error {
	m.Aborts = append(m.Aborts, req)
	if m.AbortFunc != nil {
		return m.AbortFunc(ctx, req)
	}
	return nil
}

func TestLoginWithPassword_SelectorAndDigest(t *testing.T) {
	ctx := context.Background()
	transport := &MockTransport{}
	c := New(transport)

	require.NoError(t, c.LoginWithPassword(ctx, "alice@example.com", "secret", ""))
	require.NoError(t, New(transport).LoginWithPassword(ctx, "alice", "secret", ""))

	require.Len(t, transport.Logins, 2)
	assert.Equal(t, account.Identity{Email: "alice@example.com"}, transport.Logins[0].User)
	assert.Equal(t, account.Identity{Username: "alice"}, transport.Logins[1].User)
	assert.Equal(t, account.Digest("secret"), transport.Logins[0].Password)
	assert.Equal(t, "sha-256", transport.Logins[0].Password.Algorithm)
	assert.NotEqual(t, "secret", transport.Logins[0].Password.Digest)
}

func TestFlow_MethodThenCode(t *testing.T) {
	ctx := context.Background()
	transport := &MockTransport{}
	c := New(transport)

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.IsVerifying())

	require.NoError(t, c.LoginWithPassword(ctx, "alice", "secret", ""))
	assert.Equal(t, StateAwaitingMethod, c.State())
	assert.True(t, c.IsVerifying())
	assert.Equal(t, &twofactor.AvailableMethods{Email: true}, c.AvailableMethods())

	require.NoError(t, c.GetAuthCode(ctx, "email"))
	assert.Equal(t, StateAwaitingCode, c.State())
	assert.Equal(t, "email", c.VerifyingMethod())
	assert.Nil(t, c.AvailableMethods())

	require.NoError(t, c.GetNewAuthCode(ctx))
	require.Len(t, transport.Sends, 2)
	assert.Equal(t, "email", transport.Sends[1].Method)
	assert.Equal(t, account.Identity{Username: "alice"}, transport.Sends[1].User)
	assert.Equal(t, account.Digest("secret"), transport.Sends[1].Password)

	require.NoError(t, c.VerifyAndLogin(ctx, "483920"))
	assert.Equal(t, StateAuthenticated, c.State())
	assert.False(t, c.IsVerifying())
	assert.Equal(t, "483920", transport.Verifies[0].Code)

	s, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, "u1", s.UserID)

	assert.ErrorIs(t, c.LoginWithPassword(ctx, "alice", "secret", ""), ErrAlreadyAuthenticated)
	c.Logout()
	assert.Equal(t, StateIdle, c.State())
	_, ok = c.Session()
	assert.False(t, ok)
}

func TestLoginWithPassword_WithMethod(t *testing.T) {
	transport := &MockTransport{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error) {
			return api.LoginResponse{ChallengeIssued: true}, nil
		},
	}
	c := New(transport)

	require.NoError(t, c.LoginWithPassword(context.Background(), "alice", "secret", "sms"))
	assert.Equal(t, StateAwaitingCode, c.State())
	assert.Equal(t, "sms", c.VerifyingMethod())
	assert.Equal(t, "sms", transport.Logins[0].Method)
}

func TestLoginWithPassword_NoSecondFactor(t *testing.T) {
	transport := &MockTransport{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error) {
			return api.LoginResponse{LoggedIn: true, Token: "tok"}, nil
		},
	}
	c := New(transport)

	require.NoError(t, c.LoginWithPassword(context.Background(), "bob", "secret", ""))
	assert.Equal(t, StateAuthenticated, c.State())
	assert.False(t, c.IsVerifying(), "a login that already produced a session is not verifying")
}

func TestFailuresKeepState(t *testing.T) {
	ctx := context.Background()
	invalid := apperrors.New(apperrors.ErrCode2FAInvalid, "invalid code")
	transport := &MockTransport{
		VerifyFunc: func(ctx context.Context, req api.VerifyRequest) (api.LoginResponse, error) {
			return api.LoginResponse{}, invalid
		},
	}
	c := New(transport)

	require.NoError(t, c.LoginWithPassword(ctx, "alice", "secret", ""))
	require.NoError(t, c.GetAuthCode(ctx, "email"))

	err := c.VerifyAndLogin(ctx, "000000")
	assert.ErrorIs(t, err, twofactor.ErrInvalidCode)
	assert.Equal(t, StateAwaitingCode, c.State())
	assert.True(t, c.IsVerifying())

	transport.AbortFunc = func(ctx context.Context, req api.AbortRequest) error { return errors.New("offline") }
	assert.Error(t, c.Abort(ctx))
	assert.True(t, c.IsVerifying())
}

func TestFailedLoginStaysIdle(t *testing.T) {
	transport := &MockTransport{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error) {
			return api.LoginResponse{}, apperrors.New(apperrors.ErrCodeInvalidCredentials, "invalid login credentials")
		},
	}
	c := New(transport)

	err := c.LoginWithPassword(context.Background(), "alice", "wrong", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCredentials))
	assert.Equal(t, StateIdle, c.State())
}

func TestAbort(t *testing.T) {
	ctx := context.Background()
	transport := &MockTransport{}
	c := New(transport)

	assert.ErrorIs(t, c.Abort(ctx), ErrNotVerifying)

	require.NoError(t, c.LoginWithPassword(ctx, "alice", "secret", ""))
	require.NoError(t, c.Abort(ctx))
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.IsVerifying())
	require.Len(t, transport.Aborts, 1)
	assert.Equal(t, account.Identity{Username: "alice"}, transport.Aborts[0].User)
}

func TestCallsOutsideFlow(t *testing.T) {
	ctx := context.Background()
	c := New(&MockTransport{})

	assert.ErrorIs(t, c.GetAuthCode(ctx, "email"), ErrNotVerifying)
	assert.ErrorIs(t, c.GetNewAuthCode(ctx), ErrNotVerifying)
	assert.ErrorIs(t, c.VerifyAndLogin(ctx, "123456"), ErrNotVerifying)

	require.NoError(t, c.LoginWithPassword(ctx, "alice", "secret", ""))
	assert.ErrorIs(t, c.GetNewAuthCode(ctx), ErrNoMethod)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateIdle.canMoveTo(StateAwaitingMethod))
	assert.True(t, StateAwaitingCode.canMoveTo(StateAuthenticated))
	assert.False(t, StateAuthenticated.canMoveTo(StateAwaitingCode))
	assert.False(t, StateIdle.canMoveTo(StateIdle))
	assert.Equal(t, "awaiting_code", StateAwaitingCode.String())
}

func TestHTTPTransport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	repo := account.NewInMemoryRepository()
	hash, err := account.HashCredential(account.Digest("secret"))
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, account.CreateUserParams{
		Username: "alice", Email: "alice@example.com", Phone: "+15550100", PasswordHash: hash, TwoFactorEnabled: true,
	})
	require.NoError(t, err)

	var lastCode string
	sender := twofactor.CodeSenderFunc(func(ctx context.Context, user account.User, code string, method twofactor.Method) error {
		lastCode = code
		return nil
	})
	verifier := account.NewBcryptVerifier()
	tokens := tokengenerator.NewJwtTokenGenerator("secret", "test")
	manager := session.NewManager(logingate.New(), tokens, repo, verifier)
	svc := twofactor.NewTwoFactorService(repo, verifier, manager, twofactor.Settings{Enabled: true}, twofactor.WithCodeSender(sender))

	r := chi.NewRouter()
	r.Mount("/api/2fa", api.NewHandler(svc).Routes())
	server := httptest.NewServer(r)
	defer server.Close()

	c := New(NewHTTPTransport(server.URL+"/api/2fa", WithHTTPClient(server.Client()), WithRetries(0)))

	err = c.LoginWithPassword(ctx, "alice", "wrong", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCredentials))

	require.NoError(t, c.LoginWithPassword(ctx, "alice", "secret", ""))
	assert.Equal(t, &twofactor.AvailableMethods{Email: true, Phone: true}, c.AvailableMethods())

	require.NoError(t, c.GetAuthCode(ctx, "email"))
	require.Len(t, lastCode, twofactor.CodeLength)

	wrong := "000000"
	if lastCode == wrong {
		wrong = "111111"
	}
	err = c.VerifyAndLogin(ctx, wrong)
	assert.ErrorIs(t, err, twofactor.ErrInvalidCode)
	assert.Equal(t, StateAwaitingCode, c.State())

	require.NoError(t, c.VerifyAndLogin(ctx, lastCode))
	s, ok := c.Session()
	require.True(t, ok)

	claims, err := tokens.ParseToken(s.Token)
	require.NoError(t, err)
	assert.Equal(t, logingate.TypeTwoFactorLogin, claims.LoginType)
	assert.Equal(t, s.UserID, claims.UserID)
}

func TestHTTPTransport_AbortAndRetryCode(t *testing.T) {
	ctx := context.Background()
	repo := account.NewInMemoryRepository()
	hash, err := account.HashCredential(account.Digest("secret"))
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, account.CreateUserParams{Email: "carol@example.com", PasswordHash: hash})
	require.NoError(t, err)

	var codes []string
	sender := twofactor.CodeSenderFunc(func(ctx context.Context, user account.User, code string, method twofactor.Method) error {
		codes = append(codes, code)
		return nil
	})
	verifier := account.NewBcryptVerifier()
	manager := session.NewManager(logingate.New(), tokengenerator.NewJwtTokenGenerator("secret", "test"), repo, verifier)
	svc := twofactor.NewTwoFactorService(repo, verifier, manager,
		twofactor.Settings{Enabled: true, Force: true}, twofactor.WithCodeSender(sender))

	server := httptest.NewServer(api.NewHandler(svc).Routes())
	defer server.Close()

	c := New(NewHTTPTransport(server.URL, WithHTTPClient(server.Client())))

	require.NoError(t, c.LoginWithPassword(ctx, "carol@example.com", "secret", "email"))
	assert.Equal(t, StateAwaitingCode, c.State())
	require.NoError(t, c.GetNewAuthCode(ctx))
	require.Len(t, codes, 2)

	require.NoError(t, c.Abort(ctx))
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.LoginWithPassword(ctx, "carol@example.com", "secret", ""))
	err = c.VerifyAndLogin(ctx, codes[1])
	assert.ErrorIs(t, err, twofactor.ErrInvalidCode, "abort clears the pending code")
}
