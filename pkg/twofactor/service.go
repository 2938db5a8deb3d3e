package twofactor

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strconv"
	"time"

	"github.com/tendant/simple-2fa/pkg/account"
	"github.com/tendant/simple-2fa/pkg/client"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/logingate"
	"github.com/tendant/simple-2fa/pkg/ratelimit"
	"github.com/tendant/simple-2fa/pkg/session"
)

// LoginCompleter turns an approved attempt into a session.
type LoginCompleter interface {
	AttemptLogin(ctx context.Context, attempt logingate.LoginAttempt) (session.LoginResult, error)
}

// LoginStartResult has exactly one of its parts set: a completed login, the
// methods to choose from, or confirmation that a code went out.
type LoginStartResult struct {
	LoggedIn         bool
	Login            *session.LoginResult
	AvailableMethods *AvailableMethods
	ChallengeIssued  bool
}

// DispatchResult carries a login when no second factor was needed and the
// login was completed instead of sending a code.
type DispatchResult struct {
	LoggedIn bool
	Login    *session.LoginResult
}

type Service struct {
	auth      *account.Authenticator
	repo      account.Repository
	completer LoginCompleter
	settings  Settings
	generator CodeGenerator
	sender    CodeSender
	limiter   *ratelimit.Limiter
	now       func() time.Time
}

type Option func(*Service)

func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.generator = g
		}
	}
}

func WithCodeSender(sender CodeSender) Option {
	return func(s *Service) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// WithVerifyRateLimiter caps code verification attempts per user.
func WithVerifyRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTwoFactorService(repo account.Repository, verifier account.PasswordVerifier, completer LoginCompleter, settings Settings, opts ...Option) *Service {
	s := &Service{
		auth:      account.NewAuthenticator(repo, verifier),
		repo:      repo,
		completer: completer,
		settings:  settings.normalized(),
		generator: RandomCodeGenerator{},
		sender:    unconfiguredSender{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the settings the service was built with.
func (s *Service) Settings() Settings {
	return s.settings
}

// StartLogin checks the password and then either completes the login, lists
// the delivery methods, or sends a code when method is given.
func (s *Service) StartLogin(ctx context.Context, identity account.Identity, credential account.Credential, method string) (LoginStartResult, error) {
	user, err := s.authenticate(ctx, identity, credential)
	if err != nil {
		return LoginStartResult{}, err
	}

	if !s.settings.Required(user) {
		login, err := s.completeLogin(ctx, user)
		if err != nil {
			return LoginStartResult{}, err
		}
		return LoginStartResult{LoggedIn: true, Login: &login}, nil
	}

	if method == "" {
		return LoginStartResult{AvailableMethods: &AvailableMethods{
			Email: user.Profile.Email != "",
			Phone: user.Profile.Phone != "",
		}}, nil
	}

	if err := s.issueCode(ctx, user, method); err != nil {
		return LoginStartResult{}, err
	}
	return LoginStartResult{ChallengeIssued: true}, nil
}

// DispatchCode sends a new code, replacing any outstanding one. A user who
// needs no second factor is logged in instead and never gets a code.
func (s *Service) DispatchCode(ctx context.Context, identity account.Identity, credential account.Credential, method string) (DispatchResult, error) {
	user, err := s.authenticate(ctx, identity, credential)
	if err != nil {
		return DispatchResult{}, err
	}

	if !s.settings.Required(user) {
		login, err := s.completeLogin(ctx, user)
		if err != nil {
			return DispatchResult{}, err
		}
		return DispatchResult{LoggedIn: true, Login: &login}, nil
	}

	if err := s.issueCode(ctx, user, method); err != nil {
		return DispatchResult{}, err
	}
	return DispatchResult{}, nil
}

// VerifyAndLogin completes the login when code equals the outstanding code.
// A wrong code leaves the outstanding code in place.
func (s *Service) VerifyAndLogin(ctx context.Context, identity account.Identity, credential account.Credential, code string) (session.LoginResult, error) {
	if err := s.guard(ctx); err != nil {
		return session.LoginResult{}, err
	}
	if code == "" {
		return session.LoginResult{}, ErrCodeRequired
	}

	user, err := s.auth.Authenticate(ctx, identity, credential)
	if err != nil {
		return session.LoginResult{}, err
	}

	if s.limiter != nil && !s.limiter.Allow(user.ID.String()) {
		slog.Warn("Code verification rate limited", "user_id", user.ID)
		return session.LoginResult{}, ErrVerifyRateLimit
	}

	if !s.codeMatches(user, code) {
		slog.Info("Invalid two factor code", "user_id", user.ID)
		return session.LoginResult{}, ErrInvalidCode
	}

	// The code stays pending until the login has been issued.
	login, err := s.completeLogin(ctx, user)
	if err != nil {
		return session.LoginResult{}, err
	}
	if err := s.clearChallenge(ctx, user); err != nil {
		return session.LoginResult{}, err
	}
	if s.limiter != nil {
		s.limiter.Reset(user.ID.String())
	}
	return login, nil
}

// Abort drops any outstanding code. Calling it without one is not an error.
func (s *Service) Abort(ctx context.Context, identity account.Identity, credential account.Credential) error {
	user, err := s.authenticate(ctx, identity, credential)
	if err != nil {
		return err
	}
	if err := s.clearChallenge(ctx, user); err != nil {
		return err
	}
	slog.Info("Two factor challenge aborted", "user_id", user.ID)
	return nil
}

// guard refuses callers that are already logged in.
func (s *Service) guard(ctx context.Context) error {
	if authUser, ok := client.AuthUserFromContext(ctx); ok {
		slog.Warn("Two factor call from an authenticated session", "auth_user", authUser)
		return ErrPermissionDenied
	}
	return nil
}

func (s *Service) authenticate(ctx context.Context, identity account.Identity, credential account.Credential) (account.User, error) {
	if err := s.guard(ctx); err != nil {
		return account.User{}, err
	}
	return s.auth.Authenticate(ctx, identity, credential)
}

func (s *Service) issueCode(ctx context.Context, user account.User, methodName string) error {
	method, err := ParseMethod(methodName)
	if err != nil {
		return err
	}

	code, err := s.generator.GenerateCode()
	if err != nil {
		slog.Error("Failed to generate two factor code", "user_id", user.ID, "error", err)
		return apperrors.InternalWrap(err, "failed to generate code")
	}

	// Deliver first so a failed delivery leaves the previous state untouched.
	if err := s.sender.SendCode(ctx, user, code, method); err != nil {
		slog.Error("Failed to deliver two factor code", "user_id", user.ID, "method", method, "error", err)
		return DeliveryError(err)
	}

	if err := s.storeChallenge(ctx, user, code); err != nil {
		return err
	}
	slog.Info("Two factor code issued", "user_id", user.ID, "method", method)
	return nil
}

func (s *Service) storeChallenge(ctx context.Context, user account.User, code string) error {
	fields := map[string]string{s.settings.FieldName: code}
	if s.settings.CodeTTL > 0 {
		fields[s.settings.issuedAtField()] = strconv.FormatInt(s.now().Unix(), 10)
	}
	if err := s.repo.SetFields(ctx, user.ID, fields); err != nil {
		return apperrors.InternalWrap(err, "failed to store code")
	}
	return nil
}

func (s *Service) clearChallenge(ctx context.Context, user account.User) error {
	if err := s.repo.UnsetFields(ctx, user.ID, s.settings.FieldName, s.settings.issuedAtField()); err != nil {
		slog.Error("Failed to clear two factor code", "user_id", user.ID, "error", err)
		return apperrors.InternalWrap(err, "failed to clear code")
	}
	return nil
}

func (s *Service) codeMatches(user account.User, code string) bool {
	stored, ok := user.Field(s.settings.FieldName)
	if !ok || stored == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false
	}
	if s.settings.CodeTTL > 0 && s.expired(user) {
		slog.Info("Two factor code expired", "user_id", user.ID)
		return false
	}
	return true
}

func (s *Service) expired(user account.User) bool {
	raw, ok := user.Field(s.settings.issuedAtField())
	if !ok {
		// Stored before a TTL was configured
		return true
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true
	}
	return s.now().After(time.Unix(unix, 0).Add(s.settings.CodeTTL))
}

func (s *Service) completeLogin(ctx context.Context, user account.User) (session.LoginResult, error) {
	return s.completer.AttemptLogin(ctx, logingate.LoginAttempt{
		Type:       logingate.TypeTwoFactorLogin,
		MethodName: logingate.MethodLogin,
		UserID:     user.ID,
		Allowed:    true,
	})
}
