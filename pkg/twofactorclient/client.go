package twofactorclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-2fa/pkg/account"
	"github.com/tendant/simple-2fa/pkg/twofactor"
	"github.com/tendant/simple-2fa/pkg/twofactor/api"
)

var (
	ErrNotVerifying         = errors.New("no two factor login in progress")
	ErrNoMethod             = errors.New("no delivery method chosen")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
)

// Session is the login a completed flow produced.
type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Client mirrors one user's login flow. It keeps the login and the password
// digest while a code is outstanding so each call can re-authenticate, and
// forgets both once the flow ends.
type Client struct {
	transport Transport

	mu       sync.Mutex
	state    State
	login    string
	password account.Credential
	method   string
	methods  *twofactor.AvailableMethods
	session  *Session
}

func New(transport Transport) *Client {
	return &Client{transport: transport}
}

// LoginWithPassword starts a login. login is a username, or an email when it
// contains '@'. With a method the server sends a code right away.
func (c *Client) LoginWithPassword(ctx context.Context, login, password, method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAuthenticated {
		return ErrAlreadyAuthenticated
	}

	credential := account.Digest(password)
	resp, err := c.transport.Login(ctx, api.LoginRequest{
		User:     account.IdentityFor(login),
		Password: credential,
		Method:   method,
	})
	if err != nil {
		return err
	}

	c.login = login
	c.password = credential
	c.method = method

	switch {
	case resp.LoggedIn:
		return c.authenticated(resp)
	case resp.AvailableMethods != nil:
		c.methods = resp.AvailableMethods
		return c.moveTo(StateAwaitingMethod)
	default:
		return c.moveTo(StateAwaitingCode)
	}
}

// GetAuthCode asks for a code over method and remembers the choice.
func (c *Client) GetAuthCode(ctx context.Context, method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.verifying() {
		return ErrNotVerifying
	}
	c.method = method
	return c.sendCode(ctx)
}

// GetNewAuthCode sends another code over the method chosen before.
func (c *Client) GetNewAuthCode(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.verifying() {
		return ErrNotVerifying
	}
	if c.method == "" {
		return ErrNoMethod
	}
	return c.sendCode(ctx)
}

// VerifyAndLogin submits code. A rejected code leaves the flow where it was.
func (c *Client) VerifyAndLogin(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.verifying() {
		return ErrNotVerifying
	}
	resp, err := c.transport.Verify(ctx, api.VerifyRequest{
		User:     account.IdentityFor(c.login),
		Password: c.password,
		Code:     code,
	})
	if err != nil {
		return err
	}
	return c.authenticated(resp)
}

// Abort cancels the flow on the server and locally.
func (c *Client) Abort(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.verifying() {
		return ErrNotVerifying
	}
	if err := c.transport.Abort(ctx, api.AbortRequest{
		User:     account.IdentityFor(c.login),
		Password: c.password,
	}); err != nil {
		return err
	}
	c.forget()
	return c.moveTo(StateIdle)
}

// Logout drops the local session so a new login can start.
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forget()
	c.session = nil
	c.method = ""
	c.state = StateIdle
}

func (c *Client) IsVerifying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.verifying()
}

// VerifyingMethod returns the delivery method last chosen.
func (c *Client) VerifyingMethod() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AvailableMethods is set while the client waits for a method choice.
func (c *Client) AvailableMethods() *twofactor.AvailableMethods {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.methods == nil {
		return nil
	}
	m := *c.methods
	return &m
}

// Session returns the completed login, if any.
func (c *Client) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// caller holds c.mu
func (c *Client) sendCode(ctx context.Context) error {
	resp, err := c.transport.SendCode(ctx, api.SendCodeRequest{
		User:     account.IdentityFor(c.login),
		Password: c.password,
		Method:   c.method,
	})
	if err != nil {
		return err
	}
	if resp.LoggedIn {
		return c.authenticated(resp)
	}
	c.methods = nil
	return c.moveTo(StateAwaitingCode)
}

// caller holds c.mu
func (c *Client) authenticated(resp api.LoginResponse) error {
	s := &Session{UserID: resp.UserID, Token: resp.Token}
	if resp.ExpiresAt != nil {
		s.ExpiresAt = *resp.ExpiresAt
	}
	if err := c.moveTo(StateAuthenticated); err != nil {
		return err
	}
	c.session = s
	c.forget()
	return nil
}

// caller holds c.mu
func (c *Client) forget() {
	c.login = ""
	c.password = account.Credential{}
	c.methods = nil
}

// caller holds c.mu
func (c *Client) moveTo(next State) error {
	if !c.state.canMoveTo(next) {
		return fmt.Errorf("invalid transition from %s to %s", c.state, next)
	}
	slog.Debug("Two factor client state changed", "from", c.state, "to", next)
	c.state = next
	return nil
}
