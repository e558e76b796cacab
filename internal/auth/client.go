package auth

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/types"
)

// Authenticator is the credential backend a Client talks to.
type Authenticator interface {
	Register(ctx context.Context, req *types.SignUpRequest) (*types.AuthResponse, error)
	Login(ctx context.Context, req *types.SignInRequest) (*types.AuthResponse, error)
	Identify(ctx context.Context, token string) (*types.Identity, error)
	EnsureProfile(ctx context.Context, identity *types.Identity) (*types.Profile, error)
}

// Client is one browser's handle on the credential backend. It holds the
// session token and reports session changes to listeners asynchronously, the
// way a hosted auth backend pushes session events.
type Client struct {
	backend Authenticator
	log     *zap.Logger

	mu        sync.Mutex
	token     string
	identity  *types.Identity
	listeners map[int]func(*types.Identity)
	nextID    int

	deliverMu sync.Mutex
	pending   sync.WaitGroup
}

// NewClient creates a client, optionally restoring a previously issued token.
func NewClient(backend Authenticator, token string, log *zap.Logger) *Client {
	return &Client{
		backend:   backend,
		log:       log.Named("auth-client"),
		token:     token,
		listeners: make(map[int]func(*types.Identity)),
	}
}

// Token returns the current session token, empty when signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SignUp creates an account and establishes its session.
func (c *Client) SignUp(ctx context.Context, fullName, email, password string) (*types.Identity, error) {
	resp, err := c.backend.Register(ctx, &types.SignUpRequest{FullName: fullName, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	c.establish(resp)
	return resp.Identity, nil
}

// SignIn authenticates and establishes a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*types.Identity, error) {
	resp, err := c.backend.Login(ctx, &types.SignInRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	c.establish(resp)
	return resp.Identity, nil
}

// SignOut ends the session. Listeners are told asynchronously.
func (c *Client) SignOut(_ context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.identity = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// CurrentIdentity resolves the identity behind the held token. A missing or
// rejected token yields nil without error; a rejected token is discarded.
func (c *Client) CurrentIdentity(ctx context.Context) (*types.Identity, error) {
	token := c.Token()
	if token == "" {
		return nil, nil
	}

	identity, err := c.backend.Identify(ctx, token)
	if err != nil {
		var notAuth *types.ErrNotAuthenticated
		if errors.As(err, &notAuth) {
			c.mu.Lock()
			if c.token == token {
				c.token = ""
				c.identity = nil
			}
			c.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}

	c.mu.Lock()
	if c.token == token {
		c.identity = identity
	}
	c.mu.Unlock()
	return identity, nil
}

// EnsureProfile creates or syncs the profile for identity.
func (c *Client) EnsureProfile(ctx context.Context, identity *types.Identity) error {
	_, err := c.backend.EnsureProfile(ctx, identity)
	return err
}

// OnSessionChange registers fn to receive session changes: the new identity,
// or nil when signed out. It returns a function that unregisters fn.
func (c *Client) OnSessionChange(fn func(*types.Identity)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Wait blocks until every pending session-change notification was delivered.
func (c *Client) Wait() {
	c.pending.Wait()
}

func (c *Client) establish(resp *types.AuthResponse) {
	c.mu.Lock()
	c.token = resp.Token
	c.identity = resp.Identity
	c.mu.Unlock()
	c.notify()
}

// notify delivers the session state on a separate goroutine. Deliveries are
// serialized and each one reads the state current at delivery time, so
// listeners always converge on the latest session.
func (c *Client) notify() {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("session listener panicked", zap.Any("panic", r))
			}
		}()

		c.deliverMu.Lock()
		defer c.deliverMu.Unlock()

		c.mu.Lock()
		identity := c.identity
		fns := make([]func(*types.Identity), 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		c.mu.Unlock()

		for _, fn := range fns {
			fn(identity)
		}
	}()
}
