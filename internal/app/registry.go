package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/auth"
	"github.com/jonathan/eligibility-intake/internal/session"
)

// Registry limits used when Deps leaves them unset.
const (
	DefaultIdleTTL      = 2 * time.Hour
	DefaultAnonymousTTL = 15 * time.Minute
	DefaultMaxClients   = 10000
)

// Deps are the shared collaborators every client is built from.
type Deps struct {
	Auth           auth.Authenticator
	Notifier       session.Notifier
	Repo           Repository
	Options        Options
	SessionTimeout time.Duration
	IdleTTL        time.Duration
	// AnonymousTTL evicts signed-out clients sooner than IdleTTL.
	AnonymousTTL time.Duration
	// MaxClients caps live clients; the longest idle is evicted past it.
	MaxClients int
}

// Client is one browser's state: its auth handle, session and controller.
type Client struct {
	ID         string
	Controller *Controller

	auth     *auth.Client
	session  *session.Manager
	lastSeen atomic.Int64
}

// Token returns the client's current session token, empty when signed out.
func (c *Client) Token() string {
	return c.auth.Token()
}

// Ready is closed once the client's session is established.
func (c *Client) Ready() <-chan struct{} {
	return c.session.Ready()
}

func (c *Client) touch(now time.Time) {
	c.lastSeen.Store(now.UnixNano())
}

func (c *Client) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastSeen.Load()))
}

func (c *Client) close() {
	c.Controller.Close()
	c.session.Close()
	c.auth.Wait()
}

// Registry keeps the live clients keyed by their cookie id.
type Registry struct {
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps, log *zap.Logger) *Registry {
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = DefaultIdleTTL
	}
	if deps.AnonymousTTL <= 0 {
		deps.AnonymousTTL = DefaultAnonymousTTL
	}
	if deps.AnonymousTTL > deps.IdleTTL {
		deps.AnonymousTTL = deps.IdleTTL
	}
	if deps.MaxClients <= 0 {
		deps.MaxClients = DefaultMaxClients
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:    deps,
		log:     log.Named("registry"),
		now:     time.Now,
		clients: make(map[string]*Client),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Get returns the client for id, creating it when id is empty or unknown.
// A new client restores its session from token. Get waits until the
// client's session is established or ctx ends.
func (r *Registry) Get(ctx context.Context, id, token string) (*Client, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, context.Canceled
	}
	var evicted *Client
	c, ok := r.clients[id]
	if !ok {
		if id == "" {
			id = uuid.NewString()
		}
		if len(r.clients) >= r.deps.MaxClients {
			evicted = r.evictLocked(r.now())
		}
		c = r.build(id, token)
		r.clients[id] = c
	}
	c.touch(r.now())
	r.mu.Unlock()

	if evicted != nil {
		r.log.Warn("client limit reached, evicted idle client",
			zap.String("evicted", evicted.ID), zap.Int("max_clients", r.deps.MaxClients))
		evicted.close()
	}

	select {
	case <-c.Ready():
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// build wires a new client. Caller holds r.mu.
func (r *Registry) build(id, token string) *Client {
	log := r.log.With(zap.String("client", id))
	ac := auth.NewClient(r.deps.Auth, token, log)
	mgr := session.NewManager(ac, r.deps.Notifier, r.deps.SessionTimeout, log)
	c := &Client{
		ID:         id,
		Controller: NewController(mgr, r.deps.Repo, r.deps.Options, log),
		auth:       ac,
		session:    mgr,
	}
	mgr.Start(r.ctx)
	log.Debug("client created")
	return c
}

// evictLocked removes the longest idle client, preferring signed-out ones.
// Caller holds r.mu.
func (r *Registry) evictLocked(now time.Time) *Client {
	var victim, anonymous *Client
	for _, c := range r.clients {
		if victim == nil || c.idleSince(now) > victim.idleSince(now) {
			victim = c
		}
		if c.Token() == "" && (anonymous == nil || c.idleSince(now) > anonymous.idleSince(now)) {
			anonymous = c
		}
	}
	if anonymous != nil {
		victim = anonymous
	}
	if victim != nil {
		delete(r.clients, victim.ID)
	}
	return victim
}

// ttl is how long c may stay idle.
func (r *Registry) ttl(c *Client) time.Duration {
	if c.Token() == "" {
		return r.deps.AnonymousTTL
	}
	return r.deps.IdleTTL
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep evicts clients idle for longer than their TTL and returns how many
// were evicted. Signed-out clients use the shorter AnonymousTTL.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	var expired []*Client
	for id, c := range r.clients {
		if c.idleSince(now) > r.ttl(c) {
			expired = append(expired, c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		c.close()
	}
	if len(expired) > 0 {
		r.log.Info("evicted idle clients", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps idle clients until ctx ends.
func (r *Registry) Run(ctx context.Context) error {
	interval := r.deps.AnonymousTTL / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close evicts every client.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	all := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		all = append(all, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	r.cancel()
	for _, c := range all {
		c.close()
	}
}
