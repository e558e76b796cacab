// Package webhook delivers best-effort event notifications to an external
// workflow endpoint. Delivery is a single attempt; failures are logged and
// reported as false, never returned as errors.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/eligibility-intake/internal/mapper"
	"github.com/jonathan/eligibility-intake/internal/schemas"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultMaxInFlight bounds concurrent detached dispatches.
const DefaultMaxInFlight = 16

// DefaultUserAgent is the user agent string for notification requests.
const DefaultUserAgent = "EligibilityIntake/1.0"

// Envelope is the fixed notification payload.
type Envelope struct {
	UserID    string          `json:"user_id"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name"`
	FormData  *types.Groups   `json:"form_data"`
	EventType types.EventKind `json:"event_type"`
	Timestamp string          `json:"timestamp"`
}

// Error represents a failed delivery.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("webhook error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("webhook error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a Dispatcher.
type Options struct {
	URL         string // empty disables dispatching
	Timeout     time.Duration
	MaxInFlight int64
	UserAgent   string
}

// Dispatcher posts notification envelopes to one endpoint.
type Dispatcher struct {
	url       string
	userAgent string
	client    *http.Client
	sem       *semaphore.Weighted
	log       *zap.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// New creates a Dispatcher. Zero-valued options take their defaults.
func New(opts Options, log *zap.Logger) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Dispatcher{
		url:       opts.URL,
		userAgent: opts.UserAgent,
		client:    &http.Client{Timeout: opts.Timeout},
		sem:       semaphore.NewWeighted(opts.MaxInFlight),
		log:       log.Named("webhook"),
		now:       time.Now,
	}
}

// Enabled reports whether an endpoint is configured.
func (d *Dispatcher) Enabled() bool {
	return d.url != ""
}

// Dispatch sends one notification and reports whether the endpoint accepted
// it with a 2xx status.
func (d *Dispatcher) Dispatch(ctx context.Context, kind types.EventKind, identity *types.Identity, answers *types.FormData) bool {
	if !d.Enabled() {
		return false
	}
	log := d.log.With(zap.String("event_type", string(kind)))
	if identity == nil {
		log.Warn("notification dropped: no identity")
		return false
	}

	payload, err := json.Marshal(d.envelope(kind, identity, answers))
	if err != nil {
		log.Error("notification dropped: encode failed", zap.Error(err))
		return false
	}
	if err := schemas.ValidateEnvelope(payload); err != nil {
		log.Error("notification dropped: invalid envelope", zap.Error(err))
		return false
	}

	if err := d.post(ctx, payload); err != nil {
		log.Warn("notification failed", zap.Stringer("user_id", identity.ID), zap.Error(err))
		return false
	}
	log.Info("notification delivered", zap.Stringer("user_id", identity.ID))
	return true
}

// DispatchAsync sends a notification on a detached goroutine. When the
// in-flight limit is reached the notification is dropped.
func (d *Dispatcher) DispatchAsync(kind types.EventKind, identity *types.Identity, answers *types.FormData) {
	if !d.Enabled() {
		return
	}
	if !d.sem.TryAcquire(1) {
		d.log.Warn("notification dropped: too many in flight", zap.String("event_type", string(kind)))
		return
	}

	var cp *types.FormData
	if answers != nil {
		a := *answers
		cp = &a
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("notification panicked", zap.Any("panic", r))
			}
		}()
		d.Dispatch(context.Background(), kind, identity, cp)
	}()
}

// Wait blocks until every detached dispatch finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for detached dispatches and releases idle connections.
func (d *Dispatcher) Close() {
	d.Wait()
	d.client.CloseIdleConnections()
}

func (d *Dispatcher) envelope(kind types.EventKind, identity *types.Identity, answers *types.FormData) Envelope {
	env := Envelope{
		UserID:    identity.ID.String(),
		Email:     identity.Email,
		FullName:  identity.FullName,
		EventType: kind,
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}
	if answers != nil {
		groups := mapper.ToRecord(*answers)
		env.FormData = &groups
	}
	return env
}

func (d *Dispatcher) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return &Error{URL: d.url, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return &Error{URL: d.url, Message: "HTTP request failed", Cause: &types.ErrNetwork{Op: "notify", Err: err}}
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused; the body is not interpreted.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{URL: d.url, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return nil
}
