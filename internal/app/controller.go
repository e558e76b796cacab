// Package app drives each client through the intake flow: collecting answers,
// authenticating, the dashboard and the completed screen.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/config"
	"github.com/jonathan/eligibility-intake/internal/session"
	"github.com/jonathan/eligibility-intake/internal/submissions"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// Screens.
const (
	StateCollecting     = "collecting"
	StateAuthenticating = "authenticating"
	StateDashboard      = "dashboard"
	StateCompleted      = "completed"
)

// Transitions.
const (
	EventSubmitAnonymous      = "submit_anonymous"
	EventSubmitSucceeded      = "submit_succeeded"
	EventShowAuth             = "show_auth"
	EventCancelAuth           = "cancel_auth"
	EventAuthSucceeded        = "auth_succeeded"
	EventAuthSubmitted        = "auth_submitted"
	EventSessionAuthenticated = "session_authenticated"
	EventSignedOut            = "signed_out"
	EventStartNew             = "start_new"
)

// AuthMode selects the auth screen variant.
type AuthMode string

// Auth modes.
const (
	AuthLogin  AuthMode = "login"
	AuthSignup AuthMode = "signup"
)

// Valid reports whether m is a known mode.
func (m AuthMode) Valid() bool {
	return m == AuthLogin || m == AuthSignup
}

// User-facing messages.
const (
	MsgSubmitFailed          = "Failed to submit form. Please try again."
	MsgDashboardSubmitFailed = "An error occurred while submitting the form. Please try again."
	MsgDraftSaved            = "Draft saved successfully!"
	MsgDraftFailed           = "Failed to save draft"
	MsgLoadFailed            = "Could not load your submissions. Please refresh."
	MsgDeleteFailed          = "Failed to delete submission"
	MsgEditFailed            = "Could not open that submission"
)

// DefaultLoadTimeout bounds background dashboard loads.
const DefaultLoadTimeout = 10 * time.Second

var (
	// ErrStale is returned when a long-running operation finished after the
	// client moved on; its result was discarded.
	ErrStale = errors.New("result discarded: client state changed")
	// ErrBusy is returned while another write for the same client is in flight.
	ErrBusy = errors.New("another operation is in progress")
)

// TransitionError reports an operation that is not available on the current
// screen.
type TransitionError struct {
	Op    string
	State string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not available in state %s", e.Op, e.State)
}

// Session is the per-client authentication session a Controller follows.
type Session interface {
	Current() session.State
	Subscribe(fn func(session.State)) func()
	SignUp(ctx context.Context, email, password, fullName string, pending *types.FormData) (*types.Identity, error)
	SignIn(ctx context.Context, email, password string) (*types.Identity, error)
	SignOut(ctx context.Context) error
}

// Repository is the submission store a Controller writes through.
type Repository interface {
	Create(ctx context.Context, identity *types.Identity, answers types.FormData, status types.SubmissionStatus) (*types.Submission, error)
	Update(ctx context.Context, identity *types.Identity, referenceID string, answers types.FormData, status types.SubmissionStatus) (*types.Submission, error)
	SaveDraft(ctx context.Context, identity *types.Identity, referenceID string, answers types.FormData) (*types.Submission, error)
	ListByOwner(ctx context.Context, identity *types.Identity) ([]types.Submission, error)
	FetchLatestAnswers(ctx context.Context, identity *types.Identity) (*types.FormData, error)
	FetchByReference(ctx context.Context, identity *types.Identity, referenceID string) (*types.Submission, types.FormData, error)
	Delete(ctx context.Context, identity *types.Identity, referenceID string) error
}

// Options configures a Controller.
type Options struct {
	ResumePolicy string
	Payment      config.PaymentConfig
	LoadTimeout  time.Duration
}

type dashboard struct {
	loaded      bool
	submissions []types.Submission
	counts      types.StatusCounts
	prefill     *types.FormData
	// pinned keeps prefill from being replaced by a reload.
	pinned   bool
	formOpen bool
	editing  string
	notice   string
	gen      uint64
}

// Controller is one client's application state machine.
type Controller struct {
	session Session
	repo    Repository
	opts    Options
	offers  []PaymentOffer
	log     *zap.Logger

	mu        sync.Mutex
	machine   *fsm.FSM
	epoch     uint64
	busy      bool
	answers   *types.FormData
	pending   *types.FormData
	reference string
	authMode  AuthMode
	errMsg    string
	fieldErrs map[string]string
	dash      dashboard
	waiters   []chan struct{}
	subs      map[int]func(View)
	nextID    int
	closed    bool

	notifyMu    sync.Mutex
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewController creates a controller on the collecting screen and starts
// following sess. An already authenticated session moves it to the dashboard.
func NewController(sess Session, repo Repository, opts Options, log *zap.Logger) *Controller {
	if opts.ResumePolicy == "" {
		opts.ResumePolicy = config.ResumeSubmit
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		session:  sess,
		repo:     repo,
		opts:     opts,
		offers:   Offers(opts.Payment),
		log:      log.Named("app"),
		authMode: AuthLogin,
		subs:     make(map[int]func(View)),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.machine = newMachine(c.entered)
	c.unsubscribe = sess.Subscribe(c.onSession)
	if current := sess.Current(); current.Status != session.StatusLoading {
		c.onSession(current)
	}
	return c
}

func newMachine(entered fsm.Callback) *fsm.FSM {
	all := []string{StateCollecting, StateAuthenticating, StateDashboard, StateCompleted}
	return fsm.NewFSM(
		StateCollecting,
		fsm.Events{
			{Name: EventSubmitAnonymous, Src: []string{StateCollecting}, Dst: StateAuthenticating},
			{Name: EventShowAuth, Src: []string{StateCollecting}, Dst: StateAuthenticating},
			{Name: EventCancelAuth, Src: []string{StateAuthenticating}, Dst: StateCollecting},
			{Name: EventSubmitSucceeded, Src: []string{StateCollecting, StateDashboard}, Dst: StateCompleted},
			{Name: EventAuthSucceeded, Src: []string{StateAuthenticating}, Dst: StateDashboard},
			{Name: EventAuthSubmitted, Src: []string{StateAuthenticating}, Dst: StateCompleted},
			{Name: EventSessionAuthenticated, Src: []string{StateCollecting}, Dst: StateDashboard},
			{Name: EventSignedOut, Src: all, Dst: StateCollecting},
			{Name: EventStartNew, Src: []string{StateCompleted}, Dst: StateDashboard},
		},
		fsm.Callbacks{"enter_state": entered},
	)
}

// entered runs inside fire, so c.mu is already held.
func (c *Controller) entered(_ context.Context, e *fsm.Event) {
	c.epoch++
	c.log.Debug("transition",
		zap.String("event", e.Event),
		zap.String("from", e.Src),
		zap.String("to", e.Dst),
		zap.Uint64("epoch", c.epoch))
}

// fire runs a transition. Re-entering the current state is not an error.
// Caller holds c.mu.
func (c *Controller) fire(event string) error {
	err := c.machine.Event(context.Background(), event)
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		return &TransitionError{Op: invalid.Event, State: invalid.State}
	}
	return err
}

// expect checks the current screen and the in-flight guard. Caller holds c.mu.
func (c *Controller) expect(op, state string) error {
	if current := c.machine.Current(); current != state {
		return &TransitionError{Op: op, State: current}
	}
	if c.busy {
		return ErrBusy
	}
	return nil
}

// State returns the current screen.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current()
}

// View returns a snapshot of the current screen.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

func (c *Controller) view() View {
	state := c.machine.Current()
	sess := c.session.Current()
	v := View{
		State:       state,
		Chrome:      state == StateCollecting || state == StateDashboard,
		Session:     sess.Status,
		User:        sess.Identity,
		Pending:     copyAnswers(c.pending),
		ReferenceID: c.reference,
		Error:       c.errMsg,
		FieldErrors: copyFields(c.fieldErrs),
	}
	switch state {
	case StateCollecting:
		v.Answers = copyAnswers(c.answers)
	case StateAuthenticating:
		v.AuthMode = c.authMode
	case StateDashboard:
		list := make([]types.Submission, len(c.dash.submissions))
		copy(list, c.dash.submissions)
		v.Dashboard = &DashboardView{
			Loaded:           c.dash.loaded,
			Submissions:      list,
			Counts:           c.dash.counts,
			Prefill:          copyAnswers(c.dash.prefill),
			FormOpen:         c.dash.formOpen,
			EditingReference: c.dash.editing,
			Notice:           c.dash.notice,
		}
	case StateCompleted:
		v.PaymentOffers = append([]PaymentOffer(nil), c.offers...)
	}
	return v
}

// Subscribe registers fn for view changes and returns its unsubscribe
// function. fn runs synchronously and must not call back into the Controller.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// publish delivers the current view to subscribers. Deliveries are
// serialized and always carry the latest view.
func (c *Controller) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	v := c.view()
	fns := make([]func(View), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (c *Controller) clearError() {
	c.errMsg = ""
	c.fieldErrs = nil
}

func (c *Controller) setError(err error, fallback string) {
	c.fieldErrs = nil
	var verr *types.ErrValidation
	if errors.As(err, &verr) {
		c.errMsg = verr.Message
		if len(verr.Fields) > 0 {
			c.fieldErrs = copyFields(verr.Fields)
		} else if verr.Field != "" {
			c.fieldErrs = map[string]string{verr.Field: verr.Message}
		}
		if len(c.fieldErrs) > 1 {
			c.errMsg = "Please correct the highlighted fields"
		}
		return
	}
	c.errMsg = fallback
}

// onSession follows session changes. Authentication while collecting opens
// the dashboard; becoming anonymous returns to collecting and discards the
// pending answers, every time it is reported.
func (c *Controller) onSession(s session.State) {
	switch s.Status {
	case session.StatusAuthenticated:
		c.mu.Lock()
		if c.closed || c.machine.Current() != StateCollecting {
			c.mu.Unlock()
			return
		}
		if err := c.fire(EventSessionAuthenticated); err != nil {
			c.mu.Unlock()
			c.log.Debug("ignored session change", zap.Error(err))
			return
		}
		c.answers = nil
		c.enterDashboard(nil, false)
		c.mu.Unlock()
		c.loadDashboardAsync(s.Identity)
		c.publish()

	case session.StatusAnonymous:
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		if err := c.fire(EventSignedOut); err != nil {
			c.log.Warn("sign-out transition failed", zap.Error(err))
		}
		c.answers = nil
		c.pending = nil
		c.reference = ""
		c.authMode = AuthLogin
		c.dash = dashboard{}
		c.clearError()
		waiters := c.waiters
		c.waiters = nil
		c.mu.Unlock()
		for _, ch := range waiters {
			close(ch)
		}
		c.publish()
	}
}

// enterDashboard resets the dashboard data. Caller holds c.mu.
func (c *Controller) enterDashboard(prefill *types.FormData, open bool) {
	c.dash = dashboard{
		prefill:  copyAnswers(prefill),
		pinned:   prefill != nil,
		formOpen: open,
	}
	c.clearError()
}

// SubmitForm submits the collecting screen's answers. Invalid answers stay
// on screen with field errors. Without a session the answers become pending
// and the auth screen opens in sign-up mode; with one they are written and
// the completed screen opens. A failed write keeps the answers on screen.
func (c *Controller) SubmitForm(ctx context.Context, answers types.FormData) error {
	c.mu.Lock()
	if err := c.expect("submit", StateCollecting); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := answers.Validate(); err != nil {
		c.answers = copyAnswers(&answers)
		c.setError(err, MsgSubmitFailed)
		c.mu.Unlock()
		c.publish()
		return err
	}

	sess := c.session.Current()
	if !sess.IsAuthenticated() {
		c.pending = copyAnswers(&answers)
		c.answers = nil
		c.authMode = AuthSignup
		c.clearError()
		err := c.fire(EventSubmitAnonymous)
		c.mu.Unlock()
		c.publish()
		return err
	}

	c.answers = copyAnswers(&answers)
	c.clearError()
	c.busy = true
	epoch := c.epoch
	c.mu.Unlock()

	sub, err := c.repo.Create(ctx, sess.Identity, answers, types.StatusSubmitted)

	c.mu.Lock()
	c.busy = false
	if c.epoch != epoch {
		c.mu.Unlock()
		c.log.Debug("discarding stale submit result")
		return ErrStale
	}
	if err != nil {
		c.setError(err, MsgSubmitFailed)
		c.mu.Unlock()
		c.publish()
		return err
	}
	c.reference = sub.ReferenceID
	c.answers = nil
	err = c.fire(EventSubmitSucceeded)
	c.mu.Unlock()
	c.publish()
	return err
}

// ShowAuth opens the auth screen in the given mode, or switches mode when it
// is already open.
func (c *Controller) ShowAuth(mode AuthMode) error {
	if !mode.Valid() {
		return &types.ErrValidation{Field: "mode", Message: "Mode must be login or signup"}
	}
	c.mu.Lock()
	switch c.machine.Current() {
	case StateAuthenticating:
	case StateCollecting:
		if err := c.fire(EventShowAuth); err != nil {
			c.mu.Unlock()
			return err
		}
	default:
		state := c.machine.Current()
		c.mu.Unlock()
		return &TransitionError{Op: EventShowAuth, State: state}
	}
	c.authMode = mode
	c.clearError()
	c.mu.Unlock()
	c.publish()
	return nil
}

// CancelAuth leaves the auth screen. Pending answers go back into the form.
func (c *Controller) CancelAuth() error {
	c.mu.Lock()
	if err := c.expect(EventCancelAuth, StateAuthenticating); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.fire(EventCancelAuth); err != nil {
		c.mu.Unlock()
		return err
	}
	c.answers = c.pending
	c.pending = nil
	c.clearError()
	c.mu.Unlock()
	c.publish()
	return nil
}

// SignIn authenticates from the auth screen and resumes any pending answers.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	c.mu.Lock()
	if err := c.expect("sign in", StateAuthenticating); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = true
	c.clearError()
	epoch := c.epoch
	c.mu.Unlock()

	identity, err := c.session.SignIn(ctx, email, password)
	return c.resume(ctx, epoch, identity, err)
}

// SignUp creates an account from the auth screen and resumes any pending
// answers.
func (c *Controller) SignUp(ctx context.Context, fullName, email, password string) error {
	c.mu.Lock()
	if err := c.expect("sign up", StateAuthenticating); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = true
	c.clearError()
	epoch := c.epoch
	pending := copyAnswers(c.pending)
	c.mu.Unlock()

	identity, err := c.session.SignUp(ctx, email, password, fullName, pending)
	return c.resume(ctx, epoch, identity, err)
}

// resume finishes an authentication attempt started at epoch. With pending
// answers and the submit policy they are written right away; otherwise the
// dashboard opens, pre-filled with any pending answers.
func (c *Controller) resume(ctx context.Context, epoch uint64, identity *types.Identity, authErr error) error {
	c.mu.Lock()
	if c.epoch != epoch {
		c.busy = false
		c.mu.Unlock()
		c.reconcile()
		return ErrStale
	}
	if authErr != nil {
		c.busy = false
		c.errMsg = authMessage(authErr)
		c.mu.Unlock()
		c.publish()
		return authErr
	}

	pending := c.pending
	if pending == nil || c.opts.ResumePolicy == config.ResumeReview {
		c.busy = false
		c.pending = nil
		err := c.fire(EventAuthSucceeded)
		c.enterDashboard(pending, pending != nil)
		c.mu.Unlock()
		c.loadDashboardAsync(identity)
		c.publish()
		return err
	}
	c.mu.Unlock()

	sub, werr := c.repo.Create(ctx, identity, *pending, types.StatusSubmitted)

	c.mu.Lock()
	c.busy = false
	if c.epoch != epoch {
		c.mu.Unlock()
		c.reconcile()
		return ErrStale
	}
	c.pending = nil
	if werr != nil {
		c.log.Warn("pending submission failed after authentication", zap.Error(werr))
		err := c.fire(EventAuthSucceeded)
		c.enterDashboard(pending, true)
		c.setError(werr, MsgSubmitFailed)
		c.mu.Unlock()
		c.loadDashboardAsync(identity)
		c.publish()
		return err
	}
	c.reference = sub.ReferenceID
	err := c.fire(EventAuthSubmitted)
	c.mu.Unlock()
	c.publish()
	return err
}

// reconcile re-applies an authenticated session after a discarded result,
// since its change notification was ignored while the result was pending.
func (c *Controller) reconcile() {
	if current := c.session.Current(); current.IsAuthenticated() {
		c.onSession(current)
	}
}

func authMessage(err error) string {
	var aerr *session.AuthError
	if errors.As(err, &aerr) {
		return aerr.Message
	}
	return session.Translate(err).Message
}

// SignOut ends the session. The screen changes when the backend reports the
// signed-out session; SignOut waits for that report or ctx.
func (c *Controller) SignOut(ctx context.Context) error {
	if !c.session.Current().IsAuthenticated() {
		c.onSession(session.Anonymous())
		return nil
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, done)
	c.mu.Unlock()

	if err := c.session.SignOut(ctx); err != nil {
		c.mu.Lock()
		c.errMsg = authMessage(err)
		c.mu.Unlock()
		c.publish()
		return err
	}

	timer := time.NewTimer(c.opts.LoadTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		if current := c.session.Current(); current.Status == session.StatusAnonymous {
			c.onSession(current)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// identity returns the authenticated identity. Caller holds c.mu.
func (c *Controller) identity() (*types.Identity, error) {
	sess := c.session.Current()
	if !sess.IsAuthenticated() {
		return nil, &types.ErrNotAuthenticated{}
	}
	return sess.Identity, nil
}

// dashboardOp checks the screen and session for a dashboard operation and
// marks the client busy. Caller holds c.mu.
func (c *Controller) dashboardOp(op string) (*types.Identity, uint64, error) {
	if err := c.expect(op, StateDashboard); err != nil {
		return nil, 0, err
	}
	identity, err := c.identity()
	if err != nil {
		return nil, 0, err
	}
	c.busy = true
	return identity, c.epoch, nil
}

// OpenForm opens the dashboard form. A fresh form starts from the identity's
// name and email instead of the latest answers.
func (c *Controller) OpenForm(fresh bool) error {
	c.mu.Lock()
	if err := c.expect("open form", StateDashboard); err != nil {
		c.mu.Unlock()
		return err
	}
	if fresh {
		identity, _ := c.identity()
		c.dash.prefill = prefillFor(identity, nil)
		c.dash.pinned = true
		c.dash.editing = ""
	}
	c.dash.formOpen = true
	c.dash.notice = ""
	c.clearError()
	c.mu.Unlock()
	c.publish()
	return nil
}

// CloseForm returns from the dashboard form to the submission list.
func (c *Controller) CloseForm() error {
	c.mu.Lock()
	if err := c.expect("close form", StateDashboard); err != nil {
		c.mu.Unlock()
		return err
	}
	c.dash.formOpen = false
	c.clearError()
	c.mu.Unlock()
	c.publish()
	return nil
}

// SaveDraft stores the dashboard answers as a draft. The draft being edited
// is updated in place; otherwise a new draft is created and becomes the one
// being edited.
func (c *Controller) SaveDraft(ctx context.Context, answers types.FormData) error {
	c.mu.Lock()
	identity, epoch, err := c.dashboardOp("save draft")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ref := c.dash.editing
	c.dash.notice = ""
	c.mu.Unlock()

	sub, err := c.repo.SaveDraft(ctx, identity, ref, answers)

	c.mu.Lock()
	c.busy = false
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrStale
	}
	c.dash.prefill = copyAnswers(&answers)
	c.dash.pinned = true
	if err != nil {
		c.forgetMissing(ref, err)
		c.dash.notice = MsgDraftFailed
		c.mu.Unlock()
		c.publish()
		return err
	}
	c.dash.editing = sub.ReferenceID
	c.dash.notice = MsgDraftSaved
	c.mu.Unlock()
	c.publish()
	c.loadDashboard(ctx, identity)
	return nil
}

// SubmitFromDashboard submits the dashboard answers. A draft being edited is
// promoted in place. Failures keep the answers in the form.
func (c *Controller) SubmitFromDashboard(ctx context.Context, answers types.FormData) error {
	c.mu.Lock()
	if err := c.expect("submit", StateDashboard); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := answers.Validate(); err != nil {
		c.dash.prefill = copyAnswers(&answers)
		c.dash.pinned = true
		c.dash.formOpen = true
		c.setError(err, MsgDashboardSubmitFailed)
		c.mu.Unlock()
		c.publish()
		return err
	}
	identity, epoch, err := c.dashboardOp("submit")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ref := c.dash.editing
	c.clearError()
	c.mu.Unlock()

	var sub *types.Submission
	if ref != "" {
		sub, err = c.repo.Update(ctx, identity, ref, answers, types.StatusSubmitted)
	} else {
		sub, err = c.repo.Create(ctx, identity, answers, types.StatusSubmitted)
	}

	c.mu.Lock()
	c.busy = false
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		c.forgetMissing(ref, err)
		c.dash.prefill = copyAnswers(&answers)
		c.dash.pinned = true
		c.setError(err, MsgDashboardSubmitFailed)
		c.mu.Unlock()
		c.publish()
		return err
	}
	c.reference = sub.ReferenceID
	err = c.fire(EventSubmitSucceeded)
	c.mu.Unlock()
	c.publish()
	return err
}

// forgetMissing stops editing ref once the backend reports it gone, so the
// next save or submit creates a new record. Caller holds c.mu.
func (c *Controller) forgetMissing(ref string, err error) {
	var notFound *types.ErrNotFound
	if ref != "" && c.dash.editing == ref && errors.As(err, &notFound) {
		c.dash.editing = ""
	}
}

// EditSubmission loads a submission into the dashboard form. Drafts are
// edited in place; a submitted record is copied into a new assessment.
func (c *Controller) EditSubmission(ctx context.Context, referenceID string) error {
	c.mu.Lock()
	identity, epoch, err := c.dashboardOp("edit")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	sub, answers, err := c.repo.FetchByReference(ctx, identity, referenceID)

	c.mu.Lock()
	c.busy = false
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		c.setError(err, MsgEditFailed)
		c.mu.Unlock()
		c.publish()
		return err
	}
	c.dash.prefill = copyAnswers(&answers)
	c.dash.pinned = true
	c.dash.formOpen = true
	c.dash.notice = ""
	c.dash.editing = ""
	if sub.Status == types.StatusDraft {
		c.dash.editing = sub.ReferenceID
	}
	c.clearError()
	c.mu.Unlock()
	c.publish()
	return nil
}

// DeleteSubmission removes an owned submission and reloads the list.
func (c *Controller) DeleteSubmission(ctx context.Context, referenceID string) error {
	c.mu.Lock()
	identity, epoch, err := c.dashboardOp("delete")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	err = c.repo.Delete(ctx, identity, referenceID)

	c.mu.Lock()
	c.busy = false
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		c.setError(err, MsgDeleteFailed)
		c.mu.Unlock()
		c.publish()
		return err
	}
	if c.dash.editing == referenceID {
		c.dash.editing = ""
	}
	c.clearError()
	c.mu.Unlock()
	c.publish()
	c.loadDashboard(ctx, identity)
	return nil
}

// StartNew leaves the completed screen for the dashboard, or for the form
// when the session has ended.
func (c *Controller) StartNew() error {
	c.mu.Lock()
	if err := c.expect("start new", StateCompleted); err != nil {
		c.mu.Unlock()
		return err
	}
	identity, err := c.identity()
	if err != nil {
		c.mu.Unlock()
		c.onSession(session.Anonymous())
		return nil
	}
	if err := c.fire(EventStartNew); err != nil {
		c.mu.Unlock()
		return err
	}
	c.reference = ""
	c.pending = nil
	c.enterDashboard(nil, false)
	c.mu.Unlock()
	c.loadDashboardAsync(identity)
	c.publish()
	return nil
}

func (c *Controller) loadDashboardAsync(identity *types.Identity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("dashboard load panicked", zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.LoadTimeout)
		defer cancel()
		c.loadDashboard(ctx, identity)
	}()
}

// loadDashboard reloads the submission list. Only the newest load started
// on the current screen is applied.
func (c *Controller) loadDashboard(ctx context.Context, identity *types.Identity) {
	c.mu.Lock()
	if c.machine.Current() != StateDashboard {
		c.mu.Unlock()
		return
	}
	c.dash.gen++
	gen, epoch := c.dash.gen, c.epoch
	c.mu.Unlock()

	list, err := c.repo.ListByOwner(ctx, identity)
	var latest *types.FormData
	if err == nil && len(list) > 0 {
		var lerr error
		latest, lerr = c.repo.FetchLatestAnswers(ctx, identity)
		if lerr != nil {
			c.log.Warn("latest answers unavailable", zap.Error(lerr))
		}
	}

	c.mu.Lock()
	if c.epoch != epoch || c.dash.gen != gen {
		c.mu.Unlock()
		return
	}
	c.dash.loaded = true
	if err != nil {
		c.log.Warn("dashboard load failed", zap.Error(err))
		c.errMsg = MsgLoadFailed
		c.mu.Unlock()
		c.publish()
		return
	}
	if c.errMsg == MsgLoadFailed {
		c.errMsg = ""
	}
	c.dash.submissions = list
	c.dash.counts = submissions.Summarize(list)
	if !c.dash.pinned {
		c.dash.prefill = prefillFor(identity, latest)
	}
	c.mu.Unlock()
	c.publish()
}

// Close stops following the session and waits for background loads.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.unsubscribe()
	c.cancel()
	c.wg.Wait()
}
