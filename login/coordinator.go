package login

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-oauth-login/broadcast"
	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/outcome"
	"github.com/jrsteele09/go-oauth-login/session"
)

const (
	sourceAutomatic = "automatic"
	sourceManual    = "manual"

	defaultExchangeTimeout = 30 * time.Second
	defaultExchangeWorkers = 2
	exchangeQueueSize      = 16
)

// Coordinator is the single authority for "is a login in progress, and what was its
// result".
//
// At most one AuthRequest is pending at a time. Its outcome is decided exactly once,
// by whichever of the automatic return, a manual redirect, Cancel or the watchdog
// claims the request's result slot first, and is then published to every subscriber.
// The most recent outcome is replayed to subscribers that attach later.
type Coordinator struct {
	clientID    string
	redirectURI string
	scopes      []string

	launcher  Launcher
	urls      URLBuilder
	exchanger TokenExchanger
	sessions  session.Store
	states    StateStore

	broadcaster     *broadcast.Broadcaster[outcome.Outcome]
	pool            *pond.WorkerPool
	exchangeTimeout time.Duration
	exchangeWorkers int
	loginTimeout    time.Duration
	nowTime         func() time.Time
	closed          atomic.Bool

	mu         sync.Mutex
	pending    *AuthRequest
	slot       *resultSlot
	watchdog   *time.Timer
	latest     outcome.Outcome
	generation uint64 // bumped whenever pending or latest changes
}

// CoordinatorOption defines a function type to modify the Coordinator instance.
type CoordinatorOption func(*Coordinator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

// WithScopes adds scopes to every request on top of openid and offline_access.
func WithScopes(scopes ...string) CoordinatorOption {
	return func(c *Coordinator) {
		c.scopes = mergeScopes(c.scopes, scopes)
	}
}

// WithLoginTimeout resolves a pending request as timed out once d has elapsed.
// Zero, the default, leaves requests pending until they are completed or cancelled.
func WithLoginTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.loginTimeout = d
	}
}

// WithExchangeTimeout bounds each token exchange. Zero disables the bound.
func WithExchangeTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.exchangeTimeout = d
	}
}

// WithExchangeWorkers sets the number of background workers used by the Async deliveries.
func WithExchangeWorkers(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.exchangeWorkers = n
		}
	}
}

// NewCoordinator creates a coordinator for the given OAuth client.
func NewCoordinator(clientID, redirectURI string, collaborators Collaborators, options ...CoordinatorOption) (*Coordinator, error) {
	if clientID == "" {
		return nil, errors.New("[NewCoordinator] clientID is required")
	}
	if redirectURI == "" {
		return nil, errors.New("[NewCoordinator] redirectURI is required")
	}
	if collaborators.Launcher == nil {
		return nil, errors.New("[NewCoordinator] Launcher is required")
	}
	if collaborators.URLs == nil {
		return nil, errors.New("[NewCoordinator] URLBuilder is required")
	}
	if collaborators.Exchanger == nil {
		return nil, errors.New("[NewCoordinator] TokenExchanger is required")
	}

	c := &Coordinator{
		clientID:        clientID,
		redirectURI:     redirectURI,
		scopes:          []string{ScopeOpenID, ScopeOfflineAccess},
		launcher:        collaborators.Launcher,
		urls:            collaborators.URLs,
		exchanger:       collaborators.Exchanger,
		sessions:        collaborators.Sessions,
		states:          collaborators.States,
		broadcaster:     broadcast.New[outcome.Outcome](),
		exchangeTimeout: defaultExchangeTimeout,
		exchangeWorkers: defaultExchangeWorkers,
		nowTime:         time.Now,
	}

	for _, opt := range options {
		opt(c)
	}
	c.pool = pond.New(c.exchangeWorkers, exchangeQueueSize)

	return c, nil
}

// Begin starts a login. It records a new AuthRequest and asks the launcher to present
// the authorization URL; it does not wait for the user.
//
// The request is saved to the StateStore, when one is configured, before the launcher
// runs. It replaces any request an earlier process left behind.
//
// If a request is already pending Begin returns a *outcome.Failure with reason
// AuthInProgress and leaves the pending request untouched. A launcher error resolves
// the new request as failed and is returned as an Other failure.
func (c *Coordinator) Begin(ctx context.Context, cfg RequestConfig) (*AuthRequest, error) {
	c.mu.Lock()
	if c.pending != nil {
		pendingID := c.pending.ID
		c.mu.Unlock()
		log.Debug().Str("pending_request", pendingID).Msg("Login requested while another is in progress")
		return nil, outcome.InProgress().Err()
	}

	req := c.newRequest(cfg)
	slot := newResultSlot(req.ID)
	c.pending = req
	c.slot = slot
	c.generation++
	if c.loginTimeout > 0 {
		c.watchdog = time.AfterFunc(c.loginTimeout, func() { c.expire(slot) })
	}
	c.mu.Unlock()

	log.Info().Str("request_id", req.ID).Str("scope", req.Scope()).Msg("Authorization started")

	c.saveState(ctx, req, slot)

	if err := c.launcher.Present(ctx, req); err != nil {
		o := outcome.OtherError(fmt.Errorf("%w: %w", errors.ErrLaunchFailed, err))
		log.Err(err).Str("request_id", req.ID).Msg("Failed to present authorization URL")
		c.resolve(slot, o)
		return nil, o.Err()
	}
	return req, nil
}

// DeliverAutomaticResult completes the pending request with a redirect routed back
// by the platform. rawResponse is the redirect URL or its query string.
//
// The token exchange runs on the calling goroutine; call it off the UI goroutine or
// use DeliverAutomaticResultAsync. A response that does not belong to the pending
// request is discarded: it yields Other("mismatched request") to the caller and is
// never published.
func (c *Coordinator) DeliverAutomaticResult(ctx context.Context, rawResponse string) outcome.Outcome {
	return c.deliver(ctx, sourceAutomatic, rawResponse)
}

// DeliverManualResult is DeliverAutomaticResult for a redirect observed manually,
// typically a deep link handed over by a redirect.Handler.
func (c *Coordinator) DeliverManualResult(ctx context.Context, queryString string) outcome.Outcome {
	return c.deliver(ctx, sourceManual, queryString)
}

// DeliverAutomaticResultAsync runs DeliverAutomaticResult on a background worker. The
// returned channel receives exactly one outcome.
func (c *Coordinator) DeliverAutomaticResultAsync(ctx context.Context, rawResponse string) <-chan outcome.Outcome {
	return c.async(func() outcome.Outcome { return c.DeliverAutomaticResult(ctx, rawResponse) })
}

// DeliverManualResultAsync runs DeliverManualResult on a background worker.
func (c *Coordinator) DeliverManualResultAsync(ctx context.Context, queryString string) <-chan outcome.Outcome {
	return c.async(func() outcome.Outcome { return c.DeliverManualResult(ctx, queryString) })
}

// Cancel resolves the pending request as CancelledByUser, for a user-agent that was
// dismissed without redirecting. It reports whether a pending request was cancelled;
// cancelling after the request has been claimed by a delivery is a no-op.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	slot := c.slot
	c.mu.Unlock()

	if slot == nil {
		return false
	}
	if !c.resolve(slot, outcome.Cancelled()) {
		return false
	}
	log.Debug().Str("request_id", slot.requestID).Msg("Authorization flow canceled by user")
	return true
}

// CurrentOutcome returns the last published outcome without blocking.
func (c *Coordinator) CurrentOutcome() (outcome.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, !c.latest.IsZero()
}

// Pending returns a copy of the pending request, if any.
func (c *Coordinator) Pending() (AuthRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return AuthRequest{}, false
	}
	return *c.pending, true
}

// WaitForOutcome blocks until the pending request is resolved or timeout elapses
// (zero waits forever). With nothing pending it returns the last published outcome.
func (c *Coordinator) WaitForOutcome(timeout time.Duration) (outcome.Outcome, bool) {
	c.mu.Lock()
	slot := c.slot
	latest := c.latest
	c.mu.Unlock()

	if slot == nil {
		return latest, !latest.IsZero()
	}
	return slot.wait(timeout)
}

// Subscribe attaches an observer of outcomes. observerID identifies the consumer
// across re-subscriptions: an outcome it has already received is not replayed.
func (c *Coordinator) Subscribe(observerID string, fn func(outcome.Outcome)) *broadcast.Subscription[outcome.Outcome] {
	return c.broadcaster.Subscribe(observerID, fn)
}

// Unsubscribe detaches an observer. It is safe to call from inside the observer.
func (c *Coordinator) Unsubscribe(sub *broadcast.Subscription[outcome.Outcome]) {
	c.broadcaster.Unsubscribe(sub)
}

// Resume publishes the last persisted session as Success, or NoSession when there is
// none. Storage errors are logged and reported as NoSession. While a login is pending
// Resume returns AuthInProgress and publishes nothing.
//
// A login that begins or resolves while the session is being loaded supersedes it:
// Resume then publishes nothing and returns AuthInProgress or the newer outcome.
func (c *Coordinator) Resume(ctx context.Context) outcome.Outcome {
	c.mu.Lock()
	pending := c.pending != nil
	generation := c.generation
	c.mu.Unlock()
	if pending {
		return outcome.InProgress()
	}

	o := c.loadSession(ctx)

	c.mu.Lock()
	if c.pending != nil || c.generation != generation {
		pending, latest := c.pending != nil, c.latest
		c.mu.Unlock()
		log.Debug().Msg("Resume superseded by a newer authorization")
		if pending {
			return outcome.InProgress()
		}
		return latest
	}
	deliver := c.stageLocked(o)
	c.mu.Unlock()

	deliver()
	return o
}

// Logout removes the persisted session and publishes NoSession.
func (c *Coordinator) Logout(ctx context.Context) error {
	var err error
	if c.sessions != nil {
		if err = c.sessions.Remove(ctx, c.clientID); err != nil {
			log.Err(err).Msg("Logout: Failed to remove stored session")
			err = fmt.Errorf("failed to remove session: %w", err)
		}
	}
	c.publish(outcome.NoLoggedInUser())
	return err
}

// Close stops the background workers. Pending deliveries finish first.
func (c *Coordinator) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	if c.watchdog != nil {
		c.watchdog.Stop()
	}
	c.mu.Unlock()
	c.pool.StopAndWait()
}

func (c *Coordinator) newRequest(cfg RequestConfig) *AuthRequest {
	req := &AuthRequest{
		ID:           uuid.New().String(),
		Nonce:        uuid.New().String(),
		CodeVerifier: oauth2.GenerateVerifier(),
		RedirectURI:  c.redirectURI,
		Scopes:       mergeScopes(c.scopes, cfg.ExtraScopes),
		LoginHint:    cfg.LoginHint,
		ACRValues:    cfg.ACRValues,
		CreatedAt:    c.nowTime(),
	}
	req.AuthURL = c.urls.AuthCodeURL(req)
	return req
}

func (c *Coordinator) deliver(ctx context.Context, source, raw string) outcome.Outcome {
	resp, err := ParseResponse(raw)
	if err != nil {
		log.Warn().Err(err).Str("source", source).Msg("Discarding unparseable authorization response")
		return outcome.OtherError(err)
	}

	req, slot := c.pendingRequest(ctx)
	if req == nil || resp.State != req.ID {
		log.Warn().Str("source", source).Str("state", resp.State).Msg("Discarding authorization response for a request that is not pending")
		return outcome.OtherError(errors.ErrMismatchedRequest)
	}
	if !slot.claim() {
		log.Debug().Str("source", source).Str("request_id", req.ID).Msg("Authorization request already resolved")
		return outcome.OtherError(errors.ErrAlreadyResolved)
	}

	log.Debug().Str("source", source).Str("request_id", req.ID).Msg("Authorization response received")
	o := c.exchange(ctx, req, resp)
	c.complete(slot, o)
	return o
}

// exchange turns a matched authorization response into an outcome. Failures are
// reported once and never retried: retrying is a new Begin.
func (c *Coordinator) exchange(ctx context.Context, req *AuthRequest, resp Response) outcome.Outcome {
	if resp.Error != "" {
		if resp.Error == errorAccessDenied {
			return outcome.Cancelled()
		}
		return outcome.OtherError(fmt.Errorf("%w: %s", errors.ErrAuthErrorResponse, resp.describeError()))
	}
	if resp.Code == "" {
		return outcome.OtherError(errors.ErrMissingCode)
	}

	exchangeCtx := ctx
	if c.exchangeTimeout > 0 {
		var cancel context.CancelFunc
		exchangeCtx, cancel = context.WithTimeout(ctx, c.exchangeTimeout)
		defer cancel()
	}

	s, err := c.exchanger.Exchange(exchangeCtx, Grant{
		Code:         resp.Code,
		CodeVerifier: req.CodeVerifier,
		Nonce:        req.Nonce,
		RedirectURI:  req.RedirectURI,
	})
	if err != nil {
		log.Err(err).Str("request_id", req.ID).Msg("Token exchange failed")
		if !errors.Is(err, errors.ErrTokenExchange) {
			err = fmt.Errorf("%w: %w", errors.ErrTokenExchange, err)
		}
		return outcome.OtherError(err)
	}

	if c.sessions != nil {
		if err := c.sessions.Save(ctx, s); err != nil {
			log.Err(err).Str("session_id", s.ID).Msg("Failed to persist session")
		}
	}
	return outcome.Success(s)
}

// resolve claims slot and completes it with o. It reports whether the claim was won.
func (c *Coordinator) resolve(slot *resultSlot, o outcome.Outcome) bool {
	if !slot.claim() {
		return false
	}
	c.complete(slot, o)
	return true
}

// complete fills a claimed slot, retires its request and publishes the outcome. The
// request is retired before publishing so observers may Begin again from their callback.
func (c *Coordinator) complete(slot *resultSlot, o outcome.Outcome) {
	slot.fill(o)

	c.mu.Lock()
	if c.slot == slot {
		c.pending = nil
		c.slot = nil
		if c.watchdog != nil {
			c.watchdog.Stop()
			c.watchdog = nil
		}
	}
	deliver := c.stageLocked(o)
	c.mu.Unlock()

	c.removeState(context.Background(), slot.requestID)

	log.Info().Str("request_id", slot.requestID).Stringer("outcome", o).Msg("Authorization resolved")
	deliver()
}

// saveState persists req. If req was resolved while it was being saved, the saved
// copy is removed again so a later process cannot restore it.
func (c *Coordinator) saveState(ctx context.Context, req *AuthRequest, slot *resultSlot) {
	if c.states == nil {
		return
	}
	if err := c.states.Save(ctx, c.clientID, *req); err != nil {
		log.Err(err).Str("request_id", req.ID).Msg("Failed to persist authorization request")
		return
	}

	c.mu.Lock()
	resolved := c.slot != slot
	c.mu.Unlock()
	if resolved {
		c.removeState(ctx, req.ID)
	}
}

func (c *Coordinator) removeState(ctx context.Context, requestID string) {
	if c.states == nil {
		return
	}
	if err := c.states.Remove(ctx, c.clientID, requestID); err != nil {
		log.Err(err).Str("request_id", requestID).Msg("Failed to remove persisted authorization request")
	}
}

// pendingRequest returns the pending request and its slot. With nothing pending in
// memory it restores the request saved by an earlier process, if it has not expired.
func (c *Coordinator) pendingRequest(ctx context.Context) (*AuthRequest, *resultSlot) {
	c.mu.Lock()
	req, slot := c.pending, c.slot
	c.mu.Unlock()
	if req != nil || c.states == nil {
		return req, slot
	}

	stored, err := c.states.Load(ctx, c.clientID)
	if err != nil {
		if !errors.Is(err, errors.ErrNoPendingRequest) {
			log.Err(err).Msg("Failed to load persisted authorization request")
		}
		return nil, nil
	}

	var remaining time.Duration
	if c.loginTimeout > 0 {
		remaining = stored.CreatedAt.Add(c.loginTimeout).Sub(c.nowTime())
		if remaining <= 0 {
			log.Warn().Str("request_id", stored.ID).Msg("Discarding expired persisted authorization request")
			c.removeState(ctx, stored.ID)
			return nil, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		restored := stored
		slot := newResultSlot(restored.ID)
		c.pending = &restored
		c.slot = slot
		c.generation++
		if remaining > 0 {
			c.watchdog = time.AfterFunc(remaining, func() { c.expire(slot) })
		}
		log.Info().Str("request_id", restored.ID).Msg("Restored persisted authorization request")
	}
	return c.pending, c.slot
}

func (c *Coordinator) expire(slot *resultSlot) {
	if c.resolve(slot, outcome.OtherError(errors.ErrAuthTimeout)) {
		log.Warn().Str("request_id", slot.requestID).Dur("timeout", c.loginTimeout).Msg("Authorization timed out")
	}
}

func (c *Coordinator) publish(o outcome.Outcome) {
	c.mu.Lock()
	deliver := c.stageLocked(o)
	c.mu.Unlock()
	deliver()
}

// stageLocked records o as the latest outcome and returns the function that delivers
// it to subscribers. Call it with c.mu held and the result after releasing c.mu.
func (c *Coordinator) stageLocked(o outcome.Outcome) func() {
	c.latest = o
	c.generation++
	return c.broadcaster.Stage(o)
}

func (c *Coordinator) loadSession(ctx context.Context) outcome.Outcome {
	if c.sessions == nil {
		return outcome.NoLoggedInUser()
	}

	s, err := c.sessions.Load(ctx, c.clientID)
	if err != nil {
		if !errors.Is(err, errors.ErrSessionNotFound) {
			log.Err(err).Msg("Failed to load stored session")
		}
		return outcome.NoLoggedInUser()
	}
	log.Debug().Str("session_id", s.ID).Msg("Resumed stored session")
	return outcome.Success(s)
}

func (c *Coordinator) async(fn func() outcome.Outcome) <-chan outcome.Outcome {
	result := make(chan outcome.Outcome, 1)
	if c.closed.Load() || !c.pool.TrySubmit(func() { result <- fn() }) {
		result <- outcome.OtherError(fmt.Errorf("%w: coordinator is closed or busy", errors.ErrUnsupported))
	}
	return result
}
