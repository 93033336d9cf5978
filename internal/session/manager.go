// Package session owns the in-memory authentication state of the console:
// who is signed in, with which token, and how that state is rebuilt from
// the token store at startup.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/events"
	"github.com/concerttix/console/internal/observability"
	"github.com/concerttix/console/internal/tokenstore"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// AuthAPI is the slice of the REST client the manager calls.
type AuthAPI interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.AuthResult, error)
	Profile(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.User, error)
}

// Options configures a Manager.
type Options struct {
	Logger     *zap.Logger
	Metrics    observability.MetricsRecorder
	Dispatcher events.Dispatcher
	Now        func() time.Time
}

// Manager is the single source of truth for the signed-in user.
//
// Mutating operations are serialized by mu and run their network call on a
// context detached from the caller's cancellation, so an abandoned request
// still settles state. Reads go through stateMu only, which lets the HTTP
// client read the token and report a 401 while a mutation holds mu.
type Manager struct {
	api        AuthAPI
	store      *tokenstore.Store
	logger     *zap.Logger
	metrics    observability.MetricsRecorder
	dispatcher events.Dispatcher
	now        func() time.Time

	mu       sync.Mutex
	initOnce sync.Once
	refresh  singleflight.Group

	stateMu sync.RWMutex
	state   State
	user    *domain.User
	token   string
	loading bool
}

// NewManager builds a manager in the Uninitialized state. It reports
// Loading until Initialize settles.
func NewManager(api AuthAPI, store *tokenstore.Store, opts Options) *Manager {
	m := &Manager{
		api:        api,
		store:      store,
		logger:     observability.OrNop(opts.Logger).Named("session"),
		metrics:    opts.Metrics,
		dispatcher: opts.Dispatcher,
		now:        opts.Now,
		state:      StateUninitialized,
		loading:    true,
	}
	if m.metrics == nil {
		m.metrics = observability.NopMetrics{}
	}
	if m.dispatcher == nil {
		m.dispatcher = events.Nop{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return Snapshot{
		User:    m.user.Clone(),
		Token:   m.token,
		Loading: m.loading,
		State:   m.state,
	}
}

// CurrentToken returns the in-memory token, falling back to the persisted
// one, or "" when there is none.
func (m *Manager) CurrentToken(ctx context.Context) string {
	m.stateMu.RLock()
	token := m.token
	m.stateMu.RUnlock()
	if token != "" {
		return token
	}
	return m.store.Token(ctx)
}

// Initialize rebuilds the session from the token store. Its effect runs
// once per Manager; later calls return the settled snapshot without
// touching the network.
func (m *Manager) Initialize(ctx context.Context) Snapshot {
	m.initOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.rehydrateLocked(context.WithoutCancel(ctx))
	})
	return m.Snapshot()
}

func (m *Manager) rehydrateLocked(ctx context.Context) {
	m.transition(ctx, StateLoading, nil, "", "startup")
	defer m.setLoading(false)

	record, err := m.store.Load(ctx)
	switch {
	case err != nil:
		m.logger.Warn("discarding stored session", zap.Error(err))
		m.settleAnonymousLocked(ctx, "corrupt_record")
		return
	case record == nil:
		m.settleAnonymousLocked(ctx, "no_record")
		return
	case record.Expired(m.now()):
		m.logger.Info("stored session token has expired", zap.Int64("user_id", record.User.ID))
		m.settleAnonymousLocked(ctx, "token_expired")
		return
	}

	m.stateMu.Lock()
	m.token = record.Token
	m.stateMu.Unlock()

	user, err := m.api.Profile(ctx)
	if err != nil {
		m.logger.Info("stored session rejected", zap.Error(err))
		m.settleAnonymousLocked(ctx, "verification_failed")
		return
	}

	if err := m.store.SaveUser(ctx, user); err != nil {
		m.logger.Warn("could not refresh stored profile", zap.Error(err))
	}
	m.transition(ctx, StateAuthenticated, user, record.Token, "rehydrated")
}

// settleAnonymousLocked purges storage and memory and ends Anonymous.
func (m *Manager) settleAnonymousLocked(ctx context.Context, reason string) {
	if err := m.store.Purge(ctx); err != nil {
		m.logger.Error("failed to purge credential record", zap.Error(err))
	}
	m.transition(ctx, StateAnonymous, nil, "", reason)
}

// Login signs in with email and password. Any previous session is cleared
// before the attempt.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.User, error) {
	m.Initialize(ctx)
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked(ctx, "login")
	return m.authenticateLocked(ctx, "login", func() (*domain.AuthResult, error) {
		return m.api.Login(ctx, domain.Credentials{Email: email, Password: password})
	})
}

// Register creates an account and signs it in. Unlike Login it does not
// clear an existing session before the call.
func (m *Manager) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	m.Initialize(ctx)
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.authenticateLocked(ctx, "register", func() (*domain.AuthResult, error) {
		return m.api.Register(ctx, reg)
	})
}

func (m *Manager) authenticateLocked(ctx context.Context, op string, call func() (*domain.AuthResult, error)) (*domain.User, error) {
	m.setLoading(true)
	defer m.setLoading(false)

	res, err := call()
	if err == nil {
		err = validateAuthResult(res)
	}
	if err == nil {
		err = m.store.Save(ctx, res.AccessToken, res.User)
	}
	if err != nil {
		m.logger.Info(op+" failed", zap.Error(err))
		m.clearLocked(ctx, op+"_failed")
		return nil, presentable(op, err)
	}

	if m.Snapshot().State == StateAuthenticated {
		m.transition(ctx, StateAnonymous, nil, "", "replaced")
	}
	m.transition(ctx, StateAuthenticated, res.User, res.AccessToken, op)
	return res.User.Clone(), nil
}

func validateAuthResult(res *domain.AuthResult) error {
	if res == nil || res.User == nil || res.AccessToken == "" {
		return apperrors.NewInvalidResponse("login response is missing the user or token", nil)
	}
	if err := res.User.Validate(); err != nil {
		return apperrors.NewInvalidResponse("login response carries an invalid user", err)
	}
	return nil
}

// Logout clears memory and storage. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(ctx, "logout")
}

// clearLocked purges storage and, when signed in, moves to Anonymous.
func (m *Manager) clearLocked(ctx context.Context, reason string) {
	if err := m.store.Purge(ctx); err != nil {
		m.logger.Error("failed to purge credential record", zap.Error(err))
	}
	m.stateMu.RLock()
	state := m.state
	m.stateMu.RUnlock()

	if state == StateAuthenticated {
		m.transition(ctx, StateAnonymous, nil, "", reason)
		return
	}
	m.stateMu.Lock()
	m.user, m.token = nil, ""
	m.stateMu.Unlock()
}

// UpdateProfile applies patch and stores the server's copy of the user.
// The token is left alone.
func (m *Manager) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.User, error) {
	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.Snapshot()
	if snap.State != StateAuthenticated {
		return nil, apperrors.NewUnauthorized("sign in to update your profile")
	}

	user, err := m.api.UpdateProfile(ctx, patch)
	if err != nil {
		return nil, presentable("update profile", err)
	}
	if err := m.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	m.stateMu.Lock()
	stillCurrent := m.token == snap.Token && m.state == StateAuthenticated
	if stillCurrent {
		m.user = user.Clone()
	}
	m.stateMu.Unlock()
	if !stillCurrent {
		return nil, apperrors.NewSessionExpired("")
	}

	m.publish(ctx, events.EventSessionProfileUpdated, user, events.SessionPayload{
		From: StateAuthenticated.String(), To: StateAuthenticated.String(), Reason: "profile_updated", Name: user.Name,
	})
	return user.Clone(), nil
}

// Refresh re-fetches the profile with the current token. Any failure ends
// the session. Concurrent callers share a single request.
func (m *Manager) Refresh(ctx context.Context) (*domain.User, error) {
	m.Initialize(ctx)
	ctx = context.WithoutCancel(ctx)
	v, err, _ := m.refresh.Do("refresh", func() (interface{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.refreshLocked(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.User).Clone(), nil
}

func (m *Manager) refreshLocked(ctx context.Context) (*domain.User, error) {
	snap := m.Snapshot()
	if snap.State != StateAuthenticated {
		m.clearLocked(ctx, "refresh_failed")
		return nil, apperrors.NewSessionExpired("")
	}

	user, err := m.api.Profile(ctx)
	if err != nil {
		m.logger.Info("refresh failed; ending session", zap.Error(err))
		m.clearLocked(ctx, "refresh_failed")
		return nil, presentable("refresh", err)
	}
	if err := m.store.SaveUser(ctx, user); err != nil {
		m.clearLocked(ctx, "refresh_failed")
		return nil, err
	}

	m.stateMu.Lock()
	m.user = user.Clone()
	m.stateMu.Unlock()
	return user, nil
}

// Invalidate ends the session that sent sentToken after the API answered
// 401. A 401 for a token that is no longer current is ignored, so a late
// response cannot sign out a newer session. It does not take the
// operation lock because it runs inside in-flight calls.
func (m *Manager) Invalidate(ctx context.Context, sentToken string) {
	if sentToken == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	purged, err := m.store.PurgeIfToken(ctx, sentToken)
	if err != nil {
		m.logger.Error("failed to purge credential record", zap.Error(err))
	}

	m.stateMu.Lock()
	if m.token != sentToken {
		m.stateMu.Unlock()
		if purged {
			m.logger.Info("purged stored record for rejected token", observability.TokenField(sentToken))
		}
		return
	}
	from := m.state
	user := m.user
	m.user, m.token = nil, ""
	if from == StateAuthenticated || from == StateLoading {
		m.state = StateAnonymous
	}
	to := m.state
	m.stateMu.Unlock()

	m.logger.Info("session expired", observability.TokenField(sentToken), zap.String("from", from.String()))
	if from != to {
		m.metrics.RecordSessionTransition(to.String())
	}
	m.publish(ctx, events.EventSessionExpired, user, events.SessionPayload{
		From: from.String(), To: to.String(), Reason: "unauthorized",
	})
}

// transition commits a new state with its user and token, counts it and
// publishes the matching event. Re-entering the current state only
// replaces the user and token.
func (m *Manager) transition(ctx context.Context, next State, user *domain.User, token string, reason string) {
	m.stateMu.Lock()
	from := m.state
	prevUser := m.user
	if from == next {
		m.user = user.Clone()
		m.token = token
		m.stateMu.Unlock()
		return
	}
	if !CanTransition(from, next) {
		m.stateMu.Unlock()
		m.logger.DPanic("illegal session transition",
			zap.String("from", from.String()), zap.String("to", next.String()))
		return
	}
	m.state = next
	m.user = user.Clone()
	m.token = token
	m.stateMu.Unlock()

	m.metrics.RecordSessionTransition(next.String())
	m.logger.Debug("session transition",
		zap.String("from", from.String()), zap.String("to", next.String()), zap.String("reason", reason))

	payload := events.SessionPayload{From: from.String(), To: next.String(), Reason: reason}
	switch next {
	case StateAuthenticated:
		payload.Name = user.Name
		m.publish(ctx, events.EventSessionAuthenticated, user, payload)
	case StateAnonymous:
		m.publish(ctx, events.EventSessionCleared, prevUser, payload)
	}
}

func (m *Manager) setLoading(loading bool) {
	m.stateMu.Lock()
	m.loading = loading
	m.stateMu.Unlock()
}

func (m *Manager) publish(ctx context.Context, eventType events.EventType, user *domain.User, payload events.SessionPayload) {
	if err := m.dispatcher.Publish(ctx, events.New(eventType, user, payload)); err != nil {
		m.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

// presentable makes sure a failure carries a message fit for the operator.
func presentable(op string, err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return &apperrors.DomainError{
		Code:       apperrors.CodeInternal,
		Message:    op + " failed, please try again",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
