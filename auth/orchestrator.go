package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/adeeb897/soup-kitchen-scheduler/models"
)

// accessDeniedMessage is surfaced when a signed-in Google account is not on
// the admin allowlist.
const accessDeniedMessage = "Access denied – Admin privileges required"

// Orchestrator composes the OAuth client and token manager into a single
// auth state machine. It holds exactly one current AuthState and broadcasts
// every transition synchronously to registered listeners.
type Orchestrator struct {
	mu        sync.Mutex
	client    *Client
	tokens    *TokenManager
	state     models.AuthState
	listeners []func(models.AuthState)
	redirect  func(url string)
	logger    zerolog.Logger
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRedirect injects the navigation function Login uses to send the user
// to the provider.
func WithRedirect(fn func(url string)) OrchestratorOption {
	return func(o *Orchestrator) { o.redirect = fn }
}

// WithOrchestratorLogger overrides the orchestrator's logger.
func WithOrchestratorLogger(l zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator in the Unauthenticated state.
func NewOrchestrator(client *Client, tokens *TokenManager, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		tokens:   tokens,
		state:    models.AuthState{},
		redirect: func(string) {},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Subscribe registers a listener for state transitions. Listeners are called
// synchronously, in registration order, with the new state.
func (o *Orchestrator) Subscribe(fn func(models.AuthState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// CurrentState returns the current auth state.
func (o *Orchestrator) CurrentState() models.AuthState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Initialize establishes the auth state at startup. A callback URL triggers
// the full handshake; otherwise a held valid token is re-validated; otherwise
// the state is Unauthenticated.
func (o *Orchestrator) Initialize(ctx context.Context, currentURL string) {
	switch {
	case o.client.IsCallbackURL(currentURL):
		o.completeHandshake(ctx, currentURL)
	case o.tokens.HasValidToken():
		o.setState(models.AuthState{IsLoading: true})
		o.validateAndSettle(ctx)
	default:
		o.setState(models.AuthState{})
	}
}

// Login starts the authorization flow: it builds the provider URL and hands
// it to the injected redirect function. A setup failure moves the state to
// Error and is returned to the caller.
func (o *Orchestrator) Login(ctx context.Context) error {
	o.setState(models.AuthState{IsLoading: true})

	authURL, err := o.client.BuildAuthorizationURL(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to start login")
		o.setState(models.AuthState{Error: err.Error()})
		return err
	}

	o.redirect(authURL)
	return nil
}

// Logout revokes tokens best-effort and always lands in Unauthenticated.
func (o *Orchestrator) Logout(ctx context.Context) {
	o.setState(models.AuthState{IsLoading: true})
	o.tokens.Logout(ctx)
	o.setState(models.AuthState{})
}

// HandleCallback runs the callback handshake and reports whether it ended in
// an authenticated state, for use by route guards.
func (o *Orchestrator) HandleCallback(ctx context.Context, currentURL string) bool {
	o.completeHandshake(ctx, currentURL)
	return o.CurrentState().IsAuthenticated
}

func (o *Orchestrator) completeHandshake(ctx context.Context, currentURL string) {
	o.setState(models.AuthState{IsLoading: true})

	res, err := o.client.ProcessCallback(ctx, currentURL)
	if err != nil {
		o.logger.Warn().Err(err).Msg("callback processing failed")
		o.setState(models.AuthState{Error: err.Error()})
		return
	}

	tokens, err := o.client.ExchangeCodeForTokens(ctx, res.Code, res.CodeVerifier, res.RedirectURI)
	if err != nil {
		o.logger.Warn().Err(err).Msg("token exchange failed")
		o.setState(models.AuthState{Error: err.Error()})
		return
	}

	o.tokens.StoreTokens(tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn, tokens.TokenType, tokens.Scope)
	o.validateAndSettle(ctx)
}

// validateAndSettle validates the held token and moves to Authenticated or,
// on any failure or a non-admin account, clears tokens and moves to Error.
func (o *Orchestrator) validateAndSettle(ctx context.Context) {
	user, err := o.tokens.ValidateToken(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("token validation failed")
		o.tokens.ClearTokens()
		o.setState(models.AuthState{Error: err.Error()})
		return
	}

	if !user.IsAdmin {
		o.logger.Warn().Str("email", user.Email).Msg("non-admin account rejected")
		o.tokens.ClearTokens()
		o.setState(models.AuthState{Error: accessDeniedMessage})
		return
	}

	o.setState(models.AuthState{IsAuthenticated: true, User: user})
}

func (o *Orchestrator) setState(s models.AuthState) {
	o.mu.Lock()
	o.state = s
	listeners := append([]func(models.AuthState){}, o.listeners...)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
