// Package authflow is the OAuth authentication orchestrator: it drives
// sign-up, sign-in, permission-grant and reauthorization flows end to end,
// from issuing the provider authorization URL to minting the first-party
// session that wraps the provider tokens.
package authflow

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/overbright/go-identity-service/accounts"
	apperrors "github.com/overbright/go-identity-service/internal/errors"
	"github.com/overbright/go-identity-service/provider"
	"github.com/overbright/go-identity-service/scopes"
	"github.com/overbright/go-identity-service/statestore"
	"github.com/overbright/go-identity-service/token"
)

const (
	defaultStateTTL   = 10 * time.Minute
	defaultHandoffTTL = 5 * time.Minute
)

// defaultSignInScopes is the scope set requested for sign-up and sign-in
// flows; permission and reauthorize flows add their own requested scopes.
var defaultSignInScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Deps holds all collaborator dependencies for the Service
type Deps struct {
	Accounts  accounts.Repo
	Providers map[string]provider.Client // keyed by provider name
	States    statestore.Store
	Tokens    *token.Manager
	Scopes    *scopes.Ledger
}

// Service is the authorization flow state machine. It is the only component
// that knows about all the others; the HTTP layer talks exclusively to it.
type Service struct {
	deps          Deps
	logger        zerolog.Logger
	stateTTL      time.Duration
	handoffTTL    time.Duration
	signInScopes  []string
	rotateRefresh bool
	nowFunc       func() time.Time
}

type ServiceOption func(*Service)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithStateTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.stateTTL = ttl
	}
}

func WithHandoffTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.handoffTTL = ttl
	}
}

func WithSignInScopes(scopeSet []string) ServiceOption {
	return func(s *Service) {
		s.signInScopes = scopeSet
	}
}

// WithRefreshRotation makes Refresh issue a new refresh token and revoke
// the presented one. Hardening option, off by default.
func WithRefreshRotation(rotate bool) ServiceOption {
	return func(s *Service) {
		s.rotateRefresh = rotate
	}
}

// NewService initializes the orchestrator with its collaborators.
func NewService(deps Deps, options ...ServiceOption) (*Service, error) {
	if deps.Accounts == nil {
		return nil, errors.New("[NewService] Accounts repo is required")
	}
	if len(deps.Providers) == 0 {
		return nil, errors.New("[NewService] at least one provider is required")
	}
	if deps.States == nil {
		return nil, errors.New("[NewService] state store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if deps.Scopes == nil {
		return nil, errors.New("[NewService] scope ledger is required")
	}

	s := &Service{
		deps:         deps,
		logger:       zerolog.Nop(),
		stateTTL:     defaultStateTTL,
		handoffTTL:   defaultHandoffTTL,
		signInScopes: defaultSignInScopes,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// InitiateRequest starts a flow. ScopeNames is accepted as a JSON array or
// a comma-separated string.
type InitiateRequest struct {
	Provider       string
	Kind           FlowKind
	CallbackTarget string
	AccountID      string
	ScopeNames     string
}

type InitiateResult struct {
	AuthorizationURL string
	StateToken       string
}

// CallbackRequest is the provider redirect landing back at the service.
type CallbackRequest struct {
	Provider   string
	Kind       FlowKind
	Code       string
	StateToken string
}

// Session is a pair of first-party signed tokens. Non-primary sessions
// (permission and reauthorize flows) do not replace the caller's currently
// active account selection.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Primary      bool   `json:"primary"`
}

// CallbackResult is one of: a session, or a pending two-factor handoff.
// MissingScopes is reported non-fatally alongside a sign-in session.
type CallbackResult struct {
	AccountID      string
	Session        *Session
	TwoFactorToken string
	MissingScopes  []string
}

// Initiate validates the request, stores a FlowState under a fresh opaque
// token and returns the provider authorization URL to redirect the user to.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	client, err := s.providerFor(req.Provider)
	if err != nil {
		return nil, err
	}
	if _, err := ParseFlowKind(string(req.Kind)); err != nil {
		return nil, err
	}
	if err := validateCallbackTarget(req.CallbackTarget); err != nil {
		return nil, err
	}

	requested, err := scopes.ParseNames(req.ScopeNames)
	if err != nil {
		return nil, errors.Wrap(ErrMissingData, err.Error())
	}

	fs := &FlowState{
		Provider:       req.Provider,
		Kind:           req.Kind,
		CallbackTarget: req.CallbackTarget,
		CreatedAt:      s.nowFunc(),
	}

	scopeSet := append([]string(nil), s.signInScopes...)
	switch req.Kind {
	case FlowPermission, FlowReauthorize:
		if req.AccountID == "" {
			return nil, errors.Wrap(ErrMissingData, "account id is required for permission flows")
		}
		if len(requested) == 0 && req.Kind == FlowReauthorize {
			// Re-request everything on record when no explicit scopes given
			requested, err = s.deps.Scopes.Granted(req.AccountID)
			if err != nil {
				return nil, errors.Wrap(err, "Initiate Granted")
			}
		}
		if len(requested) == 0 {
			return nil, errors.Wrap(ErrMissingData, "scope names are required for permission flows")
		}
		fs.AccountID = req.AccountID
		fs.RequestedScopes = requested
		scopeSet = append(scopeSet, requested...)
	default:
		if len(requested) > 0 {
			scopeSet = append(scopeSet, requested...)
		}
	}

	payload, err := encodeFlowState(fs)
	if err != nil {
		return nil, err
	}
	stateToken, err := s.deps.States.Put(ctx, statestore.KindAuthFlow, payload, s.stateTTL)
	if err != nil {
		return nil, errors.Wrap(err, "Initiate Put")
	}

	return &InitiateResult{
		AuthorizationURL: client.AuthCodeURL(stateToken, scopeSet),
		StateToken:       stateToken,
	}, nil
}

// HandleCallback consumes the flow state, exchanges the authorization code
// and finishes the flow according to its kind. State validity is always
// checked first: a forged or expired state must never leak whether the
// target email exists.
func (s *Service) HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	payload, err := s.deps.States.Take(ctx, statestore.KindAuthFlow, req.StateToken)
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return nil, ErrInvalidState
		}
		return nil, errors.Wrap(err, "HandleCallback Take")
	}
	fs, err := decodeFlowState(payload)
	if err != nil {
		return nil, ErrInvalidState
	}
	if fs.Provider != req.Provider || fs.Kind != req.Kind {
		return nil, ErrInvalidState
	}

	client, err := s.providerFor(req.Provider)
	if err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, errors.Wrap(ErrMissingData, "authorization code is required")
	}

	pair, err := client.ExchangeCode(ctx, req.Code)
	if err != nil {
		return nil, errors.Wrap(err, "HandleCallback ExchangeCode")
	}

	// Without a refresh token the service could never refresh or revoke
	// what it is about to grant. Reauthorize flows are exempt: the account
	// already holds one from the original consent.
	if pair.RefreshToken == "" && fs.Kind != FlowReauthorize {
		return nil, errors.Wrap(ErrTokenInvalid, "provider returned no refresh token")
	}

	switch fs.Kind {
	case FlowSignUp:
		return s.finishSignUp(ctx, client, pair)
	case FlowSignIn:
		return s.finishSignIn(ctx, client, pair)
	case FlowPermission, FlowReauthorize:
		return s.finishPermission(ctx, client, fs, pair)
	}
	return nil, errors.Wrapf(ErrMissingData, "unknown flow kind %q", fs.Kind)
}

// CompleteTwoFactor is invoked by the second-factor verifier once the
// challenge resolves. The handoff is consumed either way; a failed
// challenge terminates the flow.
func (s *Service) CompleteTwoFactor(ctx context.Context, handoffToken string, verified bool) (*CallbackResult, error) {
	payload, err := s.deps.States.Take(ctx, statestore.KindTwoFactor, handoffToken)
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return nil, ErrInvalidState
		}
		return nil, errors.Wrap(err, "CompleteTwoFactor Take")
	}
	if !verified {
		return nil, errors.Wrap(ErrAuthFailed, "second factor rejected")
	}

	handoff, err := decodeHandoff(payload)
	if err != nil {
		return nil, ErrInvalidState
	}
	client, err := s.providerFor(handoff.Provider)
	if err != nil {
		return nil, err
	}
	account, err := s.deps.Accounts.GetByID(handoff.AccountID)
	if err != nil {
		return nil, s.mapAccountErr(err)
	}

	return s.issueSignInSession(ctx, client, account, &handoff.Tokens)
}

// Refresh trades a valid session refresh token for a fresh access token
// bound to the same account.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	details, err := s.deps.Tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	account, err := s.deps.Accounts.GetByID(details.AccountID)
	if err != nil {
		return nil, s.mapAccountErr(err)
	}
	client, err := s.providerFor(string(account.Kind))
	if err != nil {
		return nil, err
	}

	pair, err := client.RefreshAccess(ctx, details.ProviderRefreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "Refresh RefreshAccess")
	}

	accessToken, err := s.deps.Tokens.IssueAccessToken(account.ID, pair.AccessToken, pair.ExpiresIn)
	if err != nil {
		return nil, errors.Wrap(err, "Refresh IssueAccessToken")
	}

	session := &Session{AccessToken: accessToken, RefreshToken: refreshToken, Primary: true}
	if s.rotateRefresh {
		// Providers rarely return a new refresh token on refresh; keep the
		// wrapped one unless replaced.
		providerRefresh := details.ProviderRefreshToken
		if pair.RefreshToken != "" {
			providerRefresh = pair.RefreshToken
		}
		rotated, err := s.deps.Tokens.IssueRefreshToken(account.ID, providerRefresh)
		if err != nil {
			return nil, errors.Wrap(err, "Refresh IssueRefreshToken")
		}
		s.deps.Tokens.Revoke(refreshToken)
		session.RefreshToken = rotated
	}
	return session, nil
}

// Revoke invalidates a session pair. Local invalidation always happens;
// provider-side failures are reported but never block it.
func (s *Service) Revoke(ctx context.Context, accountID, accessToken, refreshToken string) error {
	// Unwrap provider tokens before the local blacklist makes the session
	// tokens unverifiable.
	var providerTokens []string
	if details, err := s.deps.Tokens.VerifyAccessToken(accessToken); err == nil && details.AccountID == accountID {
		providerTokens = append(providerTokens, details.ProviderAccessToken)
	}
	if details, err := s.deps.Tokens.VerifyRefreshToken(refreshToken); err == nil && details.AccountID == accountID {
		if details.ProviderRefreshToken != "" {
			providerTokens = append(providerTokens, details.ProviderRefreshToken)
		}
	}

	s.deps.Tokens.Revoke(accessToken, refreshToken)

	account, err := s.deps.Accounts.GetByID(accountID)
	if err != nil {
		return s.mapAccountErr(err)
	}
	client, err := s.providerFor(string(account.Kind))
	if err != nil {
		return err
	}

	var firstErr error
	for _, t := range providerTokens {
		if err := client.Revoke(ctx, t); err != nil {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("provider-side revocation failed")
			if firstErr == nil {
				firstErr = errors.Wrap(err, "Revoke provider")
			}
		}
	}
	return firstErr
}

func (s *Service) finishSignUp(ctx context.Context, client provider.Client, pair *provider.TokenPair) (*CallbackResult, error) {
	if pair.User.Email == "" {
		return nil, errors.Wrap(ErrMissingData, "provider returned no email")
	}

	if _, err := s.deps.Accounts.GetByEmail(pair.User.Email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, apperrors.ErrAccountNotFound) {
		return nil, errors.Wrap(err, "finishSignUp GetByEmail")
	}

	account := &accounts.Account{
		Email:          pair.User.Email,
		Name:           pair.User.Name,
		AvatarURL:      pair.User.AvatarURL,
		Kind:           accounts.Kind(client.Name()),
		ProviderUserID: pair.User.Subject,
		CreatedAt:      s.nowFunc(),
	}
	if err := s.deps.Accounts.Create(account); err != nil {
		return nil, errors.Wrap(err, "finishSignUp Create")
	}

	if _, err := s.recordGrantedScopes(ctx, client, account.ID, pair.AccessToken); err != nil {
		return nil, err
	}

	session, err := s.issueSession(account.ID, pair, true)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{AccountID: account.ID, Session: session}, nil
}

func (s *Service) finishSignIn(ctx context.Context, client provider.Client, pair *provider.TokenPair) (*CallbackResult, error) {
	account, err := s.deps.Accounts.GetByEmail(pair.User.Email)
	if err != nil {
		return nil, s.mapAccountErr(err)
	}

	// A local-password account colliding on email is an authentication
	// failure, never a silent account link.
	if account.Kind != accounts.Kind(client.Name()) {
		return nil, errors.Wrapf(ErrAuthFailed, "account kind %q cannot sign in via %s", account.Kind, client.Name())
	}

	if account.TwoFactorEnabled {
		handoff := &TwoFactorHandoff{
			AccountID: account.ID,
			Provider:  client.Name(),
			Tokens:    *pair,
			CreatedAt: s.nowFunc(),
		}
		payload, err := encodeHandoff(handoff)
		if err != nil {
			return nil, err
		}
		handoffToken, err := s.deps.States.Put(ctx, statestore.KindTwoFactor, payload, s.handoffTTL)
		if err != nil {
			return nil, errors.Wrap(err, "finishSignIn Put handoff")
		}
		return &CallbackResult{AccountID: account.ID, TwoFactorToken: handoffToken}, nil
	}

	return s.issueSignInSession(ctx, client, account, pair)
}

// issueSignInSession is the shared sign-in tail, reached directly when the
// account has no second factor and via CompleteTwoFactor when it does.
func (s *Service) issueSignInSession(ctx context.Context, client provider.Client, account *accounts.Account, pair *provider.TokenPair) (*CallbackResult, error) {
	granted, err := s.recordGrantedScopes(ctx, client, account.ID, pair.AccessToken)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(account.ID, pair, true)
	if err != nil {
		return nil, err
	}

	// Missing scopes are advisory: the session is still issued
	missing, err := s.deps.Scopes.Missing(account.ID, granted)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", account.ID).Msg("failed to compute missing scopes")
		missing = nil
	}

	return &CallbackResult{AccountID: account.ID, Session: session, MissingScopes: missing}, nil
}

func (s *Service) finishPermission(ctx context.Context, client provider.Client, fs *FlowState, pair *provider.TokenPair) (*CallbackResult, error) {
	account, err := s.deps.Accounts.GetByID(fs.AccountID)
	if err != nil {
		return nil, s.mapAccountErr(err)
	}

	owned, err := client.VerifyOwnership(ctx, pair.AccessToken, account.ProviderUserID)
	if err != nil {
		return nil, errors.Wrap(err, "finishPermission VerifyOwnership")
	}
	if !owned {
		// Likely account-takeover attempt: the user granted permissions
		// while signed in to a different third-party account.
		s.logger.Warn().
			Str("account_id", account.ID).
			Str("provider", client.Name()).
			Str("flow", string(fs.Kind)).
			Msg("token ownership mismatch in permission flow")
		return nil, errors.Wrap(ErrAuthFailed, "token belongs to a different provider account")
	}

	if _, err := s.recordGrantedScopes(ctx, client, account.ID, pair.AccessToken); err != nil {
		return nil, err
	}

	// Non-primary: a permission grant never replaces the caller's active
	// account selection.
	session, err := s.issueSession(account.ID, pair, false)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{AccountID: account.ID, Session: session}, nil
}

// recordGrantedScopes fetches what the token is actually good for and
// unions it into the ledger, returning the provider's current scope set.
func (s *Service) recordGrantedScopes(ctx context.Context, client provider.Client, accountID, accessToken string) ([]string, error) {
	meta, err := client.TokenInfo(ctx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "recordGrantedScopes TokenInfo")
	}
	if err := s.deps.Scopes.RecordGranted(accountID, meta.Scopes); err != nil {
		return nil, errors.Wrap(err, "recordGrantedScopes RecordGranted")
	}
	return meta.Scopes, nil
}

func (s *Service) issueSession(accountID string, pair *provider.TokenPair, primary bool) (*Session, error) {
	accessToken, err := s.deps.Tokens.IssueAccessToken(accountID, pair.AccessToken, pair.ExpiresIn)
	if err != nil {
		return nil, errors.Wrap(err, "issueSession IssueAccessToken")
	}

	session := &Session{AccessToken: accessToken, Primary: primary}
	if pair.RefreshToken != "" {
		refreshToken, err := s.deps.Tokens.IssueRefreshToken(accountID, pair.RefreshToken)
		if err != nil {
			return nil, errors.Wrap(err, "issueSession IssueRefreshToken")
		}
		session.RefreshToken = refreshToken
	}
	return session, nil
}

func (s *Service) providerFor(name string) (provider.Client, error) {
	client, ok := s.deps.Providers[name]
	if !ok {
		return nil, errors.Wrapf(ErrMissingData, "unsupported provider %q", name)
	}
	return client, nil
}

func (s *Service) mapAccountErr(err error) error {
	if errors.Is(err, apperrors.ErrAccountNotFound) {
		return ErrUserNotFound
	}
	return err
}

func validateCallbackTarget(target string) error {
	if target == "" {
		return errors.Wrap(ErrMissingData, "callback target is required")
	}
	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrap(ErrMissingData, "callback target must be an absolute http(s) URL")
	}
	return nil
}
