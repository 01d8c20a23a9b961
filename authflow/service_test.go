package authflow_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/overbright/go-identity-service/accounts"
	fakeaccountrepo "github.com/overbright/go-identity-service/accounts/repofake"
	"github.com/overbright/go-identity-service/authflow"
	"github.com/overbright/go-identity-service/provider"
	"github.com/overbright/go-identity-service/provider/providerfake"
	"github.com/overbright/go-identity-service/scopes"
	"github.com/overbright/go-identity-service/statestore"
	"github.com/overbright/go-identity-service/token"
)

const (
	testProviderName   = "google"
	testCallbackTarget = "https://app.example.com/cb"
	testEmail          = "x@y.com"
	testSubject        = "provider-subject-1"
	testCode           = "code123"
	testAccessToken    = "AT"
	testRefreshToken   = "RT"
	scopeEmail         = "https://www.googleapis.com/auth/userinfo.email"
	scopeProfile       = "https://www.googleapis.com/auth/userinfo.profile"
	scopeContacts      = "https://www.googleapis.com/auth/contacts.readonly"
)

// testFixture holds all orchestrator dependencies
type testFixture struct {
	accountRepo *fakeaccountrepo.FakeAccountRepo
	client      *providerfake.FakeClient
	states      *statestore.InMemoryStore
	tokens      *token.Manager
	ledger      *scopes.Ledger
	service     *authflow.Service
	now         time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		accountRepo: fakeaccountrepo.NewFakeAccountRepo(),
		client:      providerfake.New(testProviderName),
		now:         time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }

	f.states = statestore.NewInMemoryStore(statestore.WithNowFunc(nowFunc))
	f.tokens = token.New(token.NewHMACSigner("fixture-secret"), token.WithNowFunc(nowFunc))
	f.ledger = scopes.NewLedger(f.accountRepo)

	service, err := authflow.NewService(authflow.Deps{
		Accounts:  f.accountRepo,
		Providers: map[string]provider.Client{testProviderName: f.client},
		States:    f.states,
		Tokens:    f.tokens,
		Scopes:    f.ledger,
	}, authflow.WithNowFunc(nowFunc))
	require.NoError(t, err)
	f.service = service

	return f
}

// stubExchange scripts a successful code exchange plus tokeninfo for the
// resulting access token.
func (f *testFixture) stubExchange(code string, pair *provider.TokenPair, grantedScopes []string) {
	f.client.StubExchange(code, pair)
	f.client.StubTokenInfo(pair.AccessToken, &provider.TokenMetadata{
		Scopes:    grantedScopes,
		ExpiresIn: time.Hour,
		Subject:   pair.User.Subject,
	})
}

func defaultTokenPair() *provider.TokenPair {
	return &provider.TokenPair{
		AccessToken:  testAccessToken,
		RefreshToken: testRefreshToken,
		ExpiresIn:    time.Hour,
		User: provider.UserInfo{
			Subject:       testSubject,
			Email:         testEmail,
			Name:          "Jane Doe",
			EmailVerified: true,
		},
	}
}

func (f *testFixture) createAccount(t *testing.T, account accounts.Account) string {
	t.Helper()
	require.NoError(t, f.accountRepo.Create(&account))
	return account.ID
}

func (f *testFixture) initiate(t *testing.T, req authflow.InitiateRequest) *authflow.InitiateResult {
	t.Helper()
	result, err := f.service.Initiate(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, result.StateToken)
	require.Contains(t, result.AuthorizationURL, result.StateToken)
	return result
}

func TestSignUpFlow(t *testing.T) {
	f := setupTestFixture(t)
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail, scopeProfile})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignUp,
		CallbackTarget: testCallbackTarget,
	})

	result, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignUp,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	require.True(t, result.Session.Primary)
	require.Empty(t, result.TwoFactorToken)

	// The session access token wraps the provider access token
	details, err := f.tokens.VerifyAccessToken(result.Session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.AccountID, details.AccountID)
	require.Equal(t, testAccessToken, details.ProviderAccessToken)

	account, err := f.accountRepo.GetByEmail(testEmail)
	require.NoError(t, err)
	require.Equal(t, accounts.KindGoogle, account.Kind)
	require.Equal(t, testSubject, account.ProviderUserID)
	require.ElementsMatch(t, []string{scopeEmail, scopeProfile}, account.GrantedScopes)

	// Replaying the consumed state token fails as INVALID_STATE
	_, err = f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignUp,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.ErrorIs(t, err, authflow.ErrInvalidState)
}

func TestSignUpExistingEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.createAccount(t, accounts.Account{Email: testEmail, Kind: accounts.KindGoogle})
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignUp,
		CallbackTarget: testCallbackTarget,
	})

	_, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignUp,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.ErrorIs(t, err, authflow.ErrUserExists)
}

func TestStateCheckedBeforeAccountExistence(t *testing.T) {
	f := setupTestFixture(t)
	f.createAccount(t, accounts.Account{Email: testEmail, Kind: accounts.KindGoogle})
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	// A forged state must not leak whether the email exists
	_, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignUp,
		Code:       testCode,
		StateToken: "forged-state-token",
	})
	require.ErrorIs(t, err, authflow.ErrInvalidState)
	require.NotErrorIs(t, err, authflow.ErrUserExists)
}

func TestStateExpiry(t *testing.T) {
	f := setupTestFixture(t)
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignUp,
		CallbackTarget: testCallbackTarget,
	})

	f.now = f.now.Add(10*time.Minute + time.Second)

	_, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignUp,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.ErrorIs(t, err, authflow.ErrInvalidState)
}

func TestFlowKindMismatchIsInvalidState(t *testing.T) {
	f := setupTestFixture(t)
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignUp,
		CallbackTarget: testCallbackTarget,
	})

	_, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignIn,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.ErrorIs(t, err, authflow.ErrInvalidState)
}

func TestMissingRefreshTokenIsTerminal(t *testing.T) {
	f := setupTestFixture(t)
	pair := defaultTokenPair()
	pair.RefreshToken = ""
	f.stubExchange(testCode, pair, []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignUp,
		CallbackTarget: testCallbackTarget,
	})

	_, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignUp,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.ErrorIs(t, err, authflow.ErrTokenInvalid)

	// No account is created when the exchange is unusable
	_, err = f.accountRepo.GetByEmail(testEmail)
	require.Error(t, err)
}

func TestSignInUserNotFound(t *testing.T) {
	f := setupTestFixture(t)
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
	})

	_, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignIn,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.ErrorIs(t, err, authflow.ErrUserNotFound)
}

func TestSignInLocalAccountCollision(t *testing.T) {
	f := setupTestFixture(t)
	hash, err := accounts.HashPassword("password123")
	require.NoError(t, err)
	f.createAccount(t, accounts.Account{Email: testEmail, Kind: accounts.KindLocal, PasswordHash: hash})
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
	})

	_, err = f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignIn,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.ErrorIs(t, err, authflow.ErrAuthFailed)
}

func TestSignInSuccessReportsMissingScopes(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:          testEmail,
		Kind:           accounts.KindGoogle,
		ProviderUserID: testSubject,
		GrantedScopes:  []string{scopeEmail, scopeProfile, scopeContacts},
	})
	// The fresh token no longer carries the contacts scope
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail, scopeProfile})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
	})

	result, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignIn,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	require.Equal(t, accountID, result.AccountID)
	require.Equal(t, []string{scopeContacts}, result.MissingScopes)
}

func TestTwoFactorGate(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:            testEmail,
		Kind:             accounts.KindGoogle,
		ProviderUserID:   testSubject,
		TwoFactorEnabled: true,
	})
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
	})

	result, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignIn,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.NoError(t, err)

	// Never a session directly: only a handoff token
	require.Nil(t, result.Session)
	require.NotEmpty(t, result.TwoFactorToken)
	require.Equal(t, accountID, result.AccountID)

	completed, err := f.service.CompleteTwoFactor(context.Background(), result.TwoFactorToken, true)
	require.NoError(t, err)
	require.NotNil(t, completed.Session)
	require.True(t, completed.Session.Primary)

	details, err := f.tokens.VerifyAccessToken(completed.Session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, accountID, details.AccountID)
	require.Equal(t, testAccessToken, details.ProviderAccessToken)

	// The handoff is consumed
	_, err = f.service.CompleteTwoFactor(context.Background(), result.TwoFactorToken, true)
	require.ErrorIs(t, err, authflow.ErrInvalidState)
}

func TestTwoFactorRejection(t *testing.T) {
	f := setupTestFixture(t)
	f.createAccount(t, accounts.Account{
		Email:            testEmail,
		Kind:             accounts.KindGoogle,
		TwoFactorEnabled: true,
	})
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
	})
	result, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignIn,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.NoError(t, err)

	_, err = f.service.CompleteTwoFactor(context.Background(), result.TwoFactorToken, false)
	require.ErrorIs(t, err, authflow.ErrAuthFailed)

	// The handoff was discarded on rejection; retrying cannot succeed
	_, err = f.service.CompleteTwoFactor(context.Background(), result.TwoFactorToken, true)
	require.ErrorIs(t, err, authflow.ErrInvalidState)
}

func TestTwoFactorHandoffExpiry(t *testing.T) {
	f := setupTestFixture(t)
	f.createAccount(t, accounts.Account{
		Email:            testEmail,
		Kind:             accounts.KindGoogle,
		TwoFactorEnabled: true,
	})
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
	})
	result, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignIn,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.NoError(t, err)

	f.now = f.now.Add(5*time.Minute + time.Second)

	_, err = f.service.CompleteTwoFactor(context.Background(), result.TwoFactorToken, true)
	require.ErrorIs(t, err, authflow.ErrInvalidState)
}

func TestPermissionFlowOwnershipMismatch(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:          testEmail,
		Kind:           accounts.KindGoogle,
		ProviderUserID: testSubject,
		GrantedScopes:  []string{scopeEmail},
	})
	// The exchanged token belongs to a different provider account
	pair := defaultTokenPair()
	pair.User.Subject = "someone-else"
	f.client.StubExchange(testCode, pair)
	f.client.StubTokenInfo(pair.AccessToken, &provider.TokenMetadata{
		Scopes:  []string{scopeEmail, scopeContacts},
		Subject: "someone-else",
	})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowPermission,
		CallbackTarget: testCallbackTarget,
		AccountID:      accountID,
		ScopeNames:     scopeContacts,
	})

	_, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowPermission,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.ErrorIs(t, err, authflow.ErrAuthFailed)

	// No scope mutation happened
	account, err := f.accountRepo.GetByID(accountID)
	require.NoError(t, err)
	require.Equal(t, []string{scopeEmail}, account.GrantedScopes)
}

func TestPermissionFlowIssuesNonPrimarySession(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:          testEmail,
		Kind:           accounts.KindGoogle,
		ProviderUserID: testSubject,
		GrantedScopes:  []string{scopeEmail},
	})
	f.stubExchange(testCode, defaultTokenPair(), []string{scopeEmail, scopeContacts})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowPermission,
		CallbackTarget: testCallbackTarget,
		AccountID:      accountID,
		ScopeNames:     `["` + scopeContacts + `"]`,
	})

	result, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowPermission,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	require.False(t, result.Session.Primary)

	account, err := f.accountRepo.GetByID(accountID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{scopeEmail, scopeContacts}, account.GrantedScopes)
}

func TestReauthorizeAllowsMissingRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:          testEmail,
		Kind:           accounts.KindGoogle,
		ProviderUserID: testSubject,
		GrantedScopes:  []string{scopeEmail, scopeContacts},
	})
	pair := defaultTokenPair()
	pair.RefreshToken = "" // Providers skip the refresh token on re-consent
	f.stubExchange(testCode, pair, []string{scopeEmail, scopeContacts})

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowReauthorize,
		CallbackTarget: testCallbackTarget,
		AccountID:      accountID,
	})

	result, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowReauthorize,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	require.Empty(t, result.Session.RefreshToken)
}

func TestInitiateValidation(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Initiate(ctx, authflow.InitiateRequest{
		Provider:       "unknown-provider",
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
	})
	require.ErrorIs(t, err, authflow.ErrMissingData)

	_, err = f.service.Initiate(ctx, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: "not a url",
	})
	require.ErrorIs(t, err, authflow.ErrMissingData)

	_, err = f.service.Initiate(ctx, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
		ScopeNames:     `["broken`,
	})
	require.ErrorIs(t, err, authflow.ErrMissingData)

	_, err = f.service.Initiate(ctx, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowPermission,
		CallbackTarget: testCallbackTarget,
		ScopeNames:     scopeContacts,
	})
	require.ErrorIs(t, err, authflow.ErrMissingData) // account id missing
}

func TestProviderErrorPropagates(t *testing.T) {
	f := setupTestFixture(t)
	providerErr := provider.NewError(http.StatusBadGateway, errors.New("upstream down"))
	f.client.FailWith(providerErr)

	initiated := f.initiate(t, authflow.InitiateRequest{
		Provider:       testProviderName,
		Kind:           authflow.FlowSignIn,
		CallbackTarget: testCallbackTarget,
	})

	_, err := f.service.HandleCallback(context.Background(), authflow.CallbackRequest{
		Provider:   testProviderName,
		Kind:       authflow.FlowSignIn,
		Code:       testCode,
		StateToken: initiated.StateToken,
	})
	require.Error(t, err)
	require.True(t, provider.IsRetryable(err))
}

func TestRefresh(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:          testEmail,
		Kind:           accounts.KindGoogle,
		ProviderUserID: testSubject,
	})

	refreshToken, err := f.tokens.IssueRefreshToken(accountID, testRefreshToken)
	require.NoError(t, err)
	f.client.StubRefresh(testRefreshToken, &provider.TokenPair{
		AccessToken: "AT-2",
		ExpiresIn:   time.Hour,
	})

	session, err := f.service.Refresh(context.Background(), refreshToken)
	require.NoError(t, err)
	require.Equal(t, refreshToken, session.RefreshToken)

	details, err := f.tokens.VerifyAccessToken(session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, accountID, details.AccountID)
	require.Equal(t, "AT-2", details.ProviderAccessToken)
}

func TestRefreshRotation(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:          testEmail,
		Kind:           accounts.KindGoogle,
		ProviderUserID: testSubject,
	})

	nowFunc := func() time.Time { return f.now }
	service, err := authflow.NewService(authflow.Deps{
		Accounts:  f.accountRepo,
		Providers: map[string]provider.Client{testProviderName: f.client},
		States:    f.states,
		Tokens:    f.tokens,
		Scopes:    f.ledger,
	}, authflow.WithNowFunc(nowFunc), authflow.WithRefreshRotation(true))
	require.NoError(t, err)

	refreshToken, err := f.tokens.IssueRefreshToken(accountID, testRefreshToken)
	require.NoError(t, err)
	f.client.StubRefresh(testRefreshToken, &provider.TokenPair{AccessToken: "AT-2", ExpiresIn: time.Hour})

	session, err := service.Refresh(context.Background(), refreshToken)
	require.NoError(t, err)
	require.NotEqual(t, refreshToken, session.RefreshToken)

	// The presented refresh token is revoked, the rotated one verifies
	_, err = f.tokens.VerifyRefreshToken(refreshToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)
	details, err := f.tokens.VerifyRefreshToken(session.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, testRefreshToken, details.ProviderRefreshToken)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{Email: testEmail, Kind: accounts.KindGoogle})

	accessToken, err := f.tokens.IssueAccessToken(accountID, testAccessToken, time.Hour)
	require.NoError(t, err)

	_, err = f.service.Refresh(context.Background(), accessToken)
	require.ErrorIs(t, err, authflow.ErrTokenInvalid)
}

func TestRevokeInvalidatesLocallyDespiteProviderFailure(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:          testEmail,
		Kind:           accounts.KindGoogle,
		ProviderUserID: testSubject,
	})

	accessToken, err := f.tokens.IssueAccessToken(accountID, testAccessToken, time.Hour)
	require.NoError(t, err)
	refreshToken, err := f.tokens.IssueRefreshToken(accountID, testRefreshToken)
	require.NoError(t, err)

	f.client.FailRevokeWith(provider.NewError(http.StatusInternalServerError, errors.New("revoke down")))

	err = f.service.Revoke(context.Background(), accountID, accessToken, refreshToken)
	require.Error(t, err) // Provider failure is surfaced...

	// ...but local invalidation happened regardless
	_, err = f.tokens.VerifyAccessToken(accessToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)
	_, err = f.tokens.VerifyRefreshToken(refreshToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestRevokeCallsProviderForBothTokens(t *testing.T) {
	f := setupTestFixture(t)
	accountID := f.createAccount(t, accounts.Account{
		Email:          testEmail,
		Kind:           accounts.KindGoogle,
		ProviderUserID: testSubject,
	})

	accessToken, err := f.tokens.IssueAccessToken(accountID, testAccessToken, time.Hour)
	require.NoError(t, err)
	refreshToken, err := f.tokens.IssueRefreshToken(accountID, testRefreshToken)
	require.NoError(t, err)

	require.NoError(t, f.service.Revoke(context.Background(), accountID, accessToken, refreshToken))
	require.ElementsMatch(t, []string{testAccessToken, testRefreshToken}, f.client.Revoked())
}
