package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/overbright/go-identity-service/authflow"
	"github.com/overbright/go-identity-service/provider"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Provider-boundary error codes that sit outside the flow taxonomy.
const (
	codeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	codeInternal            = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type initiateRequest struct {
	Provider       string `json:"provider"`
	FlowKind       string `json:"flowKind"`
	CallbackTarget string `json:"callbackTarget"`
	AccountID      string `json:"accountId,omitempty"`
	ScopeNames     string `json:"scopeNames,omitempty"`
}

type initiateResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	StateToken       string `json:"stateToken"`
}

type callbackResponse struct {
	Session          *authflow.Session `json:"session,omitempty"`
	PendingTwoFactor string            `json:"pendingTwoFactor,omitempty"`
	MissingScopes    []string          `json:"missingScopes,omitempty"`
}

func (s *Server) InitiateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req initiateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFlowError(w, authflow.ErrMissingData)
			return
		}

		kind, err := authflow.ParseFlowKind(req.FlowKind)
		if err != nil {
			writeFlowError(w, err)
			return
		}

		result, err := s.flows.Initiate(r.Context(), authflow.InitiateRequest{
			Provider:       req.Provider,
			Kind:           kind,
			CallbackTarget: req.CallbackTarget,
			AccountID:      req.AccountID,
			ScopeNames:     req.ScopeNames,
		})
		if err != nil {
			writeFlowError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, initiateResponse{
			AuthorizationURL: result.AuthorizationURL,
			StateToken:       result.StateToken,
		})
	}
}

func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue covers both query params (GET) and form_post (POST)
		if errParam := r.FormValue("error"); errParam != "" {
			log.Info().Str("error", errParam).Str("description", r.FormValue("error_description")).
				Msg("provider reported authorization error")
			writeFlowError(w, authflow.ErrAuthFailed)
			return
		}

		stateToken := r.FormValue("stateToken")
		if stateToken == "" {
			stateToken = r.FormValue("state") // Standard OAuth redirect parameter
		}

		kind, err := authflow.ParseFlowKind(r.FormValue("flowKind"))
		if err != nil {
			writeFlowError(w, err)
			return
		}

		result, err := s.flows.HandleCallback(r.Context(), authflow.CallbackRequest{
			Provider:   r.FormValue("provider"),
			Kind:       kind,
			Code:       r.FormValue("code"),
			StateToken: stateToken,
		})
		if err != nil {
			writeFlowError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, callbackResponse{
			Session:          result.Session,
			PendingTwoFactor: result.TwoFactorToken,
			MissingScopes:    result.MissingScopes,
		})
	}
}

func (s *Server) TwoFactorHandler() http.HandlerFunc {
	type request struct {
		HandoffToken string `json:"handoffToken"`
		Verified     bool   `json:"verified"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFlowError(w, authflow.ErrMissingData)
			return
		}

		result, err := s.flows.CompleteTwoFactor(r.Context(), req.HandoffToken, req.Verified)
		if err != nil {
			writeFlowError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, callbackResponse{
			Session:       result.Session,
			MissingScopes: result.MissingScopes,
		})
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFlowError(w, authflow.ErrMissingData)
			return
		}

		session, err := s.flows.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeFlowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, callbackResponse{Session: session})
	}
}

func (s *Server) RevokeHandler() http.HandlerFunc {
	type request struct {
		AccountID    string `json:"accountId"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFlowError(w, authflow.ErrMissingData)
			return
		}

		if err := s.flows.Revoke(r.Context(), req.AccountID, req.AccessToken, req.RefreshToken); err != nil {
			// Local invalidation already happened; surface the provider
			// failure so the client can decide whether to retry
			writeFlowError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.tokens.GetJWKS()
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
				Code:    codeInternal,
				Message: "no public key set available",
			}})
			return
		}
		writeJSON(w, http.StatusOK, jwks)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response body")
	}
}

// writeFlowError maps an orchestrator error to its stable client-facing
// code and HTTP status.
func writeFlowError(w http.ResponseWriter, err error) {
	if code, ok := authflow.Code(err); ok {
		writeJSON(w, statusForCode(code), errorResponse{Error: errorBody{
			Code:    code,
			Message: err.Error(),
		}})
		return
	}

	if provider.IsRetryable(err) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errorBody{
			Code:    codeProviderUnavailable,
			Message: "provider unavailable, retry later",
		}})
		return
	}

	var pe *provider.Error
	if errors.As(err, &pe) {
		// Terminal provider rejection: bad, expired or replayed code
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    authflow.CodeTokenInvalid,
			Message: "provider rejected the request",
		}})
		return
	}

	log.Err(err).Msg("unhandled flow error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
		Code:    codeInternal,
		Message: "internal error",
	}})
}

func statusForCode(code string) int {
	switch code {
	case authflow.CodeInvalidState, authflow.CodeMissingData:
		return http.StatusBadRequest
	case authflow.CodeTokenInvalid, authflow.CodeAuthFailed:
		return http.StatusUnauthorized
	case authflow.CodeUserExists:
		return http.StatusConflict
	case authflow.CodeUserNotFound:
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
