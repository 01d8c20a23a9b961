package authflow

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/overbright/go-identity-service/provider"
)

// FlowKind discriminates what an authorization attempt is for.
type FlowKind string

const (
	FlowSignUp      FlowKind = "sign_up"
	FlowSignIn      FlowKind = "sign_in"
	FlowPermission  FlowKind = "permission"
	FlowReauthorize FlowKind = "reauthorize"
)

// ParseFlowKind validates a wire-format flow kind.
func ParseFlowKind(raw string) (FlowKind, error) {
	switch FlowKind(raw) {
	case FlowSignUp, FlowSignIn, FlowPermission, FlowReauthorize:
		return FlowKind(raw), nil
	}
	return "", errors.Wrapf(ErrMissingData, "unknown flow kind %q", raw)
}

// FlowState is one in-flight authorization attempt, stored under its opaque
// state token between the redirect out and the provider callback. It is a
// single tagged type: AccountID and RequestedScopes are only set for
// permission and reauthorize flows.
type FlowState struct {
	Provider       string    `json:"provider"`
	Kind           FlowKind  `json:"kind"`
	CallbackTarget string    `json:"callback_target"`
	CreatedAt      time.Time `json:"created_at"`

	// Permission / reauthorize flows only
	AccountID       string   `json:"account_id,omitempty"`
	RequestedScopes []string `json:"requested_scopes,omitempty"`
}

// TwoFactorHandoff bridges "provider login succeeded" and "second factor not
// yet satisfied". It holds the already-exchanged provider tokens so the
// sign-in can be finished without a second exchange.
type TwoFactorHandoff struct {
	AccountID string             `json:"account_id"`
	Provider  string             `json:"provider"`
	Tokens    provider.TokenPair `json:"tokens"`
	CreatedAt time.Time          `json:"created_at"`
}

func encodeFlowState(fs *FlowState) ([]byte, error) {
	payload, err := json.Marshal(fs)
	if err != nil {
		return nil, errors.Wrap(err, "encode flow state")
	}
	return payload, nil
}

func decodeFlowState(payload []byte) (*FlowState, error) {
	var fs FlowState
	if err := json.Unmarshal(payload, &fs); err != nil {
		return nil, errors.Wrap(err, "decode flow state")
	}
	return &fs, nil
}

func encodeHandoff(h *TwoFactorHandoff) ([]byte, error) {
	payload, err := json.Marshal(h)
	if err != nil {
		return nil, errors.Wrap(err, "encode two-factor handoff")
	}
	return payload, nil
}

func decodeHandoff(payload []byte) (*TwoFactorHandoff, error) {
	var h TwoFactorHandoff
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, errors.Wrap(err, "decode two-factor handoff")
	}
	return &h, nil
}
