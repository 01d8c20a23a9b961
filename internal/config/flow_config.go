package config

import "time"

type FlowConfig interface {
	GetStateTTL() time.Duration
	GetTwoFactorHandoffTTL() time.Duration
	GetStateTokenLength() int
	GetMaxPendingFlows() int
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
}

type Flow struct{}

var _ FlowConfig = Flow{}

func (Flow) GetStateTTL() time.Duration {
	return 10 * time.Minute
}

func (Flow) GetTwoFactorHandoffTTL() time.Duration {
	return 5 * time.Minute
}

func (Flow) GetStateTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

// GetMaxPendingFlows bounds the in-memory state store. Liveness safeguard
// only; flow correctness never depends on this limit.
func (Flow) GetMaxPendingFlows() int {
	return 10000
}

func (Flow) GetDefaultAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (Flow) GetDefaultRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}
