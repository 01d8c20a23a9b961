package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth flow routes
	RouteAuthInitiate  = "/api/auth/initiate"
	RouteAuthCallback  = "/api/auth/callback"
	RouteAuthTwoFactor = "/api/auth/two-factor"
	RouteAuthRefresh   = "/api/auth/refresh"
	RouteAuthRevoke    = "/api/auth/revoke"

	// Discovery routes
	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteHealth        = "/healthz"
)
