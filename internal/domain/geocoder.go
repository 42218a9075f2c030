package domain

import "context"

// ReverseGeocoder resolves a coordinate to a normalized address for one service.
type ReverseGeocoder interface {
	// Service names the backend; it scopes cache keys and rate limits.
	Service() Service

	// ReverseGeocode converts coordinates to place details. A service that is
	// reachable but has no answer returns an empty address and a nil error.
	ReverseGeocode(ctx context.Context, coord Coordinate) (NormalizedAddress, error)
}

// CredentialChecker is implemented by geocoders that need a credential. The
// check runs on every lookup, before any cache is consulted.
type CredentialChecker interface {
	CheckCredentials() error
}
