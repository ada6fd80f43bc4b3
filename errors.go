package metro

import "github.com/pkg/errors"

var (
	// ErrMetroClosed means there is no service at the requested time, or
	// the last train cannot be reached at some intermediate hop.
	ErrMetroClosed = errors.New("metro is closed or the last train is unreachable")

	// ErrUnknownStation means a name or alias did not resolve.
	ErrUnknownStation = errors.New("unknown station")

	// ErrNoRoute means the graph has no path between the endpoints.
	// Impossible on the current topology, retained for future growth.
	ErrNoRoute = errors.New("no route")

	// ErrStoreUnavailable means the persistent store is missing where it
	// is required.
	ErrStoreUnavailable = errors.New("store not initialized")

	// ErrExpiredCallback means a callback payload references a route
	// fingerprint that is no longer held in memory.
	ErrExpiredCallback = errors.New("route expired")
)
