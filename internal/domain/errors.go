package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrFilmNotFound indicates the requested film does not exist in the catalog
	ErrFilmNotFound = errors.New("film not found")

	// ErrCatalogOffline indicates the catalog API is unreachable
	ErrCatalogOffline = errors.New("catalog is unreachable")

	// ErrNotMounted indicates a player control was used before a source was mounted
	ErrNotMounted = errors.New("player has no mounted source")

	// ErrUnsupportedFormat indicates neither the adaptive engine nor the surface can play a source
	ErrUnsupportedFormat = errors.New("unsupported video format")

	// ErrFullscreenUnavailable indicates every fullscreen method failed
	ErrFullscreenUnavailable = errors.New("fullscreen is not available")

	// ErrStorageUnavailable indicates the session store cannot be used
	ErrStorageUnavailable = errors.New("session storage is unavailable")
)
