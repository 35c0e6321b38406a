package domain

import "time"

// Store handles local persistence (BoltDB + memory)
type Store interface {
	// === Catalog snapshot ===
	GetFilms() ([]*Film, time.Time, bool)
	SaveFilms(films []*Film, fetchedAt time.Time) error
	InvalidateFilms()

	// === Resume positions ===
	GetProgress(filmID string) (Progress, bool)
	SaveProgress(p Progress) error
	ClearProgress(filmID string)
	AllProgress() []Progress

	Close() error
}

// SessionStore is a key-value store scoped to one run of the application.
// Records are expected to disappear when the session ends
type SessionStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}
