package service

import (
	"log/slog"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/scroll"
)

// SessionService resets locally kept state
type SessionService struct {
	store   domain.Store
	session domain.SessionStore
	logger  *slog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(store domain.Store, session domain.SessionStore, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{store: store, session: session, logger: logger}
}

// Forget clears the catalog snapshot, every resume position and every saved
// scroll position
func (s *SessionService) Forget() {
	s.store.InvalidateFilms()
	n := 0
	for _, p := range s.store.AllProgress() {
		s.store.ClearProgress(p.FilmID)
		n++
	}
	scroll.ClearAll(s.session, s.logger)
	s.logger.Info("forgot local state", "progressRecords", n)
}
