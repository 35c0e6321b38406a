package store

import "github.com/mmcdole/reel/internal/domain"

// SessionStore is the session bucket of a FilmStore. The bucket is emptied
// each time the database is opened
type SessionStore struct {
	s *FilmStore
}

var _ domain.SessionStore = (*SessionStore)(nil)

// Session returns the session-scoped key-value view of the store
func (s *FilmStore) Session() *SessionStore {
	return &SessionStore{s: s}
}

func (ss *SessionStore) Get(key string) ([]byte, bool, error) {
	data, ok := ss.s.getRaw(bucketSession, key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (ss *SessionStore) Set(key string, value []byte) error {
	data := make([]byte, len(value))
	copy(data, value)
	return ss.s.setRaw(bucketSession, key, data)
}

func (ss *SessionStore) Delete(key string) error {
	return ss.s.delete(bucketSession, key)
}

func (ss *SessionStore) Keys(prefix string) ([]string, error) {
	return ss.s.keys(bucketSession, prefix)
}
