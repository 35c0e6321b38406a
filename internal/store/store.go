package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/reel/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketFilms    = []byte("films")
	bucketProgress = []byte("progress")
	bucketSession  = []byte("session")
)

var allBuckets = [][]byte{bucketFilms, bucketProgress, bucketSession}

// filmsSnapshot is the stored catalog with its fetch time
type filmsSnapshot struct {
	Films     []*domain.Film `json:"films"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// FilmStore implements domain.Store using BoltDB
type FilmStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

var _ domain.Store = (*FilmStore)(nil)

// NewFilmStore opens the database under baseCacheDir, one per catalog URL.
// An empty baseCacheDir keeps everything in memory
func NewFilmStore(baseCacheDir, catalogURL string) (*FilmStore, error) {
	if baseCacheDir == "" {
		// Memory-only mode (no persistence)
		return &FilmStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseCacheDir
	if catalogURL != "" {
		dir = filepath.Join(baseCacheDir, hashCatalogURL(catalogURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "reel.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bolt db: %v", domain.ErrStorageUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		// Session records never outlive the process that wrote them
		if tx.Bucket(bucketSession) != nil {
			if err := tx.DeleteBucket(bucketSession); err != nil {
				return err
			}
		}
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &FilmStore{db: db, cache: make(map[string][]byte)}, nil
}

func hashCatalogURL(catalogURL string) string {
	normalized := strings.TrimRight(strings.ToLower(catalogURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *FilmStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *FilmStore) getRaw(bucket []byte, key string) ([]byte, bool) {
	cacheKey := string(bucket) + ":" + key

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return data, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return nil, false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return data, true
}

func (s *FilmStore) get(bucket []byte, key string, dest interface{}) bool {
	data, ok := s.getRaw(bucket, key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *FilmStore) setRaw(bucket []byte, key string, data []byte) error {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *FilmStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.setRaw(bucket, key, data)
}

func (s *FilmStore) delete(bucket []byte, key string) error {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// keys lists keys under prefix from both the memory cache and the database
func (s *FilmStore) keys(bucket []byte, prefix string) ([]string, error) {
	set := make(map[string]bool)

	cachePrefix := string(bucket) + ":"
	s.mu.RLock()
	for k := range s.cache {
		if key, ok := strings.CutPrefix(k, cachePrefix); ok && strings.HasPrefix(key, prefix) {
			set[key] = true
		}
	}
	s.mu.RUnlock()

	if s.db != nil {
		err := s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucket)
			if b == nil {
				return nil
			}
			c := b.Cursor()
			prefixBytes := []byte(prefix)
			for k, _ := c.Seek(prefixBytes); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
				set[string(k)] = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// === Catalog snapshot ===

// GetFilms returns the stored catalog and when it was fetched
func (s *FilmStore) GetFilms() ([]*domain.Film, time.Time, bool) {
	var snap filmsSnapshot
	if !s.get(bucketFilms, "list", &snap) {
		return nil, time.Time{}, false
	}
	return snap.Films, snap.FetchedAt, true
}

func (s *FilmStore) SaveFilms(films []*domain.Film, fetchedAt time.Time) error {
	return s.set(bucketFilms, "list", filmsSnapshot{Films: films, FetchedAt: fetchedAt})
}

func (s *FilmStore) InvalidateFilms() {
	s.delete(bucketFilms, "list")
}

// === Resume positions ===

func (s *FilmStore) GetProgress(filmID string) (domain.Progress, bool) {
	var p domain.Progress
	ok := s.get(bucketProgress, filmID, &p)
	return p, ok
}

func (s *FilmStore) SaveProgress(p domain.Progress) error {
	if p.FilmID == "" {
		return fmt.Errorf("progress without film id")
	}
	return s.set(bucketProgress, p.FilmID, p)
}

func (s *FilmStore) ClearProgress(filmID string) {
	s.delete(bucketProgress, filmID)
}

// AllProgress returns every resume record, most recent first
func (s *FilmStore) AllProgress() []domain.Progress {
	keys, err := s.keys(bucketProgress, "")
	if err != nil {
		return nil
	}
	records := make([]domain.Progress, 0, len(keys))
	for _, k := range keys {
		if p, ok := s.GetProgress(k); ok {
			records = append(records, p)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records
}

