package filetracking

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BearBump/RequestBox/internal/models"
	"github.com/pkg/errors"
)

const storeFilename = "tracking-requests.json"

// ErrNotFound возвращается, когда трекинг-кода нет в сторе.
var ErrNotFound = errors.New("tracking code not found")

// ErrUnwritable means both the primary and the fallback location rejected the
// write. The caller is expected to log it and keep going: durability here is
// best-effort by contract.
var ErrUnwritable = errors.New("tracking store is unwritable")

// Storage хранит все заявки одним JSON-файлом: код → запись. Файл читается
// целиком и переписывается целиком. Запись сериализована одним внутренним
// локом, так что конкурентные Put не теряют друг друга.
type Storage struct {
	mu          sync.Mutex
	dir         string
	fallbackDir string
	downgraded  bool
}

// New builds a store over primaryDir with a volatile fallback. The fallback
// (os.TempDir-based when empty) takes over permanently for this process the
// first time the primary location refuses a write.
func New(primaryDir, fallbackDir string) *Storage {
	if primaryDir == "" {
		primaryDir = "data"
	}
	if fallbackDir == "" {
		fallbackDir = filepath.Join(os.TempDir(), "requestbox")
	}
	return &Storage{dir: primaryDir, fallbackDir: fallbackDir}
}

// Load reads the whole mapping. A missing or unparsable file is an empty
// mapping, never an error.
func (s *Storage) Load(ctx context.Context) (map[string]*models.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Storage) load() (map[string]*models.TrackingRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, storeFilename))
	if err != nil {
		return map[string]*models.TrackingRecord{}, nil
	}

	var m map[string]*models.TrackingRecord
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("tracking store file is corrupt, starting from empty mapping", "err", err)
		return map[string]*models.TrackingRecord{}, nil
	}
	if m == nil {
		m = map[string]*models.TrackingRecord{}
	}
	return m, nil
}

// Save overwrites the serialized mapping, downgrading to the fallback
// location on the first write failure.
func (s *Storage) Save(ctx context.Context, m map[string]*models.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(m)
}

func (s *Storage) save(m map[string]*models.TrackingRecord) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal tracking store")
	}

	err = writeFile(s.dir, data)
	if err == nil {
		return nil
	}
	if !s.downgraded {
		slog.Warn("tracking store downgraded to volatile location",
			"primary", s.dir, "fallback", s.fallbackDir, "err", err)
		s.dir = s.fallbackDir
		s.downgraded = true
	}

	if err := writeFile(s.dir, data); err != nil {
		return errors.Wrap(ErrUnwritable, err.Error())
	}
	return nil
}

// Put upserts one record under its code. Load-modify-write выполняется под
// локом целиком, поэтому параллельные Put не затирают чужие записи.
func (s *Storage) Put(ctx context.Context, code string, rec *models.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[code] = rec
	return s.save(m)
}

// Get resolves a tracking code. Never creates entries.
func (s *Storage) Get(ctx context.Context, code string) (*models.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := m[code]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Has reports whether the code is already taken (collision check on mint).
func (s *Storage) Has(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := m[code]
	return ok, nil
}

// Downgraded reports whether the store switched to its volatile location.
func (s *Storage) Downgraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downgraded
}

func writeFile(dir string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "mkdir store dir")
	}
	path := filepath.Join(dir, storeFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write store tmp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename store file")
	}
	return nil
}
