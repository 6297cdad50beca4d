package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"birthdaymemo/internal/core"
	"birthdaymemo/internal/records"
)

const fileExt = ".json"

// Store keeps one indented JSON document per user under dir.
type Store struct {
	mu  sync.Mutex
	dir string
}

var (
	_ records.Store      = (*Store)(nil)
	_ records.UserLister = (*Store)(nil)
)

// New returns a store rooted at dir. The directory is created lazily on the
// first Load so an unwritable location is reported to the user, not at boot.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file that holds username's record.
func (s *Store) Path(username string) (string, error) {
	stem, err := records.SanitizeUsername(username)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, stem+fileExt), nil
}

// Load reads the user's record, creating a file containing {} when absent.
func (s *Store) Load(ctx context.Context, username string) (core.Record, error) {
	path, err := s.Path(username)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", s.dir, err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			return nil, fmt.Errorf("create record file %s: %w", path, err)
		}
		slog.InfoContext(ctx, "Created empty record file", "path", path)
		return core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record file %s: %w", path, err)
	}

	rec := core.Record{}
	if len(bytes.TrimSpace(data)) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record file %s: %w", path, err)
	}
	if rec == nil {
		rec = core.Record{}
	}
	return rec, nil
}

// Save overwrites the user's file with the full record.
func (s *Store) Save(ctx context.Context, username string, rec core.Record) error {
	path, err := s.Path(username)
	if err != nil {
		return err
	}
	data, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", s.dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write record file %s: %w", path, err)
	}
	slog.DebugContext(ctx, "Record file written", "path", path, "bytes", len(data))
	return nil
}

// ListUsers returns the filename stems of all record files, sorted.
func (s *Store) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data directory %s: %w", s.dir, err)
	}
	var users []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		users = append(users, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(users)
	return users, nil
}

// Encode renders a record as two-space indented JSON with non-ASCII and
// HTML characters written literally.
func Encode(rec core.Record) ([]byte, error) {
	if rec == nil {
		rec = core.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
