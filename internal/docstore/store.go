package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"lauschr/internal/apperr"
	"lauschr/internal/fileutil"
	"lauschr/internal/logging"
)

const (
	component     = "docstore"
	documentExt   = ".json"
	lockExt       = ".lock"
	lockDirName   = ".locks"
	backupLayout  = "2006-01-02_15-04-05"
	documentPerms = 0o644
)

// ErrSkipWrite may be returned by an update function to end the update
// successfully without rewriting the document.
var ErrSkipWrite = errors.New("docstore: skip write")

// Store reads and writes JSON documents below a root directory.
type Store struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for backup file names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open prepares a store rooted at dir, creating the directory if needed.
func Open(dir string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, apperr.Validation(component, "open", "root directory is empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, lockDirName), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, component, "open", "create root directory", err)
	}
	s := &Store{
		root:   dir,
		logger: logging.NewComponentLogger(logger, component),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the directory the store writes into.
func (s *Store) Root() string {
	return s.root
}

// Path returns the file backing a document name.
func (s *Store) Path(name string) (string, error) {
	rel, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)+documentExt), nil
}

func (s *Store) lockPath(rel string) string {
	return filepath.Join(s.root, lockDirName, filepath.FromSlash(rel)+lockExt)
}

func cleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperr.Validation(component, "name", "document name is empty")
	}
	if strings.Contains(trimmed, "\\") || strings.HasPrefix(trimmed, "/") || filepath.IsAbs(trimmed) {
		return "", apperr.Validation(component, "name", fmt.Sprintf("document name %q must be a relative slash path", name))
	}
	cleaned := path.Clean(trimmed)
	if cleaned != trimmed || !filepath.IsLocal(filepath.FromSlash(cleaned)) {
		return "", apperr.Validation(component, "name", fmt.Sprintf("document name %q escapes the store root", name))
	}
	for _, segment := range strings.Split(cleaned, "/") {
		if strings.HasPrefix(segment, ".") {
			return "", apperr.Validation(component, "name", fmt.Sprintf("document name %q has a hidden segment", name))
		}
	}
	return cleaned, nil
}

// Read returns the decoded document, or def when it does not exist or is empty.
func Read[T any](s *Store, name string, def T) (T, error) {
	rel, err := cleanName(name)
	if err != nil {
		return def, err
	}
	docPath, _ := s.Path(rel)
	if _, err := os.Stat(docPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return def, nil
		}
		return def, apperr.Wrap(apperr.ErrStorageUnavailable, component, "read", rel, err)
	}

	unlock, err := s.acquire(rel, false)
	if err != nil {
		return def, err
	}
	defer unlock()

	data, err := os.ReadFile(docPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return def, nil
		}
		return def, apperr.Wrap(apperr.ErrStorageUnavailable, component, "read", rel, err)
	}
	doc, present, err := decode[T](rel, "read", data)
	if err != nil {
		return def, err
	}
	if !present {
		return def, nil
	}
	return doc, nil
}

// Write replaces the document with doc under an exclusive lock.
func (s *Store) Write(name string, doc any) error {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	payload, err := encode(doc)
	if err != nil {
		return apperr.Wrap(apperr.ErrValidation, component, "write", rel+": encode", err)
	}

	unlock, err := s.acquire(rel, true)
	if err != nil {
		return err
	}
	defer unlock()

	docPath, _ := s.Path(rel)
	if err := writeInPlace(docPath, payload); err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "write", rel, err)
	}
	s.logger.Debug("document written", logging.String(logging.FieldDocument, rel), logging.Int(logging.FieldBytes, len(payload)))
	return nil
}

// Update applies fn to the current document (or def when absent) and writes
// the result back, holding an exclusive lock for the whole cycle. If fn returns
// an error the document is left untouched and the error is returned as is;
// ErrSkipWrite ends the update successfully with the current document.
func Update[T any](s *Store, name string, def T, fn func(T) (T, error)) (T, error) {
	return mutate(s, name, &def, fn)
}

// UpdateExisting is Update for documents that must already exist; an absent or
// empty document yields apperr.ErrNotFound.
func UpdateExisting[T any](s *Store, name string, fn func(T) (T, error)) (T, error) {
	return mutate(s, name, nil, fn)
}

func mutate[T any](s *Store, name string, def *T, fn func(T) (T, error)) (T, error) {
	var zero T
	rel, err := cleanName(name)
	if err != nil {
		return zero, err
	}
	docPath, _ := s.Path(rel)
	if def == nil {
		if _, err := os.Stat(docPath); errors.Is(err, fs.ErrNotExist) {
			return zero, apperr.NotFound(component, "update", rel)
		}
	}

	unlock, err := s.acquire(rel, true)
	if err != nil {
		return zero, err
	}
	defer unlock()

	data, err := os.ReadFile(docPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zero, apperr.Wrap(apperr.ErrStorageUnavailable, component, "update", rel, err)
	}
	current, present, err := decode[T](rel, "update", data)
	if err != nil {
		return zero, err
	}
	if !present {
		if def == nil {
			return zero, apperr.NotFound(component, "update", rel)
		}
		current = *def
	}

	next, err := fn(current)
	if err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return current, nil
		}
		return zero, err
	}

	payload, err := encode(next)
	if err != nil {
		return zero, apperr.Wrap(apperr.ErrValidation, component, "update", rel+": encode", err)
	}
	if err := writeInPlace(docPath, payload); err != nil {
		return zero, apperr.Wrap(apperr.ErrStorageUnavailable, component, "update", rel, err)
	}
	s.logger.Debug("document updated", logging.String(logging.FieldDocument, rel), logging.Int(logging.FieldBytes, len(payload)))
	return next, nil
}

// Delete removes the document. Removing an absent document succeeds.
func (s *Store) Delete(name string) error {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	docPath, _ := s.Path(rel)
	if _, err := os.Stat(docPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	unlock, err := s.acquire(rel, true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := fileutil.RemoveIfExists(docPath); err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "delete", rel, err)
	}
	s.logger.Debug("document deleted", logging.String(logging.FieldDocument, rel))
	return nil
}

// Exists reports whether a document file is present. Invalid names report false.
func (s *Store) Exists(name string) bool {
	docPath, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(docPath)
	return err == nil && info.Mode().IsRegular()
}

// List returns the document names directly inside dir (without the .json
// extension), sorted. A missing directory yields an empty list.
func (s *Store) List(dir string) ([]string, error) {
	target := s.root
	if strings.TrimSpace(dir) != "" {
		rel, err := cleanName(dir)
		if err != nil {
			return nil, err
		}
		target = filepath.Join(s.root, filepath.FromSlash(rel))
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, component, "list", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), documentExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), documentExt))
	}
	slices.Sort(names)
	return names, nil
}

// Backup copies the current document next to itself as
// <name>.json.backup.<timestamp> and returns the backup path.
func (s *Store) Backup(name string) (string, error) {
	rel, err := cleanName(name)
	if err != nil {
		return "", err
	}
	docPath, _ := s.Path(rel)
	if !s.Exists(rel) {
		return "", apperr.NotFound(component, "backup", rel)
	}

	unlock, err := s.acquire(rel, false)
	if err != nil {
		return "", err
	}
	defer unlock()

	target := docPath + ".backup." + s.now().Format(backupLayout)
	if err := fileutil.CopyFile(docPath, target); err != nil {
		return "", apperr.Wrap(apperr.ErrStorageUnavailable, component, "backup", rel, err)
	}
	s.logger.Info("document backed up", logging.String(logging.FieldDocument, rel), logging.String("backup_path", target))
	return target, nil
}

// acquire takes the shared or exclusive lock for a document and returns the
// release function. The document directory is created for exclusive locks.
func (s *Store) acquire(rel string, exclusive bool) (func(), error) {
	operation := "lock shared"
	if exclusive {
		operation = "lock exclusive"
		docPath, _ := s.Path(rel)
		if err := os.MkdirAll(filepath.Dir(docPath), 0o755); err != nil {
			return nil, apperr.Wrap(apperr.ErrStorageUnavailable, component, "mkdir", rel, err)
		}
	}
	lockFile := s.lockPath(rel)
	if err := os.MkdirAll(filepath.Dir(lockFile), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, component, "mkdir", rel, err)
	}

	lock := flock.New(lockFile)
	var err error
	if exclusive {
		err = lock.Lock()
	} else {
		err = lock.RLock()
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, component, operation, rel, err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(s.logger, "document unlock failed", "document_unlock_failed",
				logging.String(logging.FieldDocument, rel),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check for stale processes holding "+lockFile),
				logging.String(logging.FieldImpact, "later writers may block until the process exits"),
			)
		}
	}, nil
}

func decode[T any](rel, operation string, data []byte) (T, bool, error) {
	var doc T
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return doc, false, nil
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return doc, false, apperr.Wrap(apperr.ErrStorageCorruption, component, operation, rel, err)
	}
	return doc, true, nil
}

func encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeInPlace truncates and rewrites path. Callers hold the exclusive lock.
func writeInPlace(docPath string, payload []byte) error {
	file, err := os.OpenFile(docPath, os.O_CREATE|os.O_RDWR, documentPerms)
	if err != nil {
		return err
	}
	if err := file.Truncate(0); err != nil {
		_ = file.Close()
		return err
	}
	if _, err := file.WriteAt(payload, 0); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
