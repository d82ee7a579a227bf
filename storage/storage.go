// Package storage keeps uploaded programs, their metadata and extracted
// parts on disk.
//
// Every upload gets its own directory named after its ID:
//
//	<root>/<id>/<file>
//	<root>/<id>/<stem>.meta.json
//	<root>/<id>/<stem>-part-<op>.mpf
//	<root>/<id>/<stem>-part-<op>.meta.json
package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown IDs.
var ErrNotFound = errors.New("not found")

const metaSuffix = ".meta.json"

var (
	rxUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	rxID     = regexp.MustCompile(`^[0-9a-f]{12}$`)
)

// Store is safe for concurrent use.
type Store struct {
	root string
	log  *slog.Logger

	mx    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// New creates root if needed.
func New(root string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	err := os.MkdirAll(root, 0755)
	if err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{
		root:  root,
		log:   log,
		locks: make(map[string]*sync.Mutex),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Root is the storage directory.
func (s *Store) Root() string { return s.root }

// ID is the first 12 hex digits of the SHA-256 of content.
func ID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:12]
}

// CleanFilename drops directories and replaces anything that is not
// filename-safe with underscores.
func CleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload.mpf"
	}
	return rxUnsafe.ReplaceAllString(name, "_")
}

func stem(name string) string {
	s := strings.TrimSuffix(name, filepath.Ext(name))
	if s == "" {
		return "part"
	}
	return s
}

// lock serializes writers of the same path.
func (s *Store) lock(name string) func() {
	s.mx.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = new(sync.Mutex)
		s.locks[name] = l
	}
	s.mx.Unlock()

	l.Lock()
	return l.Unlock
}

// writeFile replaces name atomically.
func (s *Store) writeFile(name string, data []byte) error {
	defer s.lock(name)()

	f, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(f.Name(), name)
	}
	if err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}

func (s *Store) writeMeta(name string, meta Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return s.writeFile(name, data)
}

// SaveUpload stores an uploaded program. The ID, filename and upload time
// of meta are filled in.
func (s *Store) SaveUpload(name string, content []byte, meta Meta) (Meta, error) {
	meta.ID = ID(content)
	meta.Filename = CleanFilename(name)
	meta.UploadedAt = s.now()
	meta.Summary.Lines = countLines(content)

	if prev, err := s.Load(meta.ID); err == nil && prev.Filename == meta.Filename {
		// same content, the release still holds
		meta.Release = prev.Release
	}

	dir := filepath.Join(s.root, meta.ID)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return Meta{}, fmt.Errorf("save upload: %w", err)
	}
	err = s.writeFile(filepath.Join(dir, meta.Filename), content)
	if err != nil {
		return Meta{}, fmt.Errorf("save upload: %w", err)
	}
	err = s.writeMeta(filepath.Join(dir, stem(meta.Filename)+metaSuffix), meta)
	if err != nil {
		return Meta{}, fmt.Errorf("save upload metadata: %w", err)
	}

	s.log.Info("stored upload", "id", meta.ID, "file", meta.Filename, "errors", meta.Summary.Errors, "warnings", meta.Summary.Warnings)
	return meta, nil
}

// SaveExtraction stores a part extracted from upload id.
func (s *Store) SaveExtraction(id string, opID int, text string, meta Meta) (Meta, error) {
	src, err := s.Load(id)
	if err != nil {
		return Meta{}, err
	}

	meta.ID = fmt.Sprintf("%s-part-%d", id, opID)
	meta.SourceID = id
	meta.OperationID = opID
	meta.Filename = CleanFilename(fmt.Sprintf("%s-part-%d.mpf", stem(src.Filename), opID))
	meta.UploadedAt = s.now()
	meta.Summary.Lines = countLines([]byte(text))
	if meta.Description == "" {
		meta.Description = src.Description
	}

	dir := filepath.Join(s.root, id)
	err = s.writeFile(filepath.Join(dir, meta.Filename), []byte(text))
	if err != nil {
		return Meta{}, fmt.Errorf("save extraction: %w", err)
	}
	err = s.writeMeta(filepath.Join(dir, stem(meta.Filename)+metaSuffix), meta)
	if err != nil {
		return Meta{}, fmt.Errorf("save extraction metadata: %w", err)
	}

	s.log.Info("stored extraction", "id", meta.ID, "source", id, "operation", opID)
	return meta, nil
}

func countLines(data []byte) int {
	n := bytes.Count(data, []byte("\n"))
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}

func (s *Store) readMetas(dir string) ([]Meta, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*"+metaSuffix))
	if err != nil {
		return nil, err
	}
	var res []Meta
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		var m Meta
		err = json.Unmarshal(data, &m)
		if err != nil {
			s.log.Warn("skipping unreadable metadata", "file", name, "err", err)
			continue
		}
		res = append(res, m)
	}
	return res, nil
}

// List returns the metadata of every stored program, newest first.
func (s *Store) List() ([]Meta, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	res := []Meta{}
	for _, d := range dirs {
		if !d.IsDir() || !rxID.MatchString(d.Name()) {
			continue
		}
		metas, err := s.readMetas(filepath.Join(s.root, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("list uploads: %w", err)
		}
		res = append(res, metas...)
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].UploadedAt.Equal(res[j].UploadedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].UploadedAt.After(res[j].UploadedAt)
	})
	return res, nil
}

// Load returns the metadata of upload id.
func (s *Store) Load(id string) (Meta, error) {
	if !rxID.MatchString(id) {
		return Meta{}, ErrNotFound
	}
	metas, err := s.readMetas(filepath.Join(s.root, id))
	if err != nil {
		return Meta{}, fmt.Errorf("load %s: %w", id, err)
	}
	for _, m := range metas {
		if !m.IsExtraction() {
			return m, nil
		}
	}
	return Meta{}, ErrNotFound
}

// Original returns the uploaded content of id.
func (s *Store) Original(id string) ([]byte, Meta, error) {
	meta, err := s.Load(id)
	if err != nil {
		return nil, Meta{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, id, meta.Filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, Meta{}, ErrNotFound
	}
	if err != nil {
		return nil, Meta{}, fmt.Errorf("read %s: %w", id, err)
	}
	return data, meta, nil
}

// Path is the location of the file described by m, relative to the root
// and slash separated.
func Path(m Meta) string {
	id := m.ID
	if m.IsExtraction() {
		id = m.SourceID
	}
	return path.Join(id, m.Filename)
}
