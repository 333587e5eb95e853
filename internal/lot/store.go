package lot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store manages the lot directories under one working directory. One
// subdirectory per lot, holding <lot_name>.json plus the per-run
// artifact tree.
//
// The store assumes a single writer per lot directory: there is no file
// locking, so two processes sharing a lot race (a known limitation, not
// handled here). Writes are atomic full-file replaces, so a crash never
// corrupts the last-known-good document.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store { return &Store{Dir: dir} }

func (s *Store) lotDir(name string) string  { return filepath.Join(s.Dir, name) }
func (s *Store) lotFile(name string) string { return filepath.Join(s.Dir, name, name+".json") }

// Create makes a new lot directory and writes its initial document,
// freezing specChecksum (the checksum of the currently loaded spec, or
// "" when none) as the lot's expected spec revision. Creating a name
// that already has a lot document loads and returns the existing lot
// instead of overwriting it.
func (s *Store) Create(name, specChecksum string) (*Lot, error) {
	if name == "" {
		return nil, errors.New("empty lot name")
	}
	dir := s.lotDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lot directory %s: %w", dir, err)
	}

	if _, err := os.Stat(s.lotFile(name)); err == nil {
		log.Printf("[LotStore] lot %s already exists, loading it", name)
		return s.Load(name)
	}

	l := &Lot{
		Name:         name,
		Dir:          dir,
		Units:        []UnitEntry{},
		Checksum:     specChecksum,
		CreationDate: time.Now().Format(time.RFC3339),
	}
	if err := s.Save(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Load reads a lot document from disk and re-derives its counts per the
// legacy-migration rules in Lot.UnmarshalJSON.
func (s *Store) Load(name string) (*Lot, error) {
	raw, err := os.ReadFile(s.lotFile(name))
	if err != nil {
		return nil, fmt.Errorf("load lot %s: %w", name, err)
	}
	var l Lot
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("load lot %s: %w", name, err)
	}
	if l.Name != name {
		return nil, fmt.Errorf("lot %s: document names %q", name, l.Name)
	}
	l.Dir = s.lotDir(name)
	return &l, nil
}

// Save persists the lot document with an atomic full-file replace
// (write to a temp file in the same directory, then rename). The
// in-memory lot is never touched, so a failed save is retriable.
func (s *Store) Save(l *Lot) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lot %s: %w", l.Name, err)
	}

	path := s.lotFile(l.Name)
	tmp, err := os.CreateTemp(filepath.Dir(path), l.Name+".json.tmp-*")
	if err != nil {
		return fmt.Errorf("write lot %s: %w", l.Name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write lot %s: %w", l.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write lot %s: %w", l.Name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace lot %s: %w", l.Name, err)
	}
	return nil
}

// Scan lists the lots in the working directory: every subdirectory
// containing a <name>.json whose lot_name matches the directory and
// that carries a creation date. Invalid documents are logged and
// skipped, never fatal.
func (s *Store) Scan() ([]*Lot, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", s.Dir, err)
	}

	var lots []*Lot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		l, err := s.Load(e.Name())
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Printf("[LotStore] skipping %s: %v", e.Name(), err)
			}
			continue
		}
		if l.CreationDate == "" {
			log.Printf("[LotStore] skipping %s: no creation date", e.Name())
			continue
		}
		lots = append(lots, l)
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].Name < lots[j].Name })
	return lots, nil
}
