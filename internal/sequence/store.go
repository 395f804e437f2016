package sequence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when no document exists for a sequence name.
var ErrNotFound = errors.New("sequence not found")

// Store reads and writes sequence documents in a directory, one JSON file per
// sequence, named <name>.json.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (st *Store) Dir() string { return st.dir }

// Load resolves a sequence by name.
func (st *Store) Load(name string) (*Sequence, error) {
	path, err := st.pathFor(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return Decode(b)
}

// Save writes the document under its own name.
func (st *Store) Save(s *Sequence) error {
	b, err := s.Encode()
	if err != nil {
		return err
	}
	path, err := st.pathFor(s.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Rename moves a document to a new name. Alarms reference sequences by name,
// so callers must update those references; trigger identities are unaffected.
func (st *Store) Rename(oldName, newName string) error {
	oldPath, err := st.pathFor(oldName)
	if err != nil {
		return err
	}
	s, err := st.Load(oldName)
	if err != nil {
		return err
	}
	s.Name = newName
	if err := st.Save(s); err != nil {
		return err
	}
	return os.Remove(oldPath)
}

// Delete removes a document; absent is success.
func (st *Store) Delete(name string) error {
	path, err := st.pathFor(name)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// List returns the names of all stored sequences.
func (st *Store) List() ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// pathFor sanitizes the name into a filename. Rejecting separators keeps a
// crafted sequence_ref from escaping the documents directory.
func (st *Store) pathFor(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("sequence name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid sequence name %q", name)
	}
	return filepath.Join(st.dir, name+".json"), nil
}
