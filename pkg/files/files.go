package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"
)

// propFile holds per-directory properties (e.g. the managed-by-game
// stamp). It is hidden from directory listings.
const propFile = ".properties"

// Info describes one file or directory
type Info struct {
	Name  string
	Size  int64
	IsDir bool
}

// Service is a hierarchical file store. Two instances exist in a running
// server: one for host-side files (game directories, tool files) and one
// for user home directories.
type Service struct {
	fs afero.Fs
}

// New creates a file service on the given filesystem. Production servers
// pass an OS-backed filesystem rooted at the work directory; tests use a
// memory-backed one.
func New(fs afero.Fs) *Service {
	return &Service{fs: fs}
}

// NewMem creates a memory-backed service for tests
func NewMem() *Service {
	return &Service{fs: afero.NewMemMapFs()}
}

// NewOS creates an OS-backed service rooted at dir
func NewOS(dir string) *Service {
	return &Service{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}
}

// Get reads a file
func (s *Service) Get(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Put writes a file, creating parent directories as needed
func (s *Service) Put(name string, data []byte) error {
	if dir := path.Dir(name); dir != "." && dir != "/" {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, name, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// MkdirAll creates a directory hierarchy
func (s *Service) MkdirAll(name string) error {
	return s.fs.MkdirAll(name, 0755)
}

// Stat returns file information
func (s *Service) Stat(name string) (Info, error) {
	fi, err := s.fs.Stat(name)
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return Info{Name: fi.Name(), Size: fi.Size(), IsDir: fi.IsDir()}, nil
}

// Exists reports whether the path exists
func (s *Service) Exists(name string) bool {
	_, err := s.fs.Stat(name)
	return err == nil
}

// Remove deletes a file
func (s *Service) Remove(name string) error {
	return s.fs.Remove(name)
}

// List returns the sorted content of a directory, property files hidden
func (s *Service) List(name string) ([]Info, error) {
	entries, err := afero.ReadDir(s.fs, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", name, err)
	}
	var infos []Info
	for _, fi := range entries {
		if fi.Name() == propFile {
			continue
		}
		infos = append(infos, Info{Name: fi.Name(), Size: fi.Size(), IsDir: fi.IsDir()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// GetProperty reads a directory property; missing properties return ""
func (s *Service) GetProperty(dir, key string) (string, error) {
	props, err := s.readProps(dir)
	if err != nil {
		return "", err
	}
	return props[key], nil
}

// SetProperty writes a directory property. An empty value removes the
// property.
func (s *Service) SetProperty(dir, key, value string) error {
	fi, err := s.fs.Stat(dir)
	if err != nil {
		return fmt.Errorf("no such directory: %s", dir)
	}
	if !fi.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	props, err := s.readProps(dir)
	if err != nil {
		return err
	}
	if value == "" {
		delete(props, key)
	} else {
		props[key] = value
	}
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	return afero.WriteFile(s.fs, path.Join(dir, propFile), data, 0644)
}

// Properties returns all properties of a directory
func (s *Service) Properties(dir string) (map[string]string, error) {
	if fi, err := s.fs.Stat(dir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("no such directory: %s", dir)
	}
	return s.readProps(dir)
}

func (s *Service) readProps(dir string) (map[string]string, error) {
	props := make(map[string]string)
	data, err := afero.ReadFile(s.fs, path.Join(dir, propFile))
	if err != nil {
		if os.IsNotExist(err) {
			return props, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("corrupt property file in %s: %w", dir, err)
	}
	return props, nil
}
