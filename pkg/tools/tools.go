package tools

import (
	"bufio"
	"bytes"
	"path"
	"strconv"
	"strings"

	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/types"
)

// Registry manages the four parallel tool catalogs (host, master,
// shiplist, tool). Each catalog has at most one default; the first tool
// added becomes default automatically.
type Registry struct {
	store store.Store
	files *files.Service
}

// New creates a registry over the given store and host-file service
func New(st store.Store, hostFiles *files.Service) *Registry {
	return &Registry{store: st, files: hostFiles}
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '-' || c == '.' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// Add creates a tool. The id and kind must be plain ASCII identifiers;
// a non-empty path/exe must refer to an existing host file.
func (r *Registry) Add(catalog, id, toolPath, exe, kind string) error {
	if !validIdent(id) {
		return protocol.ErrBadRequest("invalid tool id %q", id)
	}
	if !validIdent(kind) {
		return protocol.ErrBadRequest("invalid tool kind %q", kind)
	}
	if toolPath != "" && exe != "" && !r.files.Exists(path.Join(toolPath, exe)) {
		return protocol.ErrNotFound("tool executable %s/%s does not exist", toolPath, exe)
	}
	if _, err := r.store.GetTool(catalog, id); err == nil {
		return protocol.ErrConflict("tool %s already exists", id)
	}
	return r.store.CreateTool(catalog, &types.Tool{
		ID:   id,
		Kind: kind,
		Path: toolPath,
		Exe:  exe,
	})
}

// Remove deletes a tool
func (r *Registry) Remove(catalog, id string) error {
	if err := r.store.DeleteTool(catalog, id); err != nil {
		return protocol.ErrNotFound("tool not found: %s", id)
	}
	return nil
}

// Get returns one tool
func (r *Registry) Get(catalog, id string) (*types.Tool, error) {
	t, err := r.store.GetTool(catalog, id)
	if err != nil {
		return nil, protocol.ErrNotFound("tool not found: %s", id)
	}
	return t, nil
}

// List returns all tools of a catalog
func (r *Registry) List(catalog string) ([]*types.Tool, error) {
	return r.store.ListTools(catalog)
}

// Default returns the default tool id of a catalog, "" when empty
func (r *Registry) Default(catalog string) (string, error) {
	return r.store.GetDefaultTool(catalog)
}

// SetDefault switches the catalog default
func (r *Registry) SetDefault(catalog, id string) error {
	if err := r.store.SetDefaultTool(catalog, id); err != nil {
		return protocol.ErrNotFound("tool not found: %s", id)
	}
	return nil
}

// SetDescription updates a tool's description
func (r *Registry) SetDescription(catalog, id, description string) error {
	t, err := r.Get(catalog, id)
	if err != nil {
		return err
	}
	t.Description = description
	return r.store.UpdateTool(catalog, t)
}

// Copy creates dst as a full metadata copy of src
func (r *Registry) Copy(catalog, src, dst string) error {
	if !validIdent(dst) {
		return protocol.ErrBadRequest("invalid tool id %q", dst)
	}
	t, err := r.Get(catalog, src)
	if err != nil {
		return err
	}
	if _, err := r.store.GetTool(catalog, dst); err == nil {
		return protocol.ErrConflict("tool %s already exists", dst)
	}
	c := *t
	c.ID = dst
	return r.store.CreateTool(catalog, &c)
}

// SetDifficulty sets an explicit difficulty value
func (r *Registry) SetDifficulty(catalog, id string, value int) error {
	t, err := r.Get(catalog, id)
	if err != nil {
		return err
	}
	t.Difficulty = value
	t.DifficultySet = true
	t.DifficultyComputed = false
	return r.store.UpdateTool(catalog, t)
}

// ClearDifficulty removes the difficulty rating
func (r *Registry) ClearDifficulty(catalog, id string) error {
	t, err := r.Get(catalog, id)
	if err != nil {
		return err
	}
	t.Difficulty = 0
	t.DifficultySet = false
	t.DifficultyComputed = false
	return r.store.UpdateTool(catalog, t)
}

// ComputeDifficulty derives the difficulty from the tool's config file, a
// key=value text file in the tool's directory. Planet density keys feed
// the heuristic; the result is clamped to 0..250.
func (r *Registry) ComputeDifficulty(catalog, id string) (int, error) {
	t, err := r.Get(catalog, id)
	if err != nil {
		return 0, err
	}
	if t.Path == "" {
		return 0, protocol.ErrNotFound("tool %s has no config", id)
	}
	data, err := r.files.Get(path.Join(t.Path, id+".cfg"))
	if err != nil {
		return 0, protocol.ErrNotFound("no config file for tool %s", id)
	}

	diff := RateConfig(data)
	t.Difficulty = diff
	t.DifficultySet = true
	t.DifficultyComputed = true
	if err := r.store.UpdateTool(catalog, t); err != nil {
		return 0, err
	}
	return diff, nil
}

// RateConfig computes a 0..250 difficulty from a key=value config blob.
// Keys starting with "planet" that carry a density value are averaged;
// sparser universes are rated harder. A config without density keys
// rates at the 100 baseline.
func RateConfig(data []byte) int {
	var sum, n int
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !strings.HasPrefix(key, "planet") || !strings.Contains(key, "density") {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 100
	}
	avg := sum / n
	if avg > 100 {
		avg = 100
	}
	if avg < 0 {
		avg = 0
	}
	// 100% density -> easy (0), 0% -> hardest (250)
	return (100 - avg) * 250 / 100
}
