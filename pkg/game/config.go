package game

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/starhost/starhost/pkg/protocol"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/types"
)

// Config keys with side effects. Tool keys mark the game configuration
// as changed; victory keys mark the end condition as changed.
var (
	toolKeys = map[string]bool{
		"host":     true,
		"master":   true,
		"shiplist": true,
		"tools":    true,
	}
	victoryKeys = map[string]bool{
		"endCondition":   true,
		"endTurn":        true,
		"endScore":       true,
		"endProbability": true,
	}
)

// KV is one config assignment. Assignments are ordered; later writes of
// the same key win.
type KV struct {
	Key   string
	Value string
}

// GetConfig returns a copy of the game's config map
func (s *Service) GetConfig(gameID int) (map[string]string, error) {
	game, err := s.Get(gameID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(game.Config))
	for k, v := range game.Config {
		out[k] = v
	}
	return out, nil
}

// SetConfig applies the assignments atomically: if any value fails
// validation, nothing changes. Tool keys additionally update the
// attached-tool fields and set configChanged=1; victory keys set
// endChanged=1 unless endChanged is written in the same call.
func (s *Service) SetConfig(gameID int, assignments []KV) error {
	var errs *multierror.Error
	for _, kv := range assignments {
		if err := s.validateConfig(kv.Key, kv.Value); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return protocol.ErrBadRequest("%s", err.Error())
	}

	if err := s.Update(gameID, func(game *types.Game) error {
		if game.Config == nil {
			game.Config = make(map[string]string)
		}
		toolsTouched := false
		victoryTouched := false
		endChangedWritten := false
		for _, kv := range assignments {
			game.Config[kv.Key] = kv.Value
			switch {
			case toolKeys[kv.Key]:
				toolsTouched = true
				s.applyToolKey(game, kv.Key, kv.Value)
			case victoryKeys[kv.Key]:
				victoryTouched = true
			case kv.Key == "endChanged":
				endChangedWritten = true
			}
		}
		if toolsTouched {
			game.Config["configChanged"] = "1"
		}
		if victoryTouched && !endChangedWritten {
			game.Config["endChanged"] = "1"
		}
		return nil
	}); err != nil {
		return err
	}
	s.notify(gameID)
	return nil
}

func (s *Service) validateConfig(key, value string) error {
	switch key {
	case "host":
		return s.checkTool(store.CatalogHost, value)
	case "master":
		return s.checkTool(store.CatalogMaster, value)
	case "shiplist":
		return s.checkTool(store.CatalogShiplist, value)
	case "tools":
		for _, id := range strings.Fields(value) {
			if err := s.checkTool(store.CatalogTool, id); err != nil {
				return err
			}
		}
		return nil
	case "endTurn", "endScore", "endProbability":
		if value == "" {
			return nil
		}
		if _, err := strconv.Atoi(value); err != nil {
			return protocol.ErrBadRequest("%s must be an integer, got %q", key, value)
		}
		return nil
	case "endCondition":
		switch value {
		case "", "none", "turn", "score":
			return nil
		}
		return protocol.ErrBadRequest("bad endCondition %q", value)
	}
	return nil
}

func (s *Service) checkTool(catalog, id string) error {
	if id == "" {
		return nil
	}
	_, err := s.tools.Get(catalog, id)
	return err
}

func (s *Service) applyToolKey(game *types.Game, key, value string) {
	switch key {
	case "host":
		game.Host = value
	case "master":
		game.Master = value
	case "shiplist":
		game.Shiplist = value
	case "tools":
		game.ExtraTools = strings.Fields(value)
	}
}

// AddTool attaches an extra tool, replacing any attached tool of the
// same kind
func (s *Service) AddTool(gameID int, toolID string) error {
	tool, err := s.tools.Get(store.CatalogTool, toolID)
	if err != nil {
		return err
	}
	if err := s.Update(gameID, func(game *types.Game) error {
		var kept []string
		for _, id := range game.ExtraTools {
			if id == toolID {
				continue
			}
			other, err := s.tools.Get(store.CatalogTool, id)
			if err == nil && other.Kind == tool.Kind {
				continue
			}
			kept = append(kept, id)
		}
		game.ExtraTools = append(kept, toolID)
		game.Config["configChanged"] = "1"
		return nil
	}); err != nil {
		return err
	}
	s.notify(gameID)
	return nil
}

// RemoveTool detaches an extra tool. Returns false when the tool exists
// but is not attached; an unknown tool is an error.
func (s *Service) RemoveTool(gameID int, toolID string) (bool, error) {
	if _, err := s.tools.Get(store.CatalogTool, toolID); err != nil {
		return false, err
	}
	found := false
	if err := s.Update(gameID, func(game *types.Game) error {
		var kept []string
		for _, id := range game.ExtraTools {
			if id == toolID {
				found = true
				continue
			}
			kept = append(kept, id)
		}
		if !found {
			return nil
		}
		game.ExtraTools = kept
		game.Config["configChanged"] = "1"
		return nil
	}); err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	s.notify(gameID)
	return true, nil
}

// ListTools returns the game's attached extra tools
func (s *Service) ListTools(gameID int) ([]*types.Tool, error) {
	game, err := s.Get(gameID)
	if err != nil {
		return nil, err
	}
	var out []*types.Tool
	for _, id := range game.ExtraTools {
		t, err := s.tools.Get(store.CatalogTool, id)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
