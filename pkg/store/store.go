// Package store persists the player state the extension keeps between
// sessions: the current station, the station lists and the selected list.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	yaml "gopkg.in/yaml.v2"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

// DefaultListID is used when no list has been selected.
const DefaultListID = "favorites"

// State is the persisted document.
type State struct {
	CurrentStation *metadata.Station             `yaml:"currentStation,omitempty"`
	StationLists   map[string][]metadata.Station `yaml:"stationLists,omitempty"`
	CurrentListID  string                        `yaml:"currentListId,omitempty"`
}

// Store keeps State in memory and writes it to a YAML file on every change.
// An empty path keeps the state in memory only.
type Store struct {
	mu    sync.Mutex
	path  string
	state State
}

// Open loads the state file at path. A missing file is an empty state.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}

	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(buf, &s.state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return s, nil
}

// State returns a copy of the stored state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := State{CurrentListID: s.state.CurrentListID}
	if s.state.CurrentStation != nil {
		st := *s.state.CurrentStation
		out.CurrentStation = &st
	}
	if s.state.StationLists != nil {
		out.StationLists = make(map[string][]metadata.Station, len(s.state.StationLists))
		for k, v := range s.state.StationLists {
			out.StationLists[k] = append([]metadata.Station(nil), v...)
		}
	}
	return out
}

// CurrentStation returns the last played station.
func (s *Store) CurrentStation() (metadata.Station, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CurrentStation == nil {
		return metadata.Station{}, false
	}
	return *s.state.CurrentStation, true
}

// SetCurrentStation records station as the last played station.
func (s *Store) SetCurrentStation(station metadata.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentStation = &station
	return s.save()
}

// Favorites returns the stations of the selected list.
func (s *Store) Favorites() []metadata.Station {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]metadata.Station(nil), s.state.StationLists[s.listID()]...)
}

// SetFavorites replaces the stations of listID and selects it. An empty
// listID updates the currently selected list.
func (s *Store) SetFavorites(listID string, stations []metadata.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if listID == "" {
		listID = s.listID()
	}
	if s.state.StationLists == nil {
		s.state.StationLists = make(map[string][]metadata.Station)
	}
	s.state.StationLists[listID] = append([]metadata.Station(nil), stations...)
	s.state.CurrentListID = listID
	return s.save()
}

func (s *Store) listID() string {
	if s.state.CurrentListID == "" {
		return DefaultListID
	}
	return s.state.CurrentListID
}

// save writes the state atomically. The caller holds mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}

	buf, err := yaml.Marshal(&s.state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
