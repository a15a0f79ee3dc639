// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/danielhkuo/crowd-poll/models"
)

// Marker records an in-progress session so a restarted client can land
// straight back in the answer form.
type Marker struct {
	PollID      string                   `json:"poll_id"`
	Participant models.ParticipantCreate `json:"participant"`
}

// ResumeStore persists at most one Marker.
type ResumeStore interface {
	Load() (Marker, bool, error)
	Save(Marker) error
	Clear() error
}

// FileStore keeps the marker as a JSON file in the profile directory.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Marker, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, err
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, false, err
	}
	if m.PollID == "" {
		return Marker{}, false, nil
	}
	return m, true, nil
}

func (s *FileStore) Save(m Marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
