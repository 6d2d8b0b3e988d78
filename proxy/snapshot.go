package proxy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Snapshot is the persisted form of a validated working set.
type Snapshot struct {
	SavedAt time.Time `json:"saved_at"`
	Count   int       `json:"count"`
	Proxies []Proxy   `json:"proxies"`
}

// Store persists the working set across restarts.
type Store interface {
	Load() (*Snapshot, error)
	Save(proxies []Proxy) error
}

type fileStore struct {
	path string
}

func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read proxy snapshot")
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "decode proxy snapshot")
	}

	return &snap, nil
}

// Save rewrites the snapshot wholesale. The write goes to a temp file in the
// same directory and is renamed into place so readers never observe a partial
// snapshot.
func (s *fileStore) Save(proxies []Proxy) error {
	snap := Snapshot{
		SavedAt: time.Now().UTC(),
		Count:   len(proxies),
		Proxies: proxies,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode proxy snapshot")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create snapshot directory")
	}

	tmp, err := os.CreateTemp(dir, "proxies-*.json")
	if err != nil {
		return errors.Wrap(err, "create snapshot temp file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write snapshot temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close snapshot temp file")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "replace proxy snapshot")
	}

	return nil
}
