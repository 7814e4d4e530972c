package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const DefaultFileStoreLimit = 96

// FileStore keeps the most recent evaluations per instance in a JSON file, for local
// runs of serve and invoke where no InfluxDB is configured.
type FileStore struct {
	Path  string
	Limit int
	mu    sync.RWMutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, Limit: DefaultFileStoreLimit}
}

func (s *FileStore) Record(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadUnsafe()
	if err != nil {
		return err
	}
	records := append(all[record.InstanceId], record)
	if s.Limit > 0 && len(records) > s.Limit {
		records = records[len(records)-s.Limit:]
	}
	all[record.InstanceId] = records
	return s.saveUnsafe(all)
}

func (s *FileStore) List(instanceId string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadUnsafe()
	if err != nil {
		return nil, err
	}
	return all[instanceId], nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) loadUnsafe() (map[string][]*Record, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return make(map[string][]*Record), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read evaluation history '%s'", s.Path)
	}

	all := make(map[string][]*Record)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.Wrapf(err, "parse evaluation history '%s'", s.Path)
	}
	if all == nil {
		// a file holding just "null"
		all = make(map[string][]*Record)
	}
	return all, nil
}

func (s *FileStore) saveUnsafe(all map[string][]*Record) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return errors.Wrap(err, "create history directory")
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal evaluation history")
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write evaluation history")
	}
	return errors.Wrap(os.Rename(tmp, s.Path), "replace evaluation history")
}
