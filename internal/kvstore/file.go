package kvstore

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// fileStore keeps the whole key space in one JSON file, rewritten through a
// temp file and rename so a crash leaves either the old or the new contents.
type fileStore struct {
	filePath string
	data     map[string][]byte
	mu       sync.RWMutex
}

func NewFileStore(filePath string) (Store, error) {
	s := &fileStore{
		filePath: filePath,
		data:     make(map[string][]byte),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", s.filePath).Msg("KV file not found, starting fresh.")
			return nil
		}
		log.Error().Err(err).Str("file", s.filePath).Msg("Failed to read KV file")
		return err
	}
	if len(data) == 0 {
		log.Warn().Str("file", s.filePath).Msg("KV file is empty, starting fresh.")
		return nil
	}
	if err := json.Unmarshal(data, &s.data); err != nil {
		log.Error().Err(err).Str("file", s.filePath).Msg("Failed to unmarshal KV file")
		return err
	}
	log.Debug().Str("file", s.filePath).Int("keys", len(s.data)).Msg("Loaded KV file")
	return nil
}

// save must be called with the write lock held.
func (s *fileStore) save() error {
	data, err := json.Marshal(s.data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal KV data")
		return err
	}

	tempFilePath := s.filePath + ".tmp"
	f, err := os.OpenFile(tempFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Error().Err(err).Str("file", tempFilePath).Msg("Failed to open temporary KV file")
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tempFilePath)
		log.Error().Err(err).Str("file", tempFilePath).Msg("Failed to write temporary KV file")
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tempFilePath)
		log.Error().Err(err).Str("file", tempFilePath).Msg("Failed to sync temporary KV file")
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempFilePath)
		return err
	}

	if err := os.Rename(tempFilePath, s.filePath); err != nil {
		log.Error().Err(err).Str("from", tempFilePath).Str("to", s.filePath).Msg("Failed to rename KV file")
		_ = os.Remove(tempFilePath)
		return err
	}
	return nil
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.data[key]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, ErrNotFound
}

func (s *fileStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.data[key]
	s.data[key] = append([]byte(nil), value...)
	if err := s.save(); err != nil {
		if existed {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.data[key]
	if !existed {
		return nil
	}
	delete(s.data, key)
	if err := s.save(); err != nil {
		s.data[key] = prev
		return err
	}
	return nil
}

func (s *fileStore) Close() error {
	return nil
}
