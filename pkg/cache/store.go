// Package cache persists the active player and the session flags between runs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/session"
)

// Entry names, shared by every backend.
const (
	KeyCurrentPlayer    = "currentPlayer"
	KeyPlayerRegistered = "playerRegistered"
	KeyOfflineMode      = "offlineMode"
	KeyNeedsSync        = "needsSync"
	KeySheetsConnected  = "sheetsConnected"
)

// Store holds at most one player record plus the session flags.
type Store interface {
	// LoadPlayer returns the cached player, or nil when nothing is cached.
	LoadPlayer(ctx context.Context) (*record.StudentRecord, error)

	// SavePlayer replaces the cached player.
	SavePlayer(ctx context.Context, rec record.StudentRecord) error

	// LoadState returns the persisted flags. Missing flags read as false.
	LoadState(ctx context.Context) (session.State, error)

	SaveState(ctx context.Context, st session.State) error
}

// document is the on-disk layout of the file backend.
type document struct {
	CurrentPlayer *record.StudentRecord `json:"currentPlayer,omitempty"`
	session.State
}

// FileStore implements Store with a single JSON document on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) LoadPlayer(ctx context.Context) (*record.StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.CurrentPlayer, nil
}

func (s *FileStore) SavePlayer(ctx context.Context, rec record.StudentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.CurrentPlayer = &rec
	return s.write(doc)
}

func (s *FileStore) LoadState(ctx context.Context) (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return session.State{}, err
	}
	return doc.State, nil
}

func (s *FileStore) SaveState(ctx context.Context, st session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.State = st
	return s.write(doc)
}

func (s *FileStore) read() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode cache file %s: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the document atomically so a crash never leaves half a file.
func (s *FileStore) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// RedisStore implements Store with one Redis key per entry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) LoadPlayer(ctx context.Context) (*record.StudentRecord, error) {
	data, err := s.client.Get(ctx, s.key(KeyCurrentPlayer)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load player: %w", err)
	}

	var rec record.StudentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode cached player: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) SavePlayer(ctx context.Context, rec record.StudentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode player: %w", err)
	}
	if err := s.client.Set(ctx, s.key(KeyCurrentPlayer), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadState(ctx context.Context) (session.State, error) {
	vals, err := s.client.MGet(ctx,
		s.key(KeyPlayerRegistered),
		s.key(KeyOfflineMode),
		s.key(KeyNeedsSync),
		s.key(KeySheetsConnected),
	).Result()
	if err != nil {
		return session.State{}, fmt.Errorf("failed to load state: %w", err)
	}

	flags := make([]bool, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		flags[i], _ = strconv.ParseBool(str)
	}
	return session.State{
		Registered: flags[0],
		Offline:    flags[1],
		NeedsSync:  flags[2],
		Connected:  flags[3],
	}, nil
}

func (s *RedisStore) SaveState(ctx context.Context, st session.State) error {
	err := s.client.MSet(ctx,
		s.key(KeyPlayerRegistered), strconv.FormatBool(st.Registered),
		s.key(KeyOfflineMode), strconv.FormatBool(st.Offline),
		s.key(KeyNeedsSync), strconv.FormatBool(st.NeedsSync),
		s.key(KeySheetsConnected), strconv.FormatBool(st.Connected),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}
