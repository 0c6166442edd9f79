package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ReplayExport is written under the replay-{sessionId} key on demand
// (Engine.Replay) and, when Config.EnableReplay is set, automatically on
// entering COMPLETED or ERROR. It carries enough of a terminal session's state for offline re-execution.
type ReplayExport struct {
	SessionID     string         `json:"sessionId"`
	ActionHistory []ActionRecord `json:"actionHistory"`
	BrowserState  *BrowserState  `json:"browserState"`
	Metrics       Metrics        `json:"metrics"`
	ExportedAt    time.Time      `json:"exportedAt"`
}

// Store persists session snapshots and replay exports. Every FSM mutation
// is followed by a Save call; on process restart a fresh Engine
// reconstructs itself from the stored blob (the coordinator is re-created
// lazily on the next execute call since it requires a credential that is
// never persisted). Load and LoadReplay return a nil result with a nil
// error when the key doesn't exist; only unexpected backend failures are
// returned as an error.
type Store interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	SaveReplay(ctx context.Context, export *ReplayExport) error
	LoadReplay(ctx context.Context, sessionID string) (*ReplayExport, error)
}

// InMemoryStore is a Store backed by a plain map, used in tests and as the
// default when no durable backend is configured.
type InMemoryStore struct {
	snapshots map[string]*Snapshot
	replays   map[string]*ReplayExport
}

// NewInMemoryStore builds an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		snapshots: make(map[string]*Snapshot),
		replays:   make(map[string]*ReplayExport),
	}
}

func (s *InMemoryStore) Save(ctx context.Context, snapshot *Snapshot) error {
	s.snapshots[snapshot.ID] = snapshot
	return nil
}

func (s *InMemoryStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	return s.snapshots[sessionID], nil
}

func (s *InMemoryStore) SaveReplay(ctx context.Context, export *ReplayExport) error {
	s.replays[export.SessionID] = export
	return nil
}

func (s *InMemoryStore) LoadReplay(ctx context.Context, sessionID string) (*ReplayExport, error) {
	return s.replays[sessionID], nil
}

// RedisStore implements Store over Redis, mirroring the key naming and
// Watch/TxPipelined update discipline of the orchestration package's
// workflow state store: "session:{sessionId}" maps to the serialized session blob,
// "replay-{sessionId}" to the replay export, per the persistent key layout.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a RedisStore. ttl bounds how long a terminal
// session's snapshot and replay export are retained.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string { return fmt.Sprintf("session:%s", id) }
func replayKey(id string) string  { return fmt.Sprintf("replay-%s", id) }

func (s *RedisStore) Save(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshaling session snapshot: %w", err)
	}

	key := sessionKey(snapshot.ID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling session snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisStore) SaveReplay(ctx context.Context, export *ReplayExport) error {
	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshaling replay export: %w", err)
	}
	return s.client.Set(ctx, replayKey(export.SessionID), data, s.ttl).Err()
}

func (s *RedisStore) LoadReplay(ctx context.Context, sessionID string) (*ReplayExport, error) {
	data, err := s.client.Get(ctx, replayKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("loading replay export: %w", err)
	}

	var export ReplayExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("unmarshaling replay export: %w", err)
	}
	return &export, nil
}
