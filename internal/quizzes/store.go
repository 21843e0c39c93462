package quizzes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rurallite/rurallite/internal/shared"
)

const (
	quizKeyPrefix = "quiz:"
	quizIndexKey  = "quizzes:by_created"
)

// Store persists quiz documents.
type Store interface {
	List(ctx context.Context) ([]Quiz, error)
	Get(ctx context.Context, id string) (*Quiz, error)
	Create(ctx context.Context, quiz Quiz) error
	Update(ctx context.Context, quiz Quiz) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// RedisStore keeps each quiz as a JSON string plus a sorted set indexed by
// creation time.
type RedisStore struct {
	client    *redis.Client
	afterScan func()
}

// NewRedisStore returns a store backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func quizKey(id string) string { return quizKeyPrefix + id }

// List returns all quizzes, newest first.
func (s *RedisStore) List(ctx context.Context) ([]Quiz, error) {
	ids, err := s.client.ZRevRange(ctx, quizIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("quizzes: list index: %w", err)
	}
	out := make([]Quiz, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = quizKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("quizzes: load documents: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var q Quiz
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("quizzes: decode document: %w", err)
		}
		out = append(out, q)
	}
	return out, nil
}

// Get loads one quiz.
func (s *RedisStore) Get(ctx context.Context, id string) (*Quiz, error) {
	raw, err := s.client.Get(ctx, quizKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var q Quiz
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("quizzes: decode document: %w", err)
	}
	return &q, nil
}

// Create inserts a new quiz.
func (s *RedisStore) Create(ctx context.Context, quiz Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, quizKey(quiz.ID), raw, 0)
		pipe.ZAdd(ctx, quizIndexKey, redis.Z{Score: float64(quiz.CreatedAt.UnixMilli()), Member: quiz.ID})
		return nil
	})
	return err
}

// Update overwrites an existing quiz.
func (s *RedisStore) Update(ctx context.Context, quiz Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, quizKey(quiz.ID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a quiz.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, quizKey(id))
		pipe.ZRem(ctx, quizIndexKey, id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count returns the number of stored quizzes.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, quizIndexKey).Result()
}

// reindexAttempts bounds retries when a concurrent write touches the index
// during reconciliation.
const reindexAttempts = 5

// Reindex rebuilds the creation-time index from the stored documents and
// drops index entries whose document is gone. Every change is re-checked
// against the live documents under WATCH, so quizzes created or deleted while
// the scan runs keep a consistent index. It returns the number of indexed
// quizzes.
func (s *RedisStore) Reindex(ctx context.Context) (int, error) {
	scanned, err := s.scanDocuments(ctx)
	if err != nil {
		return 0, err
	}
	if s.afterScan != nil {
		s.afterScan()
	}
	for attempt := 0; attempt < reindexAttempts; attempt++ {
		n, err := s.reconcile(ctx, scanned)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("quizzes: reindex write: %w", err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("quizzes: reindex: index changed on every attempt: %w", redis.TxFailedErr)
}

func (s *RedisStore) scanDocuments(ctx context.Context) (map[string]redis.Z, error) {
	scanned := make(map[string]redis.Z)
	iter := s.client.Scan(ctx, 0, quizKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("quizzes: reindex load: %w", err)
		}
		var q Quiz
		if err := json.Unmarshal(raw, &q); err != nil || q.ID == "" {
			continue
		}
		scanned[q.ID] = redis.Z{Score: float64(q.CreatedAt.UnixMilli()), Member: q.ID}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("quizzes: reindex scan: %w", err)
	}
	return scanned, nil
}

func (s *RedisStore) reconcile(ctx context.Context, scanned map[string]redis.Z) (int, error) {
	indexed := 0
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		ids, err := tx.ZRange(ctx, quizIndexKey, 0, -1).Result()
		if err != nil {
			return err
		}
		candidates := make([]string, 0, len(ids)+len(scanned))
		candidates = append(candidates, ids...)
		for id := range scanned {
			candidates = append(candidates, id)
		}
		exists, err := documentsExist(ctx, tx, candidates)
		if err != nil {
			return err
		}

		kept := make(map[string]struct{}, len(candidates))
		stale := make([]any, 0)
		for _, id := range ids {
			if exists[id] {
				kept[id] = struct{}{}
				continue
			}
			stale = append(stale, id)
		}
		members := make([]redis.Z, 0, len(scanned))
		for id, z := range scanned {
			if !exists[id] {
				continue
			}
			kept[id] = struct{}{}
			members = append(members, z)
		}
		indexed = len(kept)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(stale) > 0 {
				pipe.ZRem(ctx, quizIndexKey, stale...)
			}
			if len(members) > 0 {
				pipe.ZAdd(ctx, quizIndexKey, members...)
			}
			return nil
		})
		return err
	}, quizIndexKey)
	return indexed, err
}

func documentsExist(ctx context.Context, tx *redis.Tx, ids []string) (map[string]bool, error) {
	cmds := make(map[string]*redis.IntCmd, len(ids))
	_, err := tx.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			if _, ok := cmds[id]; ok {
				continue
			}
			cmds[id] = pipe.Exists(ctx, quizKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(cmds))
	for id, cmd := range cmds {
		out[id] = cmd.Val() > 0
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
