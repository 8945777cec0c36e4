package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"maskframe/internal/mask"
)

const (
	redisRecordPrefix = "image:"
	redisIndexKey     = "images"
)

// RedisStore persists records as JSON values keyed by image id, with a set of
// known ids for listing. Record writes and index updates run in a MULTI/EXEC
// pipeline so readers never see a half-stored record.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client, used by tests backed by
// miniredis.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, record *mask.Record) error {
	payload, err := mask.EncodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to serialize record %s: %w", record.ImageID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisRecordPrefix+record.ImageID, payload, 0)
	pipe.SAdd(ctx, redisIndexKey, record.ImageID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, imageID string) (*mask.Record, error) {
	payload, err := s.client.Get(ctx, redisRecordPrefix+imageID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return mask.DecodeRecord(imageID, payload)
}

func (s *RedisStore) Delete(ctx context.Context, imageID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, redisRecordPrefix+imageID)
	pipe.SRem(ctx, redisIndexKey, imageID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Index entry without a record: a delete raced the listing.
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(record))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].ImageID < summaries[j].ImageID
	})
	return summaries, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
