package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/shared"
	"github.com/redis/go-redis/v9"
)

// RedisResponseStore keeps the current job in Redis under a key prefix.
//
// Save runs in a MULTI/EXEC pipeline so readers never see a job without its inputs.
type RedisResponseStore struct {
	client       *redis.Client
	prefix       string
	historyLimit int
}

// NewRedisResponseStore wraps an existing client. A historyLimit <= 0 uses [DefaultHistory].
func NewRedisResponseStore(client *redis.Client, prefix string, historyLimit int) *RedisResponseStore {
	if historyLimit <= 0 {
		historyLimit = DefaultHistory
	}
	return &RedisResponseStore{client: client, prefix: prefix, historyLimit: historyLimit}
}

// OpenRedisResponseStore connects using the [store] config section and pings the server.
func OpenRedisResponseStore(ctx context.Context, conf shared.StoreConfig) (*RedisResponseStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis %s: %v", shared.ErrStoreUnavailable, conf.RedisAddr, err)
	}
	return NewRedisResponseStore(client, conf.Prefix, conf.HistoryLimit), nil
}

// Close closes the underlying client.
func (s *RedisResponseStore) Close() error {
	return s.client.Close()
}

func (s *RedisResponseStore) key(k string) string {
	return s.prefix + k
}

// Save atomically replaces the current job and inputs and records the job in history.
func (s *RedisResponseStore) Save(ctx context.Context, job *models.GenerationJob, inputs *models.GenerationInputs) error {
	jobData, err := encodeJob(job)
	if err != nil {
		return err
	}
	inputsData, err := encodeInputs(inputs)
	if err != nil {
		return err
	}
	rec, err := encodeHistory(jobData, inputsData, time.Now())
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeyResponse), jobData, 0)
		if inputsData != nil {
			pipe.Set(ctx, s.key(KeyInputs), inputsData, 0)
		} else {
			pipe.Del(ctx, s.key(KeyInputs))
		}
		pipe.LPush(ctx, s.key(KeyHistory), rec)
		pipe.LTrim(ctx, s.key(KeyHistory), 0, int64(s.historyLimit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Current returns the current job, or nil when none is stored.
func (s *RedisResponseStore) Current(ctx context.Context) (*models.GenerationJob, error) {
	data, err := s.get(ctx, KeyResponse)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeJob(data)
}

// CurrentInputs returns the inputs of the current job, or nil when none are stored.
func (s *RedisResponseStore) CurrentInputs(ctx context.Context) (*models.GenerationInputs, error) {
	data, err := s.get(ctx, KeyInputs)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeInputs(data)
}

// SaveSourceImage stores the source image bytes.
func (s *RedisResponseStore) SaveSourceImage(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("source image is empty")
	}
	if err := s.client.Set(ctx, s.key(KeySourceImage), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", KeySourceImage, err)
	}
	return nil
}

// SourceImage returns the stored source image, or nil.
func (s *RedisResponseStore) SourceImage(ctx context.Context) ([]byte, error) {
	return s.get(ctx, KeySourceImage)
}

// Clear removes the current job, its inputs and the source image. History is kept.
func (s *RedisResponseStore) Clear(ctx context.Context) error {
	err := s.client.Del(ctx, s.key(KeyResponse), s.key(KeyInputs), s.key(KeySourceImage)).Err()
	if err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}

// History returns up to limit previously saved jobs, newest first.
func (s *RedisResponseStore) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	records, err := s.client.LRange(ctx, s.key(KeyHistory), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]models.HistoryEntry, 0, len(records))
	for _, rec := range records {
		entry, err := decodeHistory([]byte(rec))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisResponseStore) get(ctx context.Context, k string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", k, err)
	}
	return data, nil
}
