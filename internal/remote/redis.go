package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic retries when a watched key changes mid-write
const maxTxRetries = 8

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Prefix namespaces every key, normally the app id.
	Prefix string
}

// DefaultRedisConfig returns a local single-node configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Prefix:       "learnsync",
	}
}

// Addr returns the Redis address in "host:port" format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisStore keeps every document as a JSON string. Each collection has a
// sorted set of ids (scored by arrival) and a pub/sub channel that carries the
// id of every changed document.
//
//	<prefix>:<collection>:doc:<id>   JSON document
//	<prefix>:<collection>:ids        ZSET of ids
//	<prefix>:<collection>:seq        arrival counter
//	<prefix>:<collection>:changes    pub/sub channel
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connection failed: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.Prefix, logger), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "learnsync"
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) docKey(ref Ref) string {
	return fmt.Sprintf("%s:%s:doc:%s", s.prefix, ref.Collection, ref.ID)
}

func (s *RedisStore) idsKey(collection string) string {
	return fmt.Sprintf("%s:%s:ids", s.prefix, collection)
}

func (s *RedisStore) seqKey(collection string) string {
	return fmt.Sprintf("%s:%s:seq", s.prefix, collection)
}

func (s *RedisStore) channel(collection string) string {
	return fmt.Sprintf("%s:%s:changes", s.prefix, collection)
}

// Get reads one document
func (s *RedisStore) Get(ctx context.Context, ref Ref) (Document, error) {
	if err := ref.validate(); err != nil {
		return Document{}, err
	}
	raw, err := s.client.Get(ctx, s.docKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return Document{}, fmt.Errorf("redis: get %s: %w", ref, err)
	}
	data, err := decodeJSONDoc(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: ref.ID, Data: data}, nil
}

// Merge writes field paths, creating the document when absent
func (s *RedisStore) Merge(ctx context.Context, ref Ref, fields map[string]interface{}) error {
	if err := ref.validate(); err != nil {
		return err
	}
	return s.update(ctx, ref, true, func(doc map[string]interface{}, now time.Time) error {
		return applyFields(doc, fields, now)
	})
}

// Create adds a document under a generated id
func (s *RedisStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	ref := Ref{Collection: collection, ID: NewID()}
	if err := ref.validate(); err != nil {
		return "", err
	}
	err := s.update(ctx, ref, true, func(doc map[string]interface{}, now time.Time) error {
		return applyFields(doc, fields, now)
	})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Apply runs every mutation in one optimistic transaction
func (s *RedisStore) Apply(ctx context.Context, ref Ref, mutations ...Mutation) error {
	if err := ref.validate(); err != nil {
		return err
	}
	return s.update(ctx, ref, false, func(doc map[string]interface{}, now time.Time) error {
		for _, m := range mutations {
			if err := applyMutation(doc, m, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// update is a WATCH/MULTI read-modify-write of one document. Server time is
// read first so ServerTimestamp follows the Redis clock.
func (s *RedisStore) update(ctx context.Context, ref Ref, upsert bool, fn func(doc map[string]interface{}, now time.Time) error) error {
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis: time: %w", err)
	}
	now = now.UTC()
	key := s.docKey(ref)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}
		if !exists && !upsert {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}

		doc := make(map[string]interface{})
		if exists {
			if doc, err = decodeJSONDoc(raw); err != nil {
				return err
			}
		}
		if err := fn(doc, now); err != nil {
			return err
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("redis: encode %s: %w", ref, err)
		}

		var seq int64
		if !exists {
			if seq, err = tx.Incr(ctx, s.seqKey(ref.Collection)).Result(); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			if !exists {
				pipe.ZAddNX(ctx, s.idsKey(ref.Collection), redis.Z{Score: float64(seq), Member: ref.ID})
			}
			pipe.Publish(ctx, s.channel(ref.Collection), ref.ID)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrConflict, ref)
}

// WatchDocument subscribes to one document
func (s *RedisStore) WatchDocument(ctx context.Context, ref Ref, onSnapshot DocumentHandler, onError ErrorHandler) (Subscription, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	refresh := func(ctx context.Context) error {
		doc, err := s.Get(ctx, ref)
		if errors.Is(err, ErrNotFound) {
			onSnapshot(Document{ID: ref.ID}, false)
			return nil
		}
		if err != nil {
			return err
		}
		onSnapshot(doc, true)
		return nil
	}
	return s.watch(ctx, ref.Collection, refresh, func(id string) bool { return id == ref.ID }, onError)
}

// WatchCollection subscribes to a whole collection
func (s *RedisStore) WatchCollection(ctx context.Context, collection string, onSnapshot CollectionHandler, onError ErrorHandler) (Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection", ErrInvalidPath)
	}
	refresh := func(ctx context.Context) error {
		docs, err := s.list(ctx, collection)
		if err != nil {
			return err
		}
		onSnapshot(docs)
		return nil
	}
	return s.watch(ctx, collection, refresh, func(string) bool { return true }, onError)
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) list(ctx context.Context, collection string) ([]Document, error) {
	ids, err := s.client.ZRange(ctx, s.idsKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(Ref{Collection: collection, ID: id})
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		data, err := decodeJSONDoc([]byte(raw))
		if err != nil {
			s.logger.Warn("skipping undecodable document", "collection", collection, "id", ids[i], "error", err)
			continue
		}
		docs = append(docs, Document{ID: ids[i], Data: data})
	}
	return docs, nil
}

// watch subscribes before the first read so no change between the two is missed
func (s *RedisStore) watch(ctx context.Context, collection string, refresh func(context.Context) error, match func(id string) bool, onError ErrorHandler) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", collection, err)
	}

	if err := refresh(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSubscription{pubsub: pubsub, cancel: cancel}
	ch := pubsub.Channel()

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					if subCtx.Err() == nil && onError != nil {
						onError(fmt.Errorf("%w: channel %s", ErrStreamClosed, collection))
					}
					return
				}
				if !match(msg.Payload) {
					continue
				}
				if err := refresh(subCtx); err != nil && subCtx.Err() == nil {
					s.logger.Warn("redis refresh failed", "collection", collection, "error", err)
					if onError != nil {
						onError(err)
					}
				}
			}
		}
	}()

	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	once   sync.Once
}

func (r *redisSubscription) Close() {
	r.once.Do(func() {
		r.cancel()
		_ = r.pubsub.Close()
	})
}

func decodeJSONDoc(raw []byte) (map[string]interface{}, error) {
	doc := make(map[string]interface{})
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("redis: decode document: %w", err)
	}
	return doc, nil
}
