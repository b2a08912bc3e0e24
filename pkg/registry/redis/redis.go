package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rehash-labs/erc7739-go/pkg/registry"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixAccount     = "sig:account:"
	keySchemaVersion     = "sig:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Index set for listing (Redis doesn't support prefix iteration natively)
	keySetAccounts = "sig:accounts:index"
)

// RedisStore is a registry implementation backed by Redis, suitable for
// deployments where several service replicas share one account set.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). If set, keys look like "myapp:sig:account:<id>".
	KeyPrefix string
}

// NewRedisStore creates a new Redis-backed registry.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.KeyPrefix != "" {
		logger.Sugar().Infow("Redis registry initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	} else {
		logger.Sugar().Infow("Redis registry initialized", "address", cfg.Address, "db", cfg.DB)
	}

	return rs, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisStore) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveAccount persists an account record
func (r *RedisStore) SaveAccount(record *registry.AccountRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil AccountRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("registry is closed")
	}

	ctx := context.Background()

	data, err := registry.MarshalAccountRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal AccountRecord: %w", err)
	}

	// Store in Redis using a pipeline so the value and its index entry land
	// together.
	key := r.prefixKey(keyPrefixAccount + record.AccountID)
	indexKey := r.prefixKey(keySetAccounts)
	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, indexKey, record.AccountID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save AccountRecord: %w", err)
	}

	return nil
}

// GetAccount retrieves an account record by id
func (r *RedisStore) GetAccount(accountID string) (*registry.AccountRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("registry is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixAccount + accountID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AccountRecord: %w", err)
	}

	record, err := registry.UnmarshalAccountRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal AccountRecord: %w", err)
	}

	return record, nil
}

// ListAccounts returns all account records sorted by account id
func (r *RedisStore) ListAccounts() ([]*registry.AccountRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("registry is closed")
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetAccounts)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list account ids: %w", err)
	}

	if len(ids) == 0 {
		return []*registry.AccountRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(keyPrefixAccount + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch AccountRecords: %w", err)
	}

	var records []*registry.AccountRecord
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for AccountRecord", "key", keys[i])
			continue
		}

		record, err := registry.UnmarshalAccountRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal AccountRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].AccountID < records[j].AccountID
	})

	return records, nil
}

// DeleteAccount removes an account record
func (r *RedisStore) DeleteAccount(accountID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("registry is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixAccount + accountID)
	indexKey := r.prefixKey(keySetAccounts)

	pipe := r.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, indexKey, accountID)

	_, err := pipe.Exec(ctx)
	return err
}

// Close shuts down the registry
func (r *RedisStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis registry closed")
	return nil
}

// HealthCheck verifies the registry is operational
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("registry is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	schemaKey := r.prefixKey(keySchemaVersion)
	_, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
