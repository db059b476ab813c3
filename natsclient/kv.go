package natsclient

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"context"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/flowkit/errors"
)

// KVEntry is a KV value together with its revision for CAS operations.
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVOptions configures KV operation behavior.
type KVOptions struct {
	Timeout      time.Duration
	MaxValueSize int
}

// DefaultKVOptions returns the defaults used when none are supplied.
func DefaultKVOptions() KVOptions {
	return KVOptions{
		Timeout:      5 * time.Second,
		MaxValueSize: 1024 * 1024,
	}
}

// KVStore wraps a JetStream KV bucket with timeouts, size limits, and
// normalized errors.
type KVStore struct {
	bucket  jetstream.KeyValue
	options KVOptions
	logger  *slog.Logger
}

// NewKVStore wraps the bucket with the client's logger.
func (c *Client) NewKVStore(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVStore {
	options := DefaultKVOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &KVStore{
		bucket:  bucket,
		options: options,
		logger:  c.logger,
	}
}

func (kv *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.options.Timeout > 0 {
		return context.WithTimeout(ctx, kv.options.Timeout)
	}
	return ctx, func() {}
}

func (kv *KVStore) checkSize(value []byte) error {
	if kv.options.MaxValueSize > 0 && len(value) > kv.options.MaxValueSize {
		return errors.WrapInvalid(
			fmt.Errorf("value size %d exceeds maximum %d", len(value), kv.options.MaxValueSize),
			"natsclient", "KVStore", "value size check")
	}
	return nil
}

// Get retrieves a value with its revision.
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	entry, err := kv.bucket.Get(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return &KVEntry{Key: key, Value: entry.Value(), Revision: entry.Revision()}, nil
}

// Put creates or updates a key without a revision check, last writer wins.
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := kv.checkSize(value); err != nil {
		return 0, err
	}
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	rev, err := kv.bucket.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("kv put %s: %w", key, err)
	}
	kv.logger.Debug("kv put", "key", key, "revision", rev)
	return rev, nil
}

// Create stores the value only if the key does not exist.
func (kv *KVStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := kv.checkSize(value); err != nil {
		return 0, err
	}
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	rev, err := kv.bucket.Create(ctx, key, value)
	if err != nil {
		if IsKVConflictError(err) {
			return 0, errors.ErrAlreadyExists
		}
		return 0, fmt.Errorf("kv create %s: %w", key, err)
	}
	kv.logger.Debug("kv create", "key", key, "revision", rev)
	return rev, nil
}

// Update performs a CAS update against an explicit revision.
func (kv *KVStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := kv.checkSize(value); err != nil {
		return 0, err
	}
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	rev, err := kv.bucket.Update(ctx, key, value, revision)
	if err != nil {
		if IsKVConflictError(err) {
			return 0, errors.ErrVersionConflict
		}
		return 0, fmt.Errorf("kv update %s: %w", key, err)
	}
	kv.logger.Debug("kv update", "key", key, "old_revision", revision, "new_revision", rev)
	return rev, nil
}

// Delete removes a key.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	if err := kv.bucket.Delete(ctx, key); err != nil {
		if IsKVNotFoundError(err) {
			return errors.ErrKeyNotFound
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the keys in the bucket. An empty bucket yields an empty list.
func (kv *KVStore) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	keys, err := kv.bucket.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv keys: %w", err)
	}
	return keys, nil
}

// Watch creates a watcher for key changes. No timeout is applied since the
// watcher is long-lived.
func (kv *KVStore) Watch(ctx context.Context, pattern string) (jetstream.KeyWatcher, error) {
	watcher, err := kv.bucket.Watch(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("kv watch %s: %w", pattern, err)
	}
	return watcher, nil
}

// IsKVNotFoundError reports whether the error indicates a missing key.
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, errors.ErrKeyNotFound) || stderrors.Is(err, jetstream.ErrKeyNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "key not found") || strings.Contains(msg, "10037")
}

// IsKVConflictError reports whether the error indicates a create/update
// conflict: key exists, or wrong revision.
func IsKVConflictError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, errors.ErrVersionConflict) || stderrors.Is(err, errors.ErrAlreadyExists) ||
		stderrors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "wrong last sequence") ||
		strings.Contains(msg, "10071") ||
		strings.Contains(msg, "key exists") ||
		strings.Contains(msg, "10058")
}
