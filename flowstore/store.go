package flowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/natsclient"
)

// BucketName is the KV bucket holding flow documents.
const BucketName = "flowkit_flows"

// KV is the key-value surface the store needs. natsclient.KVStore satisfies
// it; tests use an in-memory implementation.
type KV interface {
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Store persists Flow documents in NATS KV.
type Store struct {
	kv KV
}

// NewStore creates the flow bucket (bind-if-exists) and returns a store
// backed by it.
func NewStore(ctx context.Context, client *natsclient.Client) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "flowstore", "NewStore", "nats client cannot be nil")
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketName,
		Description: "Flow documents: node-graph layout and pin state",
		History:     10,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "flowstore", "NewStore", "create KV bucket")
	}

	return NewStoreWithKV(client.NewKVStore(bucket)), nil
}

// NewStoreWithKV returns a store over an existing KV surface.
func NewStoreWithKV(kv KV) *Store {
	return &Store{kv: kv}
}

// Create stores a new flow. The flow's version is initialized to 1.
func (s *Store) Create(ctx context.Context, flow *Flow) error {
	if flow == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "flowstore", "Create", "flow cannot be nil")
	}
	if err := flow.Validate(); err != nil {
		return err
	}

	flow.Version = 1
	now := time.Now()
	flow.CreatedAt = now
	flow.UpdatedAt = now

	data, err := json.Marshal(flow)
	if err != nil {
		return errors.WrapFatal(err, "flowstore", "Create", "marshal flow")
	}

	if _, err := s.kv.Create(ctx, flow.ID, data); err != nil {
		if natsclient.IsKVConflictError(err) {
			return errors.WrapInvalid(errors.ErrAlreadyExists, "flowstore", "Create", "flow "+flow.ID)
		}
		return errors.WrapTransient(err, "flowstore", "Create", "create in KV")
	}
	return nil
}

// Get retrieves a flow by ID.
func (s *Store) Get(ctx context.Context, id string) (*Flow, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "flowstore", "Get", "flow ID cannot be empty")
	}

	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "flowstore", "Get", "flow "+id)
		}
		return nil, errors.WrapTransient(err, "flowstore", "Get", "get from KV")
	}

	var flow Flow
	if err := json.Unmarshal(entry.Value, &flow); err != nil {
		return nil, errors.WrapFatal(err, "flowstore", "Get", "unmarshal flow")
	}
	return &flow, nil
}

// Update stores a new revision of the flow with optimistic concurrency:
// the given flow's version must match the stored version.
func (s *Store) Update(ctx context.Context, flow *Flow) error {
	if flow == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "flowstore", "Update", "flow cannot be nil")
	}
	if err := flow.Validate(); err != nil {
		return err
	}

	current, err := s.Get(ctx, flow.ID)
	if err != nil {
		return err
	}
	if current.Version != flow.Version {
		return errors.WrapInvalid(
			fmt.Errorf("%w: expected %d, got %d", errors.ErrVersionConflict, current.Version, flow.Version),
			"flowstore", "Update", "flow was modified concurrently")
	}

	flow.Version++
	flow.CreatedAt = current.CreatedAt
	flow.UpdatedAt = time.Now()

	data, err := json.Marshal(flow)
	if err != nil {
		return errors.WrapFatal(err, "flowstore", "Update", "marshal flow")
	}

	if _, err := s.kv.Put(ctx, flow.ID, data); err != nil {
		return errors.WrapTransient(err, "flowstore", "Update", "put to KV")
	}
	return nil
}

// Delete removes a flow by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "flowstore", "Delete", "flow ID cannot be empty")
	}
	if err := s.kv.Delete(ctx, id); err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return errors.WrapInvalid(errors.ErrKeyNotFound, "flowstore", "Delete", "flow "+id)
		}
		return errors.WrapTransient(err, "flowstore", "Delete", "delete from KV")
	}
	return nil
}

// List retrieves all flows.
func (s *Store) List(ctx context.Context) ([]*Flow, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "flowstore", "List", "list KV keys")
	}

	flows := make([]*Flow, 0, len(keys))
	for _, key := range keys {
		flow, err := s.Get(ctx, key)
		if err != nil {
			return nil, errors.WrapTransient(err, "flowstore", "List", fmt.Sprintf("get flow %s", key))
		}
		flows = append(flows, flow)
	}
	return flows, nil
}
