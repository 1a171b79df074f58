package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/podping-watcher/pkg/storage/objectstore"
)

// Resolver lists the accounts trusted in addition to the anchors. Trust
// expansion (for example "accounts followed by podping") happens in
// whatever maintains the underlying source.
type Resolver interface {
	Resolve(ctx context.Context) ([]string, error)
}

// Source names accepted by NewResolver.
const (
	SourceStatic      = "static"
	SourceRedis       = "redis"
	SourceObjectStore = "objectstore"
)

// ResolverParams carries the dependencies a resolver source may need.
type ResolverParams struct {
	Static    []string
	Redis     redis.Cmdable
	RedisKey  string
	Store     objectstore.Client
	ObjectKey string
}

// NewResolver selects a resolver implementation by source name.
func NewResolver(source string, p ResolverParams) (Resolver, error) {
	switch source {
	case SourceStatic:
		return StaticResolver(p.Static), nil
	case SourceRedis:
		if p.Redis == nil {
			return nil, errors.New("redis resolver requires a client")
		}
		return NewRedisResolver(p.Redis, p.RedisKey), nil
	case SourceObjectStore:
		if p.Store == nil {
			return nil, errors.New("object store resolver requires a client")
		}
		return NewObjectStoreResolver(p.Store, p.ObjectKey), nil
	default:
		return nil, fmt.Errorf("unsupported account source: %s", source)
	}
}

// StaticResolver returns a fixed list.
type StaticResolver []string

func (s StaticResolver) Resolve(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// RedisResolver reads the members of a Redis set.
type RedisResolver struct {
	client redis.Cmdable
	key    string
}

func NewRedisResolver(client redis.Cmdable, key string) *RedisResolver {
	return &RedisResolver{client: client, key: key}
}

func (r *RedisResolver) Resolve(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", r.key, err)
	}
	return names, nil
}

// ObjectStoreResolver reads a JSON array of account names from a bucket
// object.
type ObjectStoreResolver struct {
	store objectstore.Client
	key   string
}

func NewObjectStoreResolver(store objectstore.Client, key string) *ObjectStoreResolver {
	return &ObjectStoreResolver{store: store, key: key}
}

func (o *ObjectStoreResolver) Resolve(ctx context.Context) ([]string, error) {
	body, err := o.store.Get(ctx, o.key)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", o.key, err)
	}
	defer body.Close()

	var names []string
	if err := json.NewDecoder(body).Decode(&names); err != nil {
		return nil, fmt.Errorf("decode account list %s: %w", o.key, err)
	}
	return names, nil
}
