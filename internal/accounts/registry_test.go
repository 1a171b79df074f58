package accounts_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/podping-watcher/internal/accounts"
	"github.com/your-org/podping-watcher/pkg/metrics"
)

type resolverFunc func(ctx context.Context) ([]string, error)

func (f resolverFunc) Resolve(ctx context.Context) ([]string, error) { return f(ctx) }

func newRegistry(t *testing.T, r accounts.Resolver) (*accounts.Registry, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return accounts.NewRegistry(accounts.Params{
		Resolver: r,
		Anchors:  []string{"podping"},
		Logger:   zap.NewNop(),
		Metrics:  m,
	}), m
}

func TestRegistry_SeededWithAnchors(t *testing.T) {
	reg, m := newRegistry(t, accounts.StaticResolver{"podping.aaa"})

	assert.Equal(t, []string{"podping"}, reg.Snapshot().Names())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthorizedAccounts))
}

func TestRegistry_Refresh(t *testing.T) {
	reg, m := newRegistry(t, accounts.StaticResolver{"podping.aaa", "podping.bbb", "podping"})

	require.NoError(t, reg.Refresh(context.Background()))
	assert.Equal(t, []string{"podping", "podping.aaa", "podping.bbb"}, reg.Snapshot().Names())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AuthorizedAccounts))
}

func TestRegistry_RefreshFailureKeepsSnapshot(t *testing.T) {
	calls := 0
	reg, m := newRegistry(t, resolverFunc(func(context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return []string{"podping.aaa"}, nil
		}
		return nil, errors.New("node unavailable")
	}))

	require.NoError(t, reg.Refresh(context.Background()))
	before := reg.Snapshot()

	err := reg.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, before.Names(), reg.Snapshot().Names())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccountRefreshFailures))
}

func TestRegistry_SnapshotIsStable(t *testing.T) {
	names := []string{"podping.aaa"}
	reg, _ := newRegistry(t, resolverFunc(func(context.Context) ([]string, error) {
		return names, nil
	}))

	require.NoError(t, reg.Refresh(context.Background()))
	snap := reg.Snapshot()

	names = []string{"podping.zzz"}
	require.NoError(t, reg.Refresh(context.Background()))

	assert.True(t, snap.Contains("podping.aaa"))
	assert.False(t, snap.Contains("podping.zzz"))
	assert.True(t, reg.Snapshot().Contains("podping.zzz"))
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	refreshed := make(chan struct{}, 1)
	reg, _ := newRegistry(t, resolverFunc(func(context.Context) ([]string, error) {
		select {
		case refreshed <- struct{}{}:
		default:
		}
		return []string{"podping.ccc"}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("registry never refreshed")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRedisResolver(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectSMembers("podping:accounts").SetVal([]string{"podping.aaa", "podping.spk"})

	names, err := accounts.NewRedisResolver(db, "podping:accounts").Resolve(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"podping.aaa", "podping.spk"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisResolver_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectSMembers("podping:accounts").SetErr(errors.New("connection refused"))

	_, err := accounts.NewRedisResolver(db, "podping:accounts").Resolve(context.Background())
	assert.Error(t, err)
}

type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Close() error { return nil }

func TestObjectStoreResolver(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"accounts.json": []byte(`["podping.aaa","podping.bol"]`),
		"broken.json":   []byte(`{"accounts":`),
	}}

	names, err := accounts.NewObjectStoreResolver(store, "accounts.json").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"podping.aaa", "podping.bol"}, names)

	_, err = accounts.NewObjectStoreResolver(store, "broken.json").Resolve(context.Background())
	assert.Error(t, err)

	_, err = accounts.NewObjectStoreResolver(store, "missing.json").Resolve(context.Background())
	assert.Error(t, err)
}

func TestNewResolver(t *testing.T) {
	db, _ := redismock.NewClientMock()

	r, err := accounts.NewResolver(accounts.SourceStatic, accounts.ResolverParams{Static: []string{"a"}})
	require.NoError(t, err)
	assert.IsType(t, accounts.StaticResolver{}, r)

	r, err = accounts.NewResolver(accounts.SourceRedis, accounts.ResolverParams{Redis: db, RedisKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &accounts.RedisResolver{}, r)

	r, err = accounts.NewResolver(accounts.SourceObjectStore, accounts.ResolverParams{Store: &fakeStore{}, ObjectKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &accounts.ObjectStoreResolver{}, r)

	_, err = accounts.NewResolver(accounts.SourceRedis, accounts.ResolverParams{})
	assert.Error(t, err)

	_, err = accounts.NewResolver("hive", accounts.ResolverParams{})
	assert.Error(t, err)
}
