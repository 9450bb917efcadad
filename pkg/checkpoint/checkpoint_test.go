package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/nodeiter"
)

func sampleFrozen() nodeiter.FrozenIterator {
	cursor := "QVFD"
	count := int64(120)
	best := time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)
	return nodeiter.FrozenIterator{
		QueryHash:      "003056d32c2554def87228bc3fd9668a",
		QueryVariables: map[string]interface{}{"id": "1234567890"},
		TotalIndex:     7,
		BestBefore:     &best,
		RemainingData: &nodeiter.PageBuffer{
			Count:    &count,
			PageInfo: nodeiter.PageInfo{HasNextPage: true, EndCursor: &cursor},
			Edges: []nodeiter.Edge{
				{Node: nodeiter.Node{"shortcode": "abc", "taken_at_timestamp": 1700000000}},
			},
		},
	}
}

func newFileStore(t *testing.T, compress bool) *FileStore {
	t.Helper()
	store, err := NewFileStore(FileOptions{
		Directory: t.TempDir(),
		Base:      "natgeo",
		Prefix:    "iterator",
		Compress:  compress,
	})
	require.NoError(t, err)
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			store := newFileStore(t, compress)
			ctx := context.Background()
			path := store.PathFor("AbCdEfGh")

			exists, err := store.Exists(ctx, path)
			require.NoError(t, err)
			assert.False(t, exists)

			frozen := sampleFrozen()
			require.NoError(t, store.Save(ctx, path, frozen))

			exists, err = store.Exists(ctx, path)
			require.NoError(t, err)
			assert.True(t, exists)

			loaded, err := store.Load(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, frozen.QueryHash, loaded.QueryHash)
			assert.Equal(t, frozen.TotalIndex, loaded.TotalIndex)
			assert.True(t, frozen.BestBefore.Equal(*loaded.BestBefore))
			require.NotNil(t, loaded.RemainingData)
			assert.Equal(t, "QVFD", *loaded.RemainingData.PageInfo.EndCursor)
			assert.Equal(t, json.Number("1700000000"), loaded.RemainingData.Edges[0].Node["taken_at_timestamp"])
			assert.Equal(t, "1234567890", loaded.QueryVariables["id"])

			require.NoError(t, store.Delete(ctx, path))
			exists, err = store.Exists(ctx, path)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestFileStorePathFor(t *testing.T) {
	plain := newFileStore(t, false)
	assert.Equal(t, filepath.Join(plain.Directory(), "natgeo_iterator_AbCdEfGh.json"), plain.PathFor("AbCdEfGh"))

	compressed := newFileStore(t, true)
	assert.Equal(t, filepath.Join(compressed.Directory(), "natgeo_iterator_AbCdEfGh.json.zst"), compressed.PathFor("AbCdEfGh"))

	other := plain.ForTarget("a/b").PathFor("m")
	assert.Equal(t, filepath.Join(plain.Directory(), "a_b_iterator_m.json"), other)
	// the original store keeps its base
	assert.Equal(t, filepath.Join(plain.Directory(), "natgeo_iterator_m.json"), plain.PathFor("m"))
}

func TestFileStoreCompressedOnDisk(t *testing.T) {
	store := newFileStore(t, true)
	path := store.PathFor("zzz")
	require.NoError(t, store.Save(context.Background(), path, sampleFrozen()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 4)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, data[:4])
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	store := newFileStore(t, false)
	ctx := context.Background()
	path := store.PathFor("m")
	require.NoError(t, store.Save(ctx, path, sampleFrozen()))
	// overwrite in place
	frozen := sampleFrozen()
	frozen.TotalIndex = 9
	require.NoError(t, store.Save(ctx, path, frozen))

	entries, err := os.ReadDir(store.Directory())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "natgeo_iterator_m.json", entries[0].Name())

	loaded, err := store.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.TotalIndex)
}

func TestFileStoreEnvelope(t *testing.T) {
	store := newFileStore(t, false)
	path := store.PathFor("m")
	require.NoError(t, store.Save(context.Background(), path, sampleFrozen()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "FrozenIterator", raw["igcrawler"]["node_type"])
	assert.Equal(t, Version, raw["igcrawler"]["version"])
	assert.Equal(t, "003056d32c2554def87228bc3fd9668a", raw["node"]["query_hash"])
}

func TestFileStoreLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{name: "malformed json", content: []byte("{not json")},
		{name: "wrong node type", content: []byte(`{"node": {"query_hash": "x"}, "igcrawler": {"version": "1", "node_type": "Post"}}`)},
		{name: "missing envelope", content: []byte(`{"query_hash": "x", "total_index": 3}`)},
		{name: "null node", content: []byte(`{"node": null, "igcrawler": {"version": "1", "node_type": "FrozenIterator"}}`)},
		{name: "bad node", content: []byte(`{"node": {"total_index": "seven"}, "igcrawler": {"version": "1", "node_type": "FrozenIterator"}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFileStore(t, false)
			path := store.PathFor("m")
			require.NoError(t, os.WriteFile(path, tt.content, 0644))

			_, err := store.Load(context.Background(), path)
			require.Error(t, err)
			assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidArgument), "got %v", err)
		})
	}
}

func TestFileStoreLoadCorruptCompressed(t *testing.T) {
	store := newFileStore(t, true)
	path := store.PathFor("m")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not zstd"), 0644))

	_, err := store.Load(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidArgument))
}

func TestFileStoreDeleteMissing(t *testing.T) {
	store := newFileStore(t, false)
	assert.NoError(t, store.Delete(context.Background(), store.PathFor("gone")))
}

func TestDefaultDirectory(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only applies on linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "igcrawler", "resume"), got)
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "test:resume", time.Hour, nil)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store.ForTarget("natgeo").(*RedisStore)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, store := setupMiniredis(t)
	ctx := context.Background()

	key := store.PathFor("AbCdEfGh")
	assert.Equal(t, "test:resume:natgeo:AbCdEfGh", key)

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, key, sampleFrozen()))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.TotalIndex)
	assert.Equal(t, "QVFD", *loaded.RemainingData.PageInfo.EndCursor)

	require.NoError(t, store.Delete(ctx, key))
	assert.False(t, mr.Exists(key))
}

func TestRedisStoreExpiry(t *testing.T) {
	mr, store := setupMiniredis(t)
	ctx := context.Background()
	key := store.PathFor("m")

	require.NoError(t, store.Save(ctx, key, sampleFrozen()))
	mr.FastForward(2 * time.Hour)

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStoreLoadRejects(t *testing.T) {
	mr, store := setupMiniredis(t)
	ctx := context.Background()

	_, err := store.Load(ctx, store.PathFor("missing"))
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidArgument))

	key := store.PathFor("bad")
	require.NoError(t, mr.Set(key, `{"node": {}, "igcrawler": {"node_type": "Profile"}}`))
	_, err = store.Load(ctx, key)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidArgument))
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")

	_, err = NewRedisStore(context.Background(), RedisOptions{})
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Resume.Directory = t.TempDir()
	cfg.Resume.Compress = false

	backend, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer backend.Close()
	assert.Equal(t, filepath.Join(cfg.Resume.Directory, "natgeo_iterator_m.json"), backend.ForTarget("natgeo").PathFor("m"))

	mr := miniredis.RunT(t)
	cfg.Resume.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()
	backend, err = Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer backend.Close()
	assert.Equal(t, "igcrawler:resume:iterator:natgeo:m", backend.ForTarget("natgeo").PathFor("m"))

	cfg.Resume.Backend = "s3"
	_, err = Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}
