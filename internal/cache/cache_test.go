package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/readmecheck/internal/model"
)

func TestKey(t *testing.T) {
	a := Key("link", "https://example.com")
	b := Key("link", "https://example.com/")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Key("link", "https://example.com"))
	assert.Contains(t, a, "readmecheck:v1:link:")
	assert.NotEqual(t, a, Key("robots", "https://example.com"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestDiskCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := NewDiskCache(dir, time.Hour)
	key := Key("link", "https://example.com")

	require.NoError(t, c.Set(key, []byte(`{"alive":true}`), 0))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, `{"alive":true}`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.NotContains(t, entries[0].Name(), ":")

	require.NoError(t, c.Delete(key))
	require.NoError(t, c.Delete(key), "deleting a missing key is not an error")
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestDiskCache_Expired(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	require.NoError(t, c.Set("k", []byte("v"), time.Nanosecond))
	time.Sleep(2 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
	_, err := os.Stat(c.path("k"))
	assert.True(t, os.IsNotExist(err), "expired entries are removed on read")
}

func TestDiskCache_Corrupt(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	require.NoError(t, os.WriteFile(c.path("k"), []byte("not json"), 0o644))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewDiskCache(dir, time.Hour).Set("k", []byte("v"), 0))

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	mem := c.memory.(*MemoryCache)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, c.Clear())
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	c, err := New(model.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	dir := t.TempDir()
	c, err = New(model.CacheConfig{Enabled: true, Dir: dir})
	require.NoError(t, err)
	layered, ok := c.(*LayeredCache)
	require.True(t, ok)
	assert.Equal(t, dir, layered.disk.(*DiskCache).dir)
}
