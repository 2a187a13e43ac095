package buildcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_MissThenHit(t *testing.T) {
	c := openTestCache(t)

	_, hit, err := c.Get("/a/", "src1", "deps1")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Put("/a/", "src1", "deps1", []byte("<html>a</html>")))

	body, hit, err := c.Get("/a/", "src1", "deps1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("<html>a</html>"), body)
}

func TestCache_StaleOnHashChange(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("/a/", "src1", "deps1", []byte("x")))

	_, hit, err := c.Get("/a/", "src2", "deps1")
	require.NoError(t, err)
	assert.False(t, hit, "source change must invalidate")

	_, hit, err = c.Get("/a/", "src1", "deps2")
	require.NoError(t, err)
	assert.False(t, hit, "dependency change must invalidate")
}

func TestCache_PutReplaces(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("/a/", "src1", "deps1", []byte("old")))
	require.NoError(t, c.Put("/a/", "src2", "deps1", []byte("new")))

	body, hit, err := c.Get("/a/", "src2", "deps1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("new"), body)
}

func TestCache_PruneDropsDeadRoutes(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("/live/", "s", "d", []byte("x")))
	require.NoError(t, c.Put("/dead/", "s", "d", []byte("y")))

	require.NoError(t, c.Prune(map[string]bool{"/live/": true}))

	_, hit, err := c.Get("/live/", "s", "d")
	require.NoError(t, err)
	assert.True(t, hit)
	_, hit, err = c.Get("/dead/", "s", "d")
	require.NoError(t, err)
	assert.False(t, hit)
}
