package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextString(t *testing.T) {
	for _, tt := range []struct {
		ctx  Context
		want string
	}{
		{Context{}, "(no context set)"},
		{Context{ActorID: "0123456789abcdef"}, "actor:01234567"},
		{Context{RegionID: "r1", RegionName: "North"}, "region:North"},
		{Context{ActorID: "u", ActorEmail: "ann@example.com", RegionID: "r", RegionName: "North"}, "actor:ann@example.com region:North"},
	} {
		assert.Equal(t, tt.want, tt.ctx.String())
	}
}

func TestContextSelections(t *testing.T) {
	var c Context
	assert.True(t, c.IsEmpty())

	c.SetRegion("r1", "North")
	assert.True(t, c.HasRegion())
	assert.False(t, c.HasActor())
	assert.False(t, c.IsEmpty())
	assert.False(t, c.UpdatedAt.IsZero())

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.False(t, c.UpdatedAt.IsZero(), "Clear stamps UpdatedAt")
}

func TestContextStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	store := NewContextStore(filepath.Join(dir, "context.yaml"))

	empty, err := store.Load()
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty(), "missing file loads as empty context")

	var c Context
	c.SetActor("user_abc123", "ann@example.com")
	c.SetRegion("region_xyz", "North")
	require.NoError(t, store.Save(&c))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, c.ActorID, loaded.ActorID)
	assert.Equal(t, c.ActorEmail, loaded.ActorEmail)
	assert.Equal(t, c.RegionID, loaded.RegionID)
	assert.Equal(t, c.RegionName, loaded.RegionName)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestContextStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actor: [unterminated"), 0o600))

	_, err := NewContextStore(path).Load()
	assert.Error(t, err)
}

func TestContextStoreClear(t *testing.T) {
	store := NewContextStore(filepath.Join(t.TempDir(), "context.yaml"))
	require.NoError(t, store.Save(&Context{ActorID: "user_abc"}))

	require.NoError(t, store.Clear())
	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Clear(), "clearing a missing file")
}
