package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/profile/sqlite"
)

func TestStore_SaveAndGet(t *testing.T) {
	store, err := sqlite.NewStore(&sqlite.Config{DBPath: filepath.Join(t.TempDir(), "profiles.db")})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	p, err := store.GetProfile(ctx, "dana")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, store.SaveProfile(ctx, "dana", "likes puns"))
	require.NoError(t, store.SaveProfile(ctx, "alex", "asks about rust"))

	p, err = store.GetProfile(ctx, "dana")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "likes puns", p.Content)
	created := p.CreatedAt

	require.NoError(t, store.SaveProfile(ctx, "dana", "likes puns and tabs"))
	p, err = store.GetProfile(ctx, "dana")
	require.NoError(t, err)
	assert.Equal(t, "likes puns and tabs", p.Content)
	assert.True(t, p.CreatedAt.Equal(created))
	assert.False(t, p.UpdatedAt.Before(created))

	names, err := store.ListUsernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alex", "dana"}, names)
}
