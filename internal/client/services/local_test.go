package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalService(t *testing.T) {
	store, files := openTestStore(t)
	svc := NewLocalService(store, files)
	defer svc.Close()
	ctx := context.Background()

	assert.Equal(t, models.LocalAccountKey, svc.AccountKey())

	m, err := svc.CreateMemo(ctx, MemoInput{Content: "offline only #local"})
	require.NoError(t, err)
	_, err = svc.CreateResource(ctx, ResourceInput{Filename: "a.txt", Data: []byte("a"), MemoID: m.Identifier})
	require.NoError(t, err)

	require.NoError(t, svc.Sync(ctx))
	require.NoError(t, svc.Flush(ctx))

	n, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	tags, err := svc.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, tags)

	u, err := svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.LocalAccountKey, u.Username)

	require.NoError(t, svc.DeleteMemo(ctx, m.Identifier))
	list, err := svc.ListMemos(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAccountsAreIsolated(t *testing.T) {
	store, files := openTestStore(t)
	ctx := context.Background()

	local := NewLocalService(store, files)
	remote := NewSyncService(testAccount, store, files, newFakeRemote(), WithBackgroundPush(false))
	defer remote.Close()

	_, err := local.CreateMemo(ctx, MemoInput{Content: "mine"})
	require.NoError(t, err)

	list, err := remote.ListMemos(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, remote.Sync(ctx))

	list, err = local.ListMemos(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
