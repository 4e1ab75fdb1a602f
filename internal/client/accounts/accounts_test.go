package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/filestore"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/services"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, *storage.SQLStore) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.InitDatabase(context.Background(), "sqlite", filepath.Join(dir, "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	files, err := filestore.NewDiskStore(filepath.Join(dir, "files"))
	require.NoError(t, err)

	m := NewManager(store, files, logging.Discard(), services.WithBackgroundPush(false))
	t.Cleanup(func() { _ = m.Close() })
	return m, store
}

func stubRemote(t *testing.T, fn func(models.Account) (client.Remote, error)) {
	t.Helper()
	orig := newRemote
	newRemote = fn
	t.Cleanup(func() { newRemote = orig })
}

func TestManager_SwitchCachesEngines(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	var built int
	stubRemote(t, func(acc models.Account) (client.Remote, error) {
		built++
		return client.NewHTTPClient(acc.Host, acc.AccessToken)
	})

	_, ok := m.Current()
	assert.False(t, ok)

	local, err := m.Switch(ctx, models.Account{Kind: models.AccountLocal})
	require.NoError(t, err)
	assert.Equal(t, models.LocalAccountKey, local.AccountKey())

	acc := models.Account{Kind: models.AccountRemote, Host: "https://memos.example/", AccessToken: "t"}
	a, err := m.Switch(ctx, acc)
	require.NoError(t, err)
	b, err := m.Switch(ctx, acc)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, built)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, a.AccountKey(), cur.AccountKey())
}

func TestManager_SignedOutRemoteAccount(t *testing.T) {
	m, _ := newManager(t)
	stubRemote(t, func(models.Account) (client.Remote, error) {
		t.Fatal("no client without a token")
		return nil, nil
	})

	svc, err := m.Switch(context.Background(), models.Account{Kind: models.AccountRemote, Host: "https://memos.example"})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Sync(context.Background()), common.ErrNotLoggedIn)
}

func TestManager_SwitchErrors(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Switch(ctx, models.Account{Kind: models.AccountRemote})
	require.Error(t, err)

	boom := errors.New("bad url")
	stubRemote(t, func(models.Account) (client.Remote, error) { return nil, boom })
	_, err = m.Switch(ctx, models.Account{Kind: models.AccountRemote, Host: "x", AccessToken: "t"})
	require.ErrorIs(t, err, boom)
}

func TestManager_SignOutKeepsMemos(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	acc := models.Account{Kind: models.AccountRemote, Host: "https://memos.example", AccessToken: "t"}
	svc, err := m.Switch(ctx, acc)
	require.NoError(t, err)
	_, err = svc.CreateMemo(ctx, services.MemoInput{Content: "stay"})
	require.NoError(t, err)
	require.NoError(t, store.Metadata().Set(ctx, acc.Key(), services.CurrentUserKey, []byte(`{"username":"a"}`)))

	require.NoError(t, m.SignOut(ctx, acc))
	_, ok := m.Current()
	assert.False(t, ok)

	cached, err := store.Metadata().Get(ctx, acc.Key(), services.CurrentUserKey)
	require.NoError(t, err)
	assert.Nil(t, cached)

	again, err := m.Switch(ctx, acc)
	require.NoError(t, err)
	list, err := again.ListMemos(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
