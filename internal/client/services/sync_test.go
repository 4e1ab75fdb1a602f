package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_NotLoggedIn(t *testing.T) {
	store, files := openTestStore(t)
	svc := NewSyncService(testAccount, store, files, nil)
	defer svc.Close()

	require.ErrorIs(t, svc.Sync(context.Background()), common.ErrNotLoggedIn)
}

func TestSync_PushesNewMemo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m, err := e.svc.CreateMemo(ctx, MemoInput{Content: "first #note", Pinned: true})
	require.NoError(t, err)
	require.NoError(t, e.svc.Sync(ctx))

	row := e.row(t, m.Identifier)
	require.NotEmpty(t, row.RemoteID)
	assert.False(t, row.NeedsSync)
	require.NotNil(t, row.LastSyncedAt)

	remote := e.remote.get(row.RemoteID)
	require.NotNil(t, remote)
	assert.Equal(t, "first #note", remote.Content)
	assert.True(t, remote.Pinned)
	assert.True(t, row.LastSyncedAt.Equal(remote.UpdatedAt))

	n, err := e.svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSync_SecondPassWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.CreateMemo(ctx, MemoInput{Content: "a"})
	require.NoError(t, err)
	b, err := e.svc.CreateMemo(ctx, MemoInput{Content: "b"})
	require.NoError(t, err)
	_, err = e.svc.ArchiveMemo(ctx, b.Identifier)
	require.NoError(t, err)
	e.remote.put(&models.RemoteMemo{Content: "from elsewhere"})

	require.NoError(t, e.svc.Sync(ctx))
	before := e.rows(t)
	writes := e.remote.writes()

	require.NoError(t, e.svc.Sync(ctx))
	assert.Equal(t, writes, e.remote.writes())
	assert.Equal(t, before, e.rows(t))
}

func TestSync_PullsRemoteMemo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rm := e.remote.put(&models.RemoteMemo{Content: "remote", Visibility: models.VisibilityProtected, CreatorName: "bob"})
	require.NoError(t, e.svc.Sync(ctx))

	list, err := e.svc.ListMemos(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, rm.RemoteID, got.RemoteID)
	assert.Equal(t, "remote", got.Content)
	assert.Equal(t, models.VisibilityProtected, got.Visibility)
	assert.Equal(t, "bob", got.CreatorName)
	assert.False(t, got.NeedsSync)
	assert.True(t, got.LastSyncedAt.Equal(rm.UpdatedAt))
	assert.Zero(t, e.remote.writes())
}

func TestSync_RemoteEditWinsOverCleanLocal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rm := e.remote.put(&models.RemoteMemo{Content: "v1"})
	require.NoError(t, e.svc.Sync(ctx))

	e.remote.edit(rm.RemoteID, func(m *models.RemoteMemo) { m.Content = "v2"; m.Pinned = true })
	require.NoError(t, e.svc.Sync(ctx))

	list, err := e.svc.ListMemos(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "v2", list[0].Content)
	assert.True(t, list[0].Pinned)
}

func TestSync_LocalEditPushesUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rm := e.remote.put(&models.RemoteMemo{Content: "v1"})
	require.NoError(t, e.svc.Sync(ctx))
	local, err := e.store.Memos().GetByRemoteID(ctx, rm.RemoteID, e.svc.key)
	require.NoError(t, err)

	_, err = e.svc.UpdateMemo(ctx, local.Identifier, MemoUpdate{Content: ptr("v1 edited")})
	require.NoError(t, err)
	require.NoError(t, e.svc.Sync(ctx))

	assert.Equal(t, "v1 edited", e.remote.get(rm.RemoteID).Content)
	assert.Equal(t, 1, e.remote.count("UpdateMemo"))
	assert.Len(t, e.remote.all(), 1)
	assert.False(t, e.row(t, local.Identifier).NeedsSync)
}

func TestSync_RevertedEditIsMarkedSynced(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rm := e.remote.put(&models.RemoteMemo{Content: "same"})
	require.NoError(t, e.svc.Sync(ctx))
	local, err := e.store.Memos().GetByRemoteID(ctx, rm.RemoteID, e.svc.key)
	require.NoError(t, err)

	_, err = e.svc.UpdateMemo(ctx, local.Identifier, MemoUpdate{Content: ptr("changed")})
	require.NoError(t, err)
	_, err = e.svc.UpdateMemo(ctx, local.Identifier, MemoUpdate{Content: ptr("same")})
	require.NoError(t, err)

	require.NoError(t, e.svc.Sync(ctx))
	assert.Zero(t, e.remote.writes())
	assert.False(t, e.row(t, local.Identifier).NeedsSync)
}

func TestSync_ConflictForksLocalEdit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rm := e.remote.put(&models.RemoteMemo{Content: "base"})
	require.NoError(t, e.svc.Sync(ctx))
	local, err := e.store.Memos().GetByRemoteID(ctx, rm.RemoteID, e.svc.key)
	require.NoError(t, err)

	_, err = e.svc.UpdateMemo(ctx, local.Identifier, MemoUpdate{Content: ptr("mine")})
	require.NoError(t, err)
	e.remote.edit(rm.RemoteID, func(m *models.RemoteMemo) { m.Content = "theirs" })

	require.NoError(t, e.svc.Sync(ctx))

	orig := e.row(t, local.Identifier)
	assert.Equal(t, "theirs", orig.Content)
	assert.Equal(t, rm.RemoteID, orig.RemoteID)
	assert.False(t, orig.NeedsSync)

	rows := e.rows(t)
	require.Len(t, rows, 2)
	var fork *models.Memo
	for _, r := range rows {
		if r.Identifier != local.Identifier {
			fork = r
		}
	}
	require.NotNil(t, fork)
	assert.Equal(t, "mine", fork.Content)
	assert.NotEmpty(t, fork.RemoteID)
	assert.NotEqual(t, rm.RemoteID, fork.RemoteID)
	assert.False(t, fork.NeedsSync)

	remotes := e.remote.all()
	require.Len(t, remotes, 2)
	assert.Equal(t, "mine", e.remote.get(fork.RemoteID).Content)
	assert.Equal(t, "theirs", e.remote.get(rm.RemoteID).Content)

	writes := e.remote.writes()
	require.NoError(t, e.svc.Sync(ctx))
	assert.Equal(t, writes, e.remote.writes())
}

func TestSync_TombstoneDeletesRemote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m, err := e.svc.CreateMemo(ctx, MemoInput{Content: "temp"})
	require.NoError(t, err)
	require.NoError(t, e.svc.Sync(ctx))
	remoteID := e.row(t, m.Identifier).RemoteID

	require.NoError(t, e.svc.DeleteMemo(ctx, m.Identifier))
	require.NoError(t, e.svc.Sync(ctx))

	assert.Nil(t, e.remote.get(remoteID))
	assert.Empty(t, e.rows(t))
}

func TestSync_TombstoneLosesToRemoteEdit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rm := e.remote.put(&models.RemoteMemo{Content: "keep me"})
	require.NoError(t, e.svc.Sync(ctx))
	local, err := e.store.Memos().GetByRemoteID(ctx, rm.RemoteID, e.svc.key)
	require.NoError(t, err)

	require.NoError(t, e.svc.DeleteMemo(ctx, local.Identifier))
	e.remote.edit(rm.RemoteID, func(m *models.RemoteMemo) { m.Content = "kept and edited" })
	require.NoError(t, e.svc.Sync(ctx))

	row := e.row(t, local.Identifier)
	assert.False(t, row.IsDeleted)
	assert.False(t, row.NeedsSync)
	assert.Equal(t, "kept and edited", row.Content)
	assert.NotNil(t, e.remote.get(rm.RemoteID))
	assert.Zero(t, e.remote.count("DeleteMemo"))
}

func TestSync_UnpushedTombstoneIsPurged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m, err := e.svc.CreateMemo(ctx, MemoInput{Content: "never sent"})
	require.NoError(t, err)
	require.NoError(t, e.svc.DeleteMemo(ctx, m.Identifier))
	require.NoError(t, e.svc.Sync(ctx))

	assert.Empty(t, e.rows(t))
	assert.Zero(t, e.remote.writes())
}

func TestSync_RemoteDeletion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	clean := e.remote.put(&models.RemoteMemo{Content: "clean"})
	dirty := e.remote.put(&models.RemoteMemo{Content: "dirty"})
	require.NoError(t, e.svc.Sync(ctx))

	dirtyLocal, err := e.store.Memos().GetByRemoteID(ctx, dirty.RemoteID, e.svc.key)
	require.NoError(t, err)
	_, err = e.svc.UpdateMemo(ctx, dirtyLocal.Identifier, MemoUpdate{Content: ptr("dirty but mine")})
	require.NoError(t, err)

	e.remote.remove(clean.RemoteID)
	e.remote.remove(dirty.RemoteID)
	require.NoError(t, e.svc.Sync(ctx))

	rows := e.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, dirtyLocal.Identifier, rows[0].Identifier)
	assert.Equal(t, "dirty but mine", rows[0].Content)
	assert.NotEqual(t, dirty.RemoteID, rows[0].RemoteID)
	assert.False(t, rows[0].NeedsSync)
	assert.Equal(t, "dirty but mine", e.remote.get(rows[0].RemoteID).Content)
}

func TestSync_TombstoneKeepsFilesUntilPurge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m, err := e.svc.CreateMemo(ctx, MemoInput{Content: "with file"})
	require.NoError(t, err)
	r, err := e.svc.CreateResource(ctx, ResourceInput{Filename: "a.txt", Data: []byte("x"), MemoID: m.Identifier})
	require.NoError(t, err)
	require.NoError(t, e.svc.Sync(ctx))
	remoteID := e.row(t, m.Identifier).RemoteID

	require.NoError(t, e.svc.DeleteMemo(ctx, m.Identifier))
	ok, err := e.files.Exists(ctx, r.LocalURI)
	require.NoError(t, err)
	assert.True(t, ok, "a tombstone can still be restored")
	assert.Zero(t, e.counted.deleted(r.LocalURI))

	e.remote.remove(remoteID)
	require.NoError(t, e.svc.Sync(ctx))

	assert.Empty(t, e.rows(t))
	_, err = e.store.Resources().GetByID(ctx, r.Identifier, e.svc.key)
	require.ErrorIs(t, err, common.ErrNotFound)
	ok, err = e.files.Exists(ctx, r.LocalURI)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, e.counted.deleted(r.LocalURI))

	require.NoError(t, e.svc.Sync(ctx))
	assert.Equal(t, 1, e.counted.deleted(r.LocalURI))
}

func TestSync_FailedRemoteDeleteKeepsTombstone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	gone, err := e.svc.CreateMemo(ctx, MemoInput{Content: "gone"})
	require.NoError(t, err)
	other, err := e.svc.CreateMemo(ctx, MemoInput{Content: "other"})
	require.NoError(t, err)
	require.NoError(t, e.svc.Sync(ctx))
	goneRemote := e.row(t, gone.Identifier).RemoteID

	require.NoError(t, e.svc.DeleteMemo(ctx, gone.Identifier))
	_, err = e.svc.UpdateMemo(ctx, other.Identifier, MemoUpdate{Content: ptr("other!")})
	require.NoError(t, err)
	e.remote.failDelete[goneRemote] = fmt.Errorf("rpc error: boom")

	err = e.svc.Sync(ctx)
	require.ErrorIs(t, err, common.ErrPartialSync)
	require.ErrorIs(t, err, common.ErrRemoteFailure)

	row := e.row(t, gone.Identifier)
	assert.True(t, row.IsDeleted)
	assert.True(t, row.NeedsSync)
	assert.NotNil(t, e.remote.get(goneRemote))
	assert.Equal(t, "other!", e.remote.get(e.row(t, other.Identifier).RemoteID).Content)

	delete(e.remote.failDelete, goneRemote)
	require.NoError(t, e.svc.Sync(ctx))
	assert.Nil(t, e.remote.get(goneRemote))
	rows := e.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, other.Identifier, rows[0].Identifier)
}

func TestSync_OfflineLeavesLocalUntouched(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m, err := e.svc.CreateMemo(ctx, MemoInput{Content: "queued"})
	require.NoError(t, err)

	e.remote.setOffline(true)
	err = e.svc.Sync(ctx)
	require.ErrorIs(t, err, common.ErrRemoteFailure)
	require.ErrorIs(t, err, client.ErrUnavailable)

	row := e.row(t, m.Identifier)
	assert.True(t, row.NeedsSync)
	assert.Empty(t, row.RemoteID)

	e.remote.setOffline(false)
	require.NoError(t, e.svc.Sync(ctx))
	assert.False(t, e.row(t, m.Identifier).NeedsSync)
}

func TestSync_PartialFailureKeepsGoing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.remote.put(&models.RemoteMemo{Content: "a"})
	b := e.remote.put(&models.RemoteMemo{Content: "b"})
	require.NoError(t, e.svc.Sync(ctx))

	for _, rm := range []*models.RemoteMemo{a, b} {
		local, err := e.store.Memos().GetByRemoteID(ctx, rm.RemoteID, e.svc.key)
		require.NoError(t, err)
		_, err = e.svc.UpdateMemo(ctx, local.Identifier, MemoUpdate{Content: ptr(rm.Content + "!")})
		require.NoError(t, err)
	}
	e.remote.failUpdate[a.RemoteID] = fmt.Errorf("rpc error: boom")

	err := e.svc.Sync(ctx)
	require.ErrorIs(t, err, common.ErrPartialSync)
	require.ErrorIs(t, err, common.ErrRemoteFailure)
	var partial *common.PartialSyncError
	require.True(t, errors.As(err, &partial))
	assert.Len(t, partial.Failures(), 1)

	assert.Equal(t, "a", e.remote.get(a.RemoteID).Content)
	assert.Equal(t, "b!", e.remote.get(b.RemoteID).Content)

	aLocal, err := e.store.Memos().GetByRemoteID(ctx, a.RemoteID, e.svc.key)
	require.NoError(t, err)
	assert.True(t, aLocal.NeedsSync)

	delete(e.remote.failUpdate, a.RemoteID)
	require.NoError(t, e.svc.Sync(ctx))
	assert.Equal(t, "a!", e.remote.get(a.RemoteID).Content)
}

func TestSync_ContractViolationAborts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.CreateMemo(ctx, MemoInput{Content: "one"})
	require.NoError(t, err)
	_, err = e.svc.CreateMemo(ctx, MemoInput{Content: "two"})
	require.NoError(t, err)

	e.remote.omitUpdateTime = true
	err = e.svc.Sync(ctx)
	require.ErrorIs(t, err, common.ErrContractViolation)
	assert.Equal(t, 1, e.remote.count("CreateMemo"))

	for _, r := range e.rows(t) {
		assert.True(t, r.NeedsSync)
		assert.Empty(t, r.RemoteID)
	}
}

func TestSync_ArchiveRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m, err := e.svc.CreateMemo(ctx, MemoInput{Content: "shelve"})
	require.NoError(t, err)
	_, err = e.svc.ArchiveMemo(ctx, m.Identifier)
	require.NoError(t, err)
	require.NoError(t, e.svc.Sync(ctx))

	row := e.row(t, m.Identifier)
	assert.True(t, e.remote.get(row.RemoteID).Archived)
	assert.Equal(t, 1, e.remote.count("ArchiveMemo"))
	assert.False(t, row.NeedsSync)

	_, err = e.svc.RestoreMemo(ctx, m.Identifier)
	require.NoError(t, err)
	require.NoError(t, e.svc.Sync(ctx))
	assert.False(t, e.remote.get(row.RemoteID).Archived)
	assert.Equal(t, 1, e.remote.count("RestoreMemo"))

	archivedRemotely := e.remote.put(&models.RemoteMemo{Content: "old", Archived: true})
	require.NoError(t, e.svc.Sync(ctx))
	list, err := e.svc.ListArchivedMemos(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, archivedRemotely.RemoteID, list[0].RemoteID)
}

func TestSync_TwoDevicesConverge(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()

	device := func() MemoService {
		store, files := openTestStore(t)
		clock := &testClock{t: remote.now}
		svc := NewSyncService(testAccount, store, files, remote, WithClock(clock.now), WithBackgroundPush(false))
		t.Cleanup(func() { _ = svc.Close() })
		return svc
	}
	phone, laptop := device(), device()

	_, err := phone.CreateMemo(ctx, MemoInput{Content: "from phone"})
	require.NoError(t, err)
	_, err = laptop.CreateMemo(ctx, MemoInput{Content: "from laptop"})
	require.NoError(t, err)

	require.NoError(t, phone.Sync(ctx))
	require.NoError(t, laptop.Sync(ctx))
	require.NoError(t, phone.Sync(ctx))

	contents := func(svc MemoService) []string {
		list, err := svc.ListMemos(ctx)
		require.NoError(t, err)
		var out []string
		for _, m := range list {
			out = append(out, m.Content)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"from phone", "from laptop"}, contents(phone))
	assert.ElementsMatch(t, contents(phone), contents(laptop))
	assert.Len(t, remote.all(), 2)
}

func TestSync_CanceledContext(t *testing.T) {
	e := newEnv(t)
	e.remote.put(&models.RemoteMemo{Content: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.svc.Sync(ctx), context.Canceled)
	assert.Empty(t, e.rows(t))
}
