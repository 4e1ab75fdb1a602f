package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/filestore"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory server. Every write bumps its own clock so
// update times are strictly increasing.
type fakeRemote struct {
	mu sync.Mutex

	now       time.Time
	seq       int
	memos     map[string]*models.RemoteMemo
	resources map[string]*models.RemoteResource
	order     []string
	calls     map[string]int

	user    *models.User
	offline bool
	// failUpdate fails UpdateMemo for the listed remote ids.
	failUpdate map[string]error
	// omitUpdateTime returns canonical copies without an update time.
	omitUpdateTime bool
	// failDelete fails DeleteMemo for the listed remote ids.
	failDelete map[string]error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		now:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		memos:      map[string]*models.RemoteMemo{},
		resources:  map[string]*models.RemoteResource{},
		calls:      map[string]int{},
		failUpdate: map[string]error{},
		failDelete: map[string]error{},
		user:       &models.User{RemoteID: "users/1", Username: "alice", Nickname: "Alice"},
	}
}

var errOffline = fmt.Errorf("%w: connection refused", client.ErrUnavailable)

func (f *fakeRemote) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fakeRemote) enter(op string) error {
	f.calls[op]++
	if f.offline {
		return errOffline
	}
	return nil
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// writes counts calls that change server state.
func (f *fakeRemote) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for op, c := range f.calls {
		switch op {
		case "ListMemos", "ListArchivedMemos", "CurrentUser":
		default:
			n += c
		}
	}
	return n
}

func cloneMemo(m *models.RemoteMemo) *models.RemoteMemo {
	c := *m
	c.Resources = nil
	for _, r := range m.Resources {
		rc := *r
		c.Resources = append(c.Resources, &rc)
	}
	return &c
}

func (f *fakeRemote) out(m *models.RemoteMemo) *models.RemoteMemo {
	c := cloneMemo(m)
	if f.omitUpdateTime {
		c.UpdatedAt = time.Time{}
	}
	return c
}

// put stores a memo as if another device had created it.
func (f *fakeRemote) put(m *models.RemoteMemo) *models.RemoteMemo {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.RemoteID == "" {
		f.seq++
		m.RemoteID = fmt.Sprintf("memos/%d", f.seq)
	}
	if m.Visibility == "" {
		m.Visibility = models.VisibilityPrivate
	}
	m.UpdatedAt = f.tick()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.UpdatedAt
	}
	if _, ok := f.memos[m.RemoteID]; !ok {
		f.order = append(f.order, m.RemoteID)
	}
	f.memos[m.RemoteID] = m
	return cloneMemo(m)
}

// edit changes a memo as if another device had updated it.
func (f *fakeRemote) edit(id string, fn func(m *models.RemoteMemo)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.memos[id]
	fn(m)
	m.UpdatedAt = f.tick()
}

func (f *fakeRemote) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.memos, id)
}

// removeResource drops an uploaded file as the server does when the memo
// owning it is deleted.
func (f *fakeRemote) removeResource(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.resources, id)
}

func (f *fakeRemote) get(id string) *models.RemoteMemo {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memos[id]
	if !ok {
		return nil
	}
	return cloneMemo(m)
}

func (f *fakeRemote) all() []*models.RemoteMemo {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RemoteMemo
	for _, id := range f.order {
		if m, ok := f.memos[id]; ok {
			out = append(out, cloneMemo(m))
		}
	}
	return out
}

func (f *fakeRemote) list(archived bool) []*models.RemoteMemo {
	out := []*models.RemoteMemo{}
	for _, id := range f.order {
		m, ok := f.memos[id]
		if ok && m.Archived == archived {
			out = append(out, f.out(m))
		}
	}
	return out
}

func (f *fakeRemote) ListMemos(ctx context.Context) ([]*models.RemoteMemo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListMemos"); err != nil {
		return nil, err
	}
	return f.list(false), nil
}

func (f *fakeRemote) ListArchivedMemos(ctx context.Context) ([]*models.RemoteMemo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListArchivedMemos"); err != nil {
		return nil, err
	}
	return f.list(true), nil
}

func (f *fakeRemote) lookupResources(ids []string) ([]*models.RemoteResource, error) {
	var out []*models.RemoteResource
	for _, id := range ids {
		r, ok := f.resources[id]
		if !ok {
			return nil, fmt.Errorf("rpc error: unknown resource %s", id)
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRemote) CreateMemo(ctx context.Context, req client.CreateMemoRequest) (*models.RemoteMemo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateMemo"); err != nil {
		return nil, err
	}
	rs, err := f.lookupResources(req.ResourceRemoteIDs)
	if err != nil {
		return nil, err
	}
	f.seq++
	now := f.tick()
	m := &models.RemoteMemo{
		RemoteID:    fmt.Sprintf("memos/%d", f.seq),
		Content:     req.Content,
		Visibility:  req.Visibility,
		CreatorID:   f.user.RemoteID,
		CreatorName: f.user.Username,
		CreatedAt:   now,
		UpdatedAt:   now,
		Resources:   rs,
	}
	f.memos[m.RemoteID] = m
	f.order = append(f.order, m.RemoteID)
	return f.out(m), nil
}

func (f *fakeRemote) UpdateMemo(ctx context.Context, remoteID string, req client.UpdateMemoRequest) (*models.RemoteMemo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateMemo"); err != nil {
		return nil, err
	}
	if err := f.failUpdate[remoteID]; err != nil {
		return nil, err
	}
	m, ok := f.memos[remoteID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", client.ErrNotFound, remoteID)
	}
	if req.SetResources || len(req.ResourceRemoteIDs) > 0 {
		rs, err := f.lookupResources(req.ResourceRemoteIDs)
		if err != nil {
			return nil, err
		}
		m.Resources = rs
	}
	if req.Content != nil {
		m.Content = *req.Content
	}
	if req.Visibility != nil {
		m.Visibility = *req.Visibility
	}
	if req.Pinned != nil {
		m.Pinned = *req.Pinned
	}
	m.UpdatedAt = f.tick()
	return f.out(m), nil
}

func (f *fakeRemote) setArchived(op, remoteID string, archived bool) (*models.RemoteMemo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op); err != nil {
		return nil, err
	}
	m, ok := f.memos[remoteID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", client.ErrNotFound, remoteID)
	}
	m.Archived = archived
	m.UpdatedAt = f.tick()
	return f.out(m), nil
}

func (f *fakeRemote) ArchiveMemo(ctx context.Context, remoteID string) (*models.RemoteMemo, error) {
	return f.setArchived("ArchiveMemo", remoteID, true)
}

func (f *fakeRemote) RestoreMemo(ctx context.Context, remoteID string) (*models.RemoteMemo, error) {
	return f.setArchived("RestoreMemo", remoteID, false)
}

func (f *fakeRemote) DeleteMemo(ctx context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteMemo"); err != nil {
		return err
	}
	if err := f.failDelete[remoteID]; err != nil {
		return err
	}
	if _, ok := f.memos[remoteID]; !ok {
		return fmt.Errorf("%w: %s", client.ErrNotFound, remoteID)
	}
	delete(f.memos, remoteID)
	return nil
}

func (f *fakeRemote) CreateResource(ctx context.Context, req client.CreateResourceRequest) (*models.RemoteResource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateResource"); err != nil {
		return nil, err
	}
	f.seq++
	id := fmt.Sprintf("resources/%d", f.seq)
	r := &models.RemoteResource{
		RemoteID:  id,
		Filename:  req.Filename,
		MimeType:  req.MimeType,
		URI:       "https://memos.example/file/" + id + "/" + req.Filename,
		Size:      int64(len(req.Content)),
		CreatedAt: f.tick(),
	}
	f.resources[id] = r
	if m, ok := f.memos[req.MemoRemoteID]; ok {
		m.Resources = append(m.Resources, r)
	}
	return r, nil
}

func (f *fakeRemote) DeleteResource(ctx context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteResource"); err != nil {
		return err
	}
	if _, ok := f.resources[remoteID]; !ok {
		return fmt.Errorf("%w: %s", client.ErrNotFound, remoteID)
	}
	delete(f.resources, remoteID)
	return nil
}

func (f *fakeRemote) CurrentUser(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CurrentUser"); err != nil {
		return nil, err
	}
	u := *f.user
	return &u, nil
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

// testClock advances one second per reading.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// countingFiles records how often each blob was deleted.
type countingFiles struct {
	filestore.FileStore

	mu      sync.Mutex
	deletes map[string]int
}

func (c *countingFiles) Delete(ctx context.Context, uri string) error {
	c.mu.Lock()
	c.deletes[uri]++
	c.mu.Unlock()
	return c.FileStore.Delete(ctx, uri)
}

func (c *countingFiles) deleted(uri string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deletes[uri]
}

type env struct {
	svc     *syncService
	store   *storage.SQLStore
	files   *filestore.DiskStore
	counted *countingFiles
	remote  *fakeRemote
}

var testAccount = models.Account{Kind: models.AccountRemote, Host: "https://memos.example", AccessToken: "opaque-token"}

func openTestStore(t *testing.T) (*storage.SQLStore, *filestore.DiskStore) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.InitDatabase(context.Background(), "sqlite", filepath.Join(dir, "memos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	files, err := filestore.NewDiskStore(filepath.Join(dir, "files"))
	require.NoError(t, err)
	return store, files
}

// newEnv builds a synced engine with background pushes off unless opts
// turn them back on.
func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	store, files := openTestStore(t)
	remote := newFakeRemote()
	clock := &testClock{t: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)}

	all := append([]Option{WithClock(clock.now), WithBackgroundPush(false)}, opts...)
	counted := &countingFiles{FileStore: files, deletes: map[string]int{}}
	svc := NewSyncService(testAccount, store, counted, remote, all...).(*syncService)
	t.Cleanup(func() { _ = svc.Close() })

	return &env{svc: svc, store: store, files: files, counted: counted, remote: remote}
}

func (e *env) row(t *testing.T, id string) *models.Memo {
	t.Helper()
	m, err := e.store.Memos().GetByID(context.Background(), id, e.svc.key)
	require.NoError(t, err)
	return m
}

func (e *env) rows(t *testing.T) []*models.Memo {
	t.Helper()
	list, err := e.store.Memos().GetAllForSync(context.Background(), e.svc.key)
	require.NoError(t, err)
	return list
}
