package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/filestore"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/markdown"
)

// pushLocalMemo sends the current local state of a memo to the server and
// adopts the canonical copy it returns. A memo without a remote id, or any
// memo when forceCreate is set, is created anew. The caller holds s.mu.
func (s *syncService) pushLocalMemo(ctx context.Context, id string, forceCreate bool) error {
	m, err := s.store.Memos().GetByID(ctx, id, s.key)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load memo %s: %w", id, err)
	}

	if m.IsDeleted {
		return s.pushTombstone(ctx, m)
	}

	create := forceCreate || m.RemoteID == ""
	memoRemoteID := m.RemoteID
	if create {
		memoRemoteID = ""
	}

	resources, err := s.store.Resources().GetByMemoID(ctx, m.Identifier, s.key)
	if err != nil {
		return fmt.Errorf("load resources of %s: %w", id, err)
	}
	var borrowed map[string]bool
	if forceCreate {
		borrowed = s.prepareRecreate(ctx, resources)
	}
	resourceIDs := make([]string, 0, len(resources))
	for _, r := range resources {
		rid, err := s.ensureUploaded(ctx, r, memoRemoteID)
		if err != nil {
			return err
		}
		if rid != "" {
			resourceIDs = append(resourceIDs, rid)
		}
	}

	var canonical *models.RemoteMemo
	if create {
		req := client.CreateMemoRequest{
			Content:           m.Content,
			Visibility:        m.Visibility,
			ResourceRemoteIDs: resourceIDs,
			Tags:              markdown.ExtractTags(m.Content),
		}
		canonical, err = s.remote.CreateMemo(ctx, req)
		if err != nil && len(borrowed) > 0 && retryWithoutBorrowed(ctx, err) {
			s.logger.Warn(ctx, "recreate rejected, retrying without lost attachments", "memo", m.Identifier, "error", err)
			req.ResourceRemoteIDs = withoutIDs(resourceIDs, borrowed)
			canonical, err = s.remote.CreateMemo(ctx, req)
			if err == nil {
				if dropErr := s.dropBorrowed(ctx, resources, borrowed); dropErr != nil {
					return dropErr
				}
			}
		}
		if err != nil {
			return remoteFailure("create memo", err)
		}
		if err := requireCanonical("create memo", canonical); err != nil {
			return err
		}
		// Record the new id before any follow-up call so a failure below
		// cannot lead to a second create.
		if err := s.adopt(ctx, m, canonical, false); err != nil {
			return err
		}
		if m.Pinned && !canonical.Pinned {
			canonical, err = s.remote.UpdateMemo(ctx, canonical.RemoteID, client.UpdateMemoRequest{Pinned: &m.Pinned})
			if err != nil {
				return remoteFailure("pin memo", err)
			}
		}
	} else {
		canonical, err = s.remote.UpdateMemo(ctx, m.RemoteID, client.UpdateMemoRequest{
			Content:           &m.Content,
			Visibility:        &m.Visibility,
			Pinned:            &m.Pinned,
			ResourceRemoteIDs: resourceIDs,
			SetResources:      true,
		})
		if err != nil {
			return remoteFailure("update memo", err)
		}
	}
	if err := requireCanonical("push memo", canonical); err != nil {
		return err
	}

	if canonical.Archived != m.Archived {
		if m.Archived {
			canonical, err = s.remote.ArchiveMemo(ctx, canonical.RemoteID)
		} else {
			canonical, err = s.remote.RestoreMemo(ctx, canonical.RemoteID)
		}
		if err != nil {
			return remoteFailure("set archived", err)
		}
		if err := requireCanonical("set archived", canonical); err != nil {
			return err
		}
	}

	s.logger.Debug(ctx, "memo pushed", "memo", m.Identifier, "remote_id", canonical.RemoteID, "created", create)
	return s.adopt(ctx, m, canonical, true)
}

// adopt stores the server's copy over the pushed snapshot. When the row was
// edited while the push was in flight, only the remote id and sync mark
// are taken and the row stays dirty. complete is false for the interim
// record written between a create and its follow-ups.
func (s *syncService) adopt(ctx context.Context, pushed *models.Memo, canonical *models.RemoteMemo, complete bool) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, st storage.Store) error {
		cur, err := st.Memos().GetByID(ctx, pushed.Identifier, s.key)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		syncedAt := models.NormalizeTime(canonical.UpdatedAt)
		cur.RemoteID = canonical.RemoteID
		cur.LastSyncedAt = &syncedAt

		untouched := cur.LastModified.Equal(pushed.LastModified) && cur.IsDeleted == pushed.IsDeleted
		if complete && untouched {
			cur.Content = canonical.Content
			cur.Visibility = canonical.Visibility
			cur.Pinned = canonical.Pinned
			cur.Archived = canonical.Archived
			if canonical.CreatorID != "" {
				cur.CreatorID = canonical.CreatorID
				cur.CreatorName = canonical.CreatorName
			}
			cur.NeedsSync = false
		}
		return st.Memos().Upsert(ctx, cur)
	})
	if err != nil {
		return fmt.Errorf("store canonical memo %s: %w", canonical.RemoteID, err)
	}
	return nil
}

func (s *syncService) pushTombstone(ctx context.Context, m *models.Memo) error {
	if m.RemoteID != "" {
		if err := s.remote.DeleteMemo(ctx, m.RemoteID); err != nil && !errors.Is(err, client.ErrNotFound) {
			return remoteFailure("delete memo", err)
		}
	}
	return s.purge(ctx, m.Identifier)
}

// purge deletes a memo row with its resources, then their cached files.
func (c *core) purge(ctx context.Context, id string) error {
	var files []string
	err := c.store.WithTx(ctx, func(ctx context.Context, st storage.Store) error {
		rs, err := st.Resources().GetByMemoID(ctx, id, c.key)
		if err != nil {
			return err
		}
		for _, r := range rs {
			if err := st.Resources().Delete(ctx, r.Identifier, c.key); err != nil {
				return err
			}
			if r.LocalURI != "" {
				files = append(files, r.LocalURI)
			}
		}
		if err := st.Memos().Delete(ctx, id, c.key); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("purge memo %s: %w", id, err)
	}

	for _, f := range files {
		c.removeFile(ctx, f)
	}
	c.logger.Debug(ctx, "memo purged", "memo", id)
	return nil
}

func (s *syncService) pull(ctx context.Context, local *models.Memo, rm *models.RemoteMemo) error {
	var stale []string
	err := s.store.WithTx(ctx, func(ctx context.Context, st storage.Store) error {
		var err error
		stale, err = s.applyRemote(ctx, st, local, rm)
		return err
	})
	if errors.Is(err, errEditedDuringSync) {
		s.logger.Info(ctx, "memo changed during sync, leaving for next pass", "remote_id", rm.RemoteID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull memo %s: %w", rm.RemoteID, err)
	}
	for _, f := range stale {
		s.removeFile(ctx, f)
	}
	return nil
}

var errEditedDuringSync = errors.New("memo edited during sync")

// current re-reads a snapshot inside a transaction and reports
// errEditedDuringSync when a local write happened since it was taken.
func (s *syncService) current(ctx context.Context, st storage.Store, snap *models.Memo) (*models.Memo, error) {
	cur, err := st.Memos().GetByID(ctx, snap.Identifier, s.key)
	if err != nil {
		return nil, err
	}
	if !cur.LastModified.Equal(snap.LastModified) || cur.IsDeleted != snap.IsDeleted {
		return nil, errEditedDuringSync
	}
	return cur, nil
}

// applyRemote writes the server copy into the local row (a new one when
// local is nil) and mirrors its resources. It returns cached files of
// resources the server no longer lists.
func (s *syncService) applyRemote(ctx context.Context, st storage.Store, local *models.Memo, rm *models.RemoteMemo) ([]string, error) {
	m := &models.Memo{
		Identifier: s.newID(),
		AccountKey: s.key,
		Date:       models.NormalizeTime(rm.CreatedAt),
	}
	if local != nil {
		cur, err := s.current(ctx, st, local)
		if err != nil {
			return nil, err
		}
		m = cur
	}
	if m.Date.IsZero() {
		m.Date = rm.UpdatedAt
	}

	syncedAt := models.NormalizeTime(rm.UpdatedAt)
	m.RemoteID = rm.RemoteID
	m.Content = rm.Content
	m.Visibility = rm.Visibility
	m.Pinned = rm.Pinned
	m.Archived = rm.Archived
	m.CreatorID = rm.CreatorID
	m.CreatorName = rm.CreatorName
	m.IsDeleted = false
	m.NeedsSync = false
	m.LastModified = syncedAt
	m.LastSyncedAt = &syncedAt
	if err := st.Memos().Upsert(ctx, m); err != nil {
		return nil, err
	}

	existing, err := st.Resources().GetByMemoID(ctx, m.Identifier, s.key)
	if err != nil {
		return nil, err
	}
	byRemote := make(map[string]*models.Resource, len(existing))
	for _, r := range existing {
		if r.RemoteID != "" {
			byRemote[r.RemoteID] = r
		}
	}

	kept := make(map[string]bool, len(rm.Resources))
	for _, rr := range rm.Resources {
		r, ok := byRemote[rr.RemoteID]
		if !ok {
			r = &models.Resource{
				Identifier: s.newID(),
				RemoteID:   rr.RemoteID,
				AccountKey: s.key,
				Date:       models.NormalizeTime(rr.CreatedAt),
				MemoID:     &m.Identifier,
			}
			if r.Date.IsZero() {
				r.Date = syncedAt
			}
		}
		r.Filename = rr.Filename
		r.MimeType = rr.MimeType
		r.URI = rr.URI
		kept[r.Identifier] = true
		if err := st.Resources().Upsert(ctx, r); err != nil {
			return nil, err
		}
	}

	var stale []string
	for _, r := range existing {
		if kept[r.Identifier] {
			continue
		}
		if err := st.Resources().Delete(ctx, r.Identifier, s.key); err != nil {
			return nil, err
		}
		if r.LocalURI != "" {
			stale = append(stale, r.LocalURI)
		}
	}
	return stale, nil
}

func (s *syncService) markSynced(ctx context.Context, local *models.Memo, rm *models.RemoteMemo) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, st storage.Store) error {
		cur, err := s.current(ctx, st, local)
		if err != nil {
			return err
		}
		syncedAt := models.NormalizeTime(rm.UpdatedAt)
		cur.NeedsSync = false
		cur.LastSyncedAt = &syncedAt
		return st.Memos().Upsert(ctx, cur)
	})
	if errors.Is(err, errEditedDuringSync) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark memo %s synced: %w", local.Identifier, err)
	}
	return nil
}

// fork keeps a concurrent local edit as a new memo and lets the server's
// copy take the original slot. Attachments follow the local edit.
func (s *syncService) fork(ctx context.Context, local *models.Memo, rm *models.RemoteMemo) error {
	dup := *local
	dup.Identifier = s.newID()
	dup.RemoteID = ""
	dup.LastSyncedAt = nil
	dup.IsDeleted = false
	dup.Resources = nil
	dup.MarkDirty(s.now())

	var stale []string
	err := s.store.WithTx(ctx, func(ctx context.Context, st storage.Store) error {
		if _, err := s.current(ctx, st, local); err != nil {
			return err
		}
		if err := st.Memos().Upsert(ctx, &dup); err != nil {
			return err
		}
		if _, err := st.Resources().ReassignMemo(ctx, local.Identifier, dup.Identifier, s.key); err != nil {
			return err
		}
		var err error
		stale, err = s.applyRemote(ctx, st, local, rm)
		return err
	})
	if errors.Is(err, errEditedDuringSync) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fork memo %s: %w", local.Identifier, err)
	}
	for _, f := range stale {
		s.removeFile(ctx, f)
	}

	s.logger.Info(ctx, "conflicting edit kept as a new memo", "memo", local.Identifier, "fork", dup.Identifier)
	return s.pushLocalMemo(ctx, dup.Identifier, true)
}

// ensureUploaded returns the resource's remote id, uploading the file
// first when needed. A resource whose file is gone is dropped and yields
// an empty id.
func (s *syncService) ensureUploaded(ctx context.Context, r *models.Resource, memoRemoteID string) (string, error) {
	if r.RemoteID != "" {
		return r.RemoteID, nil
	}

	src := r.LocalURI
	if src == "" {
		src = r.URI
	}
	var data []byte
	if src != "" {
		var err error
		data, err = s.files.Read(ctx, src)
		if err != nil && !errors.Is(err, filestore.ErrNotExist) {
			return "", fmt.Errorf("read resource %s: %w", r.Identifier, err)
		}
		if err != nil {
			src = ""
		}
	}
	if src == "" {
		s.logger.Warn(ctx, "resource file missing, dropping attachment", "resource", r.Identifier)
		if err := s.store.Resources().Delete(ctx, r.Identifier, s.key); err != nil && !errors.Is(err, common.ErrNotFound) {
			return "", fmt.Errorf("drop resource %s: %w", r.Identifier, err)
		}
		return "", nil
	}

	created, err := s.remote.CreateResource(ctx, client.CreateResourceRequest{
		Filename:     r.Filename,
		MimeType:     r.MimeType,
		Content:      data,
		MemoRemoteID: memoRemoteID,
	})
	if err != nil {
		return "", remoteFailure("upload resource", err)
	}
	if created == nil || created.RemoteID == "" {
		return "", fmt.Errorf("upload resource: %w: missing remote id", common.ErrContractViolation)
	}

	r.RemoteID = created.RemoteID
	if created.URI != "" {
		r.URI = created.URI
	}
	if r.LocalURI == "" {
		r.LocalURI = src
	}
	if err := s.store.Resources().Upsert(ctx, r); err != nil {
		return "", fmt.Errorf("store uploaded resource %s: %w", r.Identifier, err)
	}
	return r.RemoteID, nil
}

// prepareRecreate readies the attachments of a memo about to be created
// again. Uploaded resources with a local copy lose their remote id so they
// are uploaded afresh; the server may have deleted the originals with the
// memo. The remote ids of the others are returned: they can only be reused.
func (s *syncService) prepareRecreate(ctx context.Context, resources []*models.Resource) map[string]bool {
	borrowed := map[string]bool{}
	for _, r := range resources {
		if r.RemoteID == "" {
			continue
		}
		if r.LocalURI != "" {
			ok, err := s.files.Exists(ctx, r.LocalURI)
			if err == nil && ok {
				r.RemoteID = ""
				continue
			}
		}
		borrowed[r.RemoteID] = true
	}
	return borrowed
}

// retryWithoutBorrowed reports whether a failed create may be caused by
// reused resource ids rather than by the connection.
func retryWithoutBorrowed(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, client.ErrUnavailable) && !errors.Is(err, client.ErrUnauthorized)
}

func withoutIDs(ids []string, drop map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

// dropBorrowed deletes the rows of attachments the server no longer has and
// no local copy can restore.
func (s *syncService) dropBorrowed(ctx context.Context, resources []*models.Resource, borrowed map[string]bool) error {
	for _, r := range resources {
		if !borrowed[r.RemoteID] {
			continue
		}
		s.logger.Warn(ctx, "attachment lost on the server, dropping it", "resource", r.Identifier, "remote_id", r.RemoteID)
		if err := s.store.Resources().Delete(ctx, r.Identifier, s.key); err != nil && !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("drop resource %s: %w", r.Identifier, err)
		}
	}
	return nil
}

func (s *syncService) uploadResource(ctx context.Context, id string) error {
	r, err := s.store.Resources().GetByID(ctx, id, s.key)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load resource %s: %w", id, err)
	}
	if r.MemoID != nil {
		// The memo push uploads it.
		return nil
	}
	_, err = s.ensureUploaded(ctx, r, "")
	return err
}
