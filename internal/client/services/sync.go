package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/common"
	"go.uber.org/multierr"
)

// syncService is the engine for a remote account. mu serializes sync
// passes and background pushes; local CRUD never takes it.
type syncService struct {
	*core
	remote client.Remote
	queue  *pushQueue

	mu sync.Mutex
}

func remoteFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteFailure, err)
}

func requireCanonical(op string, rm *models.RemoteMemo) error {
	if rm == nil || rm.RemoteID == "" || rm.UpdatedAt.IsZero() {
		return fmt.Errorf("%s: %w: missing remote id or update time", op, common.ErrContractViolation)
	}
	return nil
}

// Sync reconciles every memo of the account in three steps: fetch the
// server inventory, settle each server memo against its local row, then
// settle local rows the server did not list. Per-record failures are
// collected into a common.PartialSyncError; a contract violation aborts.
func (s *syncService) Sync(ctx context.Context) error {
	if s.remote == nil {
		return common.ErrNotLoggedIn
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info(ctx, "sync started")

	inventory, err := s.fetchInventory(ctx)
	if err != nil {
		s.logger.Error(ctx, "sync failed to fetch inventory", "error", err)
		return err
	}

	locals, err := s.store.Memos().GetAllForSync(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load local memos: %w", err)
	}
	byRemote := make(map[string]*models.Memo, len(locals))
	for _, m := range locals {
		if m.RemoteID != "" {
			byRemote[m.RemoteID] = m
		}
	}

	var failures []error
	seen := make(map[string]bool, len(inventory))

	for _, rm := range inventory {
		if err := ctx.Err(); err != nil {
			return err
		}
		local := byRemote[rm.RemoteID]
		if local != nil {
			seen[local.Identifier] = true
		}
		if err := s.reconcileRemote(ctx, local, rm); err != nil {
			if errors.Is(err, common.ErrContractViolation) {
				s.logger.Error(ctx, "sync aborted", "remote_id", rm.RemoteID, "error", err)
				return err
			}
			s.logger.Warn(ctx, "memo failed to sync", "remote_id", rm.RemoteID, "error", err)
			failures = append(failures, fmt.Errorf("remote memo %s: %w", rm.RemoteID, err))
		}
	}

	for _, local := range locals {
		if seen[local.Identifier] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.reconcileLocal(ctx, local); err != nil {
			if errors.Is(err, common.ErrContractViolation) {
				s.logger.Error(ctx, "sync aborted", "memo", local.Identifier, "error", err)
				return err
			}
			s.logger.Warn(ctx, "memo failed to sync", "memo", local.Identifier, "error", err)
			failures = append(failures, fmt.Errorf("memo %s: %w", local.Identifier, err))
		}
	}

	if err := s.flushResourceDeletes(ctx); err != nil {
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		s.logger.Warn(ctx, "sync finished with failures", "failures", len(failures))
		return common.NewPartialSyncError(failures...)
	}
	s.logger.Info(ctx, "sync finished", "remote", len(inventory), "local", len(locals))
	return nil
}

// fetchInventory lists normal and archived memos. Nothing local changes
// if either call fails.
func (s *syncService) fetchInventory(ctx context.Context) ([]*models.RemoteMemo, error) {
	normal, err := s.remote.ListMemos(ctx)
	if err != nil {
		return nil, remoteFailure("list memos", err)
	}
	archived, err := s.remote.ListArchivedMemos(ctx)
	if err != nil {
		return nil, remoteFailure("list archived memos", err)
	}

	byID := make(map[string]*models.RemoteMemo, len(normal)+len(archived))
	out := make([]*models.RemoteMemo, 0, len(normal)+len(archived))
	for _, rm := range append(normal, archived...) {
		if err := requireCanonical("list memos", rm); err != nil {
			return nil, err
		}
		rm.UpdatedAt = models.NormalizeTime(rm.UpdatedAt)
		if prev, ok := byID[rm.RemoteID]; ok {
			if rm.UpdatedAt.After(prev.UpdatedAt) {
				*prev = *rm
			}
			continue
		}
		byID[rm.RemoteID] = rm
		out = append(out, rm)
	}
	return out, nil
}

func (s *syncService) reconcileRemote(ctx context.Context, local *models.Memo, rm *models.RemoteMemo) error {
	var localResources []*models.Resource
	if local != nil {
		var err error
		localResources, err = s.store.Resources().GetByMemoID(ctx, local.Identifier, s.key)
		if err != nil {
			return fmt.Errorf("load resources: %w", err)
		}
	}

	d := decideRemote(local, localResources, rm)
	s.logger.Debug(ctx, "reconcile", "remote_id", rm.RemoteID, "decision", d.String())

	switch d {
	case decisionPull, decisionRestore:
		return s.pull(ctx, local, rm)
	case decisionMarkSynced:
		return s.markSynced(ctx, local, rm)
	case decisionPushUpdate:
		return s.pushLocalMemo(ctx, local.Identifier, false)
	case decisionDeleteRemote:
		return s.pushTombstone(ctx, local)
	case decisionFork:
		return s.fork(ctx, local, rm)
	default:
		return nil
	}
}

func (s *syncService) reconcileLocal(ctx context.Context, local *models.Memo) error {
	d := decideLocal(local)
	s.logger.Debug(ctx, "reconcile", "memo", local.Identifier, "decision", d.String())

	switch d {
	case decisionPurge:
		return s.purge(ctx, local.Identifier)
	case decisionForceCreate:
		return s.pushLocalMemo(ctx, local.Identifier, true)
	case decisionPushCreate:
		return s.pushLocalMemo(ctx, local.Identifier, false)
	default:
		if !local.Synced() {
			s.logger.Warn(ctx, "memo is neither synced nor pending", "memo", local.Identifier)
		}
		return nil
	}
}

// flushResourceDeletes retries queued remote deletions of resources the
// user removed locally.
func (s *syncService) flushResourceDeletes(ctx context.Context) error {
	all, err := s.store.Metadata().List(ctx, s.key)
	if err != nil {
		return fmt.Errorf("list pending resource deletions: %w", err)
	}

	var errs error
	for key, value := range all {
		if !strings.HasPrefix(key, resourceDeletePrefix) {
			continue
		}
		remoteID := string(value)
		if err := s.remote.DeleteResource(ctx, remoteID); err != nil && !errors.Is(err, client.ErrNotFound) {
			errs = multierr.Append(errs, remoteFailure("delete resource "+remoteID, err))
			continue
		}
		if err := s.store.Metadata().Delete(ctx, s.key, key); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *syncService) CurrentUser(ctx context.Context) (*models.User, error) {
	var remoteErr error
	if s.remote != nil {
		u, err := s.remote.CurrentUser(ctx)
		if err == nil {
			s.cacheUser(ctx, u)
			return u, nil
		}
		remoteErr = remoteFailure("current user", err)
		s.logger.Warn(ctx, "falling back to cached user", "error", err)
	}

	if u := s.cachedUser(ctx); u != nil {
		return u, nil
	}
	if u := s.tokenUser(); u != nil {
		return u, nil
	}
	if remoteErr != nil {
		return nil, remoteErr
	}
	return nil, common.ErrNotLoggedIn
}

func (s *syncService) runJob(ctx context.Context, j job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch j.kind {
	case jobPushMemo:
		return s.pushLocalMemo(ctx, j.id, false)
	case jobUploadResource:
		return s.uploadResource(ctx, j.id)
	case jobDeleteResources:
		return s.flushResourceDeletes(ctx)
	default:
		return fmt.Errorf("unknown job kind %d", j.kind)
	}
}

func (s *syncService) Flush(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	return s.queue.Flush(ctx)
}

func (s *syncService) Close() error {
	if s.queue == nil {
		return nil
	}
	s.queue.Close()
	return nil
}
