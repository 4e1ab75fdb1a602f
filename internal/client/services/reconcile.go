package services

import (
	"github.com/dmitrijs2005/memosync/internal/client/models"
)

// decision is what one sync step does with a record.
type decision int

const (
	decisionNone decision = iota
	// decisionPull overwrites the local copy with the server's.
	decisionPull
	// decisionMarkSynced records that both sides already agree.
	decisionMarkSynced
	// decisionPushUpdate sends local edits over an unchanged server copy.
	decisionPushUpdate
	// decisionDeleteRemote propagates a local tombstone.
	decisionDeleteRemote
	// decisionRestore drops a local tombstone and takes the server copy.
	decisionRestore
	// decisionFork keeps both edits: the local one moves to a new memo.
	decisionFork
	// decisionPurge drops the local row without talking to the server.
	decisionPurge
	// decisionPushCreate creates a never-synced memo on the server.
	decisionPushCreate
	// decisionForceCreate recreates a memo the server no longer has.
	decisionForceCreate
)

func (d decision) String() string {
	switch d {
	case decisionPull:
		return "pull"
	case decisionMarkSynced:
		return "mark-synced"
	case decisionPushUpdate:
		return "push-update"
	case decisionDeleteRemote:
		return "delete-remote"
	case decisionRestore:
		return "restore"
	case decisionFork:
		return "fork"
	case decisionPurge:
		return "purge"
	case decisionPushCreate:
		return "push-create"
	case decisionForceCreate:
		return "force-create"
	default:
		return "none"
	}
}

// decideRemote picks the step for a memo present on the server. local is
// nil when no local row carries the remote id.
func decideRemote(local *models.Memo, localResources []*models.Resource, remote *models.RemoteMemo) decision {
	if local == nil {
		return decisionPull
	}

	changed := remoteChangedSince(local, remote)
	same := equivalent(local, localResources, remote)

	if local.IsDeleted {
		switch {
		case !local.NeedsSync:
			return decisionRestore
		case changed || !same:
			// The tombstone hides edits the user never saw.
			return decisionRestore
		default:
			return decisionDeleteRemote
		}
	}

	switch {
	case same:
		if !local.NeedsSync && local.LastSyncedAt != nil && local.LastSyncedAt.Equal(remote.UpdatedAt) {
			return decisionNone
		}
		return decisionMarkSynced
	case !local.NeedsSync:
		return decisionPull
	case !changed:
		return decisionPushUpdate
	default:
		return decisionFork
	}
}

// decideLocal picks the step for a local row the server did not list.
func decideLocal(local *models.Memo) decision {
	switch {
	case local.RemoteID != "" && local.IsDeleted:
		return decisionPurge
	case local.RemoteID != "" && local.NeedsSync:
		return decisionForceCreate
	case local.RemoteID != "":
		// Deleted on the server with nothing local to keep.
		return decisionPurge
	case local.IsDeleted:
		return decisionPurge
	case local.NeedsSync:
		return decisionPushCreate
	default:
		return decisionNone
	}
}

func remoteChangedSince(local *models.Memo, remote *models.RemoteMemo) bool {
	if local.LastSyncedAt == nil {
		return true
	}
	return models.NormalizeTime(remote.UpdatedAt).After(*local.LastSyncedAt)
}

// equivalent compares what a user can see: content, flags and the set of
// attachments.
func equivalent(local *models.Memo, localResources []*models.Resource, remote *models.RemoteMemo) bool {
	if local.Content != remote.Content ||
		local.Pinned != remote.Pinned ||
		local.Visibility != remote.Visibility ||
		local.Archived != remote.Archived {
		return false
	}

	if len(localResources) != len(remote.Resources) {
		return false
	}
	ids := make(map[string]struct{}, len(remote.Resources))
	for _, r := range remote.Resources {
		ids[r.RemoteID] = struct{}{}
	}
	for _, r := range localResources {
		if _, ok := ids[r.IdentityKey()]; !ok {
			return false
		}
	}
	return true
}
