// Package models defines the client-side records kept in the local store and
// the server's canonical copies they are reconciled against.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Visibility controls who can see a memo on the server.
type Visibility string

const (
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityProtected Visibility = "PROTECTED"
	VisibilityPublic    Visibility = "PUBLIC"
)

// ParseVisibility accepts any casing; empty means private.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case "":
		return VisibilityPrivate, nil
	case VisibilityPrivate, VisibilityProtected, VisibilityPublic:
		return v, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// Memo is a locally persisted note.
type Memo struct {
	// Identifier is the local id, stable for the life of the record.
	Identifier string
	// RemoteID is the server id; empty until the first successful push or pull.
	RemoteID   string
	AccountKey string

	Content     string
	Date        time.Time
	Visibility  Visibility
	CreatorID   string
	CreatorName string
	Pinned      bool
	Archived    bool

	// IsDeleted marks a tombstone awaiting remote deletion.
	IsDeleted bool
	// NeedsSync marks local edits the server has not seen yet.
	NeedsSync bool

	LastModified time.Time
	// LastSyncedAt is the server update time last reconciled; nil if never.
	LastSyncedAt *time.Time

	// Resources is filled by list operations; it is not a stored column.
	Resources []*Resource
}

// Synced reports whether the memo has ever been reconciled with the server.
func (m *Memo) Synced() bool {
	return m.RemoteID != "" && m.LastSyncedAt != nil
}

// MarkDirty records a local mutation.
func (m *Memo) MarkDirty(now time.Time) {
	m.NeedsSync = true
	m.LastModified = NormalizeTime(now)
}

// RemoteMemo is the server's canonical copy of a memo.
type RemoteMemo struct {
	RemoteID    string
	Content     string
	Visibility  Visibility
	Pinned      bool
	Archived    bool
	CreatorID   string
	CreatorName string
	// CreatedAt is the display time of the memo.
	CreatedAt time.Time
	// UpdatedAt is the authoritative modification time.
	UpdatedAt time.Time
	Resources []*RemoteResource
}

// NormalizeTime truncates to the millisecond precision the store keeps.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}
