package models

import "time"

// Resource is an attachment file, optionally attached to a memo.
type Resource struct {
	Identifier string
	RemoteID   string
	AccountKey string
	Date       time.Time
	Filename   string
	// URI is where the resource is displayed from: the server link once
	// uploaded, the local file before that.
	URI string
	// LocalURI points at the cached file in the file store, if any.
	LocalURI string
	MimeType string
	MemoID   *string
}

func (r *Resource) AttachedTo(memoID string) bool {
	return r.MemoID != nil && *r.MemoID == memoID
}

// IdentityKey identifies the resource when comparing a memo's attachments
// with the server's: uploaded resources by remote id, others by local id.
func (r *Resource) IdentityKey() string {
	if r.RemoteID != "" {
		return r.RemoteID
	}
	return "local:" + r.Identifier
}

// RemoteResource is the server's record of an uploaded resource.
type RemoteResource struct {
	RemoteID  string
	Filename  string
	MimeType  string
	URI       string
	Size      int64
	CreatedAt time.Time
}
