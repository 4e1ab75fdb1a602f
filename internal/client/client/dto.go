package client

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	stateNormal   = "NORMAL"
	stateArchived = "ARCHIVED"
)

type apiMemo struct {
	Name        string        `json:"name"`
	State       string        `json:"state,omitempty"`
	Creator     string        `json:"creator,omitempty"`
	CreateTime  *time.Time    `json:"createTime,omitempty"`
	UpdateTime  *time.Time    `json:"updateTime,omitempty"`
	DisplayTime *time.Time    `json:"displayTime,omitempty"`
	Content     string        `json:"content"`
	Visibility  string        `json:"visibility,omitempty"`
	Pinned      bool          `json:"pinned"`
	Resources   []apiResource `json:"resources,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

type apiResource struct {
	Name         string     `json:"name"`
	CreateTime   *time.Time `json:"createTime,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	Content      []byte     `json:"content,omitempty"`
	ExternalLink string     `json:"externalLink,omitempty"`
	Type         string     `json:"type,omitempty"`
	Size         flexInt64  `json:"size,omitempty"`
	Memo         string     `json:"memo,omitempty"`
}

type apiUser struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	// DisplayName is what newer servers send instead of nickname.
	DisplayName string `json:"displayName,omitempty"`
}

type listMemosResponse struct {
	Memos         []apiMemo `json:"memos"`
	NextPageToken string    `json:"nextPageToken"`
}

type resourceRef struct {
	Name string `json:"name"`
}

// flexInt64 reads int64 values encoded either as numbers or, as protojson
// does, as strings.
type flexInt64 int64

func (v *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*v = flexInt64(n)
	return nil
}

func (v flexInt64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(v), 10))
}
