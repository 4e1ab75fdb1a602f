package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"google.golang.org/genproto/googleapis/rpc/status"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	defaultPageSize = 200
	maxErrorBody    = 64 << 10
)

// HTTPClient talks to a memos server through its /api/v1 JSON gateway.
type HTTPClient struct {
	baseURL     *url.URL
	accessToken string
	http        *http.Client
	pageSize    int

	mu sync.Mutex
	me *models.User
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

func WithPageSize(n int) Option {
	return func(h *HTTPClient) {
		if n > 0 {
			h.pageSize = n
		}
	}
}

func NewHTTPClient(baseURL, accessToken string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server address must be http(s): %q", baseURL)
	}

	c := &HTTPClient{
		baseURL:     u,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 30 * time.Second},
		pageSize:    defaultPageSize,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *HTTPClient) ListMemos(ctx context.Context) ([]*models.RemoteMemo, error) {
	return c.listMemos(ctx, stateNormal)
}

func (c *HTTPClient) ListArchivedMemos(ctx context.Context) ([]*models.RemoteMemo, error) {
	return c.listMemos(ctx, stateArchived)
}

// listMemos walks every page and keeps the memos owned by the token's user;
// the listing endpoint also returns other users' public memos.
func (c *HTTPClient) listMemos(ctx context.Context, state string) ([]*models.RemoteMemo, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	var (
		result []*models.RemoteMemo
		token  string
	)
	for {
		q := url.Values{}
		q.Set("state", state)
		q.Set("pageSize", fmt.Sprint(c.pageSize))
		if token != "" {
			q.Set("pageToken", token)
		}

		var resp listMemosResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/memos", q, nil, &resp); err != nil {
			return nil, err
		}

		for i := range resp.Memos {
			m := &resp.Memos[i]
			if m.Creator != "" && m.Creator != me.RemoteID {
				continue
			}
			result = append(result, c.toRemoteMemo(m))
		}

		if resp.NextPageToken == "" || resp.NextPageToken == token {
			return result, nil
		}
		token = resp.NextPageToken
	}
}

func (c *HTTPClient) CreateMemo(ctx context.Context, req CreateMemoRequest) (*models.RemoteMemo, error) {
	body := apiMemo{
		Content:    req.Content,
		Visibility: string(req.Visibility),
		Resources:  refs(req.ResourceRemoteIDs),
		Tags:       req.Tags,
	}

	var out apiMemo
	if err := c.do(ctx, http.MethodPost, "/api/v1/memos", nil, body, &out); err != nil {
		return nil, err
	}
	return c.toRemoteMemo(&out), nil
}

// UpdateMemo replaces the attachment list first, then patches the fields
// named in the update mask, so the returned memo reflects both.
func (c *HTTPClient) UpdateMemo(ctx context.Context, remoteID string, req UpdateMemoRequest) (*models.RemoteMemo, error) {
	if req.SetResources || len(req.ResourceRemoteIDs) > 0 {
		body := map[string]any{"name": remoteID, "resources": refsOrEmpty(req.ResourceRemoteIDs)}
		if err := c.do(ctx, http.MethodPatch, "/api/v1/"+remoteID+"/resources", nil, body, nil); err != nil {
			return nil, err
		}
	}

	body := map[string]any{"name": remoteID}
	var mask []string
	if req.Content != nil {
		body["content"] = *req.Content
		mask = append(mask, "content")
	}
	if req.Visibility != nil {
		body["visibility"] = string(*req.Visibility)
		mask = append(mask, "visibility")
	}
	if req.Pinned != nil {
		body["pinned"] = *req.Pinned
		mask = append(mask, "pinned")
	}

	if len(mask) == 0 {
		return c.getMemo(ctx, remoteID)
	}
	return c.patchMemo(ctx, remoteID, mask, body)
}

func (c *HTTPClient) ArchiveMemo(ctx context.Context, remoteID string) (*models.RemoteMemo, error) {
	return c.patchMemo(ctx, remoteID, []string{"state"}, map[string]any{"name": remoteID, "state": stateArchived})
}

func (c *HTTPClient) RestoreMemo(ctx context.Context, remoteID string) (*models.RemoteMemo, error) {
	return c.patchMemo(ctx, remoteID, []string{"state"}, map[string]any{"name": remoteID, "state": stateNormal})
}

func (c *HTTPClient) DeleteMemo(ctx context.Context, remoteID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/"+remoteID, nil, nil, nil)
}

func (c *HTTPClient) CreateResource(ctx context.Context, req CreateResourceRequest) (*models.RemoteResource, error) {
	body := apiResource{
		Filename: req.Filename,
		Type:     req.MimeType,
		Content:  req.Content,
		Memo:     req.MemoRemoteID,
	}

	var out apiResource
	if err := c.do(ctx, http.MethodPost, "/api/v1/resources", nil, body, &out); err != nil {
		return nil, err
	}
	return c.toRemoteResource(&out), nil
}

func (c *HTTPClient) DeleteResource(ctx context.Context, remoteID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/"+remoteID, nil, nil, nil)
}

// CurrentUser asks the server who owns the access token. The answer is
// memoised for the life of the client.
func (c *HTTPClient) CurrentUser(ctx context.Context) (*models.User, error) {
	c.mu.Lock()
	me := c.me
	c.mu.Unlock()
	if me != nil {
		cp := *me
		return &cp, nil
	}

	var out apiUser
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/status", nil, struct{}{}, &out); err != nil {
		return nil, err
	}

	nickname := out.Nickname
	if nickname == "" {
		nickname = out.DisplayName
	}
	u := &models.User{
		RemoteID:  out.Name,
		Username:  out.Username,
		Nickname:  nickname,
		Email:     out.Email,
		AvatarURL: out.AvatarURL,
	}

	c.mu.Lock()
	c.me = u
	c.mu.Unlock()

	cp := *u
	return &cp, nil
}

func (c *HTTPClient) getMemo(ctx context.Context, remoteID string) (*models.RemoteMemo, error) {
	var out apiMemo
	if err := c.do(ctx, http.MethodGet, "/api/v1/"+remoteID, nil, nil, &out); err != nil {
		return nil, err
	}
	return c.toRemoteMemo(&out), nil
}

func (c *HTTPClient) patchMemo(ctx context.Context, remoteID string, mask []string, body map[string]any) (*models.RemoteMemo, error) {
	q := url.Values{}
	q.Set("updateMask", strings.Join(mask, ","))

	var out apiMemo
	if err := c.do(ctx, http.MethodPatch, "/api/v1/"+remoteID, q, body, &out); err != nil {
		return nil, err
	}
	return c.toRemoteMemo(&out), nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError reads a gRPC-gateway error body ({"code","message","details"})
// and maps it; bodies of any other shape fall back to the HTTP status.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	st := &status.Status{}
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(body, st); err == nil && (st.GetCode() != 0 || st.GetMessage() != "") {
		if st.GetCode() == 0 {
			st.Code = int32(codeFromHTTP(resp.StatusCode))
		}
		return mapError(grpcstatus.ErrorProto(st))
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return mapError(grpcstatus.Error(codeFromHTTP(resp.StatusCode), msg))
}

func (c *HTTPClient) toRemoteMemo(m *apiMemo) *models.RemoteMemo {
	rm := &models.RemoteMemo{
		RemoteID:   m.Name,
		Content:    m.Content,
		Visibility: models.Visibility(m.Visibility),
		Pinned:     m.Pinned,
		Archived:   m.State == stateArchived,
		CreatorID:  m.Creator,
		CreatedAt:  firstTime(m.DisplayTime, m.CreateTime),
		UpdatedAt:  firstTime(m.UpdateTime),
	}
	if rm.Visibility == "" {
		rm.Visibility = models.VisibilityPrivate
	}

	c.mu.Lock()
	if c.me != nil && c.me.RemoteID == m.Creator {
		rm.CreatorName = c.me.Username
	}
	c.mu.Unlock()

	for i := range m.Resources {
		rm.Resources = append(rm.Resources, c.toRemoteResource(&m.Resources[i]))
	}
	return rm
}

func (c *HTTPClient) toRemoteResource(r *apiResource) *models.RemoteResource {
	return &models.RemoteResource{
		RemoteID:  r.Name,
		Filename:  r.Filename,
		MimeType:  r.Type,
		URI:       c.resourceURI(r),
		Size:      int64(r.Size),
		CreatedAt: firstTime(r.CreateTime),
	}
}

// resourceURI prefers the external link; otherwise the server streams the
// bytes from /file/<name>/<filename>.
func (c *HTTPClient) resourceURI(r *apiResource) string {
	if r.ExternalLink != "" {
		return r.ExternalLink
	}
	if r.Name == "" {
		return ""
	}
	u := *c.baseURL
	u.RawQuery = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/file/" + r.Name + "/" + r.Filename
	return u.String()
}

func firstTime(ts ...*time.Time) time.Time {
	for _, t := range ts {
		if t != nil && !t.IsZero() {
			return models.NormalizeTime(*t)
		}
	}
	return time.Time{}
}

func refs(ids []string) []apiResource {
	if len(ids) == 0 {
		return nil
	}
	out := make([]apiResource, 0, len(ids))
	for _, id := range ids {
		out = append(out, apiResource{Name: id})
	}
	return out
}

func refsOrEmpty(ids []string) []resourceRef {
	out := make([]resourceRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, resourceRef{Name: id})
	}
	return out
}
