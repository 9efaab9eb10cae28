// Package client talks to a modsync server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"modsync/internal/api"
	"modsync/internal/model"
	"modsync/internal/modsync"
)

// Client is a typed wrapper over the modsync HTTP API. Error bodies are
// decoded back into the modsync error types.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     modsync.Logger
	workers    int
}

// DefaultWorkers is the number of parallel uploads or downloads.
const DefaultWorkers = 4

// New creates a Client. apiKey is only needed for publishing and admin calls.
func New(httpClient *http.Client, baseURL, apiKey string, logger modsync.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = modsync.NewNopLogger()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		logger:     logger,
		workers:    DefaultWorkers,
	}
}

// SetWorkers sets the transfer parallelism. Values below one are ignored.
func (c *Client) SetWorkers(n int) {
	if n > 0 {
		c.workers = n
	}
}

func (c *Client) Hello(ctx context.Context) (string, error) {
	var out api.HelloResponse
	if err := c.do(ctx, http.MethodPost, "/hello", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

func (c *Client) CreateModpack(ctx context.Context, in modsync.ModpackInput) (*model.Modpack, error) {
	var out api.Modpack
	if err := c.do(ctx, http.MethodPost, "/modpack/create", api.FromModpackInput(in), &out); err != nil {
		return nil, err
	}
	return out.Model(), nil
}

func (c *Client) ListModpacks(ctx context.Context) ([]*model.Modpack, error) {
	var out api.ModpackList
	if err := c.do(ctx, http.MethodGet, "/modpack", nil, &out); err != nil {
		return nil, err
	}
	modpacks := make([]*model.Modpack, len(out.Modpacks))
	for i, mp := range out.Modpacks {
		modpacks[i] = mp.Model()
	}
	return modpacks, nil
}

func (c *Client) GetModpack(ctx context.Context, id string) (*modsync.ModpackView, error) {
	var out api.ModpackView
	if err := c.do(ctx, http.MethodGet, "/modpack/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (c *Client) UpdateModpack(ctx context.Context, id string, in modsync.ModpackInput) (*model.Modpack, error) {
	var out api.Modpack
	if err := c.do(ctx, http.MethodPost, "/modpack/"+url.PathEscape(id)+"/update", api.FromModpackInput(in), &out); err != nil {
		return nil, err
	}
	return out.Model(), nil
}

func (c *Client) DeleteModpack(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/modpack/"+url.PathEscape(id)+"/delete", nil, nil)
}

// Publish commits m as the next version of a modpack. expected must be the
// version m was diffed against.
func (c *Client) Publish(ctx context.Context, id string, m model.Manifest, expected int64, allowEmpty bool) (*modsync.PublishResult, error) {
	req := api.PublishRequest{Files: m, ExpectedVersion: expected, AllowEmpty: allowEmpty}
	var out api.PublishResponse
	if err := c.do(ctx, http.MethodPost, "/modpack/"+url.PathEscape(id)+"/publish", req, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

// Upload streams content for a declared entry as a multipart body.
func (c *Client) Upload(ctx context.Context, id, path, hash string, content io.Reader) (*modsync.UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		fw, err := mw.CreateFormFile("upload", path)
		if err == nil {
			_, err = io.Copy(fw, content)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	q := url.Values{"file_path": {path}, "hash": {hash}}
	endpoint := "/modpack/" + url.PathEscape(id) + "/upload?" + q.Encode()
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out api.UploadResponse
	if err := c.send(req, &out); err != nil {
		pr.Close()
		return nil, err
	}
	return out.Domain(), nil
}

// PlanSync asks the server for the actions that bring m up to date.
func (c *Client) PlanSync(ctx context.Context, id string, m model.Manifest) (*modsync.SyncPlan, error) {
	var out api.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/modpack/"+url.PathEscape(id)+"/sync", api.SyncRequest{Files: m}, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (c *Client) ChangesSince(ctx context.Context, id string, since int64) (*modsync.ChangeSet, error) {
	var out api.ChangesResponse
	endpoint := "/modpack/" + url.PathEscape(id) + "/changes?since=" + strconv.FormatInt(since, 10)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (c *Client) FileHistory(ctx context.Context, id, path string) ([]*model.FileEntry, error) {
	var out api.HistoryResponse
	endpoint := "/modpack/" + url.PathEscape(id) + "/history?" + url.Values{"path": {path}}.Encode()
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return api.ToFileEntries(out.History), nil
}

// Download streams the content for hash into w.
func (c *Client) Download(ctx context.Context, hash string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/dl/hash/"+url.PathEscape(hash), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", hash, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("downloading %s: %w", hash, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var eb api.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	if eb.Code != "" {
		return eb.Err()
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return api.ErrUnauthorized
	case http.StatusNotFound:
		return modsync.ErrNotFound
	case http.StatusRequestEntityTooLarge:
		return api.ErrTooLarge
	default:
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
}
