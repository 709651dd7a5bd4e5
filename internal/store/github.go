package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timeline-go/internal/timeline"
)

const (
	defaultAPIBase = "https://api.github.com"
	defaultRawBase = "https://raw.githubusercontent.com"
)

// GitHubStore talks to the GitHub contents API, which enforces
// at-most-one-writer-wins semantics: a write must carry the blob SHA of the
// version it replaces, and a stale SHA is rejected. Each Put or Delete is
// one commit on the configured branch.
type GitHubStore struct {
	apiBase string
	rawBase string
	token   string
	owner   string
	repo    string
	branch  string
	client  *http.Client
}

// GitHubOptions configures a GitHubStore. APIBase and RawBase exist so
// tests can point the client at a local server.
type GitHubOptions struct {
	Token   string
	Owner   string
	Repo    string
	Branch  string
	APIBase string
	RawBase string
	Client  *http.Client
}

// NewGitHubStore creates a client for one repository and branch.
func NewGitHubStore(opts GitHubOptions) (*GitHubStore, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errors.New("github store requires owner and repo")
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.APIBase == "" {
		opts.APIBase = defaultAPIBase
	}
	if opts.RawBase == "" {
		opts.RawBase = defaultRawBase
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GitHubStore{
		apiBase: strings.TrimRight(opts.APIBase, "/"),
		rawBase: strings.TrimRight(opts.RawBase, "/"),
		token:   opts.Token,
		owner:   opts.Owner,
		repo:    opts.Repo,
		branch:  opts.Branch,
		client:  opts.Client,
	}, nil
}

type contentResponse struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

type writeResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// Get fetches a file's current bytes and revision token (its blob SHA).
func (g *GitHubStore) Get(ctx context.Context, path string) (*timeline.FileContent, error) {
	resp, err := g.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := g.checkStatus(resp, path); err != nil {
		return nil, err
	}

	var data contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding content response for %s: %w", path, err)
	}

	// The API base64-encodes file content with embedded line breaks.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(data.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decoding base64 content for %s: %w", path, err)
	}

	return &timeline.FileContent{Content: raw, Revision: data.SHA}, nil
}

// Put creates the file when revision is empty and replaces it otherwise.
func (g *GitHubStore) Put(ctx context.Context, path string, content []byte, message, revision string) (string, error) {
	body := writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  g.branch,
		SHA:     revision,
	}

	resp, err := g.do(ctx, http.MethodPut, path, &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := g.checkStatus(resp, path); err != nil {
		return "", err
	}

	var data writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decoding write response for %s: %w", path, err)
	}
	return data.Content.SHA, nil
}

// Delete removes a file at its current revision.
func (g *GitHubStore) Delete(ctx context.Context, path, message, revision string) error {
	body := writeRequest{
		Message: message,
		Branch:  g.branch,
		SHA:     revision,
	}

	resp, err := g.do(ctx, http.MethodDelete, path, &body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := g.checkStatus(resp, path); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// List enumerates the files directly under a directory.
func (g *GitHubStore) List(ctx context.Context, dir string) ([]timeline.DirEntry, error) {
	resp, err := g.do(ctx, http.MethodGet, dir, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := g.checkStatus(resp, dir); err != nil {
		return nil, err
	}

	var items []contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding directory listing for %s: %w", dir, err)
	}

	entries := make([]timeline.DirEntry, 0, len(items))
	for _, it := range items {
		if it.Type != "file" {
			continue
		}
		entries = append(entries, timeline.DirEntry{Path: it.Path, Revision: it.SHA})
	}
	return entries, nil
}

// PutBlob stores a blob, fetching the current SHA first so replacement
// works without the caller tracking revisions.
func (g *GitHubStore) PutBlob(ctx context.Context, path string, data []byte, message string) error {
	revision := ""
	existing, err := g.Get(ctx, path)
	switch {
	case err == nil:
		revision = existing.Revision
	case errors.Is(err, timeline.ErrNotFound):
		// New blob.
	default:
		return fmt.Errorf("checking existing blob %s: %w", path, err)
	}

	if _, err := g.Put(ctx, path, data, message, revision); err != nil {
		return err
	}
	return nil
}

// URL returns the raw public URL a committed blob is served from.
func (g *GitHubStore) URL(path string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", g.rawBase, g.owner, g.repo, g.branch, path)
}

// do issues one contents-API request. body is JSON-encoded when non-nil.
func (g *GitHubStore) do(ctx context.Context, method, path string, body *writeRequest) (*http.Response, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.apiBase, g.owner, g.repo, escapePath(path))
	if method == http.MethodGet {
		u += "?ref=" + url.QueryEscape(g.branch)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request for %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling contents api for %s: %w", path, err)
	}
	return resp, nil
}

// checkStatus translates API failures into the store error taxonomy:
// 404 is ErrNotFound, 409 and the 422 sha-mismatch are ErrConflict, and
// anything else non-2xx surfaces with the response body attached.
func (g *GitHubStore) checkStatus(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusNotFound:
		if resp.Request != nil && resp.Request.Method != http.MethodGet {
			// A write against a vanished baseline: the revision we
			// hold no longer describes anything.
			return fmt.Errorf("%s: %w", path, timeline.ErrConflict)
		}
		return fmt.Errorf("%s: %w", path, timeline.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", path, timeline.ErrConflict)
	case http.StatusUnprocessableEntity:
		if bytes.Contains(msg, []byte("sha")) {
			return fmt.Errorf("%s: %w", path, timeline.ErrConflict)
		}
	}

	return fmt.Errorf("contents api %s %s: status %d: %s", resp.Request.Method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
}

// escapePath escapes each path segment while keeping separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Compile-time checks that GitHubStore implements the store interfaces.
var (
	_ timeline.ContentStore = (*GitHubStore)(nil)
	_ timeline.BlobStore    = (*GitHubStore)(nil)
)
