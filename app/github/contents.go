package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// EntryType is the type of a repository contents entry
type EntryType string

const (
	// EntryDir is a directory entry
	EntryDir EntryType = "dir"
	// EntryFile is a regular file entry
	EntryFile EntryType = "file"
)

// DirEntry is a single item of a directory listing
type DirEntry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Type        EntryType `json:"type"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// Contents reads a single repository through the contents API
type Contents struct {
	client *Client
	owner  string
	repo   string
}

// Contents returns a contents reader scoped to owner/repo
func (c *Client) Contents(owner, repo string) *Contents {
	return &Contents{client: c, owner: owner, repo: repo}
}

// ListDir lists the entries at path. ok is false when the response body is not
// a JSON array, which is what the API returns for a file path.
func (r *Contents) ListDir(ctx context.Context, path, ref string) (entries []DirEntry, ok bool, err error) {
	var raw json.RawMessage
	if err := r.client.GetJSON(ctx, r.apiPath(path), refQuery(ref), &raw); err != nil {
		return nil, false, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false, nil
	}
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, false, fmt.Errorf("failed to decode listing of %s: %w", path, err)
	}
	return entries, true, nil
}

// RawContent fetches the raw bytes of a file entry, preferring its download URL
func (r *Contents) RawContent(ctx context.Context, entry DirEntry, ref string) (string, error) {
	if entry.DownloadURL != "" {
		return r.client.GetRaw(ctx, entry.DownloadURL)
	}
	target := r.apiPath(entry.Path)
	if q := refQuery(ref); len(q) > 0 {
		target += "?" + q.Encode()
	}
	return r.client.GetRaw(ctx, target)
}

// GetContent fetches a file through the JSON envelope and decodes its base64 payload
func (r *Contents) GetContent(ctx context.Context, path, ref string) ([]byte, error) {
	var envelope struct {
		Type     string `json:"type"`
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	if err := r.client.GetJSON(ctx, r.apiPath(path), refQuery(ref), &envelope); err != nil {
		return nil, err
	}
	if envelope.Encoding != "" && envelope.Encoding != "base64" {
		return nil, fmt.Errorf("unsupported content encoding %q for %s", envelope.Encoding, path)
	}

	// the API wraps base64 payloads at 60 columns
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(envelope.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", path, err)
	}
	return data, nil
}

func (r *Contents) apiPath(path string) string {
	segments := []string{"repos", url.PathEscape(r.owner), url.PathEscape(r.repo), "contents"}
	for _, s := range strings.Split(strings.Trim(path, "/"), "/") {
		if s != "" {
			segments = append(segments, url.PathEscape(s))
		}
	}
	return "/" + strings.Join(segments, "/")
}

func refQuery(ref string) url.Values {
	if ref == "" {
		return nil
	}
	return url.Values{"ref": []string{ref}}
}

// Dirs returns the directory entries, in listing order
func Dirs(entries []DirEntry) []DirEntry {
	return filterType(entries, EntryDir)
}

// Files returns the file entries, in listing order
func Files(entries []DirEntry) []DirEntry {
	return filterType(entries, EntryFile)
}

func filterType(entries []DirEntry, t EntryType) []DirEntry {
	res := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type == t {
			res = append(res, e)
		}
	}
	return res
}
