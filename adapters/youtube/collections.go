package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/domain/video"
	"github.com/tubegate/tubegate/ports"
)

// DefaultAPIBase is the data API root for playlist operations.
const DefaultAPIBase = "https://www.googleapis.com/youtube/v3"

// Collections implements ports.CollectionService over the playlists API.
type Collections struct {
	httpc   *http.Client
	apiBase string
}

// NewCollections creates a playlist-backed collection service.
func NewCollections(httpc *http.Client) *Collections {
	return &Collections{httpc: httpc, apiBase: DefaultAPIBase}
}

// SetAPIBase overrides the API root (for testing).
func (c *Collections) SetAPIBase(base string) {
	c.apiBase = base
}

type playlistList struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// EnsureCollection finds the collection with the given title among the
// channel's playlists, creating it when create is set.
func (c *Collections) EnsureCollection(ctx context.Context, name, description string, privacy video.Privacy, create bool) (string, bool, error) {
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("mine", "true")
		q.Set("maxResults", "50")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page playlistList
		if err := c.getJSON(ctx, "/playlists?"+q.Encode(), &page); err != nil {
			return "", false, fmt.Errorf("list collections: %w", err)
		}

		for _, item := range page.Items {
			if item.Snippet.Title == name {
				return item.ID, false, nil
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if !create {
		return "", false, fmt.Errorf("collection %q not found", name)
	}

	id, err := c.createCollection(ctx, name, description, privacy)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *Collections) createCollection(ctx context.Context, name, description string, privacy video.Privacy) (string, error) {
	body := map[string]any{
		"snippet": map[string]any{
			"title":       name,
			"description": description,
		},
		"status": map[string]any{
			"privacyStatus": string(privacy),
		},
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/playlists?part=snippet,status", body, &out); err != nil {
		return "", fmt.Errorf("create collection: %w", err)
	}
	return out.ID, nil
}

// AddVideo inserts a video into a collection.
func (c *Collections) AddVideo(ctx context.Context, collectionID, videoID string) error {
	body := map[string]any{
		"snippet": map[string]any{
			"playlistId": collectionID,
			"resourceId": map[string]any{
				"kind":    "youtube#video",
				"videoId": videoID,
			},
		},
	}
	if err := c.postJSON(ctx, "/playlistItems?part=snippet", body, nil); err != nil {
		return fmt.Errorf("add video to collection: %w", err)
	}
	return nil
}

func (c *Collections) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Collections) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	return c.do(req, out)
}

func (c *Collections) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &transfer.StatusError{Code: resp.StatusCode, Body: string(excerpt)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Ensure interface compliance.
var _ ports.CollectionService = (*Collections)(nil)
