package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/ports"
)

// Videos implements ports.VideoVerifier over the videos API.
type Videos struct {
	httpc   *http.Client
	apiBase string
}

// NewVideos creates a video status client.
func NewVideos(httpc *http.Client) *Videos {
	return &Videos{httpc: httpc, apiBase: DefaultAPIBase}
}

// SetAPIBase overrides the API root (for testing).
func (v *Videos) SetAPIBase(base string) {
	v.apiBase = base
}

// VideoStatus fetches the upload status of a video.
func (v *Videos) VideoStatus(ctx context.Context, videoID string) (string, error) {
	q := url.Values{}
	q.Set("part", "status")
	q.Set("id", videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiBase+"/videos?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := v.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch video status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &transfer.StatusError{Code: resp.StatusCode, Body: string(excerpt)}
	}

	var doc struct {
		Items []struct {
			Status struct {
				UploadStatus string `json:"uploadStatus"`
			} `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode video status: %w", err)
	}
	if len(doc.Items) == 0 {
		return "", fmt.Errorf("video %s not found", videoID)
	}
	return doc.Items[0].Status.UploadStatus, nil
}

// Ensure interface compliance.
var _ ports.VideoVerifier = (*Videos)(nil)
