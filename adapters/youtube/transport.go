package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/domain/video"
	"github.com/tubegate/tubegate/ports"
)

// DefaultUploadURL is the resumable upload endpoint for videos.
const DefaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"

// Transport opens resumable upload sessions against the videos endpoint.
type Transport struct {
	httpc     *http.Client
	uploadURL string
	chunkSize int64
}

// NewTransport creates a resumable upload transport. chunkSize is the
// number of bytes sent per chunk.
func NewTransport(httpc *http.Client, chunkSize int64) *Transport {
	return &Transport{
		httpc:     httpc,
		uploadURL: DefaultUploadURL,
		chunkSize: chunkSize,
	}
}

// SetUploadURL overrides the upload endpoint (for testing).
func (t *Transport) SetUploadURL(url string) {
	t.uploadURL = url
}

// insertBody mirrors the videos.insert request document.
type insertBody struct {
	Snippet struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		Tags            []string `json:"tags,omitempty"`
		CategoryID      string   `json:"categoryId,omitempty"`
		DefaultLanguage string   `json:"defaultLanguage,omitempty"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus           string `json:"privacyStatus"`
		SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
	} `json:"status"`
}

// Begin initiates a resumable upload session: a POST carrying the
// metadata document returns a session URI that accepts the file bytes.
func (t *Transport) Begin(ctx context.Context, path string, size int64, meta video.Metadata) (ports.ResumableSession, error) {
	var body insertBody
	body.Snippet.Title = meta.Title
	body.Snippet.Description = meta.Description
	body.Snippet.Tags = meta.Tags
	body.Snippet.CategoryID = meta.CategoryID
	body.Snippet.DefaultLanguage = meta.Language
	body.Status.PrivacyStatus = string(meta.Privacy)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	url := t.uploadURL + "?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build initiation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "video/*")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))

	resp, err := t.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("initiate upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &transfer.StatusError{Code: resp.StatusCode, Body: string(excerpt)}
	}

	uri := resp.Header.Get("Location")
	if uri == "" {
		return nil, fmt.Errorf("initiation response missing session URI")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}

	return &session{
		httpc:     t.httpc,
		uri:       uri,
		file:      f,
		size:      size,
		chunkSize: t.chunkSize,
	}, nil
}

// session is one resumable upload in flight. The server tracks the
// acknowledged offset; after a transient failure the next call probes it
// before sending more bytes.
type session struct {
	httpc     *http.Client
	uri       string
	file      *os.File
	size      int64
	chunkSize int64
	offset    int64
	probe     bool
}

// Offset returns the server-acknowledged byte offset.
func (s *session) Offset() int64 {
	return s.offset
}

// Close releases the underlying file handle.
func (s *session) Close() error {
	return s.file.Close()
}

// SendNextChunk uploads the next chunk from the acknowledged offset.
// After a transient failure it first asks the server how many bytes it
// holds, so acknowledged bytes are never resent.
func (s *session) SendNextChunk(ctx context.Context) transfer.Attempt {
	if s.probe {
		att := s.syncOffset(ctx)
		if att.Kind == transfer.AttemptProgress {
			s.probe = false
		}
		return att
	}

	end := s.offset + s.chunkSize
	if end > s.size {
		end = s.size
	}

	chunk := io.NewSectionReader(s.file, s.offset, end-s.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.uri, chunk)
	if err != nil {
		return transfer.Fatal(fmt.Errorf("build chunk request: %w", err))
	}
	req.ContentLength = end - s.offset
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s.offset, end-1, s.size))

	resp, err := s.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return transfer.Fatal(ctx.Err())
		}
		s.probe = true
		return transfer.Retryable(fmt.Errorf("send chunk: %w", err))
	}
	defer resp.Body.Close()

	return s.handleResponse(resp)
}

// syncOffset asks the server for its acknowledged offset by sending an
// empty chunk with an indeterminate Content-Range.
func (s *session) syncOffset(ctx context.Context) transfer.Attempt {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.uri, nil)
	if err != nil {
		return transfer.Fatal(fmt.Errorf("build status request: %w", err))
	}
	req.ContentLength = 0
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", s.size))

	resp, err := s.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return transfer.Fatal(ctx.Err())
		}
		return transfer.Retryable(fmt.Errorf("query upload status: %w", err))
	}
	defer resp.Body.Close()

	return s.handleResponse(resp)
}

// handleResponse maps an upload endpoint response onto an attempt outcome.
func (s *session) handleResponse(resp *http.Response) transfer.Attempt {
	switch {
	case resp.StatusCode == 308: // Resume Incomplete
		s.offset = ackedOffset(resp.Header.Get("Range"))
		frac := 0.0
		if s.size > 0 {
			frac = float64(s.offset) / float64(s.size)
		}
		return transfer.Advanced(frac)

	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return transfer.Fatal(fmt.Errorf("decode upload response: %w", err))
		}
		s.offset = s.size
		return transfer.Completed(out.ID)

	case transfer.RetryableStatus(resp.StatusCode):
		s.probe = true
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return transfer.Retryable(&transfer.StatusError{Code: resp.StatusCode, Body: string(excerpt)})

	default:
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return transfer.Fatal(&transfer.StatusError{Code: resp.StatusCode, Body: string(excerpt)})
	}
}

// ackedOffset parses a Range header of the form "bytes=0-N" into the
// next unsent offset N+1. A missing or malformed header means the server
// holds nothing.
func ackedOffset(rangeHeader string) int64 {
	if rangeHeader == "" {
		return 0
	}
	idx := strings.LastIndex(rangeHeader, "-")
	if idx < 0 {
		return 0
	}
	last, err := strconv.ParseInt(rangeHeader[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return last + 1
}

// Ensure interface compliance.
var (
	_ ports.ResumableTransport = (*Transport)(nil)
	_ ports.ResumableSession   = (*session)(nil)
)
