package youtube_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tubegate/tubegate/adapters/youtube"
	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/domain/video"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var testMeta = video.Metadata{
	Title:       "Test Video",
	Description: "desc",
	Tags:        []string{"one", "two"},
	CategoryID:  "22",
	Privacy:     video.PrivacyPrivate,
}

// uploadServer fakes the resumable upload endpoint: initiation on POST,
// chunk PUTs against the session path.
type uploadServer struct {
	t        *testing.T
	size     int64
	received []byte
	// perChunk hooks each PUT; return true to take over the response.
	perChunk func(w http.ResponseWriter, r *http.Request, put int) bool
	puts     int
	initBody []byte
}

func (u *uploadServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		u.initBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Location", "http://"+r.Host+"/session/abc")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /session/abc", func(w http.ResponseWriter, r *http.Request) {
		u.puts++
		if u.perChunk != nil && u.perChunk(w, r, u.puts) {
			return
		}
		body, _ := io.ReadAll(r.Body)
		u.received = append(u.received, body...)
		if int64(len(u.received)) >= u.size {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"id": "vid123"})
			return
		}
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(u.received)-1))
		w.WriteHeader(308)
	})
	return mux
}

func newTestTransport(t *testing.T, u *uploadServer, chunkSize int64) *youtube.Transport {
	srv := httptest.NewServer(u.handler())
	t.Cleanup(srv.Close)
	tr := youtube.NewTransport(srv.Client(), chunkSize)
	tr.SetUploadURL(srv.URL)
	return tr
}

func TestTransport_ChunkedUploadCompletes(t *testing.T) {
	content := []byte("0123456789abcdefghij") // 20 bytes
	path := writeFile(t, "movie.mp4", content)
	server := &uploadServer{t: t, size: 20}
	tr := newTestTransport(t, server, 8)

	sess, err := tr.Begin(context.Background(), path, 20, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	var final transfer.Attempt
	for i := 0; i < 10; i++ {
		final = sess.SendNextChunk(context.Background())
		if final.Kind != transfer.AttemptProgress {
			break
		}
	}

	if final.Kind != transfer.AttemptCompleted {
		t.Fatalf("final attempt = %+v", final)
	}
	if final.ResourceID != "vid123" {
		t.Errorf("video id = %q", final.ResourceID)
	}
	if string(server.received) != string(content) {
		t.Errorf("server received %q", server.received)
	}
	// 20 bytes in 8-byte chunks = 3 PUTs.
	if server.puts != 3 {
		t.Errorf("puts = %d, want 3", server.puts)
	}
}

func TestTransport_InitiationSendsMetadata(t *testing.T) {
	path := writeFile(t, "movie.mp4", []byte("xx"))
	server := &uploadServer{t: t, size: 2}
	tr := newTestTransport(t, server, 8)

	sess, err := tr.Begin(context.Background(), path, 2, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	sess.Close()

	var doc struct {
		Snippet struct {
			Title      string   `json:"title"`
			Tags       []string `json:"tags"`
			CategoryID string   `json:"categoryId"`
		} `json:"snippet"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	}
	if err := json.Unmarshal(server.initBody, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Snippet.Title != "Test Video" || doc.Status.PrivacyStatus != "private" {
		t.Errorf("initiation doc = %+v", doc)
	}
	if len(doc.Snippet.Tags) != 2 || doc.Snippet.CategoryID != "22" {
		t.Errorf("initiation doc = %+v", doc)
	}
}

func TestTransport_ResumesAfterTransientFailure(t *testing.T) {
	content := []byte("0123456789abcdefghij") // 20 bytes
	path := writeFile(t, "movie.mp4", content)
	server := &uploadServer{t: t, size: 20}
	// Fail the second PUT with a 503, then expect a status probe.
	sawProbe := false
	server.perChunk = func(w http.ResponseWriter, r *http.Request, put int) bool {
		if put == 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return true
		}
		if put == 3 {
			if cr := r.Header.Get("Content-Range"); cr != "bytes */20" {
				server.t.Errorf("probe Content-Range = %q, want bytes */20", cr)
			}
			sawProbe = true
			w.Header().Set("Range", "bytes=0-7")
			w.WriteHeader(308)
			return true
		}
		return false
	}
	tr := newTestTransport(t, server, 8)

	sess, err := tr.Begin(context.Background(), path, 20, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	// First chunk lands.
	if att := sess.SendNextChunk(context.Background()); att.Kind != transfer.AttemptProgress {
		t.Fatalf("attempt 1 = %+v", att)
	}
	// Second chunk hits the 503.
	att := sess.SendNextChunk(context.Background())
	if att.Kind != transfer.AttemptRetryable {
		t.Fatalf("attempt 2 = %+v", att)
	}
	var se *transfer.StatusError
	if !errors.As(att.Err, &se) || se.Code != 503 {
		t.Fatalf("err = %v", att.Err)
	}
	// Next call probes the acknowledged offset instead of sending bytes.
	if att := sess.SendNextChunk(context.Background()); att.Kind != transfer.AttemptProgress {
		t.Fatalf("probe = %+v", att)
	}
	if !sawProbe {
		t.Fatal("no status probe after transient failure")
	}
	if sess.Offset() != 8 {
		t.Errorf("offset = %d, want 8", sess.Offset())
	}

	// Drive to completion; acknowledged bytes are never resent.
	for i := 0; i < 10; i++ {
		att = sess.SendNextChunk(context.Background())
		if att.Kind != transfer.AttemptProgress {
			break
		}
	}
	if att.Kind != transfer.AttemptCompleted {
		t.Fatalf("final = %+v", att)
	}
	if string(server.received) != string(content) {
		t.Errorf("server received %q", server.received)
	}
}

func TestTransport_FatalOnClientError(t *testing.T) {
	path := writeFile(t, "movie.mp4", []byte("xx"))
	server := &uploadServer{t: t, size: 2}
	server.perChunk = func(w http.ResponseWriter, r *http.Request, put int) bool {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, "quota exceeded for this key")
		return true
	}
	tr := newTestTransport(t, server, 8)

	sess, err := tr.Begin(context.Background(), path, 2, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	att := sess.SendNextChunk(context.Background())
	if att.Kind != transfer.AttemptFatal {
		t.Fatalf("attempt = %+v", att)
	}
	var se *transfer.StatusError
	if !errors.As(att.Err, &se) || se.Code != 403 {
		t.Errorf("err = %v", att.Err)
	}
}

func TestTransport_BeginFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	tr := youtube.NewTransport(srv.Client(), 8)
	tr.SetUploadURL(srv.URL)

	path := writeFile(t, "movie.mp4", []byte("xx"))
	_, err := tr.Begin(context.Background(), path, 2, testMeta)
	if err == nil {
		t.Fatal("expected initiation failure")
	}
	var se *transfer.StatusError
	if !errors.As(err, &se) || se.Code != 401 {
		t.Errorf("err = %v", err)
	}
}

func TestTransport_BeginFailsWithoutSessionURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // no Location header
	}))
	t.Cleanup(srv.Close)
	tr := youtube.NewTransport(srv.Client(), 8)
	tr.SetUploadURL(srv.URL)

	path := writeFile(t, "movie.mp4", []byte("xx"))
	if _, err := tr.Begin(context.Background(), path, 2, testMeta); err == nil {
		t.Fatal("expected missing session URI error")
	}
}
