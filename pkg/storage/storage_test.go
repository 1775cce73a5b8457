package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func newRecordingServer(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{method: r.Method, path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: body})
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func TestS3StoreUpload(t *testing.T) {
	srv, requests := newRecordingServer(t)
	store, err := NewS3Store(context.Background(), Config{
		Provider:  "s3",
		Endpoint:  srv.URL,
		Bucket:    "assets",
		Prefix:    "posts",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}

	url, err := store.Upload(context.Background(), "images", "u1/b1/p1/p1-1.png", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	want := srv.URL + "/assets/posts/images/u1/b1/p1/p1-1.png"
	if url != want {
		t.Fatalf("url = %q, want %q", url, want)
	}

	var put *recordedRequest
	for _, r := range requests() {
		if r.method == http.MethodPut {
			r := r
			put = &r
		}
	}
	if put == nil {
		t.Fatalf("expected a PUT request, got %+v", requests())
	}
	if put.path != "/assets/posts/images/u1/b1/p1/p1-1.png" {
		t.Fatalf("put path = %q", put.path)
	}
	if put.contentType != "image/png" {
		t.Fatalf("content type = %q", put.contentType)
	}
}

func TestS3StorePresignedURL(t *testing.T) {
	srv, _ := newRecordingServer(t)
	store, err := NewS3Store(context.Background(), Config{
		Endpoint:      srv.URL,
		Bucket:        "assets",
		AccessKey:     "AKIDEXAMPLE",
		SecretKey:     "secret",
		PresignExpiry: 10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	url, err := store.Upload(context.Background(), "images", "a.png", []byte("x"), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(url, "X-Amz-Signature=") || !strings.Contains(url, "/assets/images/a.png") {
		t.Fatalf("expected presigned url, got %q", url)
	}
}

func TestS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestS3ObjectURLWithoutEndpoint(t *testing.T) {
	s := &S3Store{cfg: Config{Bucket: "assets", Region: "eu-west-1"}}
	got, err := s.objectURL("images/a b.png")
	if err != nil {
		t.Fatalf("object url: %v", err)
	}
	if got != "https://assets.s3.eu-west-1.amazonaws.com/images/a%20b.png" {
		t.Fatalf("object url = %q", got)
	}
}

func TestMinioStoreUpload(t *testing.T) {
	srv, requests := newRecordingServer(t)
	store, err := NewMinioStore(Config{
		Endpoint:      strings.TrimPrefix(srv.URL, "http://"),
		AccessKey:     "minio",
		SecretKey:     "minio123",
		PublicBaseURL: "https://cdn.example.com/",
	})
	if err != nil {
		t.Fatalf("new minio store: %v", err)
	}

	for i := 0; i < 2; i++ {
		url, err := store.Upload(context.Background(), "images", "u1/b1/p1/p1-1.png", []byte("png"), "image/png")
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		if url != "https://cdn.example.com/images/u1/b1/p1/p1-1.png" {
			t.Fatalf("url = %q", url)
		}
	}

	var heads, puts int
	for _, r := range requests() {
		switch r.method {
		case http.MethodHead:
			heads++
		case http.MethodPut:
			puts++
			if r.path != "/images/u1/b1/p1/p1-1.png" {
				t.Fatalf("put path = %q", r.path)
			}
		}
	}
	if heads != 1 {
		t.Fatalf("bucket should be checked once, got %d HEAD requests", heads)
	}
	if puts != 2 {
		t.Fatalf("expected 2 uploads, got %d", puts)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Config{Provider: "azure"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestPrefixedKey(t *testing.T) {
	if got := prefixedKey("/root/", "images", "/a/b.png"); got != "root/images/a/b.png" {
		t.Fatalf("prefixedKey = %q", got)
	}
	if got := prefixedKey("", "images", "a.png"); got != "images/a.png" {
		t.Fatalf("prefixedKey = %q", got)
	}
}
