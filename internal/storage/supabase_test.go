package storage

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func Test_MakeObjectKey(t *testing.T) {
	s := NewSupabase("http://x", "k", "b")
	key := s.MakeObjectKey("case-123", "../weird name!.pdf")
	if !strings.HasPrefix(key, "cases/case-123/documents/") {
		t.Fatalf("key = %q", key)
	}
	if strings.Contains(key, "..") || strings.Contains(key, " ") || strings.Contains(key, "!") {
		t.Fatalf("unsafe characters survived: %q", key)
	}
	if key == s.MakeObjectKey("case-123", "../weird name!.pdf") {
		t.Fatal("keys must not collide for repeated filenames")
	}
}

func Test_Upload_Download_RoundTrip(t *testing.T) {
	objects := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "svc-key" || r.Header.Get("Authorization") != "Bearer svc-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/test-bucket/")
		switch r.Method {
		case http.MethodPost:
			b, _ := io.ReadAll(r.Body)
			objects[key] = b
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			b, ok := objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(b)
		case http.MethodDelete:
			if _, ok := objects[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(objects, key)
		}
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL, "svc-key", "test-bucket")

	if err := s.Upload("cases/c1/documents/a.txt", strings.NewReader("hello"), "text/plain", 5); err != nil {
		t.Fatalf("upload: %v", err)
	}

	rc, err := s.Download("cases/c1/documents/a.txt")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "hello" {
		t.Fatalf("content = %q", b)
	}

	if err := s.Delete("cases/c1/documents/a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Second delete hits a 404 upstream and still succeeds
	if err := s.Delete("cases/c1/documents/a.txt"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func Test_SignedURL_ResolvesRelativePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/storage/v1/object/sign/test-bucket/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"signedURL":"/object/sign/test-bucket/cases/c1/documents/a.txt?token=tok"}`))
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL, "svc-key", "test-bucket")
	url, err := s.SignedURL("cases/c1/documents/a.txt", 900)
	if err != nil {
		t.Fatal(err)
	}
	want := srv.URL + "/storage/v1/object/sign/test-bucket/cases/c1/documents/a.txt?token=tok"
	if url != want {
		t.Fatalf("url = %q, want %q", url, want)
	}
}
