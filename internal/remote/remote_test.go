package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"louvor/internal/schema"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func TestFetchUnwrapsEnvelope(t *testing.T) {
	doc := schema.Seed()
	data, err := schema.Encode(doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.Header.Get("X-Master-Key"); got != "secret" {
			t.Errorf("missing credential header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"record": %s, "metadata": {"id": "abc"}}`, data)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", testLogger())
	fetched, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !schema.Equal(doc, fetched) {
		t.Error("fetched document differs from served document")
	}
}

func TestFetchBareDocument(t *testing.T) {
	doc := schema.Seed()
	data, _ := schema.Encode(doc)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", testLogger())
	fetched, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !schema.Equal(doc, fetched) {
		t.Error("fetched document differs from served document")
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, ""},
		{"server error", http.StatusInternalServerError, ""},
		{"garbage body", http.StatusOK, "{truncated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client := New(srv.URL, "secret", testLogger())
			if _, err := client.Fetch(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the dial fails

	client := New(srv.URL, "secret", testLogger())
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Error("expected transport error")
	}
}

func TestPushSendsFullDocument(t *testing.T) {
	doc := schema.Seed()

	var gotBody []byte
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		gotHeader = r.Header.Get("X-Master-Key")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", testLogger())
	if err := client.Push(context.Background(), doc); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if gotHeader != "secret" {
		t.Errorf("missing credential header, got %q", gotHeader)
	}
	var pushed schema.Document
	if err := json.Unmarshal(gotBody, &pushed); err != nil {
		t.Fatalf("push body is not a document: %v", err)
	}
	if !schema.Equal(doc, schema.Sanitize(&pushed)) {
		t.Error("pushed body differs from document")
	}
}

func TestPushRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", testLogger())
	err := client.Push(context.Background(), schema.Seed())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRateLimited(err) {
		t.Errorf("expected rate-limited error, got %v", err)
	}
}

func TestPushOtherFailureNotRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", testLogger())
	err := client.Push(context.Background(), schema.Seed())
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRateLimited(err) {
		t.Errorf("502 misclassified as rate limited: %v", err)
	}
}

func TestFetchHonorsContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := New(srv.URL, "secret", testLogger())
	if _, err := client.Fetch(ctx); err == nil {
		t.Error("expected context deadline error")
	}
}
