package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestValidateShareURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://chatgpt.com/share/684b6af3-fc08-8009-b864-a0b6761b22d0", want: "https://chatgpt.com/share/684b6af3-fc08-8009-b864-a0b6761b22d0"},
		{in: "  https://chat.openai.com/share/abc  ", want: "https://chat.openai.com/share/abc"},
		{in: "https://www.ChatGPT.com/share/abc#top", want: "https://chatgpt.com/share/abc"},
		{in: "http://chatgpt.com/share/abc", wantErr: true},
		{in: "https://example.com/share/abc", wantErr: true},
		{in: "https://chatgpt.com/c/abc", wantErr: true},
		{in: "https://chatgpt.com/share/", wantErr: true},
		{in: "not a url", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ValidateShareURL(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidShareURL) {
				t.Errorf("ValidateShareURL(%q) err = %v, want ErrInvalidShareURL", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateShareURL(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateShareURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHTTPFetcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "resonance") {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("<html><body>shared</body></html>"))
	}))
	defer server.Close()

	html, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if html != "<html><body>shared</body></html>" {
		t.Errorf("unexpected body %q", html)
	}
}

func TestHTTPFetcher_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestHTTPFetcher_SizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	f := NewHTTPFetcher(5 * time.Second)
	f.maxBytes = 32
	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected size error")
	}
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPFetcher(5*time.Second).Fetch(ctx, server.URL); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNew(t *testing.T) {
	if f, err := New(Options{}); err != nil {
		t.Errorf("default mode: %v", err)
	} else if _, ok := f.(*HTTPFetcher); !ok {
		t.Errorf("default mode returned %T", f)
	}
	if f, err := New(Options{Mode: "browser", BrowserURL: "ws://127.0.0.1:9222"}); err != nil {
		t.Errorf("browser mode: %v", err)
	} else if _, ok := f.(*BrowserFetcher); !ok {
		t.Errorf("browser mode returned %T", f)
	}
	if _, err := New(Options{Mode: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}
