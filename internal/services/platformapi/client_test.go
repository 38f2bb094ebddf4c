package platformapi_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"

	"shipyard/internal/config"
	"shipyard/internal/services"
	"shipyard/internal/services/platformapi"
)

func writeRender(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hero.mp4")
	if err := os.WriteFile(path, []byte("video-bytes"), 0o644); err != nil {
		t.Fatalf("write render: %v", err)
	}
	return path
}

func TestUploadPostsMultipartWithToken(t *testing.T) {
	var gotAuth, gotFile, gotCampaign, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotCampaign = r.FormValue("campaign_id")
		file, _, err := r.FormFile("file")
		if err == nil {
			data, _ := io.ReadAll(file)
			gotFile = string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"post-1","url":"https://instagram.example/p/1"}`))
	}))
	defer server.Close()

	client := platformapi.NewClient(config.PlatformAPI{
		BaseURL: server.URL,
		Tokens:  map[string]string{"instagram": "secret"},
	})
	receipt, err := client.Upload(context.Background(), "Instagram", platformapi.Upload{
		CampaignID: "c1",
		Name:       "Spring_hero.mp4",
		Path:       writeRender(t),
		Format:     "mp4",
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if receipt.ID != "post-1" || receipt.URL != "https://instagram.example/p/1" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/platforms/instagram/uploads" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotFile != "video-bytes" || gotCampaign != "c1" {
		t.Fatalf("unexpected form: file=%q campaign=%q", gotFile, gotCampaign)
	}
}

func TestUploadRequiresToken(t *testing.T) {
	client := platformapi.NewClient(config.PlatformAPI{BaseURL: "http://example.invalid"})
	_, err := client.Upload(context.Background(), "tiktok", platformapi.Upload{Path: writeRender(t)})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad dimensions", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := platformapi.NewClient(config.PlatformAPI{
		BaseURL:          server.URL,
		Tokens:           map[string]string{"youtube": "t"},
		FailureThreshold: 1,
	})
	for i := 0; i < 3; i++ {
		_, err := client.Upload(context.Background(), "youtube", platformapi.Upload{Path: writeRender(t)})
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("attempt %d: expected validation error, got %v", i, err)
		}
	}
	if calls.Load() != 3 {
		t.Fatalf("expected every request to reach the server, got %d", calls.Load())
	}
	if client.State("youtube") != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", client.State("youtube"))
	}
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := platformapi.NewClient(config.PlatformAPI{
		BaseURL:          server.URL,
		Tokens:           map[string]string{"tiktok": "t"},
		FailureThreshold: 2,
		CooldownSeconds:  60,
	})
	for i := 0; i < 4; i++ {
		_, err := client.Upload(context.Background(), "tiktok", platformapi.Upload{Path: writeRender(t)})
		if !errors.Is(err, services.ErrTransient) {
			t.Fatalf("attempt %d: expected transient error, got %v", i, err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected breaker to stop requests after 2 failures, got %d", calls.Load())
	}
	if client.State("tiktok") != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", client.State("tiktok"))
	}
	if client.State("instagram") != gobreaker.StateClosed {
		t.Fatal("expected other platforms unaffected")
	}
}
