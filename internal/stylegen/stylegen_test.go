package stylegen

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solyn-ai/solyn/pkg/objectstore/mem"
	"github.com/solyn-ai/solyn/pkg/provider/imagegen/mock"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateStyle_EditCopiesToStore(t *testing.T) {
	t.Parallel()
	srv := pngServer(t)
	generator := &mock.Provider{EditURL: srv.URL + "/result.png"}
	objects := mem.New()
	fixed := time.UnixMilli(1700000000000)
	client := NewClient(generator, objects, WithLogger(quietLogger()), withClock(func() time.Time { return fixed }))

	res, err := client.GenerateStyle(context.Background(), Request{
		ImageURL:  "https://cdn.example.com/user.jpg",
		Prompt:    "make it a red dress",
		SessionID: "s1",
		PersonaID: "stylist-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ModelUsed != "edit" || res.ProviderURL != generator.EditURL {
		t.Errorf("result = %+v", res)
	}
	wantKey := "style-suggestions/stylist-1/s1-1700000000000.png"
	if res.GeneratedURL != "mem://"+wantKey {
		t.Errorf("generated url = %q", res.GeneratedURL)
	}
	if objects.Len() != 1 {
		t.Errorf("store holds %d objects", objects.Len())
	}
	if len(generator.EditCalls) != 1 || generator.EditCalls[0].ImageURL != "https://cdn.example.com/user.jpg" {
		t.Errorf("edit calls = %+v", generator.EditCalls)
	}
}

func TestGenerateStyle_ReferenceImageUsesTryOn(t *testing.T) {
	t.Parallel()
	srv := pngServer(t)
	generator := &mock.Provider{TryOnURL: srv.URL + "/tryon.png"}
	client := NewClient(generator, mem.New(), WithLogger(quietLogger()))

	res, err := client.GenerateStyle(context.Background(), Request{
		ImageURL:           "https://cdn.example.com/user.jpg",
		SessionID:          "s1",
		PersonaID:          "p1",
		ReferenceImageURLs: []string{"https://img/gown.png", "https://img/ignored.png"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ModelUsed != "try-on" {
		t.Errorf("model = %q", res.ModelUsed)
	}
	if len(generator.TryOnCalls) != 1 || generator.TryOnCalls[0].GarmentImageURL != "https://img/gown.png" {
		t.Errorf("try-on calls = %+v", generator.TryOnCalls)
	}
	if len(generator.EditCalls) != 0 {
		t.Error("reference request must not hit the edit model")
	}
}

func TestGenerateStyle_LocalSourceIsReuploaded(t *testing.T) {
	t.Parallel()
	srv := pngServer(t)
	generator := &mock.Provider{
		EditURL:   srv.URL + "/result.png",
		UploadURL: "https://fal.media/files/reuploaded.jpg",
	}
	client := NewClient(generator, mem.New(), WithLogger(quietLogger()))

	// The source is only reachable from this process, so it is fetched and
	// pushed to provider storage before the model call.
	if _, err := client.GenerateStyle(context.Background(), Request{
		ImageURL:  srv.URL + "/frame.jpg",
		Prompt:    "red dress",
		SessionID: "s1",
		PersonaID: "p1",
	}); err != nil {
		t.Fatal(err)
	}

	if len(generator.UploadCalls) != 1 {
		t.Fatalf("got %d uploads", len(generator.UploadCalls))
	}
	if generator.EditCalls[0].ImageURL != "https://fal.media/files/reuploaded.jpg" {
		t.Errorf("edit used %q, want the re-uploaded URL", generator.EditCalls[0].ImageURL)
	}
}

func TestGenerateStyle_UpstreamErrorIsTyped(t *testing.T) {
	t.Parallel()
	generator := &mock.Provider{EditErr: errors.New("model offline")}
	client := NewClient(generator, mem.New(), WithLogger(quietLogger()))

	_, err := client.GenerateStyle(context.Background(), Request{
		ImageURL: "https://cdn.example.com/user.jpg",
		Prompt:   "red dress",
	})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}

func TestGenerateStyle_FailedCopyFallsBackToProviderURL(t *testing.T) {
	t.Parallel()
	generator := &mock.Provider{EditURL: "https://unreachable.invalid/result.png"}
	client := NewClient(generator, mem.New(), WithLogger(quietLogger()),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	res, err := client.GenerateStyle(context.Background(), Request{
		ImageURL: "https://cdn.example.com/user.jpg",
		Prompt:   "red dress",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.GeneratedURL != "https://unreachable.invalid/result.png" {
		t.Errorf("generated url = %q, want the provider URL fallback", res.GeneratedURL)
	}
}

func TestIsLocalURL(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"http://localhost:8080/x.png": true,
		"http://127.0.0.1/x.png":      true,
		"https://cdn.example.com/x":   false,
		"":                            false,
	}
	for raw, want := range cases {
		if got := isLocalURL(raw); got != want {
			t.Errorf("isLocalURL(%q) = %v", raw, got)
		}
	}
}
