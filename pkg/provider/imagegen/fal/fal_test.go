package fal_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/solyn-ai/solyn/pkg/provider/imagegen"
	"github.com/solyn-ai/solyn/pkg/provider/imagegen/fal"
)

// inferenceRecorder captures the model path, auth header, and JSON body of the
// last inference call.
type inferenceRecorder struct {
	path string
	auth string
	body map[string]any
}

func newInferenceServer(t *testing.T, rec *inferenceRecorder, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &rec.body); err != nil {
			t.Errorf("inference body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, response)
	}))
}

func TestEdit_SendsTunedPayload(t *testing.T) {
	t.Parallel()
	rec := &inferenceRecorder{}
	srv := newInferenceServer(t, rec, `{"images":[{"url":"https://fal.media/out.png"}]}`)
	defer srv.Close()

	p, err := fal.New("key-1", fal.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	url, err := p.Edit(context.Background(), imagegen.EditRequest{
		ImageURL: "https://img/in.png",
		Prompt:   "red dress",
	})
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://fal.media/out.png" {
		t.Errorf("url = %q", url)
	}

	if rec.path != "/fal-ai/flux/dev/image-to-image" {
		t.Errorf("model path = %q", rec.path)
	}
	if rec.auth != "Key key-1" {
		t.Errorf("auth header = %q", rec.auth)
	}
	if rec.body["image_url"] != "https://img/in.png" || rec.body["prompt"] != "red dress" {
		t.Errorf("body = %v", rec.body)
	}
	if rec.body["strength"] != 0.7 || rec.body["num_inference_steps"] != float64(28) {
		t.Errorf("tuning = %v", rec.body)
	}
	if rec.body["guidance_scale"] != 3.5 || rec.body["image_size"] != "square_hd" {
		t.Errorf("tuning = %v", rec.body)
	}
}

func TestTryOn_SendsModelAndGarment(t *testing.T) {
	t.Parallel()
	rec := &inferenceRecorder{}
	srv := newInferenceServer(t, rec, `{"image":{"url":"https://fal.media/tryon.png"}}`)
	defer srv.Close()

	p, err := fal.New("key-1", fal.WithBaseURL(srv.URL), fal.WithTryOnModel("custom/tryon"))
	if err != nil {
		t.Fatal(err)
	}
	url, err := p.TryOn(context.Background(), imagegen.TryOnRequest{
		ModelImageURL:   "https://img/person.png",
		GarmentImageURL: "https://img/gown.png",
	})
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://fal.media/tryon.png" {
		t.Errorf("url = %q", url)
	}
	if rec.path != "/custom/tryon" {
		t.Errorf("model path = %q", rec.path)
	}
	if rec.body["model_image"] != "https://img/person.png" || rec.body["garment_image"] != "https://img/gown.png" {
		t.Errorf("body = %v", rec.body)
	}
}

func TestTryOn_RequiresBothImages(t *testing.T) {
	t.Parallel()
	p, err := fal.New("key-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.TryOn(context.Background(), imagegen.TryOnRequest{ModelImageURL: "x"}); err == nil {
		t.Error("missing garment should be rejected before any HTTP call")
	}
	if _, err := p.Edit(context.Background(), imagegen.EditRequest{ImageURL: "x"}); err == nil {
		t.Error("missing prompt should be rejected before any HTTP call")
	}
}

func TestInfer_ErrorStatusSurfacesBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":"invalid image"}`)
	}))
	defer srv.Close()

	p, err := fal.New("key-1", fal.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Edit(context.Background(), imagegen.EditRequest{ImageURL: "x", Prompt: "y"})
	if err == nil || !strings.Contains(err.Error(), "status 422") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "invalid image") {
		t.Errorf("error should carry the response body: %v", err)
	}
}

func TestUploadBytes_TwoStepFlow(t *testing.T) {
	t.Parallel()
	var putBody []byte
	var putContentType string

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/initiate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Key key-1" {
			t.Errorf("initiate auth = %q", r.Header.Get("Authorization"))
		}
		var init map[string]string
		json.NewDecoder(r.Body).Decode(&init)
		if init["content_type"] != "image/png" || !strings.HasPrefix(init["file_name"], "capture-") {
			t.Errorf("initiate body = %v", init)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"upload_url": srv.URL + "/put",
			"file_url":   "https://fal.media/files/capture.png",
		})
	})
	mux.HandleFunc("/put", func(w http.ResponseWriter, r *http.Request) {
		putBody, _ = io.ReadAll(r.Body)
		putContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	})

	p, err := fal.New("key-1", fal.WithUploadURL(srv.URL+"/initiate"))
	if err != nil {
		t.Fatal(err)
	}
	url, err := p.UploadBytes(context.Background(), []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://fal.media/files/capture.png" {
		t.Errorf("url = %q", url)
	}
	if string(putBody) != "png-bytes" || putContentType != "image/png" {
		t.Errorf("put body=%q content-type=%q", putBody, putContentType)
	}
}

func TestUploadBytes_DefaultsContentType(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var initContentType string
	mux.HandleFunc("/initiate", func(w http.ResponseWriter, r *http.Request) {
		var init map[string]string
		json.NewDecoder(r.Body).Decode(&init)
		initContentType = init["content_type"]
		json.NewEncoder(w).Encode(map[string]string{
			"upload_url": srv.URL + "/put",
			"file_url":   "https://fal.media/files/x.jpg",
		})
	})
	mux.HandleFunc("/put", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	p, err := fal.New("key-1", fal.WithUploadURL(srv.URL+"/initiate"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.UploadBytes(context.Background(), []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	if initContentType != "image/jpeg" {
		t.Errorf("defaulted content type = %q", initContentType)
	}
}
