package fal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{
		APIKey:       "test-key",
		QueueBaseURL: srv.URL,
		RestBaseURL:  srv.URL,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return client, srv
}

func TestUploadTwoStepFlow(t *testing.T) {
	var uploaded []byte
	var putContentType string

	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/storage/upload/initiate", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Key test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode initiate body: %v", err)
		}
		if body["file_name"] != "room.jpg" || body["content_type"] != "image/jpeg" {
			t.Errorf("initiate body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"file_url":   "https://cdn.fal.example/room.jpg",
			"upload_url": srvURL + "/signed-put",
		})
	})
	mux.HandleFunc("/signed-put", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		putContentType = r.Header.Get("Content-Type")
		uploaded, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	client, srv := newTestClient(t, mux)
	srvURL = srv.URL

	url, err := client.Upload(context.Background(), []byte("jpeg bytes"), "image/jpeg", "room.jpg")
	if err != nil {
		t.Fatalf("Upload() unexpected error: %v", err)
	}
	if url != "https://cdn.fal.example/room.jpg" {
		t.Fatalf("url = %q", url)
	}
	if string(uploaded) != "jpeg bytes" {
		t.Fatalf("uploaded payload = %q", uploaded)
	}
	if putContentType != "image/jpeg" {
		t.Fatalf("put content type = %q", putContentType)
	}
}

func TestUploadWithoutCredentials(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if _, err := client.Upload(context.Background(), []byte("x"), "image/jpeg", "a.jpg"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestSubscribePollsUntilCompleted(t *testing.T) {
	var polls atomic.Int32
	var submittedInput GenerateInput

	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/fal-ai/nano-banana/edit", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&submittedInput); err != nil {
			t.Errorf("decode input: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-1",
			"status_url":   srvURL + "/status",
			"response_url": srvURL + "/response",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := "IN_QUEUE"
		if polls.Add(1) >= 3 {
			status = "COMPLETED"
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("/response", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"images":      []map[string]any{{"url": "https://cdn.fal.example/out.jpg"}},
			"description": "staged",
		})
	})

	client, srv := newTestClient(t, mux)
	srvURL = srv.URL

	result, err := client.Subscribe(context.Background(), "fal-ai/nano-banana/edit", GenerateInput{
		Prompt:       "stage it",
		ImageURLs:    []string{"https://cdn.fal.example/in.jpg"},
		NumImages:    1,
		OutputFormat: "jpeg",
	})
	if err != nil {
		t.Fatalf("Subscribe() unexpected error: %v", err)
	}
	if polls.Load() < 3 {
		t.Fatalf("polls = %d, want at least 3", polls.Load())
	}
	if got := result.FirstImageURL(); got != "https://cdn.fal.example/out.jpg" {
		t.Fatalf("FirstImageURL() = %q", got)
	}
	if got := result.FirstDescription(); got != "staged" {
		t.Fatalf("FirstDescription() = %q", got)
	}
	if submittedInput.NumImages != 1 || submittedInput.OutputFormat != "jpeg" {
		t.Fatalf("submitted input = %+v", submittedInput)
	}
}

func TestSubscribeToleratesDataEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/app", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-2",
			"status_url":   srvURL + "/status",
			"response_url": srvURL + "/response",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "COMPLETED"})
	})
	mux.HandleFunc("/response", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"images":      []map[string]any{{"url": "https://cdn.fal.example/nested.jpg"}},
				"description": "nested shape",
			},
		})
	})

	client, srv := newTestClient(t, mux)
	srvURL = srv.URL

	result, err := client.Subscribe(context.Background(), "app", GenerateInput{Prompt: "p", NumImages: 1})
	if err != nil {
		t.Fatalf("Subscribe() unexpected error: %v", err)
	}
	if got := result.FirstImageURL(); got != "https://cdn.fal.example/nested.jpg" {
		t.Fatalf("FirstImageURL() = %q", got)
	}
	if got := result.FirstDescription(); got != "nested shape" {
		t.Fatalf("FirstDescription() = %q", got)
	}
}

func TestSubscribeDownstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/app", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"detail": []map[string]string{{"msg": "image_urls unreachable"}},
		})
	})

	client, _ := newTestClient(t, mux)

	_, err := client.Subscribe(context.Background(), "app", GenerateInput{Prompt: "p"})
	de, ok := AsDownstream(err)
	if !ok {
		t.Fatalf("error = %v, want *DownstreamError", err)
	}
	if de.Status != http.StatusUnprocessableEntity {
		t.Fatalf("Status = %d, want 422", de.Status)
	}
	if de.Detail == nil {
		t.Fatalf("Detail not captured")
	}
}

func TestSubscribeContextCancelled(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/app", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-3",
			"status_url":   srvURL + "/status",
			"response_url": srvURL + "/response",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "IN_PROGRESS"})
	})

	client, srv := newTestClient(t, mux)
	srvURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Subscribe(ctx, "app", GenerateInput{Prompt: "p"}); err == nil {
		t.Fatalf("Subscribe() expected context error")
	}
}

func TestDownstreamErrorMessage(t *testing.T) {
	err := newDownstreamErrorFromBody(500, []byte("plain failure"))
	de, ok := AsDownstream(err)
	if !ok {
		t.Fatalf("expected DownstreamError")
	}
	if de.Detail != "plain failure" {
		t.Fatalf("Detail = %v", de.Detail)
	}
	if de.Error() == "" {
		t.Fatalf("empty error message")
	}
}
