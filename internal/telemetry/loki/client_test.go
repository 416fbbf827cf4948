package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPushEventJSONLabels(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	raw := []byte(`{"eventType":"talk_started","subjectId":"pso-1","source":"talksession","createdAt":"2026-08-28T10:00:00Z"}`)
	if err := PushEventJSON(context.Background(), srv.URL, raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}

	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d", len(got.Streams))
	}
	labels := got.Streams[0].Stream
	if labels["job"] != "pso-control-plane" || labels["event_type"] != "talk_started" || labels["subject_id"] != "pso-1" {
		t.Errorf("labels = %v", labels)
	}
	want := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC).UnixNano()
	if got.Streams[0].Values[0][0] != fmt.Sprintf("%d", want) {
		t.Errorf("timestamp = %s, want %d", got.Streams[0].Values[0][0], want)
	}
}

func TestPushEventNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := PushEvent(context.Background(), srv.URL, time.Now(), "line", nil); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestPushEventEmptyBaseURL(t *testing.T) {
	if err := PushEvent(context.Background(), "", time.Now(), "line", nil); err == nil {
		t.Fatal("expected error on empty base URL")
	}
}
