package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackService(t *testing.T) {
	t.Run("PostMessage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat.postMessage" {
				t.Errorf("expected path /chat.postMessage, got %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer xoxb-test" {
				t.Errorf("expected bot token header, got %q", r.Header.Get("Authorization"))
			}

			var payload map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode payload: %v", err)
			}
			if payload["channel"] != "#playsync" {
				t.Errorf("expected channel, got %v", payload["channel"])
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true,"channel":"C123","ts":"111.222"}`))
		}))
		defer server.Close()

		svc := NewSlackServiceAt(server.URL, "xoxb-test", nil)
		ref, err := svc.PostMessage(context.Background(), "#playsync", "hello", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ref.Channel != "C123" || ref.Timestamp != "111.222" {
			t.Errorf("expected message ref from response, got %+v", ref)
		}
	})

	t.Run("API Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
		}))
		defer server.Close()

		svc := NewSlackServiceAt(server.URL, "xoxb-test", nil)
		_, err := svc.PostMessage(context.Background(), "#missing", "hello", nil)
		if err == nil {
			t.Fatal("expected error for failed api call")
		}
	})

	t.Run("PostEphemeral", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat.postEphemeral" {
				t.Errorf("expected path /chat.postEphemeral, got %s", r.URL.Path)
			}

			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["user"] != "U456" {
				t.Errorf("expected user in payload, got %v", payload["user"])
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		svc := NewSlackServiceAt(server.URL, "xoxb-test", nil)
		blocks := []Block{{Type: "section", Text: Markdown("*pick one*")}}
		if err := svc.PostEphemeral(context.Background(), "C123", "U456", "pick", blocks); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("DeleteMessage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat.delete" {
				t.Errorf("expected path /chat.delete, got %s", r.URL.Path)
			}

			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["ts"] != "111.222" {
				t.Errorf("expected ts in payload, got %v", payload["ts"])
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		svc := NewSlackServiceAt(server.URL, "xoxb-test", nil)
		if err := svc.DeleteMessage(context.Background(), MessageRef{Channel: "C123", Timestamp: "111.222"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestBlockHelpers(t *testing.T) {
	t.Run("Markdown", func(t *testing.T) {
		text := Markdown("*bold*")
		if text.Type != "mrkdwn" || text.Text != "*bold*" {
			t.Errorf("unexpected text block: %+v", text)
		}
	})

	t.Run("Divider", func(t *testing.T) {
		if Divider().Type != "divider" {
			t.Error("expected divider block type")
		}
	})
}

func TestBestThumbnail(t *testing.T) {
	t.Run("Picks Tallest", func(t *testing.T) {
		thumbs := []Thumbnail{
			{URL: "a.jpg", Height: 60},
			{URL: "b.jpg", Height: 544},
			{URL: "c.jpg", Height: 120},
		}
		if got := BestThumbnail(thumbs, "fallback.png"); got != "b.jpg" {
			t.Errorf("expected tallest thumbnail, got %s", got)
		}
	})

	t.Run("Falls Back When Empty", func(t *testing.T) {
		if got := BestThumbnail(nil, "fallback.png"); got != "fallback.png" {
			t.Errorf("expected fallback, got %s", got)
		}
	})
}
