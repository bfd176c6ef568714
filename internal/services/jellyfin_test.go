package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/playsync/internal/shared"
)

func TestJellyfinService(t *testing.T) {
	t.Run("NewJellyfinService", func(t *testing.T) {
		t.Run("Missing URL", func(t *testing.T) {
			_, err := NewJellyfinService("", "key", nil)
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected missing config error, got %v", err)
			}
		})

		t.Run("Missing API Key", func(t *testing.T) {
			_, err := NewJellyfinService("http://jellyfin.local", "", nil)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected missing credentials error, got %v", err)
			}
		})

		t.Run("Trims Trailing Slash", func(t *testing.T) {
			svc, err := NewJellyfinService("http://jellyfin.local/", "key", nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if svc.BaseURL() != "http://jellyfin.local" {
				t.Errorf("expected trimmed base url, got %s", svc.BaseURL())
			}
		})
	})

	t.Run("Items", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/Items" {
				t.Errorf("expected path /Items, got %s", r.URL.Path)
			}
			if r.Header.Get("X-Emby-Token") != "apikey" {
				t.Errorf("expected api key header")
			}
			if fields := r.URL.Query().Get("Fields"); fields != "Path,ProviderIds" {
				t.Errorf("expected joined fields, got %q", fields)
			}

			page := jfItemPage{Items: []jfItem{
				{ID: "item1", Name: "Song One", Path: "/music/a.opus", Artists: []string{"Artist"}},
			}}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(page)
		}))
		defer server.Close()

		svc, _ := NewJellyfinService(server.URL, "apikey", nil)
		items, err := svc.Items(context.Background(), "Audio", []string{"Path", "ProviderIds"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(items) != 1 || items[0].Path != "/music/a.opus" {
			t.Errorf("expected one item with its path, got %+v", items)
		}
	})

	t.Run("SetProviderID", func(t *testing.T) {
		var updated map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet:
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"Id":"item1","Name":"Song","ProviderIds":{"MusicBrainzTrack":"mb1"}}`))
			case r.Method == http.MethodPost && r.URL.Path == "/Items/item1":
				if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
					t.Fatalf("failed to decode update: %v", err)
				}
				w.WriteHeader(http.StatusNoContent)
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
		}))
		defer server.Close()

		svc, _ := NewJellyfinService(server.URL, "apikey", nil)
		if err := svc.SetProviderID(context.Background(), "item1", "user1", ProviderIDKey, "vid1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		ids, ok := updated["ProviderIds"].(map[string]any)
		if !ok {
			t.Fatal("expected provider ids in update body")
		}
		if ids[ProviderIDKey] != "vid1" {
			t.Errorf("expected new provider id, got %v", ids[ProviderIDKey])
		}
		if ids["MusicBrainzTrack"] != "mb1" {
			t.Errorf("expected existing provider ids preserved, got %v", ids)
		}
	})

	t.Run("AddToPlaylist", func(t *testing.T) {
		t.Run("Chunks Requests", func(t *testing.T) {
			var batches [][]string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ids := strings.Split(r.URL.Query().Get("ids"), ",")
				batches = append(batches, ids)
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			svc, _ := NewJellyfinService(server.URL, "apikey", nil)

			itemIDs := make([]string, 23)
			for i := range itemIDs {
				itemIDs[i] = "item" + string(rune('a'+i))
			}

			added, err := svc.AddToPlaylist(context.Background(), "pl1", "user1", itemIDs)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if added != 23 {
				t.Errorf("expected 23 items added, got %d", added)
			}
			if len(batches) != 3 {
				t.Fatalf("expected 3 batches, got %d", len(batches))
			}
			if len(batches[0]) != 10 || len(batches[2]) != 3 {
				t.Errorf("expected batches of 10,10,3, got %d,%d,%d",
					len(batches[0]), len(batches[1]), len(batches[2]))
			}
		})

		t.Run("Failed Chunk Does Not Stop Remaining Chunks", func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls == 1 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			svc, _ := NewJellyfinService(server.URL, "apikey", nil)

			itemIDs := make([]string, 25)
			for i := range itemIDs {
				itemIDs[i] = "x"
			}

			added, err := svc.AddToPlaylist(context.Background(), "pl1", "user1", itemIDs)
			if err == nil {
				t.Fatal("expected error for failing batch")
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected api request error in chain, got %v", err)
			}
			if calls != 3 {
				t.Errorf("expected all 3 chunks attempted, got %d", calls)
			}
			if added != 15 {
				t.Errorf("expected 15 items added by the surviving chunks, got %d", added)
			}
		})

		t.Run("Reports Partial Progress", func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls > 1 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			svc, _ := NewJellyfinService(server.URL, "apikey", nil)

			itemIDs := make([]string, 15)
			for i := range itemIDs {
				itemIDs[i] = "x"
			}

			added, err := svc.AddToPlaylist(context.Background(), "pl1", "user1", itemIDs)
			if err == nil {
				t.Fatal("expected error for failing batch")
			}
			if added != 10 {
				t.Errorf("expected 10 items added before failure, got %d", added)
			}
		})
	})

	t.Run("ProviderID Accessor", func(t *testing.T) {
		tagged := LibraryItem{ProviderIDs: map[string]string{ProviderIDKey: "vid1", "MusicBrainzTrack": "mb1"}}
		if tagged.ProviderID() != "vid1" {
			t.Errorf("expected catalog id, got %q", tagged.ProviderID())
		}

		other := LibraryItem{ProviderIDs: map[string]string{"MusicBrainzTrack": "mb1"}}
		if other.ProviderID() != "" {
			t.Errorf("expected empty id for untagged item, got %q", other.ProviderID())
		}

		var untagged LibraryItem
		if untagged.ProviderID() != "" {
			t.Errorf("expected empty id with nil map, got %q", untagged.ProviderID())
		}
	})

	t.Run("UserByName", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]jfUser{
				{ID: "u1", Name: "alice"},
				{ID: "u2", Name: "Bob"},
			})
		}))
		defer server.Close()

		svc, _ := NewJellyfinService(server.URL, "apikey", nil)

		user, err := svc.UserByName(context.Background(), "bob")
		if err != nil {
			t.Fatalf("expected case-insensitive match, got %v", err)
		}
		if user.ID != "u2" {
			t.Errorf("expected user u2, got %s", user.ID)
		}

		_, err = svc.UserByName(context.Background(), "carol")
		if !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected user not found error, got %v", err)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		svc, _ := NewJellyfinService(server.URL, "apikey", nil)
		_, err := svc.Item(context.Background(), "missing", "user1")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}
