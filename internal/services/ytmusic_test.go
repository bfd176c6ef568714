package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/playsync/internal/models"
)

func TestYouTubeMusicService(t *testing.T) {
	t.Run("Playlist", func(t *testing.T) {
		mock := ytPlaylist{
			ID:    "PL123",
			Title: "Workout",
			Tracks: []ytTrack{
				{
					VideoID:     "vid1",
					SetVideoID:  "set1",
					Title:       "Song One",
					Artists:     []ytArtist{{Name: "Artist A"}, {Name: "Artist B"}},
					Album:       &ytAlbum{Name: "Album X"},
					DurationSec: 215,
					VideoType:   "MUSIC_VIDEO_TYPE_ATV",
				},
				{
					VideoID:   "vid2",
					Title:     "Video Two",
					Artists:   []ytArtist{{Name: "Channel C"}},
					VideoType: "MUSIC_VIDEO_TYPE_OMV",
				},
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/playlists/PL123" {
				t.Errorf("expected path /api/playlists/PL123, got %s", r.URL.Path)
			}
			if r.Method != http.MethodGet {
				t.Errorf("expected GET method, got %s", r.Method)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(mock)
		}))
		defer server.Close()

		svc := NewYouTubeMusicService(server.URL, nil)
		playlist, err := svc.Playlist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(playlist.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(playlist.Entries))
		}

		first := playlist.Entries[0]
		if first.Category != models.CategorySong {
			t.Errorf("expected audio track to be a song, got %s", first.Category)
		}
		if first.Artist != "Artist A, Artist B" {
			t.Errorf("expected joined artist names, got %s", first.Artist)
		}
		if first.Album != "Album X" {
			t.Errorf("expected album name, got %s", first.Album)
		}
		if first.SetID != "set1" {
			t.Errorf("expected set id to survive conversion, got %s", first.SetID)
		}

		if playlist.Entries[1].Category != models.CategoryVideo {
			t.Errorf("expected non-audio track to be a video, got %s", playlist.Entries[1].Category)
		}
	})

	t.Run("Bearer Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer token123" {
				t.Errorf("expected bearer token header, got %q", r.Header.Get("Authorization"))
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(ytPlaylist{ID: "PL123"})
		}))
		defer server.Close()

		svc := NewYouTubeMusicService(server.URL, nil).WithAccessToken("token123")
		if _, err := svc.Playlist(context.Background(), "PL123"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("SearchSongs", func(t *testing.T) {
		mock := []ytTrack{
			{
				VideoID: "song1",
				Title:   "Found Song",
				Artists: []ytArtist{{Name: "Artist"}},
				Views:   "1.2M",
				Thumbnails: []Thumbnail{
					{URL: "small.jpg", Width: 60, Height: 60},
					{URL: "large.jpg", Width: 544, Height: 544},
				},
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/search" {
				t.Errorf("expected path /api/search, got %s", r.URL.Path)
			}
			if q := r.URL.Query().Get("q"); q != "Artist Found Song" {
				t.Errorf("expected query to pass through, got %q", q)
			}
			if kind := r.URL.Query().Get("kind"); kind != "songs" {
				t.Errorf("expected songs filter, got %q", kind)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(mock)
		}))
		defer server.Close()

		svc := NewYouTubeMusicService(server.URL, nil)
		results, err := svc.SearchSongs(context.Background(), "Artist Found Song", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}

		got := results[0]
		if got.Category != models.CategorySong {
			t.Errorf("expected search results to be songs, got %s", got.Category)
		}
		if got.ThumbnailURL != "large.jpg" {
			t.Errorf("expected tallest thumbnail, got %s", got.ThumbnailURL)
		}
	})

	t.Run("SongViews", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/songs/vid1" {
				t.Errorf("expected path /api/songs/vid1, got %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"videoId":"vid1","viewCount":"1234567"}`))
		}))
		defer server.Close()

		svc := NewYouTubeMusicService(server.URL, nil)
		views, err := svc.SongViews(context.Background(), "vid1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if views != 1234567 {
			t.Errorf("expected 1234567 views, got %d", views)
		}
	})

	t.Run("RemovePlaylistItems", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/playlists/PL123/items/remove" {
				t.Errorf("expected removal path, got %s", r.URL.Path)
			}

			var payload struct {
				Items []struct {
					VideoID    string `json:"videoId"`
					SetVideoID string `json:"setVideoId"`
				} `json:"items"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode removal payload: %v", err)
			}
			if len(payload.Items) != 1 || payload.Items[0].SetVideoID != "set1" {
				t.Errorf("expected one removal carrying the set id, got %+v", payload.Items)
			}

			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		svc := NewYouTubeMusicService(server.URL, nil)
		entries := []SourceEntry{{ID: "vid1", SetID: "set1"}}
		if err := svc.RemovePlaylistItems(context.Background(), "PL123", entries); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Error Detail", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"detail":"upstream unavailable"}`))
		}))
		defer server.Close()

		svc := NewYouTubeMusicService(server.URL, nil)
		_, err := svc.Playlist(context.Background(), "PL123")
		if err == nil {
			t.Fatal("expected error for upstream failure")
		}
	})
}
