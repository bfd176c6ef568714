// YouTube Music [StreamingService] implementation
//
// Communicates with the ytmusic proxy server. Wire payloads are converted to
// the neutral source-catalog types at this boundary; provider type tags are
// classified into categories here and nowhere else.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultProxyBaseURL = "http://localhost:8081"

	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"

	// Provider type tag marking an audio-only track; everything else is a video.
	videoTypeSong = "MUSIC_VIDEO_TYPE_ATV"
)

// ytArtist is an artist reference in proxy responses.
type ytArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type ytAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ytTrack is a track/video in proxy playlist and search responses.
type ytTrack struct {
	VideoID     string      `json:"videoId"`
	SetVideoID  string      `json:"setVideoId,omitempty"`
	Title       string      `json:"title"`
	Artists     []ytArtist  `json:"artists"`
	Album       *ytAlbum    `json:"album"`
	DurationSec int         `json:"duration_seconds"`
	VideoType   string      `json:"videoType,omitempty"`
	Views       string      `json:"views,omitempty"`
	Thumbnails  []Thumbnail `json:"thumbnails"`
}

func (t ytTrack) artistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func (t ytTrack) category() models.Category {
	if t.VideoType == videoTypeSong {
		return models.CategorySong
	}
	return models.CategoryVideo
}

func (t ytTrack) album() string {
	if t.Album == nil {
		return ""
	}
	return t.Album.Name
}

// ytPlaylist is a playlist in proxy responses.
type ytPlaylist struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Tracks []ytTrack `json:"tracks"`
}

// ytFlatEntry is one entry of a flat playlist extraction.
type ytFlatEntry struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Channel    string      `json:"channel"`
	URL        string      `json:"url"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}

type ytFlatPlaylist struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Entries []ytFlatEntry `json:"entries"`
}

// YouTubeMusicService implements [StreamingService] via the proxy.
type YouTubeMusicService struct {
	baseURL     string
	accessToken string
	headersRaw  string
	httpClient  *http.Client
}

// NewYouTubeMusicService creates an unauthenticated service instance, enough
// for search and flat playlist extraction.
func NewYouTubeMusicService(baseURL string, client *http.Client) *YouTubeMusicService {
	if baseURL == "" {
		baseURL = defaultProxyBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &YouTubeMusicService{baseURL: baseURL, httpClient: client}
}

// WithAccessToken returns a copy of the service authenticated with an OAuth
// bearer token, required for playlist mutations.
func (y *YouTubeMusicService) WithAccessToken(token string) *YouTubeMusicService {
	dup := *y
	dup.accessToken = token
	return &dup
}

// WithBrowserHeaders returns a copy of the service authenticated with raw
// browser request headers (see shared.CurlHeaders).
func (y *YouTubeMusicService) WithBrowserHeaders(headersRaw string) *YouTubeMusicService {
	dup := *y
	dup.headersRaw = headersRaw
	return &dup
}

func (y *YouTubeMusicService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+y.accessToken)
	}
	if y.headersRaw != "" {
		req.Header.Set("X-Auth-Headers", y.headersRaw)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: ytmusic proxy status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: ytmusic proxy status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Playlist retrieves a playlist in full with provider type tags.
func (y *YouTubeMusicService) Playlist(ctx context.Context, playlistID string) (*SourcePlaylist, error) {
	var pl ytPlaylist
	endpoint := fmt.Sprintf("/api/playlists/%s?limit=0", url.PathEscape(playlistID))
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &pl); err != nil {
		return nil, err
	}

	out := &SourcePlaylist{ID: pl.ID, Title: pl.Title}
	for _, t := range pl.Tracks {
		out.Entries = append(out.Entries, SourceEntry{
			ID:         t.VideoID,
			SetID:      t.SetVideoID,
			Title:      t.Title,
			Artist:     t.artistNames(),
			Album:      t.album(),
			Duration:   t.DurationSec,
			Views:      t.Views,
			Thumbnails: t.Thumbnails,
			Category:   t.category(),
		})
	}
	return out, nil
}

// FlatPlaylist retrieves the shallow extraction used by reconciliation.
func (y *YouTubeMusicService) FlatPlaylist(ctx context.Context, playlistID string, withEntries bool) (*FlatPlaylist, error) {
	var pl ytFlatPlaylist
	endpoint := fmt.Sprintf("/api/playlists/%s/flat?entries=%t", url.PathEscape(playlistID), withEntries)
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &pl); err != nil {
		return nil, err
	}

	out := &FlatPlaylist{ID: pl.ID, Title: pl.Title}
	for _, e := range pl.Entries {
		out.Entries = append(out.Entries, FlatEntry{
			ID:         e.ID,
			Title:      e.Title,
			Channel:    e.Channel,
			URL:        e.URL,
			Thumbnails: e.Thumbnails,
		})
	}
	return out, nil
}

// AddPlaylistItems appends items by id.
func (y *YouTubeMusicService) AddPlaylistItems(ctx context.Context, playlistID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	payload := struct {
		IDs []string `json:"ids"`
	}{ids}
	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistID))
	return y.doRequest(ctx, http.MethodPost, endpoint, payload, nil)
}

// RemovePlaylistItems removes entries carrying their per-playlist set ids.
func (y *YouTubeMusicService) RemovePlaylistItems(ctx context.Context, playlistID string, entries []SourceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	type removal struct {
		VideoID    string `json:"videoId"`
		SetVideoID string `json:"setVideoId"`
	}
	payload := struct {
		Items []removal `json:"items"`
	}{}
	for _, e := range entries {
		payload.Items = append(payload.Items, removal{VideoID: e.ID, SetVideoID: e.SetID})
	}
	endpoint := fmt.Sprintf("/api/playlists/%s/items/remove", url.PathEscape(playlistID))
	return y.doRequest(ctx, http.MethodPost, endpoint, payload, nil)
}

// SearchSongs runs a free-text search filtered to songs and converts the top
// results into cached-media form.
func (y *YouTubeMusicService) SearchSongs(ctx context.Context, query string, limit int) ([]models.MediaItem, error) {
	if limit <= 0 {
		limit = 5
	}
	var results []ytTrack
	endpoint := fmt.Sprintf("/api/search?q=%s&kind=songs&limit=%d", url.QueryEscape(query), limit)
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &results); err != nil {
		return nil, err
	}

	items := make([]models.MediaItem, 0, len(results))
	for _, t := range results {
		items = append(items, models.MediaItem{
			SourceID:     t.VideoID,
			Title:        t.Title,
			Artist:       t.artistNames(),
			Category:     models.CategorySong,
			Album:        t.album(),
			Duration:     t.DurationSec,
			Views:        t.Views,
			ThumbnailURL: BestThumbnail(t.Thumbnails, ""),
		})
	}
	return items, nil
}

// SongViews fetches an item's live view count.
func (y *YouTubeMusicService) SongViews(ctx context.Context, id string) (int64, error) {
	var detail struct {
		VideoID   string `json:"videoId"`
		ViewCount int64  `json:"viewCount,string"`
	}
	endpoint := fmt.Sprintf("/api/songs/%s", url.PathEscape(id))
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &detail); err != nil {
		return 0, err
	}
	return detail.ViewCount, nil
}

// OAuthStreamingFactory implements [StreamingFactory] using [oauth2],
// refreshing expired access tokens and persisting them back to the store.
type OAuthStreamingFactory struct {
	base   *YouTubeMusicService
	config *oauth2.Config
	store  ConfigStore
}

// NewOAuthStreamingFactory creates a factory for per-account streaming clients.
func NewOAuthStreamingFactory(base *YouTubeMusicService, clientID, clientSecret, redirectURI string, store ConfigStore) (*OAuthStreamingFactory, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: provider client id and secret", shared.ErrMissingCredentials)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}

	return &OAuthStreamingFactory{base: base, config: config, store: store}, nil
}

// OAuthConfig exposes the provider's OAuth2 configuration for the login flow.
func (f *OAuthStreamingFactory) OAuthConfig() *oauth2.Config {
	return f.config
}

// ForAccount returns an authenticated streaming client for the account,
// refreshing the access token when expired.
func (f *OAuthStreamingFactory) ForAccount(ctx context.Context, account *models.Account) (StreamingService, error) {
	if !account.RefreshTokenValid() {
		return nil, fmt.Errorf("%w: account %s needs a new login", shared.ErrRefreshFailed, account.ProviderUserID)
	}

	if !account.AccessTokenValid() {
		stale := &oauth2.Token{
			AccessToken:  account.AccessToken,
			RefreshToken: account.RefreshToken,
			Expiry:       account.AccessTokenExpires,
		}
		fresh, err := f.config.TokenSource(ctx, stale).Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		}

		account.AccessToken = fresh.AccessToken
		account.AccessTokenExpires = fresh.Expiry
		if fresh.RefreshToken != "" {
			account.RefreshToken = fresh.RefreshToken
		}
		if f.store != nil {
			if err := f.store.SaveAccount(ctx, account); err != nil {
				return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
			}
		}
	}

	return f.base.WithAccessToken(account.AccessToken), nil
}
