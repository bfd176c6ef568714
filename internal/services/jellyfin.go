// Jellyfin [LibraryService] implementation
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/playsync/internal/shared"
)

// playlistAddChunkSize bounds one playlist-items request; Jellyfin rejects
// very long id query strings.
const playlistAddChunkSize = 10

// jfItem is an item DTO in Jellyfin responses. Only the fields the sync
// engine reads are decoded; provider id updates round-trip the raw document.
type jfItem struct {
	ID          string            `json:"Id"`
	Name        string            `json:"Name"`
	Path        string            `json:"Path,omitempty"`
	ServerID    string            `json:"ServerId,omitempty"`
	Artists     []string          `json:"Artists,omitempty"`
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"`
}

func (i jfItem) toLibraryItem() LibraryItem {
	return LibraryItem{
		ID:          i.ID,
		Name:        i.Name,
		Path:        i.Path,
		ServerID:    i.ServerID,
		Artists:     i.Artists,
		ProviderIDs: i.ProviderIDs,
	}
}

type jfItemPage struct {
	Items            []jfItem `json:"Items"`
	TotalRecordCount int      `json:"TotalRecordCount"`
}

type jfUser struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// JellyfinService implements [LibraryService] against a Jellyfin server's
// REST API, authenticating with an API key.
type JellyfinService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewJellyfinService creates a library client. The base URL is stored without
// a trailing slash.
func NewJellyfinService(baseURL, apiKey string, client *http.Client) (*JellyfinService, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: library url", shared.ErrMissingConfig)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: library api key", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &JellyfinService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: client,
	}, nil
}

// BaseURL returns the server address, used to build web links in messages.
func (j *JellyfinService) BaseURL() string {
	return j.baseURL
}

func (j *JellyfinService) doRequest(ctx context.Context, method, endpoint string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, j.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Emby-Token", j.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: jellyfin status %d on %s %s", shared.ErrAPIRequest, resp.StatusCode, method, endpoint)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Items lists items of the given types server-wide, with the named extra
// fields populated.
func (j *JellyfinService) Items(ctx context.Context, itemTypes string, fields []string) ([]LibraryItem, error) {
	query := url.Values{}
	query.Set("IncludeItemTypes", itemTypes)
	query.Set("Recursive", "true")
	if len(fields) > 0 {
		query.Set("Fields", strings.Join(fields, ","))
	}

	var page jfItemPage
	if err := j.doRequest(ctx, http.MethodGet, "/Items?"+query.Encode(), nil, &page); err != nil {
		return nil, err
	}

	items := make([]LibraryItem, 0, len(page.Items))
	for _, it := range page.Items {
		items = append(items, it.toLibraryItem())
	}
	return items, nil
}

// Item fetches a single item by id as seen by the user.
func (j *JellyfinService) Item(ctx context.Context, id, userID string) (*LibraryItem, error) {
	var it jfItem
	endpoint := fmt.Sprintf("/Users/%s/Items/%s", url.PathEscape(userID), url.PathEscape(id))
	if err := j.doRequest(ctx, http.MethodGet, endpoint, nil, &it); err != nil {
		return nil, err
	}
	item := it.toLibraryItem()
	return &item, nil
}

// SetProviderID stamps a provider id on an item. Jellyfin's item update
// endpoint replaces the whole document, so the current one is read first and
// written back with only the provider map changed.
func (j *JellyfinService) SetProviderID(ctx context.Context, itemID, userID, provider, value string) error {
	var raw map[string]any
	endpoint := fmt.Sprintf("/Users/%s/Items/%s", url.PathEscape(userID), url.PathEscape(itemID))
	if err := j.doRequest(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return err
	}

	providerIDs, _ := raw["ProviderIds"].(map[string]any)
	if providerIDs == nil {
		providerIDs = map[string]any{}
	}
	providerIDs[provider] = value
	raw["ProviderIds"] = providerIDs

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode item update: %w", err)
	}

	return j.doRequest(ctx, http.MethodPost, "/Items/"+url.PathEscape(itemID), strings.NewReader(string(data)), nil)
}

// PlaylistItems lists the contents of a library playlist.
func (j *JellyfinService) PlaylistItems(ctx context.Context, playlistID, userID string, fields []string) ([]LibraryItem, error) {
	query := url.Values{}
	query.Set("userId", userID)
	if len(fields) > 0 {
		query.Set("Fields", strings.Join(fields, ","))
	}

	var page jfItemPage
	endpoint := fmt.Sprintf("/Playlists/%s/Items?%s", url.PathEscape(playlistID), query.Encode())
	if err := j.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	items := make([]LibraryItem, 0, len(page.Items))
	for _, it := range page.Items {
		items = append(items, it.toLibraryItem())
	}
	return items, nil
}

// CreatePlaylist creates an empty playlist owned by the user and returns its id.
func (j *JellyfinService) CreatePlaylist(ctx context.Context, name, userID, mediaType string) (string, error) {
	payload := struct {
		Name      string `json:"Name"`
		UserID    string `json:"UserId"`
		MediaType string `json:"MediaType"`
	}{name, userID, mediaType}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode playlist: %w", err)
	}

	var created struct {
		ID string `json:"Id"`
	}
	if err := j.doRequest(ctx, http.MethodPost, "/Playlists", strings.NewReader(string(data)), &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: playlist created without an id", shared.ErrAPIRequest)
	}
	return created.ID, nil
}

// AddToPlaylist appends items in chunks and returns how many were accepted.
// A failing chunk does not stop the remaining chunks; the chunk errors are
// joined and returned alongside the aggregate count so callers can report
// partial progress.
func (j *JellyfinService) AddToPlaylist(ctx context.Context, playlistID, userID string, itemIDs []string) (int, error) {
	added := 0
	var errs []error
	for _, chunk := range shared.Chunk(itemIDs, playlistAddChunkSize) {
		endpoint := fmt.Sprintf(
			"/Playlists/%s/Items?ids=%s&userId=%s",
			url.PathEscape(playlistID),
			url.QueryEscape(strings.Join(chunk, ",")),
			url.QueryEscape(userID),
		)
		if err := j.doRequest(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
			errs = append(errs, fmt.Errorf("chunk of %d items: %w", len(chunk), err))
			continue
		}
		added += len(chunk)
	}
	if len(errs) > 0 {
		return added, fmt.Errorf("added %d of %d items: %w", added, len(itemIDs), errors.Join(errs...))
	}
	return added, nil
}

// UserByName resolves a library user by display name.
func (j *JellyfinService) UserByName(ctx context.Context, name string) (*LibraryUser, error) {
	var users []jfUser
	if err := j.doRequest(ctx, http.MethodGet, "/Users", nil, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, name) {
			return &LibraryUser{ID: u.ID, Name: u.Name}, nil
		}
	}
	return nil, fmt.Errorf("%w: library user %q", shared.ErrUserNotFound, name)
}
