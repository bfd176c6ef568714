// REST metadata store client
//
// Speaks the PocketBase record API: password auth against an auth collection,
// then paginated record listing and CRUD per collection. Settings live in a
// key/value collection and are cached between cycles.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

const (
	storePageSize = 200

	collectionMedia           = "media_items"
	collectionAutomations     = "automations"
	collectionPlaylistConfigs = "playlist_configs"
	collectionMappings        = "media_mappings"
	collectionAccounts        = "accounts"
	collectionSettings        = "settings"
)

// storePage is one page of a record list response.
type storePage struct {
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalPages int               `json:"totalPages"`
	TotalItems int               `json:"totalItems"`
	Items      []json.RawMessage `json:"items"`
}

// settingRecord is one row of the key/value settings collection.
type settingRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RESTStore implements [ConfigStore] over a remote record store.
type RESTStore struct {
	baseURL        string
	authCollection string
	identity       string
	password       string
	httpClient     *http.Client

	mu       sync.Mutex
	token    string
	settings *models.Settings
}

// NewRESTStore creates a store client. Authentication happens lazily on the
// first request.
func NewRESTStore(baseURL, authCollection, identity, password string, client *http.Client) (*RESTStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: store url", shared.ErrMissingConfig)
	}
	if authCollection == "" {
		authCollection = "users"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTStore{
		baseURL:        baseURL,
		authCollection: authCollection,
		identity:       identity,
		password:       password,
		httpClient:     client,
	}, nil
}

// Authenticate exchanges the configured credentials for a request token.
func (s *RESTStore) Authenticate(ctx context.Context) error {
	if s.identity == "" || s.password == "" {
		return fmt.Errorf("%w: store identity and password", shared.ErrMissingCredentials)
	}

	payload := struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}{s.identity, s.password}

	var result struct {
		Token string `json:"token"`
	}
	endpoint := fmt.Sprintf("/api/collections/%s/auth-with-password", url.PathEscape(s.authCollection))
	if err := s.send(ctx, http.MethodPost, endpoint, payload, &result); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if result.Token == "" {
		return fmt.Errorf("%w: store returned an empty token", shared.ErrAuthFailed)
	}

	s.mu.Lock()
	s.token = result.Token
	s.mu.Unlock()
	return nil
}

func (s *RESTStore) ensureAuth(ctx context.Context) error {
	s.mu.Lock()
	authed := s.token != ""
	s.mu.Unlock()
	if authed {
		return nil
	}
	return s.Authenticate(ctx)
}

// send issues one request without touching auth state; doRequest is the
// authenticated wrapper.
func (s *RESTStore) send(ctx context.Context, method, endpoint string, body, result any) error {
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

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	case resp.StatusCode == http.StatusBadRequest && method == http.MethodPost:
		// PocketBase reports unique index violations as 400 on create.
		return fmt.Errorf("%w: store rejected record on %s", shared.ErrDuplicate, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: store status %d on %s %s", shared.ErrAPIRequest, resp.StatusCode, method, endpoint)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (s *RESTStore) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if err := s.ensureAuth(ctx); err != nil {
		return err
	}
	return s.send(ctx, method, endpoint, body, result)
}

// listAll walks every page of a filtered record list.
func (s *RESTStore) listAll(ctx context.Context, collection, filter string) ([]json.RawMessage, error) {
	var records []json.RawMessage
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("perPage", strconv.Itoa(storePageSize))
		if filter != "" {
			query.Set("filter", filter)
		}

		var resp storePage
		endpoint := fmt.Sprintf("/api/collections/%s/records?%s", url.PathEscape(collection), query.Encode())
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}

		records = append(records, resp.Items...)
		if page >= resp.TotalPages || len(resp.Items) == 0 {
			break
		}
	}
	return records, nil
}

// filterLiteral quotes a value for use inside a filter expression, escaping
// backslashes and single quotes so the value cannot break out of the literal.
func filterLiteral(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func decodeRecords[T any](raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

// Media looks up one cached item by source id.
func (s *RESTStore) Media(ctx context.Context, sourceID string) (*models.MediaItem, error) {
	filter := fmt.Sprintf("(source_id=%s)", filterLiteral(sourceID))
	raw, err := s.listAll(ctx, collectionMedia, filter)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: media %s", shared.ErrNotFound, sourceID)
	}

	items, err := decodeRecords[models.MediaItem](raw)
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListMedia lists cached items matching the filter.
func (s *RESTStore) ListMedia(ctx context.Context, filter MediaFilter) ([]models.MediaItem, error) {
	expr := ""
	if filter.Category != "" {
		expr = fmt.Sprintf("(category=%s)", filterLiteral(string(filter.Category)))
	}
	if filter.Unresolved {
		clause := "(substitution_id='' && ignore=false)"
		if expr != "" {
			expr += " && " + clause
		} else {
			expr = clause
		}
	}

	raw, err := s.listAll(ctx, collectionMedia, expr)
	if err != nil {
		return nil, err
	}
	return decodeRecords[models.MediaItem](raw)
}

// CreateMedia inserts a new cached item. Inserting an already-cached
// category+source pair returns [shared.ErrDuplicate].
func (s *RESTStore) CreateMedia(ctx context.Context, item *models.MediaItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	var created models.MediaItem
	endpoint := fmt.Sprintf("/api/collections/%s/records", collectionMedia)
	if err := s.doRequest(ctx, http.MethodPost, endpoint, item, &created); err != nil {
		return err
	}
	item.StoreID = created.StoreID
	return nil
}

// UpdateMedia writes back a cached item by its store id.
func (s *RESTStore) UpdateMedia(ctx context.Context, item *models.MediaItem) error {
	if item.StoreID == "" {
		return fmt.Errorf("%w: media %s has no store id", shared.ErrInvalidInput, item.SourceID)
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	endpoint := fmt.Sprintf("/api/collections/%s/records/%s", collectionMedia, url.PathEscape(item.StoreID))
	return s.doRequest(ctx, http.MethodPatch, endpoint, item, nil)
}

// Automations lists every automation row; callers filter on Active.
func (s *RESTStore) Automations(ctx context.Context) ([]models.AutomationConfig, error) {
	raw, err := s.listAll(ctx, collectionAutomations, "")
	if err != nil {
		return nil, err
	}
	return decodeRecords[models.AutomationConfig](raw)
}

// PlaylistConfigs lists the mirrored-playlist configuration rows.
func (s *RESTStore) PlaylistConfigs(ctx context.Context) ([]models.PlaylistConfig, error) {
	raw, err := s.listAll(ctx, collectionPlaylistConfigs, "")
	if err != nil {
		return nil, err
	}
	return decodeRecords[models.PlaylistConfig](raw)
}

// SavePlaylistConfig creates or updates a mirrored-playlist row.
func (s *RESTStore) SavePlaylistConfig(ctx context.Context, cfg *models.PlaylistConfig) error {
	if cfg.ID == "" {
		var created models.PlaylistConfig
		endpoint := fmt.Sprintf("/api/collections/%s/records", collectionPlaylistConfigs)
		if err := s.doRequest(ctx, http.MethodPost, endpoint, cfg, &created); err != nil {
			return err
		}
		cfg.ID = created.ID
		return nil
	}
	endpoint := fmt.Sprintf("/api/collections/%s/records/%s", collectionPlaylistConfigs, url.PathEscape(cfg.ID))
	return s.doRequest(ctx, http.MethodPatch, endpoint, cfg, nil)
}

// MediaMappings lists the provider-id to download-path rows.
func (s *RESTStore) MediaMappings(ctx context.Context) ([]models.MediaMapping, error) {
	raw, err := s.listAll(ctx, collectionMappings, "")
	if err != nil {
		return nil, err
	}
	return decodeRecords[models.MediaMapping](raw)
}

// Account fetches a provider account row by id.
func (s *RESTStore) Account(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	endpoint := fmt.Sprintf("/api/collections/%s/records/%s", collectionAccounts, url.PathEscape(id))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// SaveAccount creates or updates a provider account row.
func (s *RESTStore) SaveAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		var created models.Account
		endpoint := fmt.Sprintf("/api/collections/%s/records", collectionAccounts)
		if err := s.doRequest(ctx, http.MethodPost, endpoint, account, &created); err != nil {
			return err
		}
		account.ID = created.ID
		return nil
	}
	endpoint := fmt.Sprintf("/api/collections/%s/records/%s", collectionAccounts, url.PathEscape(account.ID))
	return s.doRequest(ctx, http.MethodPatch, endpoint, account, nil)
}

// Settings assembles the tunables bag from the key/value collection, caching
// the result until invalidated.
func (s *RESTStore) Settings(ctx context.Context) (*models.Settings, error) {
	s.mu.Lock()
	cached := s.settings
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	raw, err := s.listAll(ctx, collectionSettings, "")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRecords[settingRecord](raw)
	if err != nil {
		return nil, err
	}

	settings := &models.Settings{}
	for _, row := range rows {
		switch row.Key {
		case "extract_source_id_regex":
			settings.PathIDPattern = row.Value
		case "path_conv_search":
			settings.PathConvSearch = row.Value
		case "path_conv_replace":
			settings.PathConvReplace = row.Value
		case "library_user_name":
			settings.LibraryUserName = row.Value
		case "sample_size":
			if n, err := strconv.Atoi(row.Value); err == nil {
				settings.SampleSize = n
			}
		case "wait_interval":
			settings.WaitInterval = row.Value
		}
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return settings, nil
}

// InvalidateSettings drops the cached tunables so the next read refetches.
func (s *RESTStore) InvalidateSettings() {
	s.mu.Lock()
	s.settings = nil
	s.mu.Unlock()
}
