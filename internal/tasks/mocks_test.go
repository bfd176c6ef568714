package tasks

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"golang.org/x/time/rate"
)

// mockStreaming simulates the cloud catalog. Playlist mutations are applied
// to in-memory state so repeated engine runs observe their own effects; the
// catalog maps ids to full entries for items added by id.
type mockStreaming struct {
	mu        sync.Mutex
	catalog   map[string]services.SourceEntry
	playlists map[string][]string // playlist id -> member ids, ordered
	searches  map[string][]models.MediaItem
	views     map[string]int64

	addCalls    int
	removeCalls int
	searchCalls int
}

func newMockStreaming() *mockStreaming {
	return &mockStreaming{
		catalog:   map[string]services.SourceEntry{},
		playlists: map[string][]string{},
		searches:  map[string][]models.MediaItem{},
		views:     map[string]int64{},
	}
}

func (m *mockStreaming) members(playlistID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.playlists[playlistID])
}

func (m *mockStreaming) Playlist(ctx context.Context, playlistID string) (*services.SourcePlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrPlaylistNotFound, playlistID)
	}
	pl := &services.SourcePlaylist{ID: playlistID, Title: playlistID}
	for _, id := range ids {
		pl.Entries = append(pl.Entries, m.catalog[id])
	}
	return pl, nil
}

func (m *mockStreaming) FlatPlaylist(ctx context.Context, playlistID string, withEntries bool) (*services.FlatPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrPlaylistNotFound, playlistID)
	}
	pl := &services.FlatPlaylist{ID: playlistID, Title: playlistID}
	if withEntries {
		for _, id := range ids {
			entry := m.catalog[id]
			pl.Entries = append(pl.Entries, services.FlatEntry{
				ID:      entry.ID,
				Title:   entry.Title,
				Channel: entry.Artist,
			})
		}
	}
	return pl, nil
}

func (m *mockStreaming) AddPlaylistItems(ctx context.Context, playlistID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	for _, id := range ids {
		if !slices.Contains(m.playlists[playlistID], id) {
			m.playlists[playlistID] = append(m.playlists[playlistID], id)
		}
	}
	return nil
}

func (m *mockStreaming) RemovePlaylistItems(ctx context.Context, playlistID string, entries []services.SourceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls++
	for _, entry := range entries {
		m.playlists[playlistID] = slices.DeleteFunc(m.playlists[playlistID], func(id string) bool {
			return id == entry.ID
		})
	}
	return nil
}

func (m *mockStreaming) SearchSongs(ctx context.Context, query string, limit int) ([]models.MediaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	results := m.searches[query]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *mockStreaming) SongViews(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[id], nil
}

// mockStore is an in-memory ConfigStore.
type mockStore struct {
	mu        sync.Mutex
	media     map[string]*models.MediaItem
	autos     []models.AutomationConfig
	configs   []models.PlaylistConfig
	mappings  []models.MediaMapping
	accounts  map[string]*models.Account
	settings  models.Settings
	nextID    int

	updateErr       error // injected failure, cleared after one use unless repeated
	updateErrRepeat bool
}

func newMockStore() *mockStore {
	return &mockStore{
		media:    map[string]*models.MediaItem{},
		accounts: map[string]*models.Account{},
		settings: models.Settings{PathIDPattern: `\[([A-Za-z0-9_-]{4,})\]`, LibraryUserName: "alice"},
	}
}

func (m *mockStore) Media(ctx context.Context, sourceID string) (*models.MediaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.media[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: media %s", shared.ErrNotFound, sourceID)
	}
	dup := *item
	return &dup, nil
}

func (m *mockStore) ListMedia(ctx context.Context, filter services.MediaFilter) ([]models.MediaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MediaItem
	for _, item := range m.media {
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.Unresolved && (item.SubstitutionID != "" || item.Ignore) {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (m *mockStore) CreateMedia(ctx context.Context, item *models.MediaItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.media[item.SourceID]; ok {
		return fmt.Errorf("%w: media %s", shared.ErrDuplicate, item.SourceID)
	}
	m.nextID++
	item.StoreID = fmt.Sprintf("rec%d", m.nextID)
	dup := *item
	m.media[item.SourceID] = &dup
	return nil
}

func (m *mockStore) UpdateMedia(ctx context.Context, item *models.MediaItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		err := m.updateErr
		if !m.updateErrRepeat {
			m.updateErr = nil
		}
		return err
	}
	if _, ok := m.media[item.SourceID]; !ok {
		return fmt.Errorf("%w: media %s", shared.ErrNotFound, item.SourceID)
	}
	dup := *item
	m.media[item.SourceID] = &dup
	return nil
}

func (m *mockStore) Automations(ctx context.Context) ([]models.AutomationConfig, error) {
	return slices.Clone(m.autos), nil
}

func (m *mockStore) PlaylistConfigs(ctx context.Context) ([]models.PlaylistConfig, error) {
	return slices.Clone(m.configs), nil
}

func (m *mockStore) SavePlaylistConfig(ctx context.Context, cfg *models.PlaylistConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.configs {
		if m.configs[i].ID == cfg.ID {
			m.configs[i] = *cfg
			return nil
		}
	}
	m.configs = append(m.configs, *cfg)
	return nil
}

func (m *mockStore) MediaMappings(ctx context.Context) ([]models.MediaMapping, error) {
	return slices.Clone(m.mappings), nil
}

func (m *mockStore) Account(ctx context.Context, id string) (*models.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", shared.ErrNotFound, id)
	}
	dup := *account
	return &dup, nil
}

func (m *mockStore) SaveAccount(ctx context.Context, account *models.Account) error {
	dup := *account
	m.accounts[account.ID] = &dup
	return nil
}

func (m *mockStore) Settings(ctx context.Context) (*models.Settings, error) {
	dup := m.settings
	return &dup, nil
}

func (m *mockStore) InvalidateSettings() {}

// mockLibrary is an in-memory library server.
type mockLibrary struct {
	mu        sync.Mutex
	items     map[string]*services.LibraryItem
	playlists map[string][]string // playlist id -> item ids
	nextID    int

	failAddAfter int // fail chunk adds once this many items were accepted, 0 = never
}

func newMockLibrary() *mockLibrary {
	return &mockLibrary{
		items:     map[string]*services.LibraryItem{},
		playlists: map[string][]string{},
	}
}

func (m *mockLibrary) addItem(item services.LibraryItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dup := item
	m.items[item.ID] = &dup
}

func (m *mockLibrary) Items(ctx context.Context, itemTypes string, fields []string) ([]services.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []services.LibraryItem
	for _, item := range m.items {
		if itemTypes == "Playlist" {
			if _, ok := m.playlists[item.ID]; !ok {
				continue
			}
		} else if _, ok := m.playlists[item.ID]; ok {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (m *mockLibrary) Item(ctx context.Context, id, userID string) (*services.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %s", shared.ErrNotFound, id)
	}
	dup := *item
	return &dup, nil
}

func (m *mockLibrary) SetProviderID(ctx context.Context, itemID, userID, provider, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("%w: item %s", shared.ErrNotFound, itemID)
	}
	if item.ProviderIDs == nil {
		item.ProviderIDs = map[string]string{}
	}
	item.ProviderIDs[provider] = value
	return nil
}

func (m *mockLibrary) PlaylistItems(ctx context.Context, playlistID, userID string, fields []string) ([]services.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	var out []services.LibraryItem
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockLibrary) CreatePlaylist(ctx context.Context, name, userID, mediaType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("pl%d", m.nextID)
	m.items[id] = &services.LibraryItem{ID: id, Name: name}
	m.playlists[id] = []string{}
	return id, nil
}

func (m *mockLibrary) AddToPlaylist(ctx context.Context, playlistID, userID string, itemIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, id := range itemIDs {
		if m.failAddAfter > 0 && added >= m.failAddAfter {
			return added, fmt.Errorf("%w: chunk rejected", shared.ErrAPIRequest)
		}
		if !slices.Contains(m.playlists[playlistID], id) {
			m.playlists[playlistID] = append(m.playlists[playlistID], id)
		}
		added++
	}
	return added, nil
}

func (m *mockLibrary) UserByName(ctx context.Context, name string) (*services.LibraryUser, error) {
	return &services.LibraryUser{ID: "user1", Name: name}, nil
}

func (m *mockLibrary) BaseURL() string { return "http://library.local" }

// mockNotifier records outbound messages.
type mockNotifier struct {
	mu         sync.Mutex
	messages   []string
	ephemerals []string
	deleted    []services.MessageRef
	deleteErr  error
}

func (m *mockNotifier) PostMessage(ctx context.Context, channel, text string, blocks []services.Block) (*services.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return &services.MessageRef{Channel: channel, Timestamp: fmt.Sprintf("%d.0", len(m.messages))}, nil
}

func (m *mockNotifier) PostEphemeral(ctx context.Context, channel, userID, text string, blocks []services.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ephemerals = append(m.ephemerals, text)
	return nil
}

func (m *mockNotifier) DeleteMessage(ctx context.Context, ref services.MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *mockNotifier) ephemeralCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ephemerals)
}

// testEngine wires the mocks into an engine with quiet logging.
func testEngine(store *mockStore, library *mockLibrary, streaming *mockStreaming, notifier *mockNotifier) *Engine {
	engine, err := NewEngine(EngineConfig{
		Store:           store,
		Library:         library,
		Streaming:       streaming,
		Notifier:        notifier,
		InfoChannel:     "#sync",
		MismatchChannel: "#mismatches",
		AuditChannel:    "#audit",
		Logger:          log.New(io.Discard),
	})
	if err != nil {
		panic(err)
	}
	engine.limiter = rate.NewLimiter(rate.Inf, 1)
	return engine
}

func song(id, title, artist string) services.SourceEntry {
	return services.SourceEntry{ID: id, Title: title, Artist: artist, Category: models.CategorySong}
}

func video(id, title, artist string) services.SourceEntry {
	return services.SourceEntry{ID: id, Title: title, Artist: artist, Category: models.CategoryVideo}
}
