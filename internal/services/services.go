// package services defines interfaces for the HTTP collaborators
//
// Streaming catalog (YouTube Music via proxy), media library (Jellyfin),
// configuration/metadata store, Slack
package services

import (
	"context"

	"github.com/desertthunder/playsync/internal/models"
)

// ProviderIDKey is the library's provider-id slot holding the streaming
// catalog id for a local item.
const ProviderIDKey = "YT"

// StreamingService defines the streaming-catalog operations the core consumes.
type StreamingService interface {
	// Playlist retrieves a playlist in full, every entry carrying its
	// provider-assigned type tag (already classified into a Category).
	Playlist(ctx context.Context, playlistID string) (*SourcePlaylist, error)

	// FlatPlaylist retrieves the shallow form used by reconciliation.
	// With withEntries false only the playlist metadata is populated.
	FlatPlaylist(ctx context.Context, playlistID string, withEntries bool) (*FlatPlaylist, error)

	// AddPlaylistItems appends items by id.
	AddPlaylistItems(ctx context.Context, playlistID string, ids []string) error

	// RemovePlaylistItems removes the given entries. Removal requires the
	// per-playlist set ids carried on SourceEntry, not bare item ids.
	RemovePlaylistItems(ctx context.Context, playlistID string, entries []SourceEntry) error

	// SearchSongs runs a free-text search filtered to the song content kind.
	SearchSongs(ctx context.Context, query string, limit int) ([]models.MediaItem, error)

	// SongViews fetches an item's live view count.
	SongViews(ctx context.Context, id string) (int64, error)
}

// StreamingFactory builds an authenticated StreamingService for an account,
// refreshing the access token when expired.
type StreamingFactory interface {
	ForAccount(ctx context.Context, account *models.Account) (StreamingService, error)
}

// LibraryService defines the media-server operations the core consumes.
type LibraryService interface {
	// Items lists library items filtered by type with the requested extra fields.
	Items(ctx context.Context, itemTypes string, fields []string) ([]LibraryItem, error)

	// Item fetches a single item in the given user's context.
	Item(ctx context.Context, id, userID string) (*LibraryItem, error)

	// SetProviderID back-fills a provider id onto an item.
	SetProviderID(ctx context.Context, itemID, userID, provider, value string) error

	// PlaylistItems lists a library playlist's entries.
	PlaylistItems(ctx context.Context, playlistID, userID string, fields []string) ([]LibraryItem, error)

	// CreatePlaylist creates a playlist and returns its id.
	CreatePlaylist(ctx context.Context, name, userID, mediaType string) (string, error)

	// AddToPlaylist adds item ids in chunks bounded by the API batch limit.
	// Returns how many ids were actually added; a failed chunk does not stop
	// the remaining chunks.
	AddToPlaylist(ctx context.Context, playlistID, userID string, itemIDs []string) (int, error)

	// UserByName resolves a library user.
	UserByName(ctx context.Context, name string) (*LibraryUser, error)

	// BaseURL returns the server's base URL for building web links.
	BaseURL() string
}

// MediaStore is the metadata cache consumed by every core component.
//
// The store offers no transactional guarantee across concurrent writers;
// callers needing compare-and-set must read-modify-write under their own
// mutual exclusion.
type MediaStore interface {
	// Media looks a cached item up by source id. Returns shared.ErrNotFound
	// when the id has not been observed.
	Media(ctx context.Context, sourceID string) (*models.MediaItem, error)

	// ListMedia returns all cached items matching the filter.
	ListMedia(ctx context.Context, filter MediaFilter) ([]models.MediaItem, error)

	// CreateMedia inserts a newly observed item. Fails with
	// shared.ErrDuplicate when the category+source-id key already exists.
	CreateMedia(ctx context.Context, item *models.MediaItem) error

	// UpdateMedia overwrites an existing item's mutable fields. Fails with
	// shared.ErrNotFound when the item does not exist.
	UpdateMedia(ctx context.Context, item *models.MediaItem) error
}

// MediaFilter narrows ListMedia results.
type MediaFilter struct {
	Category   models.Category // zero value matches both categories
	Unresolved bool            // only items without a substitution target
}

// ConfigStore is the configuration/metadata store consumed by the core.
type ConfigStore interface {
	MediaStore

	Automations(ctx context.Context) ([]models.AutomationConfig, error)
	PlaylistConfigs(ctx context.Context) ([]models.PlaylistConfig, error)
	SavePlaylistConfig(ctx context.Context, cfg *models.PlaylistConfig) error
	MediaMappings(ctx context.Context) ([]models.MediaMapping, error)
	Account(ctx context.Context, id string) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error

	// Settings returns the cached tunables bag; InvalidateSettings drops the
	// cache so the next read observes writes.
	Settings(ctx context.Context) (*models.Settings, error)
	InvalidateSettings()
}

// Notifier is the notification side-channel consumed by the core.
type Notifier interface {
	// PostMessage posts to a channel with optional structured rich content.
	PostMessage(ctx context.Context, channel, text string, blocks []Block) (*MessageRef, error)

	// PostEphemeral posts a message visible only to one user.
	PostEphemeral(ctx context.Context, channel, userID, text string, blocks []Block) error

	// DeleteMessage deletes a previously posted message.
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// MessageRef identifies a posted message for later deletion.
type MessageRef struct {
	Channel   string
	Timestamp string
}

// Thumbnail is an image resource attached to a catalog entry.
type Thumbnail struct {
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Preference int    `json:"preference,omitempty"`
}

// BestThumbnail picks the highest-resolution thumbnail URL, or fallback when
// none exists.
func BestThumbnail(thumbs []Thumbnail, fallback string) string {
	best := fallback
	bestHeight := -1
	for _, t := range thumbs {
		if t.Height > bestHeight && t.URL != "" {
			best = t.URL
			bestHeight = t.Height
		}
	}
	return best
}

// SourceEntry is one entry of a fully fetched cloud playlist.
type SourceEntry struct {
	ID         string
	SetID      string // per-playlist entry id, required for removal
	Title      string
	Artist     string
	Album      string
	Duration   int
	Views      string
	Thumbnails []Thumbnail
	Category   models.Category
}

// SourcePlaylist is a fully fetched cloud playlist.
type SourcePlaylist struct {
	ID      string
	Title   string
	Entries []SourceEntry
}

// EntryIDs returns the member ids in playlist order.
func (p *SourcePlaylist) EntryIDs() []string {
	ids := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.ID
	}
	return ids
}

// FlatEntry is one entry of a shallow playlist fetch.
type FlatEntry struct {
	ID         string
	Title      string
	Channel    string
	URL        string
	Thumbnails []Thumbnail
}

// FlatPlaylist is a shallow cloud playlist fetch.
type FlatPlaylist struct {
	ID      string
	Title   string
	Entries []FlatEntry
}

// LibraryItem is the narrow validated view of a media-server item.
type LibraryItem struct {
	ID          string
	Name        string
	Path        string
	ServerID    string
	Artists     []string
	ProviderIDs map[string]string
}

// ProviderID returns the item's streaming-catalog id, or "" when untagged.
func (i *LibraryItem) ProviderID() string {
	return i.ProviderIDs[ProviderIDKey]
}

// HasArtist reports whether name is among the item's listed artists.
func (i *LibraryItem) HasArtist(name string) bool {
	for _, a := range i.Artists {
		if a == name {
			return true
		}
	}
	return false
}

// LibraryUser is the narrow view of a media-server user.
type LibraryUser struct {
	ID   string
	Name string
}
