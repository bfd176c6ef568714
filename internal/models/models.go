// package models defines the data model for the playlist reconciliation service
package models

import (
	"fmt"
	"time"
)

// Category classifies a source-catalog media item.
type Category string

const (
	CategorySong  Category = "song"
	CategoryVideo Category = "video"
)

// Valid reports whether the category is one of the two known values.
func (c Category) Valid() bool {
	return c == CategorySong || c == CategoryVideo
}

// MediaItem is an observed source-catalog entry cached in the metadata store.
//
// The natural key is Category+SourceID. A non-empty SubstitutionID records a
// confirmed video-to-song mapping and must reference a SONG item.
type MediaItem struct {
	StoreID        string   `json:"id,omitempty"`
	SourceID       string   `json:"source_id"`
	Title          string   `json:"title"`
	Artist         string   `json:"artist"`
	Category       Category `json:"category"`
	Album          string   `json:"album"`
	Duration       int      `json:"duration"` // seconds
	Views          string   `json:"views"`    // display string, e.g. "1.2M"
	ThumbnailURL   string   `json:"thumbnail_url"`
	SubstitutionID string   `json:"substitution_id,omitempty"`
	Ignore         bool     `json:"ignore"`
}

// Validate checks the media item's invariants.
func (m *MediaItem) Validate() error {
	if m.SourceID == "" {
		return fmt.Errorf("media item requires a source id")
	}
	if !m.Category.Valid() {
		return fmt.Errorf("invalid category %q for media %s", m.Category, m.SourceID)
	}
	if m.SubstitutionID != "" && m.Category != CategoryVideo {
		return fmt.Errorf("substitution set on non-video media %s", m.SourceID)
	}
	return nil
}

// Resolved reports whether a video already has a confirmed substitution.
func (m *MediaItem) Resolved() bool {
	return m.SubstitutionID != ""
}

// AutomationConfig enables substitution and/or copy policies for one cloud
// playlist owned by one account. Owned and edited externally; read-only here.
type AutomationConfig struct {
	ID                string `json:"id,omitempty"`
	PlaylistID        string `json:"playlist_id"`
	Owner             string `json:"owner"` // Account.ID
	Enabled           bool   `json:"enabled"`
	ReplaceInSource   bool   `json:"replace_in_source"`
	ReplaceDuringCopy bool   `json:"replace_during_copy"`
	Copy              bool   `json:"copy"`
	CopyDestinationID string `json:"copy_destination_id,omitempty"`
}

// Validate checks the destination-required-iff-copy invariant.
func (a *AutomationConfig) Validate() error {
	if a.PlaylistID == "" {
		return fmt.Errorf("automation requires a playlist id")
	}
	if a.Copy && a.CopyDestinationID == "" {
		return fmt.Errorf("automation %s has copy enabled but no destination playlist", a.PlaylistID)
	}
	return nil
}

// Active reports whether the automation has any work to do this cycle.
func (a *AutomationConfig) Active() bool {
	return a.Enabled && (a.ReplaceInSource || a.ReplaceDuringCopy || a.Copy)
}

// PlaylistConfig pairs a cloud playlist with a mirrored library playlist for
// straight reconciliation, distinct from AutomationConfig's substitution flow.
type PlaylistConfig struct {
	ID              string `json:"id,omitempty"`
	SourceID        string `json:"source_id"`
	SourceName      string `json:"source_name"`
	DestinationID   string `json:"destination_id"`
	DestinationName string `json:"destination_name"`
	UserName        string `json:"user_name"` // library user owning the destination
	Sync            bool   `json:"sync"`
}

// MediaMapping links a provider id to the path a media file was originally
// downloaded to. Consumed by the provider-id backfill operation.
type MediaMapping struct {
	ID        string `json:"id,omitempty"`
	SourceID  string `json:"source_id"`
	LocalPath string `json:"local_path"`
}

// Account is a provider identity with OAuth tokens and a Slack recipient for
// interactive confirmations.
type Account struct {
	ID                  string    `json:"id,omitempty"`
	ProviderUserID      string    `json:"provider_user_id"`
	SlackUserID         string    `json:"slack_user_id"`
	AccessToken         string    `json:"access_token"`
	RefreshToken        string    `json:"refresh_token"`
	AccessTokenExpires  time.Time `json:"access_token_expires"`
	RefreshTokenExpires time.Time `json:"refresh_token_expires"`
}

// AccessTokenValid reports whether the access token is present and unexpired.
func (a *Account) AccessTokenValid() bool {
	return a.AccessToken != "" && time.Now().Before(a.AccessTokenExpires)
}

// RefreshTokenValid reports whether the refresh token is present and unexpired.
// A zero expiry means the provider issued a non-expiring refresh token.
func (a *Account) RefreshTokenValid() bool {
	if a.RefreshToken == "" {
		return false
	}
	return a.RefreshTokenExpires.IsZero() || time.Now().Before(a.RefreshTokenExpires)
}

// RecoveryCandidate is a library item lacking a provider id, keyed by an
// identifier parsed from its file path. Derived each cycle, never persisted.
type RecoveryCandidate struct {
	PathID    string
	LibraryID string
	Name      string
	Artists   []string
}

// Settings is the flat key/value tunables bag from the store.
type Settings struct {
	PathIDPattern   string `json:"extract_source_id_regex"` // extracts a provider id from a file path
	PathConvSearch  string `json:"path_conv_search"`        // converts mapping paths to library paths
	PathConvReplace string `json:"path_conv_replace"`
	LibraryUserName string `json:"library_user_name"`
	SampleSize      int    `json:"sample_size"`   // substitution resolution sample bound
	WaitInterval    string `json:"wait_interval"` // daemon cycle wait, time.ParseDuration format
}

// Wait parses the configured cycle wait interval, defaulting to 24h.
func (s *Settings) Wait() time.Duration {
	if d, err := time.ParseDuration(s.WaitInterval); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// Sample returns the substitution sample bound, defaulting to 5.
func (s *Settings) Sample() int {
	if s.SampleSize > 0 {
		return s.SampleSize
	}
	return 5
}
