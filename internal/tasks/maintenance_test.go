package tasks

import (
	"context"
	"testing"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
)

func TestBackfillProviderIDs(t *testing.T) {
	t.Run("Counts Every Outcome", func(t *testing.T) {
		store := newMockStore()
		store.settings.PathConvSearch = "/downloads"
		store.settings.PathConvReplace = "/music"
		store.mappings = []models.MediaMapping{
			{SourceID: "t1", LocalPath: "/downloads/artist/one.opus"},
			{SourceID: "t2", LocalPath: "/downloads/artist/two.opus"},
			{SourceID: "t3", LocalPath: "/downloads/artist/three.opus"},
			{SourceID: "t4", LocalPath: "/downloads/artist/missing.opus"},
		}

		library := newMockLibrary()
		library.addItem(services.LibraryItem{ID: "lib1", Name: "One", Path: "/music/artist/one.opus"})
		library.addItem(services.LibraryItem{ID: "lib2", Name: "Two", Path: "/music/artist/two.opus",
			ProviderIDs: map[string]string{services.ProviderIDKey: "t2"}})
		library.addItem(services.LibraryItem{ID: "lib3", Name: "Three", Path: "/music/artist/three.opus",
			ProviderIDs: map[string]string{services.ProviderIDKey: "other"}})

		engine := testEngine(store, library, newMockStreaming(), &mockNotifier{})
		result, err := engine.BackfillProviderIDs(context.Background(), "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Processed != 4 || result.Updated != 1 || result.Current != 1 || result.Failed != 2 {
			t.Errorf("unexpected counts: %+v", result)
		}

		item, _ := library.Item(context.Background(), "lib1", "user1")
		if item.ProviderID() != "t1" {
			t.Errorf("expected stamped provider id, got %q", item.ProviderID())
		}
		item, _ = library.Item(context.Background(), "lib3", "user1")
		if item.ProviderID() != "other" {
			t.Errorf("expected conflicting provider id untouched, got %q", item.ProviderID())
		}
	})

	t.Run("No Mappings Is A Quiet Pass", func(t *testing.T) {
		engine := testEngine(newMockStore(), newMockLibrary(), newMockStreaming(), &mockNotifier{})
		result, err := engine.BackfillProviderIDs(context.Background(), "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Processed != 0 {
			t.Errorf("expected empty result, got %+v", result)
		}
	})

	t.Run("Paths Used Verbatim Without Conversion Pair", func(t *testing.T) {
		store := newMockStore()
		store.mappings = []models.MediaMapping{
			{SourceID: "t1", LocalPath: "/music/one.opus"},
		}
		library := newMockLibrary()
		library.addItem(services.LibraryItem{ID: "lib1", Name: "One", Path: "/music/one.opus"})

		engine := testEngine(store, library, newMockStreaming(), &mockNotifier{})
		result, err := engine.BackfillProviderIDs(context.Background(), "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Updated != 1 {
			t.Errorf("expected update on verbatim path, got %+v", result)
		}
	})
}

func TestRefreshPlaylistConfigs(t *testing.T) {
	t.Run("Refreshes Renamed Source", func(t *testing.T) {
		store := newMockStore()
		store.configs = []models.PlaylistConfig{{
			ID: "cfg1", SourceID: "cloudpl", SourceName: "Stale Name",
			DestinationID: "destpl", DestinationName: "Mirror", Sync: true,
		}}

		streaming := newMockStreaming()
		streaming.playlists["cloudpl"] = []string{}

		library := newMockLibrary()
		library.addItem(services.LibraryItem{ID: "destpl", Name: "Mirror"})
		library.playlists["destpl"] = []string{}

		engine := testEngine(store, library, streaming, &mockNotifier{})
		result, err := engine.RefreshPlaylistConfigs(context.Background(), "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Checked != 1 || result.Updated != 1 || result.Created != 0 {
			t.Errorf("unexpected counts: %+v", result)
		}
		// the mock reports the playlist id as its title
		if store.configs[0].SourceName != "cloudpl" {
			t.Errorf("expected refreshed source name, got %q", store.configs[0].SourceName)
		}
	})

	t.Run("Recovers Destination By Name", func(t *testing.T) {
		store := newMockStore()
		store.configs = []models.PlaylistConfig{{
			ID: "cfg1", SourceID: "cloudpl", SourceName: "cloudpl",
			DestinationID: "stale-id", DestinationName: "Mirror", Sync: true,
		}}

		streaming := newMockStreaming()
		streaming.playlists["cloudpl"] = []string{}

		library := newMockLibrary()
		library.addItem(services.LibraryItem{ID: "destpl", Name: "mirror"})
		library.playlists["destpl"] = []string{}

		engine := testEngine(store, library, streaming, &mockNotifier{})
		result, err := engine.RefreshPlaylistConfigs(context.Background(), "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Created != 0 || result.Updated != 1 {
			t.Errorf("unexpected counts: %+v", result)
		}
		if store.configs[0].DestinationID != "destpl" {
			t.Errorf("expected case-insensitive name recovery, got %q", store.configs[0].DestinationID)
		}
	})

	t.Run("Creates Missing Destination", func(t *testing.T) {
		store := newMockStore()
		store.configs = []models.PlaylistConfig{{
			ID: "cfg1", SourceID: "cloudpl", SourceName: "cloudpl",
			DestinationName: "Mirror", Sync: true,
		}}

		streaming := newMockStreaming()
		streaming.playlists["cloudpl"] = []string{}

		library := newMockLibrary()
		engine := testEngine(store, library, streaming, &mockNotifier{})

		result, err := engine.RefreshPlaylistConfigs(context.Background(), "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Created != 1 || result.Updated != 1 {
			t.Errorf("unexpected counts: %+v", result)
		}
		created := store.configs[0].DestinationID
		if created == "" {
			t.Fatal("expected destination id persisted")
		}
		if _, err := library.PlaylistItems(context.Background(), created, "user1", nil); err != nil {
			t.Errorf("expected created playlist usable, got %v", err)
		}
	})

	t.Run("Unreachable Source Counted Failed", func(t *testing.T) {
		store := newMockStore()
		store.configs = []models.PlaylistConfig{{
			ID: "cfg1", SourceID: "gone", SourceName: "Gone",
			DestinationName: "Mirror", Sync: true,
		}}

		engine := testEngine(store, newMockLibrary(), newMockStreaming(), &mockNotifier{})
		result, err := engine.RefreshPlaylistConfigs(context.Background(), "user1")
		if err != nil {
			t.Fatalf("expected per-config failure, got %v", err)
		}
		if result.Checked != 1 || result.Failed != 1 {
			t.Errorf("unexpected counts: %+v", result)
		}
	})

	t.Run("Sync Disabled Skipped", func(t *testing.T) {
		store := newMockStore()
		store.configs = []models.PlaylistConfig{{
			ID: "cfg1", SourceID: "cloudpl", SourceName: "cloudpl", Sync: false,
		}}

		engine := testEngine(store, newMockLibrary(), newMockStreaming(), &mockNotifier{})
		result, err := engine.RefreshPlaylistConfigs(context.Background(), "user1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Checked != 0 {
			t.Errorf("expected disabled config skipped, got %+v", result)
		}
	})
}
