package tasks

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
)

func reconcileFixture() (*mockStore, *mockLibrary, *mockStreaming, *mockNotifier) {
	streaming := newMockStreaming()
	streaming.catalog["t1"] = song("t1", "Track One", "Artist One")
	streaming.catalog["t2"] = song("t2", "Track Two", "Artist Two")
	streaming.catalog["t3"] = song("t3", "Track Three", "Artist Three")
	streaming.catalog["t4"] = song("t4", "Track Four", "Artist Four")
	streaming.playlists["cloudpl"] = []string{"t1", "t2", "t3", "t4"}

	library := newMockLibrary()
	// already matched and in the destination
	library.addItem(services.LibraryItem{ID: "lib1", Name: "Track One",
		ProviderIDs: map[string]string{services.ProviderIDKey: "t1"}})
	// matched but missing from the destination
	library.addItem(services.LibraryItem{ID: "lib2", Name: "Track Two",
		ProviderIDs: map[string]string{services.ProviderIDKey: "t2"}})
	// recoverable via path id
	library.addItem(services.LibraryItem{ID: "lib3", Name: "Track Three",
		Path: "/music/Track Three [t3].opus", Artists: []string{"Artist Three"}})
	library.items["destpl"] = &services.LibraryItem{ID: "destpl", Name: "Mirror"}
	library.playlists["destpl"] = []string{"lib1"}

	store := newMockStore()
	store.settings.PathIDPattern = `\[([A-Za-z0-9_-]{2,})\]`
	store.configs = []models.PlaylistConfig{{
		ID: "cfg1", SourceID: "cloudpl", SourceName: "Cloud",
		DestinationID: "destpl", DestinationName: "Mirror", UserName: "alice", Sync: true,
	}}

	return store, library, streaming, &mockNotifier{}
}

func TestReconcileAll(t *testing.T) {
	t.Run("Entry States", func(t *testing.T) {
		store, library, streaming, notifier := reconcileFixture()
		engine := testEngine(store, library, streaming, notifier)

		results, err := engine.ReconcileAll(context.Background(), "user1", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected one playlist result, got %d", len(results))
		}

		r := results[0]
		if r.Matched != 2 {
			t.Errorf("expected 2 provider-id matches, got %d", r.Matched)
		}
		if r.Recovered != 1 {
			t.Errorf("expected 1 recovery, got %d", r.Recovered)
		}
		if r.Unmatched != 1 {
			t.Errorf("expected t4 unmatched, got %d", r.Unmatched)
		}
		if r.Attempted != 2 || r.Added != 2 {
			t.Errorf("expected lib2 and lib3 added, got attempted=%d added=%d", r.Attempted, r.Added)
		}

		members := library.playlists["destpl"]
		if !slices.Contains(members, "lib2") || !slices.Contains(members, "lib3") {
			t.Errorf("expected lib2 and lib3 in destination, got %v", members)
		}

		item, _ := library.Item(context.Background(), "lib3", "user1")
		if item.ProviderID() != "t3" {
			t.Errorf("expected provider id back-filled on recovery, got %q", item.ProviderID())
		}
	})

	t.Run("Mismatch Is Reported Not Added", func(t *testing.T) {
		store, library, streaming, notifier := reconcileFixture()
		// its path id matches t3 but the title disagrees
		library.items["lib3"].Name = "Completely Different"
		engine := testEngine(store, library, streaming, notifier)

		results, err := engine.ReconcileAll(context.Background(), "user1", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		r := results[0]
		if len(r.Mismatches) != 1 {
			t.Fatalf("expected one mismatch, got %d", len(r.Mismatches))
		}
		if r.Mismatches[0].LibraryID != "lib3" {
			t.Errorf("expected lib3 surfaced, got %s", r.Mismatches[0].LibraryID)
		}
		if slices.Contains(library.playlists["destpl"], "lib3") {
			t.Error("mismatched item must not be added to the destination")
		}
		item, _ := library.Item(context.Background(), "lib3", "user1")
		if item.ProviderID() != "" {
			t.Error("mismatched item must not receive a provider id")
		}
		if len(notifier.messages) == 0 {
			t.Error("expected a mismatch report message")
		}
	})

	t.Run("Partial Batch Accounting", func(t *testing.T) {
		store, library, streaming, notifier := reconcileFixture()
		library.failAddAfter = 1
		engine := testEngine(store, library, streaming, notifier)

		results, err := engine.ReconcileAll(context.Background(), "user1", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		r := results[0]
		if r.Kind != shared.KindPartialBatch {
			t.Errorf("expected partial batch kind, got %v", r.Kind)
		}
		if r.Attempted != 2 || r.Added != 1 {
			t.Errorf("expected attempted=2 added=1, got attempted=%d added=%d", r.Attempted, r.Added)
		}
	})

	t.Run("Playlist Failure Does Not Abort Others", func(t *testing.T) {
		store, library, streaming, notifier := reconcileFixture()
		store.configs = append([]models.PlaylistConfig{{
			ID: "cfg0", SourceID: "missing", SourceName: "Gone",
			DestinationID: "destpl", DestinationName: "Mirror", Sync: true,
		}}, store.configs...)
		engine := testEngine(store, library, streaming, notifier)

		results, err := engine.ReconcileAll(context.Background(), "user1", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected both playlists processed, got %d", len(results))
		}
		if results[0].Err == nil || results[0].Kind != shared.KindNotFound {
			t.Errorf("expected not-found result for missing playlist, got %+v", results[0])
		}
		if results[1].Err != nil {
			t.Errorf("expected second playlist to succeed, got %v", results[1].Err)
		}
	})

	t.Run("Sync Disabled Skipped", func(t *testing.T) {
		store, library, streaming, notifier := reconcileFixture()
		store.configs[0].Sync = false
		engine := testEngine(store, library, streaming, notifier)

		results, err := engine.ReconcileAll(context.Background(), "user1", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
	})
}

func TestReportMismatches(t *testing.T) {
	t.Run("Caps Outbound Batches", func(t *testing.T) {
		store, library, streaming, _ := reconcileFixture()
		notifier := &mockNotifier{}
		engine := testEngine(store, library, streaming, notifier)

		var mismatches []Mismatch
		for i := 0; i < 40; i++ {
			mismatches = append(mismatches, Mismatch{EntryID: fmt.Sprintf("e%d", i)})
		}
		results := []PlaylistResult{{Mismatches: mismatches}}

		engine.reportMismatches(context.Background(), results)

		if len(notifier.messages) != mismatchBatchCap {
			t.Errorf("expected %d report messages for 40 mismatches, got %d",
				mismatchBatchCap, len(notifier.messages))
		}
	})

	t.Run("No Mismatches No Messages", func(t *testing.T) {
		store, library, streaming, _ := reconcileFixture()
		notifier := &mockNotifier{}
		engine := testEngine(store, library, streaming, notifier)

		engine.reportMismatches(context.Background(), []PlaylistResult{{}})
		if len(notifier.messages) != 0 {
			t.Errorf("expected no messages, got %d", len(notifier.messages))
		}
	})
}
