package tasks

import (
	"testing"

	"github.com/desertthunder/playsync/internal/services"
)

const pathIDPattern = `\[([A-Za-z0-9_-]{4,})\]`

func untaggedItem(id, name, path string, artists ...string) services.LibraryItem {
	return services.LibraryItem{ID: id, Name: name, Path: path, Artists: artists}
}

func TestIdentityResolver(t *testing.T) {
	items := []services.LibraryItem{
		untaggedItem("lib1", "Morning Song", "/music/Morning Song [abcd1234].opus", "The Band"),
		untaggedItem("lib2", "Other Song", "/music/Other Song [efgh5678].opus", "Someone Else"),
		{ID: "lib3", Name: "Tagged", Path: "/music/Tagged [tagged99].opus",
			ProviderIDs: map[string]string{services.ProviderIDKey: "tagged99"}},
		untaggedItem("lib4", "No Pattern", "/music/plain.opus", "Nobody"),
	}

	resolver, err := NewIdentityResolver(pathIDPattern, items)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Run("Indexes Only Untagged Matching Paths", func(t *testing.T) {
		if resolver.Candidates() != 2 {
			t.Errorf("expected 2 candidates, got %d", resolver.Candidates())
		}
	})

	t.Run("Recovers On Full Metadata Match", func(t *testing.T) {
		entry := services.FlatEntry{ID: "abcd1234", Title: "Morning Song", Channel: "The Band"}
		candidate, resolution := resolver.Resolve(entry)
		if resolution != ResolutionRecovered {
			t.Fatalf("expected recovery, got %v", resolution)
		}
		if candidate.LibraryID != "lib1" {
			t.Errorf("expected lib1, got %s", candidate.LibraryID)
		}
	})

	t.Run("Title Disagreement Is A Mismatch", func(t *testing.T) {
		entry := services.FlatEntry{ID: "abcd1234", Title: "Different Title", Channel: "The Band"}
		candidate, resolution := resolver.Resolve(entry)
		if resolution != ResolutionMismatch {
			t.Fatalf("expected mismatch, got %v", resolution)
		}
		if candidate.LibraryID != "lib1" {
			t.Errorf("expected the colliding candidate surfaced, got %s", candidate.LibraryID)
		}
	})

	t.Run("Channel Disagreement Is A Mismatch", func(t *testing.T) {
		entry := services.FlatEntry{ID: "abcd1234", Title: "Morning Song", Channel: "Impostor"}
		_, resolution := resolver.Resolve(entry)
		if resolution != ResolutionMismatch {
			t.Errorf("expected mismatch, got %v", resolution)
		}
	})

	t.Run("Channel Match Is Case Insensitive", func(t *testing.T) {
		entry := services.FlatEntry{ID: "abcd1234", Title: "Morning Song", Channel: "the band"}
		_, resolution := resolver.Resolve(entry)
		if resolution != ResolutionRecovered {
			t.Errorf("expected recovery, got %v", resolution)
		}
	})

	t.Run("Unknown Id Resolves To None", func(t *testing.T) {
		entry := services.FlatEntry{ID: "zzzz0000", Title: "Anything", Channel: "Anyone"}
		_, resolution := resolver.Resolve(entry)
		if resolution != ResolutionNone {
			t.Errorf("expected none, got %v", resolution)
		}
	})

	t.Run("Claim Removes A Candidate", func(t *testing.T) {
		fresh, _ := NewIdentityResolver(pathIDPattern, items)
		fresh.Claim("efgh5678")
		entry := services.FlatEntry{ID: "efgh5678", Title: "Other Song", Channel: "Someone Else"}
		if _, resolution := fresh.Resolve(entry); resolution != ResolutionNone {
			t.Errorf("expected claimed candidate gone, got %v", resolution)
		}
	})

	t.Run("Invalid Pattern", func(t *testing.T) {
		if _, err := NewIdentityResolver("([", nil); err == nil {
			t.Error("expected error for invalid pattern")
		}
	})
}
