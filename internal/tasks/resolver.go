package tasks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
)

// Resolution is the outcome of a recovery attempt for one playlist entry.
type Resolution int

const (
	// ResolutionNone means no library item carries the entry's id in its path.
	ResolutionNone Resolution = iota
	// ResolutionRecovered means the path id matched and metadata verified.
	ResolutionRecovered
	// ResolutionMismatch means the path id matched but metadata disagreed;
	// the candidate must go to human review, never be applied.
	ResolutionMismatch
)

// IdentityResolver recovers provider ids for library items whose files embed
// the id in their path but whose metadata was never stamped.
//
// Built fresh each cycle from the library items lacking a provider id.
type IdentityResolver struct {
	pattern *regexp.Regexp
	index   map[string]models.RecoveryCandidate
}

// NewIdentityResolver indexes the untagged items by the id extracted from
// each item's file path. The pattern's first capture group is the id; items
// whose paths do not match are left out of the index.
func NewIdentityResolver(pattern string, items []services.LibraryItem) (*IdentityResolver, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid path id pattern %q: %w", pattern, err)
	}

	index := map[string]models.RecoveryCandidate{}
	for _, item := range items {
		if item.ProviderID() != "" || item.Path == "" {
			continue
		}
		groups := re.FindStringSubmatch(item.Path)
		if len(groups) < 2 || groups[1] == "" {
			continue
		}
		index[groups[1]] = models.RecoveryCandidate{
			PathID:    groups[1],
			LibraryID: item.ID,
			Name:      item.Name,
			Artists:   item.Artists,
		}
	}

	return &IdentityResolver{pattern: re, index: index}, nil
}

// Candidates reports how many untagged items were indexed.
func (r *IdentityResolver) Candidates() int {
	return len(r.index)
}

// Resolve attempts a recovery match for one playlist entry. A candidate is
// returned only when the path-derived id equals the entry id AND the titles
// are equal AND the entry's channel appears among the item's artists; a
// candidate failing either metadata check is reported as a mismatch.
func (r *IdentityResolver) Resolve(entry services.FlatEntry) (models.RecoveryCandidate, Resolution) {
	candidate, ok := r.index[entry.ID]
	if !ok {
		return models.RecoveryCandidate{}, ResolutionNone
	}

	if candidate.Name != entry.Title || !hasArtist(candidate.Artists, entry.Channel) {
		return candidate, ResolutionMismatch
	}
	return candidate, ResolutionRecovered
}

// Claim removes a recovered candidate from the index so one library item is
// never matched to two entries in the same cycle.
func (r *IdentityResolver) Claim(pathID string) {
	delete(r.index, pathID)
}

func hasArtist(artists []string, channel string) bool {
	for _, artist := range artists {
		if strings.EqualFold(artist, channel) {
			return true
		}
	}
	return false
}
