package ui

import (
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/tasks"
)

// videosFetchedMsg carries the unresolved video listing.
type videosFetchedMsg struct {
	videos []models.MediaItem
	err    error
}

// candidatesFetchedMsg carries the song proposals for one video.
type candidatesFetchedMsg struct {
	candidates []tasks.Candidate
	err        error
}

// resolvedMsg reports the outcome of a confirmation or an ignore.
type resolvedMsg struct {
	outcome string
	err     error
}
