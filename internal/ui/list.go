package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/tasks"
)

var (
	_ list.Item = videoItem{}
	_ list.Item = candidateItem{}
)

// videoItem wraps an unresolved [models.MediaItem] to implement [list.Item].
type videoItem struct {
	video models.MediaItem
}

func (i videoItem) FilterValue() string { return i.video.Title }
func (i videoItem) Title() string       { return i.video.Title }
func (i videoItem) Description() string {
	desc := i.video.Artist
	if i.video.Duration > 0 {
		desc = fmt.Sprintf("%s • %s", desc, formatter.FormatDuration(i.video.Duration))
	}
	return desc
}

// candidateItem wraps a [tasks.Candidate] to implement [list.Item].
type candidateItem struct {
	candidate tasks.Candidate
}

func (i candidateItem) FilterValue() string { return i.candidate.Item.Title }
func (i candidateItem) Title() string       { return i.candidate.Item.Title }
func (i candidateItem) Description() string {
	desc := i.candidate.Item.Artist
	if i.candidate.Item.Duration > 0 {
		desc = fmt.Sprintf("%s • %s", desc, formatter.FormatDuration(i.candidate.Item.Duration))
	}
	if i.candidate.Views != "" {
		desc = fmt.Sprintf("%s • %s views", desc, i.candidate.Views)
	}
	return desc
}
