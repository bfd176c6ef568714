// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for reviewing video substitutions locally,
// as an alternative to the Slack prompts:
//  1. [VideoListView] : Browse unresolved videos from the metadata cache
//  2. [CandidateListView] : Pick among proposed song replacements
//  3. [ConfirmView] : Confirm the substitution or ignore the video
//  4. [ResultView] : Display the outcome and loop back
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Candidate searches run asynchronously as tea commands so the interface stays responsive
// while the view-count enrichment is rate limited.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, i, q) with contextual help
// displayed via charmbracelet/bubbles/help.
package ui
