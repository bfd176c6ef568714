// Package tasks orchestrates playlist reconciliation and substitution between
// a cloud streaming catalog and a self-hosted media library.
//
// # Core Operations
//
// The [Engine] drives one scheduled cycle:
//
//  1. [Engine.RefreshPlaylistConfigs] : revalidate mirrored playlist pairs
//     - Refreshes source playlist titles from the provider
//     - Recreates missing destination playlists in the library
//
//  2. [Engine.BackfillProviderIDs] : walk media mappings
//     - Converts download paths to library paths
//     - Stamps missing provider ids onto library items
//
//  3. [Engine.ReconcileAll] : mirror cloud playlists into the library
//     - Matches entries by provider id, then by path-derived recovery
//     - Adds matched items to the destination in bounded chunks
//     - Reports mismatches for human review instead of guessing
//
//  4. [Engine.RunAutomations] : apply per-playlist substitution policies
//     - Classifies entries as songs or videos from provider type tags
//     - Replaces resolved videos in the source and/or during copy
//     - Captures newly observed media into the metadata cache
//
//  5. [Engine.ResolveSubstitutions] : propose song candidates for videos
//     - Samples a bounded subset of unresolved videos
//     - Searches songs, enriches with live view counts
//     - Prompts the owner over Slack; confirmations arrive via the listener
//
// # Progress Reporting
//
// All operations accept non-blocking progress channels.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and
// optional data for advanced UI rendering. Updates use select with default to
// prevent blocking.
//
// # Concurrency
//
// The batch cycle is single-threaded. Interactive handlers registered through
// [Engine.RegisterHandlers] run concurrently with it and share the metadata
// cache, so cache writes go through a re-read-and-retry path under a single
// engine mutex.
package tasks
