// Package models defines domain entities for the playsync reconciliation service.
//
// The package contains two categories of types:
//
// 1. Store-backed entities, owned by the configuration/metadata store:
//   - [MediaItem] : observed source-catalog media with an optional confirmed substitution
//   - [AutomationConfig] : per-playlist, per-account substitution/copy policies
//   - [PlaylistConfig] : cloud playlist paired with a mirrored library playlist
//   - [MediaMapping] : provider id to original download path, consumed by backfill
//   - [Account] : provider identity with OAuth tokens and a Slack recipient
//   - [Settings] : the flat key/value tunables bag
//
// 2. Ephemeral values derived each cycle and never persisted:
//   - [RecoveryCandidate] : a library item lacking a provider id, keyed by a
//     path-derived identifier
//
// The core operates only on these types; collaborator packages convert their
// wire payloads into them at the boundary.
package models
