// Package models defines the domain entities shared by the playlist export pipeline.
//
// The package contains three groups of types:
//
// 1. Source entities, normalized from the music service:
//   - [Track], [Artist], [Album], [Image] : song metadata
//   - [Playlist], [PlaylistItem], [PlaylistExport] : playlists and their slots
//
// 2. Resolution entities, produced by a video resolver and the batch pipeline:
//   - [ResolvedVideo], [Thumbnail] : matched video and its metadata
//   - [ResolutionResult] : one track paired with its (possibly absent) video
//   - [ProgressState] : snapshot of a running export
//
// 3. Output and persistence:
//   - [ExportRow] : the seven CSV columns of one exported track
//   - [Cache] : key/value store with per-entry time-to-live
package models
