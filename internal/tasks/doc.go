// Package tasks exports Spotify playlists as CSV files of resolved YouTube videos,
// with real-time progress reporting.
//
// # Resolution Pipeline
//
// [Pipeline.Run] resolves the tracks of a playlist through a [services.VideoResolver]:
//   - Tracks are split into chunks of a fixed batch size
//   - Chunks run strictly one after another, separated by a pacing delay
//   - Tracks within a chunk are resolved concurrently
//   - Results come back in playlist order; absent tracks are skipped
//   - A failed or panicking lookup becomes an unresolved result, never an error
//
// Progress is published to a [ProgressTracker] after every chunk and reset to idle
// when the run ends, whether it succeeded or not.
//
// # Exports
//
// [Engine.Export] ties the pieces together:
//
//  1. Resolve the playlist reference (share link, URI, ID, name, or liked songs)
//  2. Fetch the playlist from the [services.PlaylistSource]
//  3. Run the pipeline
//  4. Write the CSV (and optionally a Markdown report) via the formatter package
//  5. Record the run through the optional [RunRecorder]
//
// [Engine.BulkExport] does the same for many playlists. Fetches run on a small worker
// pool throttled by a rate limiter; resolution runs one playlist at a time so the
// resolver only ever sees a single pipeline.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
