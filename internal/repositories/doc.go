// Package repositories implements SQLite persistence for the local cache.
//
// Key Implementations:
//   - [TokenRepository] : The Spotify OAuth token with its stored-at time
//   - [CacheRepository] : Expiring key/value entries backing [models.Cache]
//   - [ExportRunRepository] : History of finished exports
//   - [MemoryCache] : In-process [models.Cache] for tests and cache-less runs
//
// All timestamps are stored in UTC. Schema comes from the embedded migrations in the shared package.
package repositories
