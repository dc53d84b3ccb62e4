// Package services implements the external collaborators of the export pipeline: a [PlaylistSource] for Spotify and
// [VideoResolver] implementations for video search.
//
// # Spotify
//
// [SpotifyService] uses the authorization code flow with PKCE. Tokens are refreshed by the [oauth2] token source and
// every refreshed token is handed to the configured TokenSaver so the local cache stays current.
//
// Playlists, playlist items and saved tracks are paginated; the service follows "next" links until exhausted.
// The user's saved tracks are exposed as the pseudo-playlist [models.LikedSongsID].
//
// # Video resolvers
//
//   - [InvidiousResolver] : queries an Invidious instance (search, then optional video details)
//   - [DataAPIResolver] : queries the YouTube Data API v3 through google.golang.org/api
//   - [CachingResolver] : decorates any resolver with a [models.Cache]
//
// Every resolver searches for "<title> <artist> official audio" and takes the first result.
// A failed detail lookup is not fatal: the match is returned without thumbnails, duration or views.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token set
//   - [shared.ErrTokenExpired] : 401 from Spotify, reauthorization needed
//   - [shared.ErrAccessDenied] : 403 from Spotify (e.g. the user is not allow-listed for a development app)
//   - [shared.ErrPlaylistNotFound] : 404 from Spotify
//   - [shared.ErrQuotaExceeded] : 403/429 from a search backend
//   - [shared.ErrNoMatch] : search returned no candidates
//   - [shared.ErrAPIRequest] : any other failed request
package services
