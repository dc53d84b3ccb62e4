// Package server runs the local HTTP endpoint that completes the Spotify login.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] registers routes as method patterns on an [http.ServeMux] and wraps the whole
// mux in its [Middleware], first added outermost. [RequestLogger] logs every request through
// charmbracelet/log, unmatched paths included.
//
// # OAuth Callback
//
// [OAuthHandler] serves the redirect URI of the authorization code flow. It checks the state
// parameter, exchanges the code together with the PKCE verifier, and delivers exactly one
// [OAuthResult]. Later callbacks are rejected.
//
// [CallbackServer] binds the host of the redirect URI, serves the handler until a result
// arrives or the context ends, then shuts down.
package server
