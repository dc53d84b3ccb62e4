package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/desertthunder/playexport/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackPath is the default redirect path.
const CallbackPath = "/callback"

// Exchanger trades an authorization code and its PKCE verifier for a token.
type Exchanger interface {
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	Err   error
}

// OAuthHandler handles the redirect of the authorization code flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	exchanger Exchanger
	state     string
	verifier  string
	path      string

	results chan OAuthResult
	once    sync.Once
	mu      sync.Mutex
	hit     bool
}

// NewOAuthHandler creates a handler for one login attempt. state must be random; verifier is
// the PKCE verifier whose challenge went into the authorization URL. An empty path serves
// [CallbackPath].
func NewOAuthHandler(exchanger Exchanger, state, verifier, path string) *OAuthHandler {
	if path == "" {
		path = CallbackPath
	}
	return &OAuthHandler{
		exchanger: exchanger,
		state:     state,
		verifier:  verifier,
		path:      path,
		results:   make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the callback request. Only the first request is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.send(OAuthResult{Err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.send(OAuthResult{Err: err})
		renderPage(w, http.StatusBadRequest, failurePage, query.Get("error"))
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code, h.verifier)
	if err != nil {
		h.send(OAuthResult{Err: fmt.Errorf("token exchange failed: %w", err)})
		renderPage(w, http.StatusInternalServerError, failurePage, "token exchange failed")
		return
	}

	h.send(OAuthResult{Token: token})
	renderPage(w, http.StatusOK, successPage, "")
}

func (h *OAuthHandler) send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

var (
	successPage = template.Must(template.New("success").Parse(pageLayout(
		"Authorization Successful",
		`<h1 class="ok">✓ Authorization Successful</h1><p>You can close this window and return to the terminal.</p>`,
	)))
	failurePage = template.Must(template.New("failure").Parse(pageLayout(
		"Authorization Failed",
		`<h1 class="err">✗ Authorization Failed</h1><p>{{if .}}{{.}}{{else}}Unknown error{{end}}. Return to the terminal and try again.</p>`,
	)))
)

func pageLayout(title, body string) string {
	return `<!DOCTYPE html>
<html>
<head>
    <title>` + title + `</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        .ok { color: #1DB954; }
        .err { color: #E22134; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">` + body + `</div>
</body>
</html>
`
}

func renderPage(w http.ResponseWriter, status int, page *template.Template, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = page.Execute(w, detail)
}
