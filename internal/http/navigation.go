package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

var _ ports.Navigator = (*PendingNavigation)(nil)

// PendingNavigation is the web shell's Navigator. Background code cannot redirect a
// browser directly, so Navigate parks the destination and the next page request
// consumes it.
type PendingNavigation struct {
	mu     sync.Mutex
	target string
}

// Navigate records path as the next destination. A later call replaces an unconsumed one.
func (n *PendingNavigation) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = path
}

// Take returns and clears the pending destination.
func (n *PendingNavigation) Take() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	target := n.target
	n.target = ""
	return target, target != ""
}

// Middleware redirects the next browser request to the pending destination, once.
// A request already on that destination just clears it. API requests pass through
// untouched and leave it pending.
func (n *PendingNavigation) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsBrowserRequest(r) || r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			target, ok := n.Take()
			if !ok || onPath(r.URL.Path, target) {
				next.ServeHTTP(w, r)
				return
			}
			if target == domainauth.AuthPath {
				if back := redirectPathForRequest(r); back != "" {
					target += "?redirect_uri=" + url.QueryEscape(back)
				}
			}
			navigate(w, r, target)
		})
	}
}

func onPath(path, target string) bool {
	return path == target || strings.HasPrefix(path, target+"/")
}
