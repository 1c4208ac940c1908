package httpx

import (
	"net/http"
)

// healthHandler reports liveness plus the session phase, which tells an operator
// whether startup verification has finished.
func healthHandler(sessions SessionSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if sessions != nil {
			body["session"] = sessions.Session().Phase.String()
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		WriteJSON(w, http.StatusOK, body)
	}
}
