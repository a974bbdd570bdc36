package server

import (
	"net/http"

	"github.com/ternarybob/pricewatch/internal/handlers"
)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]http.HandlerFunc

// RouteByMethod routes requests based on HTTP method with standardized error handling
func RouteByMethod(routes MethodRouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handler, ok := routes[r.Method]
		if !ok {
			handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		handler(w, r)
	}
}

// exactPath serves handler only for the exact pattern path; ServeMux
// treats "/" as a catch-all, so everything else becomes a JSON 404
func exactPath(path string, handler, notFound http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			notFound(w, r)
			return
		}
		handler(w, r)
	}
}
