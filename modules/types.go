package modules

import "net/http"

// Module is a feature mounted below a path prefix of the server.
type Module interface {
	Shutdown()
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}
