package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError emits the same {"errors": [...]} envelope the handlers use.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string][]string{"errors": {msg}})
}
