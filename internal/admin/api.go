package admin

import (
	"encoding/json"
	"net/http"
)

// StatusResponse is the GET /api/status payload.
type StatusResponse struct {
	Version        string `json:"version"`
	UptimeSeconds  int64  `json:"uptimeSeconds"`
	MountPoint     string `json:"mountPoint"`
	ActiveSessions int    `json:"activeSessions"`
	Stations       int    `json:"stations"`
}

// ErrorResponse is the error payload for every API endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
