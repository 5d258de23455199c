package api

import "net/http"

type messageResponse struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// RootHandler answers the liveness probes the mobile client calls before
// uploading.
type RootHandler struct{}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// HandleRoot handles GET /. Every other unmatched path is a 404.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if r.Method != http.MethodGet {
		fail(w, NewKind("api.root", ErrMethod))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "CATrack backend running 🚜"})
}

// HandlePing handles GET /ping.
func (h *RootHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, NewKind("api.ping", ErrMethod))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "Backend connected successfully"})
}
