package api

import "net/http"

type healthResponse struct {
	Status           string `json:"status"`
	BrowserConnected bool   `json:"browser_connected"`
	ActiveRequests   int    `json:"active_requests"`
	QueueDepth       int    `json:"queue_depth"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		BrowserConnected: s.engine.Connected(),
		ActiveRequests:   s.engine.ActiveRequests(),
		QueueDepth:       s.engine.QueueDepth(),
	})
}
