package server

import (
	"net/http"
)

// handleUserStats serves GET /api/user/stats: remaining credits and
// lifetime usage counters. Creates the ledger row on first sight of a
// user.
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	balance, err := s.ledger.Stats(userID)
	if err != nil {
		handleError(w, s.logger, err, "failed to load user stats")
		return
	}

	writeJSON(w, http.StatusOK, balance)
}
