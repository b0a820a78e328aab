package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adeeb897/soup-kitchen-scheduler/store"
)

// HandleAuthStateGin is the pending-login state store endpoint, dispatched on
// the action query parameter. Retrieval consumes the entry; the error
// responses stay generic while the interesting details go to the server log.
func (s *Server) HandleAuthStateGin(c *gin.Context) {
	if !s.requirePendingStore(c) {
		return
	}

	switch c.Query("action") {
	case "store":
		s.handleStateStore(c)
	case "retrieve":
		s.handleStateRetrieve(c)
	case "cleanup":
		s.handleStateCleanup(c)
	default:
		jsonError(c, http.StatusBadRequest, "invalid_request", "unknown action")
	}
}

func (s *Server) handleStateStore(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		jsonError(c, http.StatusMethodNotAllowed, "invalid_request", "store requires POST")
		return
	}

	var body struct {
		State        string `json:"state"`
		CodeVerifier string `json:"code_verifier"`
		RedirectURI  string `json:"redirect_uri"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if body.State == "" || body.CodeVerifier == "" || body.RedirectURI == "" {
		jsonError(c, http.StatusBadRequest, "invalid_request", "state, code_verifier and redirect_uri are required")
		return
	}

	sessionID, err := s.pending.Store(c.Request.Context(), body.State, body.CodeVerifier, body.RedirectURI)
	if err != nil {
		s.logger.Error().Err(err).Msg("pending auth store failed")
		jsonError(c, http.StatusInternalServerError, "server_error", "could not store auth state")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

func (s *Server) handleStateRetrieve(c *gin.Context) {
	sessionID := c.Query("session_id")
	state := c.Query("state")
	if sessionID == "" || state == "" {
		jsonError(c, http.StatusBadRequest, "invalid_request", "session_id and state are required")
		return
	}

	entry, err := s.pending.Retrieve(c.Request.Context(), sessionID, state)
	switch {
	case errors.Is(err, store.ErrPendingAuthNotFound):
		jsonError(c, http.StatusNotFound, "not_found", "no pending login for this session")
	case errors.Is(err, store.ErrPendingAuthExpired):
		jsonError(c, http.StatusGone, "expired", "the pending login has expired")
	case errors.Is(err, store.ErrStateMismatch):
		// The store already logged the security event with detail.
		jsonError(c, http.StatusForbidden, "forbidden", "state validation failed")
	case err != nil:
		s.logger.Error().Err(err).Msg("pending auth retrieve failed")
		jsonError(c, http.StatusInternalServerError, "server_error", "could not retrieve auth state")
	default:
		c.JSON(http.StatusOK, gin.H{
			"code_verifier": entry.CodeVerifier,
			"redirect_uri":  entry.RedirectURI,
		})
	}
}

func (s *Server) handleStateCleanup(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		jsonError(c, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}
	if err := s.pending.Cleanup(c.Request.Context(), sessionID); err != nil {
		s.logger.Debug().Err(err).Msg("pending auth cleanup failed")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
