package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcwarden-project/mcwarden/internal/command"
	"github.com/mcwarden-project/mcwarden/internal/rcon"
)

// dispatchRequest is the body of POST /api/dispatch.
type dispatchRequest struct {
	Action string   `json:"action" binding:"required"`
	Args   []string `json:"args"`
	Sender string   `json:"sender"`
}

// handleDispatch runs one structured command through the dispatcher.
// The dangerous-command policy comes from configuration; the API cannot
// override it per request.
func (s *Server) handleDispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	sender := req.Sender
	if sender == "" {
		sender = c.ClientIP()
	}

	cmd := command.Command{
		Action: command.Action(req.Action),
		Args:   req.Args,
		Origin: "api",
		Sender: sender,
	}
	policy := command.Policy{
		EnableDangerous: s.cfg.GetMinecraft().EnableDangerousCommands,
	}

	reply, err := s.dispatcher.Dispatch(c.Request.Context(), cmd, policy)
	if err != nil {
		status := http.StatusBadGateway
		var unknownErr *command.UnknownActionError
		switch {
		case errors.As(err, &unknownErr):
			status = http.StatusBadRequest
		case errors.Is(err, command.ErrForbidden):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"action":   req.Action,
		"response": reply,
	})
}

// handleConnectionTest verifies the RCON link end to end.
func (s *Server) handleConnectionTest(c *gin.Context) {
	reply, err := s.session.Ping(c.Request.Context())
	if err != nil {
		var authErr *rcon.AuthError
		status := http.StatusBadGateway
		if errors.As(err, &authErr) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"response": reply,
	})
}
