package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AppVersion is stamped at build time.
var AppVersion = "1.0.0"

// handlePing is a liveness probe.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleVersion reports the running version.
func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": AppVersion})
}
