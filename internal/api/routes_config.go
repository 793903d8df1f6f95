package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/permission"
)

// handleGetPermissions returns the current allow-lists.
func (s *Server) handleGetPermissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"chat": s.gate.Members(permission.NamespaceChat),
		"mc":   s.gate.Members(permission.NamespaceMinecraft),
	})
}

// permissionsRequest is the body of PUT /api/permissions/:namespace.
type permissionsRequest struct {
	IDs []string `json:"ids"`
}

// handleSetPermissions replaces one namespace's allow-list and persists
// it to configuration.
func (s *Server) handleSetPermissions(c *gin.Context) {
	ns := permission.Namespace(c.Param("namespace"))
	if ns != permission.NamespaceChat && ns != permission.NamespaceMinecraft {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown namespace, use chat or mc"})
		return
	}

	var req permissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	s.gate.Replace(ns, req.IDs)

	mc := s.cfg.GetMinecraft()
	if ns == permission.NamespaceChat {
		mc.ChatAdminIDs = req.IDs
	} else {
		mc.MinecraftAdminIDs = req.IDs
	}
	s.cfg.SetMinecraft(mc)
	if err := s.cfg.Save(); err != nil {
		log.Error().Err(err).Msg("failed to persist permissions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "allow-list updated but not persisted: " + err.Error()})
		return
	}

	s.emitConfigChanged()
	c.JSON(http.StatusOK, gin.H{
		"namespace": ns,
		"ids":       req.IDs,
	})
}

// handleGetConfig returns the configuration with the RCON password redacted.
func (s *Server) handleGetConfig(c *gin.Context) {
	mc := s.cfg.GetMinecraft()
	if mc.RconPassword != "" {
		mc.RconPassword = "********"
	}

	c.JSON(http.StatusOK, gin.H{
		"minecraft":        mc,
		"application_data": s.cfg.GetApplicationData(),
	})
}

// handleSetMinecraft updates individual Minecraft section fields by
// their JSON keys and persists the result.
func (s *Server) handleSetMinecraft(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	for key, value := range updates {
		if err := s.cfg.UpdateMinecraftField(key, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": key})
			return
		}
	}

	if err := s.cfg.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config: " + err.Error()})
		return
	}

	s.emitConfigChanged()
	c.JSON(http.StatusOK, gin.H{"updated": len(updates)})
}

func (s *Server) emitConfigChanged() {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventConfigChanged,
		Source: "api",
	})
}
